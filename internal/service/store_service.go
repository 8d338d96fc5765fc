package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"savory-auth/internal/clock"
	"savory-auth/internal/domain"
	"savory-auth/internal/repository"
)

// StoreService coordina reglas de negocio para stores. Toda mutacion pasa
// primero por ConfirmOwner.
type StoreService struct {
	logger *zap.Logger
	stores repository.StoreRepository
	clock  clock.Clock
}

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrStoreInvalid  = errors.New("store data invalid")
)

func NewStoreService(logger *zap.Logger, stores repository.StoreRepository, clk clock.Clock) *StoreService {
	if clk == nil {
		clk = clock.System()
	}
	return &StoreService{
		logger: logger,
		stores: stores,
		clock:  clk,
	}
}

type StoreInput struct {
	Name        string
	Description string
}

func (s *StoreService) Create(ctx context.Context, authorID string, input StoreInput) (domain.Store, error) {
	if s.stores == nil {
		return domain.Store{}, errors.New("store service not configured")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(authorID) == "" {
		return domain.Store{}, ErrStoreInvalid
	}

	now := s.clock.Now()
	store := domain.Store{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stores.Create(ctx, store); err != nil {
		return domain.Store{}, err
	}
	return store, nil
}

func (s *StoreService) Get(ctx context.Context, id string) (domain.Store, error) {
	if s.stores == nil {
		return domain.Store{}, errors.New("store service not configured")
	}
	store, err := s.stores.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Store{}, ErrStoreNotFound
		}
		return domain.Store{}, err
	}
	return store, nil
}

// Update muta el store solo si el caller es su autor.
func (s *StoreService) Update(ctx context.Context, callerID, id string, input StoreInput) (domain.Store, error) {
	store, err := s.Get(ctx, id)
	if err != nil {
		return domain.Store{}, err
	}
	if err := ConfirmOwner(store.AuthorID, callerID); err != nil {
		return domain.Store{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Store{}, ErrStoreInvalid
	}
	store.Name = name
	store.Description = strings.TrimSpace(input.Description)
	store.UpdatedAt = s.clock.Now()

	if err := s.stores.Update(ctx, store); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Store{}, ErrStoreNotFound
		}
		return domain.Store{}, err
	}
	return store, nil
}
