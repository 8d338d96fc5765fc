package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"savory-auth/internal/domain"
)

type mockStoreRepo struct {
	mu     sync.Mutex
	stores map[string]domain.Store
}

func newMockStoreRepo() *mockStoreRepo {
	return &mockStoreRepo{stores: make(map[string]domain.Store)}
}

func (m *mockStoreRepo) Create(_ context.Context, store domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[store.ID] = store
	return nil
}

func (m *mockStoreRepo) GetByID(_ context.Context, id string) (domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[id]
	if !ok {
		return domain.Store{}, pgx.ErrNoRows
	}
	return store, nil
}

func (m *mockStoreRepo) Update(_ context.Context, store domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[store.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.stores[store.ID] = store
	return nil
}

func TestStoreServiceCreateAndGet(t *testing.T) {
	repo := newMockStoreRepo()
	svc := NewStoreService(nil, repo, newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	store, err := svc.Create(context.Background(), "u1", StoreInput{Name: "Tacos El Rey", Description: "tacos"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.AuthorID != "u1" || store.ID == "" {
		t.Fatalf("unexpected store: %+v", store)
	}

	got, err := svc.Get(context.Background(), store.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Tacos El Rey" {
		t.Fatalf("unexpected name: %q", got.Name)
	}
}

func TestStoreServiceUpdate_OwnerOnly(t *testing.T) {
	repo := newMockStoreRepo()
	svc := NewStoreService(nil, repo, newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	store, err := svc.Create(context.Background(), "u1", StoreInput{Name: "Tacos El Rey"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(context.Background(), "u2", store.ID, StoreInput{Name: "Hijacked"}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	unchanged, _ := repo.GetByID(context.Background(), store.ID)
	if unchanged.Name != "Tacos El Rey" {
		t.Fatalf("store mutated by non-owner: %+v", unchanged)
	}

	updated, err := svc.Update(context.Background(), "u1", store.ID, StoreInput{Name: "Tacos El Rey 2"})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Name != "Tacos El Rey 2" {
		t.Fatalf("unexpected name after update: %q", updated.Name)
	}
}

func TestStoreServiceUpdate_NotFound(t *testing.T) {
	repo := newMockStoreRepo()
	svc := NewStoreService(nil, repo, nil)

	if _, err := svc.Update(context.Background(), "u1", "missing", StoreInput{Name: "x"}); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}
