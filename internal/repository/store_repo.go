package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"savory-auth/internal/domain"
)

// StoreRepository define el contrato de persistencia para stores.
type StoreRepository interface {
	Create(ctx context.Context, store domain.Store) error
	GetByID(ctx context.Context, id string) (domain.Store, error)
	Update(ctx context.Context, store domain.Store) error
}

// PgStoreRepository implementa StoreRepository usando pgxpool.
type PgStoreRepository struct {
	pool *pgxpool.Pool
}

func NewPgStoreRepository(pool *pgxpool.Pool) *PgStoreRepository {
	return &PgStoreRepository{pool: pool}
}

func (r *PgStoreRepository) Create(ctx context.Context, store domain.Store) error {
	const query = `
		INSERT INTO stores (id, author_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		store.ID,
		store.AuthorID,
		store.Name,
		store.Description,
		store.CreatedAt,
		store.UpdatedAt,
	)
	return err
}

func (r *PgStoreRepository) GetByID(ctx context.Context, id string) (domain.Store, error) {
	const query = `
		SELECT id, author_id, name, description, created_at, updated_at
		FROM stores
		WHERE id = $1
	`
	var s domain.Store
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.AuthorID,
		&s.Name,
		&s.Description,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Store{}, err
	}
	return s, err
}

func (r *PgStoreRepository) Update(ctx context.Context, store domain.Store) error {
	const query = `
		UPDATE stores
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		store.ID,
		store.Name,
		store.Description,
		store.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
