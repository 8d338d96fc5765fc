package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"savory-auth/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, token string, now time.Time) (domain.User, error)
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, password_hash, reset_token, reset_token_expires_at, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, password_hash, reset_token, reset_token_expires_at, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// SetResetToken sobreescribe incondicionalmente el token anterior: emitir de
// nuevo invalida cualquier link pendiente.
func (r *PgUserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_token = $2, reset_token_expires_at = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, token, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByResetToken solo encuentra tokens vivos: expiracion estrictamente
// posterior a now.
func (r *PgUserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, password_hash, reset_token, reset_token_expires_at, created_at
		FROM users
		WHERE reset_token = $1 AND reset_token_expires_at > $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, token, now))
}

// ConsumeResetToken es el compare-and-clear atomico: escribe el nuevo hash y
// limpia ambos campos de reset en un solo UPDATE condicionado a que el token
// siga vivo al momento de escribir. De dos consumos concurrentes gana uno;
// el otro recibe pgx.ErrNoRows.
func (r *PgUserRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (domain.User, error) {
	const query = `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL
		WHERE reset_token = $1 AND reset_token_expires_at > $3
		RETURNING id, email, display_name, password_hash, reset_token, reset_token_expires_at, created_at
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, token, passwordHash, now))
}

func (r *PgUserRepository) scanOne(row pgx.Row) (domain.User, error) {
	var (
		u          domain.User
		resetToken *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&resetToken,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if resetToken != nil {
		u.ResetToken = *resetToken
	}
	return u, err
}
