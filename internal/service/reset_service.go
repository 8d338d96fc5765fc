package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"savory-auth/internal/clock"
	"savory-auth/internal/domain"
	"savory-auth/internal/repository"
)

// ResetService maneja el ciclo de vida del token de reset de password:
// emitir, validar y consumir. Por usuario hay a lo sumo un token vivo;
// emitir de nuevo pisa el anterior.
type ResetService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	hasher  PasswordHasher
	auth    *AuthService
	limiter ResetRateLimiter
	clock   clock.Clock
}

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrRateLimited       = errors.New("rate limited")
)

// resetTokenTTL replica las 10 horas del flujo original.
const resetTokenTTL = 10 * time.Hour

// resetTokenBytes da 160 bits de entropia, hex-encoded.
const resetTokenBytes = 20

func NewResetService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, auth *AuthService, limiter ResetRateLimiter, clk clock.Clock) *ResetService {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	if limiter == nil {
		limiter = NewResetRateLimiter(resetRequestWindow, 3)
	}
	if clk == nil {
		clk = clock.System()
	}
	return &ResetService{
		logger:  logger,
		users:   users,
		hasher:  hasher,
		auth:    auth,
		limiter: limiter,
		clock:   clk,
	}
}

// ResetRequest es el recibo de emision: el caller arma el link y dispara el
// mail, este servicio no toca el transporte.
type ResetRequest struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// RequestReset emite un token nuevo para la cuenta del email. El token
// anterior, si habia, queda invalido de inmediato.
func (s *ResetService) RequestReset(ctx context.Context, emailAddr string) (ResetRequest, error) {
	if s.users == nil {
		return ResetRequest{}, errors.New("reset service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ResetRequest{}, ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ResetRequest{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetRequest{}, ErrAccountNotFound
		}
		return ResetRequest{}, err
	}

	token, err := generateResetToken()
	if err != nil {
		return ResetRequest{}, err
	}
	expiresAt := s.clock.Now().Add(resetTokenTTL)

	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return ResetRequest{}, err
	}

	user.ResetToken = token
	user.ResetTokenExpiresAt = &expiresAt
	return ResetRequest{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken busca al usuario con ese token vivo. No distingue token
// desconocido de token vencido: ambos son ErrResetTokenInvalid.
func (s *ResetService) ValidateToken(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("reset service not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrResetTokenInvalid
	}
	user, err := s.users.GetByResetToken(ctx, token, s.clock.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrResetTokenInvalid
		}
		return domain.User{}, err
	}
	return user, nil
}

// ConsumeToken fija el password nuevo, limpia el token y abre sesion. El
// chequeo del token y la limpieza son un solo update condicional en el
// repositorio: de dos consumos concurrentes gana exactamente uno.
func (s *ResetService) ConsumeToken(ctx context.Context, token, newPassword string) (domain.Session, string, error) {
	if s.users == nil || s.auth == nil {
		return domain.Session{}, "", errors.New("reset service not configured")
	}
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return domain.Session{}, "", ErrResetTokenInvalid
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.Session{}, "", err
	}

	user, err := s.users.ConsumeResetToken(ctx, token, passwordHash, s.clock.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, "", ErrResetTokenInvalid
		}
		return domain.Session{}, "", err
	}

	if s.logger != nil {
		s.logger.Info("password reset", zap.String("user_id", user.ID))
	}
	return s.auth.StartSession(user)
}

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ResetRateLimiter limita la frecuencia de pedidos de reset por email.
type ResetRateLimiter interface {
	Allow(key string) bool
}

const resetRequestWindow = 10 * time.Minute

type resetRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewResetRateLimiter crea un rate limiter en memoria.
func NewResetRateLimiter(window time.Duration, max int) ResetRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &resetRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *resetRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
