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

// AuthService verifica credenciales y abre/cierra sesiones.
type AuthService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	hasher    PasswordHasher
	sessions  *SessionService
	clock     clock.Clock
	dummyHash string
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailTaken         = errors.New("email already registered")
)

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, sessions *SessionService, clk clock.Clock) *AuthService {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	if clk == nil {
		clk = clock.System()
	}
	// Hash de relleno para que el fallo por usuario inexistente cueste lo
	// mismo que un password incorrecto.
	dummyHash, _ := hasher.Hash("savory-auth-dummy-password")
	return &AuthService{
		logger:    logger,
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		clock:     clk,
		dummyHash: dummyHash,
	}
}

type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

// Register crea la cuenta con el password hasheado.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: passwordHash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login autentica por email+password y abre una sesion nueva. Usuario
// inexistente y password incorrecto devuelven el mismo error: el caller no
// puede enumerar cuentas.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.Session, string, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.Session{}, "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Verify(password, s.dummyHash)
			return domain.Session{}, "", ErrInvalidCredentials
		}
		return domain.Session{}, "", err
	}
	if user.PasswordHash == "" {
		s.hasher.Verify(password, s.dummyHash)
		return domain.Session{}, "", ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.Session{}, "", ErrInvalidCredentials
	}
	return s.StartSession(user)
}

// StartSession abre una sesion sin verificar password. Es el camino que
// comparte el consumo de token de reset, donde el token ya probo posesion
// de la cuenta.
func (s *AuthService) StartSession(user domain.User) (domain.Session, string, error) {
	if s.sessions == nil {
		return domain.Session{}, "", errors.New("auth service not configured")
	}
	return s.sessions.Start(user)
}

// Logout revoca la sesion del token. Siempre tiene exito, incluso con un
// token ya invalido.
func (s *AuthService) Logout(token string) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Revoke(token); err != nil {
		if s.logger != nil {
			s.logger.Warn("session revoke failed", zap.Error(err))
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
