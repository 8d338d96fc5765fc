package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"savory-auth/internal/clock"
	"savory-auth/internal/domain"
)

// SessionService crea, valida y revoca sesiones. El token que viaja al
// cliente es un JWT firmado cuyo jti es el id de sesion; la sesion solo es
// valida mientras el registro exista en el store, asi logout revoca de
// inmediato.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionStore
	clock  clock.Clock
}

// SessionClaims son los claims del token de sesion.
type SessionClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var ErrUnauthenticated = errors.New("unauthenticated")

func NewSessionService(secret string, ttl time.Duration, store SessionStore, clk clock.Clock) *SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "savory-auth",
		store:  store,
		clock:  clk,
	}
}

// Start crea una sesion nueva para el usuario y devuelve el registro junto
// con el token firmado que la referencia.
func (s *SessionService) Start(user domain.User) (domain.Session, string, error) {
	if len(s.secret) == 0 {
		return domain.Session{}, "", ErrUnauthenticated
	}
	now := s.clock.Now()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
	}
	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return domain.Session{}, "", err
	}
	if err := s.store.Store(session, s.ttl); err != nil {
		return domain.Session{}, "", err
	}
	return session, signed, nil
}

// Validate es el predicado de autorizacion: sin efectos secundarios,
// devuelve la sesion si el token es valido y el registro sigue vivo.
// Cualquier otro resultado es ErrUnauthenticated, sin distinguir causa.
func (s *SessionService) Validate(token string) (domain.Session, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return domain.Session{}, ErrUnauthenticated
	}
	if !s.isValidClaims(claims) {
		return domain.Session{}, ErrUnauthenticated
	}
	session, ok, err := s.store.Get(claims.ID)
	if err != nil || !ok {
		return domain.Session{}, ErrUnauthenticated
	}
	if session.UserID != claims.UserID {
		return domain.Session{}, ErrUnauthenticated
	}
	return session, nil
}

// Revoke invalida la sesion referida por el token. Es idempotente: revocar
// una sesion ya invalida no es error.
func (s *SessionService) Revoke(token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	if claims.ID == "" {
		return nil
	}
	return s.store.Revoke(claims.ID)
}

func (s *SessionService) parseToken(tokenString string) (SessionClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return SessionClaims{}, ErrUnauthenticated
	}
	var claims SessionClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return SessionClaims{}, ErrUnauthenticated
	}
	return claims, nil
}

func (s *SessionService) isValidClaims(claims SessionClaims) bool {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.ID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return claims.Issuer == s.issuer
}
