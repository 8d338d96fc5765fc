package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"savory-auth/internal/domain"
)

// SessionStore guarda sesiones activas y permite revocarlas. La expiracion
// de sesion vive aca (TTL), no en el dominio.
type SessionStore interface {
	Store(session domain.Session, ttl time.Duration) error
	Get(id string) (domain.Session, bool, error)
	Revoke(id string) error
}

type memorySessionStore struct {
	mu    sync.Mutex
	items map[string]memorySessionEntry
}

type memorySessionEntry struct {
	session   domain.Session
	expiresAt time.Time
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]memorySessionEntry),
	}
}

func (s *memorySessionStore) Store(session domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(session.ID) == "" {
		return nil
	}
	s.items[session.ID] = memorySessionEntry{
		session:   session,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memorySessionStore) Get(id string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return domain.Session{}, false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.items, id)
		return domain.Session{}, false, nil
	}
	return entry.session, true, nil
}

func (s *memorySessionStore) Revoke(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:session:",
	}
}

func (s *redisSessionStore) Store(session domain.Session, ttl time.Duration) error {
	if strings.TrimSpace(session.ID) == "" {
		return nil
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+session.ID, payload, ttl).Err()
}

func (s *redisSessionStore) Get(id string) (domain.Session, bool, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	payload, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err == redis.Nil {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

func (s *redisSessionStore) Revoke(id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+id).Err()
}
