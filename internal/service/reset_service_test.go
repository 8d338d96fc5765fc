package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"savory-auth/internal/domain"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock(now time.Time) *stubClock {
	return &stubClock{now: now}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID[user.ID] = user
	if user.Email != "" {
		m.usersByEmail[strings.ToLower(user.Email)] = user.ID
	}
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ResetToken = token
	user.ResetTokenExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) GetByResetToken(_ context.Context, token string, now time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.usersByID {
		if user.ResetToken == token && user.ResetTokenExpiresAt != nil && user.ResetTokenExpiresAt.After(now) {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

// ConsumeResetToken replica el compare-and-clear atomico del repositorio
// real: todo bajo el mismo lock.
func (m *mockUserRepo) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.usersByID {
		if user.ResetToken == token && user.ResetTokenExpiresAt != nil && user.ResetTokenExpiresAt.After(now) {
			user.PasswordHash = passwordHash
			user.ResetToken = ""
			user.ResetTokenExpiresAt = nil
			m.usersByID[id] = user
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (fakeHasher) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

func newResetFixture(t *testing.T, now time.Time) (*ResetService, *mockUserRepo, *stubClock) {
	t.Helper()
	repo := newMockUserRepo()
	clk := newStubClock(now)
	hasher := fakeHasher{}
	sessions := NewSessionService("secret", time.Hour, NewMemorySessionStore(), clk)
	auth := NewAuthService(nil, repo, hasher, sessions, clk)
	reset := NewResetService(nil, repo, hasher, auth, NewResetRateLimiter(time.Minute, 100), clk)
	return reset, repo, clk
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password string, createdAt time.Time) domain.User {
	t.Helper()
	user := domain.User{
		ID:           "u-" + email,
		Email:        email,
		PasswordHash: "hashed:" + password,
		CreatedAt:    createdAt,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestResetServiceRequestReset_TokenAndExpiry(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, _ := newResetFixture(t, t0)
	seedUser(t, repo, "a@x.com", "oldpass", t0)

	receipt, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(receipt.Token) != 40 {
		t.Fatalf("expected 40 hex chars of token, got %d", len(receipt.Token))
	}
	for _, r := range receipt.Token {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("token is not hex: %q", receipt.Token)
		}
	}
	want := t0.Add(10 * time.Hour)
	if !receipt.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, receipt.ExpiresAt)
	}

	stored, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.ResetToken != receipt.Token || stored.ResetTokenExpiresAt == nil {
		t.Fatalf("token not persisted: %+v", stored)
	}
}

func TestResetServiceRequestReset_UnknownEmail(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, _, _ := newResetFixture(t, t0)

	_, err := reset.RequestReset(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestResetServiceRequestReset_ReissueInvalidatesPrior(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, _ := newResetFixture(t, t0)
	seedUser(t, repo, "a@x.com", "oldpass", t0)

	first, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct tokens")
	}

	if _, err := reset.ValidateToken(context.Background(), first.Token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected first token dead, got %v", err)
	}
	if _, err := reset.ValidateToken(context.Background(), second.Token); err != nil {
		t.Fatalf("expected second token live, got %v", err)
	}
}

func TestResetServiceValidateToken_ExpiryBoundary(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, clk := newResetFixture(t, t0)
	seedUser(t, repo, "a@x.com", "oldpass", t0)

	receipt, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	clk.Set(receipt.ExpiresAt.Add(-time.Millisecond))
	if _, err := reset.ValidateToken(context.Background(), receipt.Token); err != nil {
		t.Fatalf("expected token live just before expiry, got %v", err)
	}

	clk.Set(receipt.ExpiresAt)
	if _, err := reset.ValidateToken(context.Background(), receipt.Token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected token expired at expiry instant, got %v", err)
	}
}

func TestResetServiceValidateToken_Unknown(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, _, _ := newResetFixture(t, t0)

	if _, err := reset.ValidateToken(context.Background(), "deadbeef"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}
}

func TestResetServiceConsumeToken_ExactlyOnce(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, _ := newResetFixture(t, t0)
	user := seedUser(t, repo, "a@x.com", "oldpass", t0)

	receipt, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	session, token, err := reset.ConsumeToken(context.Background(), receipt.Token, "newpass")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("session bound to %q, want %q", session.UserID, user.ID)
	}
	if token == "" {
		t.Fatalf("expected a signed session token")
	}

	stored, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.ResetToken != "" || stored.ResetTokenExpiresAt != nil {
		t.Fatalf("reset fields not cleared: %+v", stored)
	}
	if !(fakeHasher{}).Verify("newpass", stored.PasswordHash) {
		t.Fatalf("new password not persisted")
	}

	if _, _, err := reset.ConsumeToken(context.Background(), receipt.Token, "again"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestResetServiceEndToEnd(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, clk := newResetFixture(t, t0)
	user := seedUser(t, repo, "a@x.com", "oldpass", t0)

	receipt, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if !receipt.ExpiresAt.Equal(t0.Add(36000000 * time.Millisecond)) {
		t.Fatalf("expected expiry t0+36000000ms, got %v", receipt.ExpiresAt)
	}

	clk.Set(t0.Add(time.Second))
	validated, err := reset.ValidateToken(context.Background(), receipt.Token)
	if err != nil {
		t.Fatalf("validate at t0+1s: %v", err)
	}
	if validated.ID != user.ID {
		t.Fatalf("validated wrong user: %q", validated.ID)
	}

	clk.Set(t0.Add(2 * time.Second))
	session, _, err := reset.ConsumeToken(context.Background(), receipt.Token, "newpass")
	if err != nil {
		t.Fatalf("consume at t0+2s: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("session bound to %q, want %q", session.UserID, user.ID)
	}

	if _, err := reset.ValidateToken(context.Background(), receipt.Token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected token dead after consume, got %v", err)
	}
}

func TestResetServiceConsumeToken_ConcurrentSingleWinner(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset, repo, _ := newResetFixture(t, t0)
	user := seedUser(t, repo, "a@x.com", "oldpass", t0)

	receipt, err := reset.RequestReset(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	type result struct {
		password string
		err      error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, password := range []string{"pwA", "pwB"} {
		wg.Add(1)
		go func(pw string) {
			defer wg.Done()
			_, _, err := reset.ConsumeToken(context.Background(), receipt.Token, pw)
			results <- result{password: pw, err: err}
		}(password)
	}
	wg.Wait()
	close(results)

	var winner string
	losers := 0
	for res := range results {
		if res.err == nil {
			if winner != "" {
				t.Fatalf("expected exactly one winner, got two")
			}
			winner = res.password
			continue
		}
		if !errors.Is(res.err, ErrResetTokenInvalid) {
			t.Fatalf("loser got unexpected error: %v", res.err)
		}
		losers++
	}
	if winner == "" || losers != 1 {
		t.Fatalf("expected one winner and one loser, winner=%q losers=%d", winner, losers)
	}

	stored, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !(fakeHasher{}).Verify(winner, stored.PasswordHash) {
		t.Fatalf("stored hash does not belong to the winner %q", winner)
	}
}

func TestResetServiceRequestReset_RateLimited(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockUserRepo()
	clk := newStubClock(t0)
	sessions := NewSessionService("secret", time.Hour, NewMemorySessionStore(), clk)
	auth := NewAuthService(nil, repo, fakeHasher{}, sessions, clk)
	reset := NewResetService(nil, repo, fakeHasher{}, auth, NewResetRateLimiter(time.Minute, 2), clk)
	seedUser(t, repo, "a@x.com", "oldpass", t0)

	for i := 0; i < 2; i++ {
		if _, err := reset.RequestReset(context.Background(), "a@x.com"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if _, err := reset.RequestReset(context.Background(), "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
