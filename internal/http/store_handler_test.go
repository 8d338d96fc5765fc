package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"savory-auth/internal/domain"
	"savory-auth/internal/service"
)

func loginToken(t *testing.T, f *fixture, email, password string) string {
	t.Helper()
	_, token, err := f.authSvc.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestCreateStoreEndpoint(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "a@x.com", "secret123")
	token := loginToken(t, f, "a@x.com", "secret123")

	w := f.do(t, http.MethodPost, "/stores", gin.H{"name": "Tacos El Rey"}, bearer(token))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Store domain.Store `json:"store"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Store.AuthorID != user.ID {
		t.Fatalf("author %q, want %q", resp.Store.AuthorID, user.ID)
	}
}

func TestCreateStoreEndpoint_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/stores", gin.H{"name": "Tacos El Rey"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestUpdateStoreEndpoint_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "owner@x.com", "secret123")
	f.register(t, "other@x.com", "secret123")

	store, err := f.storeSvc.Create(context.Background(), owner.ID, service.StoreInput{Name: "Tacos El Rey"})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	otherToken := loginToken(t, f, "other@x.com", "secret123")
	w := f.do(t, http.MethodPut, "/stores/"+store.ID, gin.H{"name": "Hijacked"}, bearer(otherToken))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d: %s", w.Code, w.Body.String())
	}
	unchanged, _ := f.stores.GetByID(context.Background(), store.ID)
	if unchanged.Name != "Tacos El Rey" {
		t.Fatalf("store mutated by non-owner: %+v", unchanged)
	}

	ownerToken := loginToken(t, f, "owner@x.com", "secret123")
	w = f.do(t, http.MethodPut, "/stores/"+store.ID, gin.H{"name": "Tacos El Rey 2"}, bearer(ownerToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetStoreEndpoint_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/stores/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
