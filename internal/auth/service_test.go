package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/credentials"
	"github.com/reflecta/reflecta/internal/models"
)

func newService(t *testing.T, handler http.HandlerFunc) (*Service, *credentials.Store, *credentials.MemoryKeyring) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	kv := credentials.NewMemoryKeyring()
	store := credentials.NewStore(kv)
	client, err := api.New(api.Options{BaseURL: srv.URL + "/api", Timeout: time.Second, Store: store})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewService(client, store), store, kv
}

func TestLoginPersistsSession(t *testing.T) {
	user := models.User{ID: "1", Name: "A", Email: "a@b.com"}
	var got loginRequest
	svc, store, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"token": "abc", "user": user})
	})

	ctx := context.Background()
	loggedIn, err := svc.Login(ctx, "a@b.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn != user {
		t.Fatalf("expected %+v got %+v", user, loggedIn)
	}
	if got.Email != "a@b.com" || got.Password != "secret" {
		t.Fatalf("unexpected request body %+v", got)
	}

	session, ok := store.Get(ctx)
	if !ok || session.Token != "abc" || session.User != user {
		t.Fatalf("expected persisted session, got %+v (%v)", session, ok)
	}
	if !svc.IsAuthenticated(ctx) {
		t.Fatal("expected authenticated after login")
	}
	if cached, ok := svc.StoredUser(ctx); !ok || cached != user {
		t.Fatalf("expected cached user, got %+v", cached)
	}
}

func TestLoginRejectedLeavesStoreEmpty(t *testing.T) {
	svc, _, kv := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password."}`))
	})

	_, err := svc.Login(context.Background(), "a@b.com", "nope")
	if !errors.Is(err, api.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if got := api.Message(err, ""); got != "Invalid email or password." {
		t.Fatalf("unexpected message %q", got)
	}
	if kv.Has(credentials.TokenKey) || kv.Has(credentials.UserKey) {
		t.Fatal("expected nothing to be stored")
	}
}

func TestLoginWithoutTokenIsServerError(t *testing.T) {
	svc, _, kv := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"1"}}`))
	})

	_, err := svc.Login(context.Background(), "a@b.com", "secret")
	if !errors.Is(err, api.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if kv.Has(credentials.TokenKey) {
		t.Fatal("expected no token to be stored")
	}
}

func TestRegisterPersistsSession(t *testing.T) {
	var got registerRequest
	svc, store, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"token": "new", "user": models.User{ID: "9", Name: got.Name, Email: got.Email}})
	})

	user, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID != "9" || got.Name != "Ada" || got.Password != "correct-horse" {
		t.Fatalf("unexpected register exchange: user=%+v body=%+v", user, got)
	}
	if token, _ := store.Token(context.Background()); token != "new" {
		t.Fatalf("expected stored token, got %q", token)
	}
}

func TestProfileExpiredSessionClearsStore(t *testing.T) {
	svc, store, kv := newService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stale" {
			t.Errorf("expected stale bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	ctx := context.Background()
	store.Set(ctx, models.Session{Token: "stale", User: models.User{ID: "1"}})

	_, err := svc.Profile(ctx)
	if !errors.Is(err, api.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if kv.Has(credentials.TokenKey) || kv.Has(credentials.UserKey) {
		t.Fatal("expected store to be cleared")
	}
	if svc.IsAuthenticated(ctx) {
		t.Fatal("expected unauthenticated after 401")
	}
}

func TestLogoutClearsLocally(t *testing.T) {
	calls := 0
	svc, store, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	ctx := context.Background()
	store.Set(ctx, models.Session{Token: "abc", User: models.User{ID: "1"}})

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.IsAuthenticated(ctx) {
		t.Fatal("expected logged out")
	}
	if calls != 0 {
		t.Fatalf("expected logout to stay local, backend saw %d calls", calls)
	}
}
