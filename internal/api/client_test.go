package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type stubStore struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (s *stubStore) Token(context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *stubStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.cleared++
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, store *stubStore, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{BaseURL: srv.URL + "/api/", Timeout: timeout, Store: store})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{BaseURL: "http://localhost:4000/api"}); err == nil {
		t.Fatal("expected error for missing store")
	}
	if _, err := New(Options{BaseURL: "not a url", Store: &stubStore{}}); err == nil {
		t.Fatal("expected error for invalid base url")
	}

	client, err := New(Options{Store: &stubStore{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", client.BaseURL())
	}
}

func TestClientAttachesStoredToken(t *testing.T) {
	var gotAuth, gotPath, gotRequestID string
	store := &stubStore{token: "abc"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get(RequestIDHeader)
		w.Write([]byte(`{"id":"1"}`))
	}, store, time.Second)

	var out struct {
		ID string `json:"id"`
	}
	if err := client.Get(context.Background(), "auth/profile", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotPath != "/api/auth/profile" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotRequestID == "" {
		t.Fatal("expected request id header")
	}
	if out.ID != "1" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestClientOmitsHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}, &stubStore{}, time.Second)

	if err := client.Post(context.Background(), "/auth/login", map[string]string{"email": "a@b.com"}, &struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}
}

func TestClientClearsStoreOnAnyUnauthorized(t *testing.T) {
	for _, path := range []string{"/reflections/weekly", "/reflections/insights", "/auth/profile", "/reflections"} {
		t.Run(path, func(t *testing.T) {
			store := &stubStore{token: "stale"}
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Session expired. Please sign in again."}`))
			}, store, time.Second)

			err := client.Get(context.Background(), path, &struct{}{})
			if !errors.Is(err, ErrSessionExpired) {
				t.Fatalf("expected session expired, got %v", err)
			}
			if store.cleared != 1 {
				t.Fatalf("expected store cleared once, got %d", store.cleared)
			}
			if _, ok := store.Token(context.Background()); ok {
				t.Fatal("expected token to be gone")
			}
			if got := Message(err, ""); got != "Session expired. Please sign in again." {
				t.Fatalf("unexpected message %q", got)
			}
		})
	}
}

func TestClientCredentialExchangeRejection(t *testing.T) {
	store := &stubStore{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password."}`))
	}, store, time.Second)

	err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login", Body: map[string]string{}, CredentialExchange: true}, &struct{}{})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("credential rejection must not read as an expired session")
	}
	if got := Message(err, "fallback"); got != "Invalid email or password." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestClientClassifiesStatuses(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{name: "validation", status: http.StatusBadRequest, body: `{"message":"Mood must be between 1 and 5."}`, kind: ErrRequest, message: "Mood must be between 1 and 5."},
		{name: "conflict uses error field", status: http.StatusConflict, body: `{"error":"taken"}`, kind: ErrRequest, message: "taken"},
		{name: "server", status: http.StatusInternalServerError, body: `oops`, kind: ErrServer, message: "fallback"},
		{name: "throttled", status: http.StatusTooManyRequests, body: `{"message":"slow down"}`, kind: ErrRequest, message: "slow down"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}, &stubStore{token: "t"}, time.Second)

			err := client.Get(context.Background(), "/x", nil)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v got %v", tc.kind, err)
			}
			if got := Message(err, "fallback"); got != tc.message {
				t.Fatalf("expected message %q got %q", tc.message, got)
			}
		})
	}
}

func TestClientTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	store := &stubStore{token: "t"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, store, 50*time.Millisecond)
	defer close(release)

	err := client.Get(context.Background(), "/reflections/weekly", &struct{}{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("expected timeout to be retryable")
	}
	if store.cleared != 0 {
		t.Fatal("timeout must not clear the session")
	}
}

func TestClientMalformedBodyIsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weeklyData":`))
	}, &stubStore{}, time.Second)

	err := client.Get(context.Background(), "/reflections/weekly", &struct{}{})
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestClientCanceledContextIsReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, &stubStore{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Get(ctx, "/x", &struct{}{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
