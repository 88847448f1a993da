package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/credentials"
	"github.com/reflecta/reflecta/internal/handlers"
	"github.com/reflecta/reflecta/internal/middleware"
	"github.com/reflecta/reflecta/internal/repositories"
	"github.com/reflecta/reflecta/internal/screens"
	"github.com/reflecta/reflecta/internal/storage"
	"github.com/reflecta/reflecta/internal/tokens"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t     *testing.T
	clock *clock
	kv    *credentials.MemoryKeyring
	deps  *clientDeps
	out   bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	c := &clock{now: time.Now().UTC()}
	manager := tokens.NewManager("cli-secret", time.Hour)
	manager.WithNowFunc(c.Now)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.Dependencies{
		Accounts:    repositories.NewMemoryAccountRepository(),
		Reflections: repositories.NewMemoryReflectionRepository(),
		Tokens:      manager,
		AuthLimiter: middleware.NewAttemptLimiter(100, 100, time.Minute),
		NowFunc:     c.Now,
		Location:    time.UTC,
	})
	srv := httptest.NewServer(middleware.RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(mux))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.APIBaseURL = srv.URL + "/api"

	kv := credentials.NewMemoryKeyring()
	deps, err := newClientDeps(kv, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("client deps: %v", err)
	}
	deps.Exports = func(context.Context) (storage.Exporter, error) {
		return storage.Exporter{Storage: storage.NewDirStorage(cfg.Export.Dir)}, nil
	}
	return &harness{t: t, clock: c, kv: kv, deps: deps}
}

func (h *harness) run(args ...string) error {
	h.t.Helper()
	h.out.Reset()
	return newCLI(h.deps, &h.out).dispatch(context.Background(), args)
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("%s: unexpected error: %v", strings.Join(args, " "), err)
	}
	return h.out.String()
}

func TestCLIRegisterReflectAndSummaries(t *testing.T) {
	h := newHarness(t)

	if out := h.mustRun("whoami"); !strings.Contains(out, "Not signed in.") {
		t.Fatalf("expected signed out state, got %q", out)
	}

	out := h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")
	if !strings.Contains(out, "Welcome, Ada!") {
		t.Fatalf("unexpected register output %q", out)
	}
	if !h.kv.Has(credentials.TokenKey) {
		t.Fatal("expected token to be stored after register")
	}

	if out := h.mustRun("weekly"); !strings.Contains(out, screens.WeeklyEmptyTitle) {
		t.Fatalf("expected empty weekly state, got %q", out)
	}
	if out := h.mustRun("insights"); !strings.Contains(out, screens.InsightsEmptyBody) {
		t.Fatalf("expected empty insights state, got %q", out)
	}

	out = h.mustRun("reflect", "3", "Felt", "okay.")
	if !strings.Contains(out, "Pensive") || !strings.Contains(out, `"Felt okay."`) {
		t.Fatalf("unexpected reflect output %q", out)
	}

	out = h.mustRun("weekly")
	for _, want := range []string{"Top emotion   Pensive", "Reflections   1", "Streak        1 day"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in weekly output:\n%s", want, out)
		}
	}

	out = h.mustRun("insights")
	if !strings.Contains(out, "MOOD DISTRIBUTION") || !strings.Contains(out, " 60%") {
		t.Fatalf("unexpected insights output:\n%s", out)
	}

	out = h.mustRun("profile")
	if !strings.Contains(out, "Ada <ada@example.com>") {
		t.Fatalf("unexpected profile output %q", out)
	}
}

func TestCLIRegisterRequiresTerms(t *testing.T) {
	h := newHarness(t)

	err := h.run("register", "Ada", "ada@example.com", "correct-horse")
	var cmdErr *commandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected command error, got %v", err)
	}
	if cmdErr.Message != "Please accept the privacy policy and terms." {
		t.Fatalf("unexpected message %q", cmdErr.Message)
	}
	if !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCLILoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")
	h.mustRun("logout")

	err := h.run("login", "ada@example.com", "wrong-password")
	if !errors.Is(err, api.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if err.Error() != "Invalid email or password." {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if h.kv.Has(credentials.TokenKey) {
		t.Fatal("expected no token after failed login")
	}

	out := h.mustRun("login", "ada@example.com", "correct-horse")
	if !strings.Contains(out, "Signed in as Ada <ada@example.com>") {
		t.Fatalf("unexpected login output %q", out)
	}
}

func TestCLIReflectValidatesLocally(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")

	cases := []struct {
		name    string
		args    []string
		message string
	}{
		{name: "mood out of range", args: []string{"reflect", "6"}, message: "Mood must be between 1 and 5."},
		{name: "mood not a number", args: []string{"reflect", "great"}, message: "Mood must be a number between 1 and 5."},
		{name: "note too long", args: []string{"reflect", "2", strings.Repeat("a", 501)}, message: "Notes are limited to 500 characters."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.run(tc.args...)
			if !errors.Is(err, api.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.message {
				t.Fatalf("expected %q got %q", tc.message, err.Error())
			}
		})
	}
}

func TestCLIExpiredSessionClearsCredentials(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")

	h.clock.Advance(2 * time.Hour)

	err := h.run("weekly")
	if !errors.Is(err, api.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if !strings.Contains(h.out.String(), ReloginHint) {
		t.Fatalf("expected relogin hint, got %q", h.out.String())
	}
	if strings.Contains(h.out.String(), "again to retry") {
		t.Fatal("expected no retry prompt for an expired session")
	}
	if h.kv.Has(credentials.TokenKey) || h.kv.Has(credentials.UserKey) {
		t.Fatal("expected credentials to be cleared after 401")
	}

	if out := h.mustRun("whoami"); !strings.Contains(out, "Not signed in.") {
		t.Fatalf("expected signed out state, got %q", out)
	}
}

func TestCLIExportWritesSnapshot(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")
	h.mustRun("reflect", "2")

	out := h.mustRun("export", "weekly")
	const prefix = "Exported weekly summary to "
	if !strings.HasPrefix(out, prefix) {
		t.Fatalf("unexpected export output %q", out)
	}
	path := strings.TrimSpace(strings.TrimPrefix(out, prefix))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var snapshot struct {
		Kind string `json:"kind"`
		Data struct {
			TopEmotion string `json:"topEmotion"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if snapshot.Kind != "weekly" || snapshot.Data.TopEmotion != "Calm" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	if err := h.run("export", "monthly"); err == nil {
		t.Fatal("expected error for unknown export kind")
	}
}

func TestCLISettingsAndReset(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "Ada", "ada@example.com", "correct-horse", "--accept-terms")

	out := h.mustRun("settings")
	if !strings.Contains(out, "reminder        9:30 PM") {
		t.Fatalf("expected default reminder, got %q", out)
	}

	out = h.mustRun("settings", "set", "reminder", "7:15 AM")
	if !strings.Contains(out, "reminder        7:15 AM") {
		t.Fatalf("expected updated reminder, got %q", out)
	}
	if err := h.run("settings", "set", "theme", "dark"); err == nil {
		t.Fatal("expected error for unknown setting")
	}

	h.mustRun("reset")
	if h.kv.Has(credentials.TokenKey) {
		t.Fatal("expected session to be cleared by reset")
	}
	if out := h.mustRun("settings"); !strings.Contains(out, "reminder        9:30 PM") {
		t.Fatalf("expected defaults after reset, got %q", out)
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	h := newHarness(t)
	if err := h.run("dance"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if out := h.mustRun("moods"); !strings.Contains(out, "Radiant") || !strings.Contains(out, "Drifting") {
		t.Fatalf("unexpected moods output %q", out)
	}
}
