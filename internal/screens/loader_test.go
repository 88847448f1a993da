package screens

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/models"
)

type stubWeekly struct {
	mu      sync.Mutex
	results []weeklyResult
	calls   int
}

type weeklyResult struct {
	summary models.WeeklySummary
	err     error
	block   chan struct{}
}

func (s *stubWeekly) WeeklySummary(ctx context.Context) (models.WeeklySummary, error) {
	s.mu.Lock()
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	s.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return models.WeeklySummary{}, ctx.Err()
		}
	}
	return r.summary, r.err
}

func (s *stubWeekly) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder[T any] struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *recorder[T]) OnChange(state State[T]) {
	r.mu.Lock()
	r.phases = append(r.phases, state.Phase)
	r.mu.Unlock()
}

func (r *recorder[T]) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

func wait[T any](t *testing.T, l *Loader[T]) State[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return state
}

func TestWeeklyScreenSuccess(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{{summary: models.WeeklySummary{
		WeeklyData: []models.MoodPoint{{Day: "Mon", Mood: 3}},
		AvgMood:    "3.0",
	}}}}
	rec := &recorder[models.WeeklySummary]{}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{OnChange: rec.OnChange})

	if l.State().Phase != PhaseLoading {
		t.Fatalf("expected loading before mount, got %v", l.State().Phase)
	}

	l.Mount(context.Background())
	state := wait(t, l)
	if state.Phase != PhaseSuccess || state.Data.AvgMood != "3.0" {
		t.Fatalf("unexpected state %+v", state)
	}
	if got := rec.Phases(); len(got) != 2 || got[0] != PhaseLoading || got[1] != PhaseSuccess {
		t.Fatalf("unexpected transitions %v", got)
	}
}

func TestWeeklyScreenEmptyIsNotError(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{{summary: models.WeeklySummary{WeeklyData: []models.MoodPoint{}}}}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	l.Mount(context.Background())
	state := wait(t, l)
	if state.Phase != PhaseEmpty {
		t.Fatalf("expected empty phase, got %v", state.Phase)
	}
	if state.Message != "" || state.Err != nil {
		t.Fatalf("expected no error on empty data, got %+v", state)
	}
}

func TestWeeklyScreenErrorThenRetry(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{
		{err: &api.Error{Kind: api.ErrServer, Status: http.StatusInternalServerError}},
		{summary: models.WeeklySummary{WeeklyData: []models.MoodPoint{{Day: "Tue", Mood: 4}}}},
	}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	if l.Retry() {
		t.Fatal("retry before mount should be ignored")
	}

	l.Mount(context.Background())
	state := wait(t, l)
	if state.Phase != PhaseError {
		t.Fatalf("expected error phase, got %v", state.Phase)
	}
	if state.Message != WeeklyErrorFallback {
		t.Fatalf("expected fallback message, got %q", state.Message)
	}
	if !state.CanRetry {
		t.Fatal("expected retry to be offered")
	}

	if !l.Retry() {
		t.Fatal("expected retry to start a fetch")
	}
	state = wait(t, l)
	if state.Phase != PhaseSuccess {
		t.Fatalf("expected success after retry, got %v", state.Phase)
	}
	if l.Retry() {
		t.Fatal("retry from success should be ignored")
	}
	if src.Calls() != 2 {
		t.Fatalf("expected two fetches, got %d", src.Calls())
	}
}

func TestScreenShowsBackendMessage(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{{err: &api.Error{Kind: api.ErrRequest, Status: http.StatusBadRequest, Message: "Try again later."}}}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	l.Mount(context.Background())
	if state := wait(t, l); state.Message != "Try again later." {
		t.Fatalf("expected backend message, got %q", state.Message)
	}
}

func TestScreenTimeoutOffersRetry(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{{err: &api.Error{Kind: api.ErrNetwork, Message: "The request timed out. Please try again.", Err: context.DeadlineExceeded}}}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	l.Mount(context.Background())
	state := wait(t, l)
	if state.Phase != PhaseError || !state.CanRetry {
		t.Fatalf("expected retryable error, got %+v", state)
	}
	if !errors.Is(state.Err, api.ErrNetwork) {
		t.Fatalf("expected network error, got %v", state.Err)
	}
}

func TestScreenSessionExpiredNotifiesObserver(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{{err: &api.Error{Kind: api.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "Session expired."}}}}

	var notified int
	var mu sync.Mutex
	observer := SessionObserverFunc(func(context.Context) {
		mu.Lock()
		notified++
		mu.Unlock()
	})
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{Session: observer})

	l.Mount(context.Background())
	state := wait(t, l)
	if state.Phase != PhaseError || state.CanRetry {
		t.Fatalf("expected non-retryable error, got %+v", state)
	}
	mu.Lock()
	defer mu.Unlock()
	if notified != 1 {
		t.Fatalf("expected observer to be notified once, got %d", notified)
	}
}

func TestScreenUnmountSuppressesUpdates(t *testing.T) {
	block := make(chan struct{})
	src := &stubWeekly{results: []weeklyResult{{block: block, summary: models.WeeklySummary{WeeklyData: []models.MoodPoint{{Day: "Mon", Mood: 1}}}}}}
	rec := &recorder[models.WeeklySummary]{}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{OnChange: rec.OnChange})

	l.Mount(context.Background())
	l.Unmount()
	close(block)

	state := wait(t, l)
	if state.Phase != PhaseLoading {
		t.Fatalf("expected state frozen at loading, got %v", state.Phase)
	}
	if got := rec.Phases(); len(got) != 1 {
		t.Fatalf("expected only the loading transition, got %v", got)
	}
	if l.Refresh() {
		t.Fatal("refresh after unmount should be ignored")
	}
}

func TestScreenRefreshIgnoredWhileLoading(t *testing.T) {
	block := make(chan struct{})
	src := &stubWeekly{results: []weeklyResult{{block: block, summary: models.WeeklySummary{WeeklyData: []models.MoodPoint{{Day: "Mon", Mood: 2}}}}}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	l.Mount(context.Background())
	if l.Refresh() {
		t.Fatal("expected refresh to be ignored while a fetch is in flight")
	}
	close(block)
	wait(t, l)

	if !l.Refresh() {
		t.Fatal("expected refresh to start once settled")
	}
	wait(t, l)
	if src.Calls() != 2 {
		t.Fatalf("expected two fetches, got %d", src.Calls())
	}
}

func TestScreenRemountKeepsSingleFetch(t *testing.T) {
	started := make(chan int, 2)
	releases := []chan struct{}{make(chan struct{}), make(chan struct{})}
	var mu sync.Mutex
	calls := 0

	l := NewLoader(LoaderConfig[int]{
		// Ignores ctx, like a transport that cannot be interrupted.
		Fetch: func(context.Context) (int, error) {
			mu.Lock()
			n := calls
			calls++
			mu.Unlock()
			started <- n
			<-releases[n]
			return n + 1, nil
		},
	})

	l.Mount(context.Background())
	<-started
	l.mu.Lock()
	first := l.done
	l.mu.Unlock()

	l.Unmount()
	l.Mount(context.Background())
	<-started

	close(releases[0])
	<-first

	if l.Refresh() {
		t.Fatal("expected refresh to be ignored while the remounted fetch is in flight")
	}
	if state := l.State(); state.Phase != PhaseLoading {
		t.Fatalf("expected loading while the second fetch runs, got %v", state.Phase)
	}

	close(releases[1])
	state := wait(t, l)
	if state.Phase != PhaseSuccess || state.Data != 2 {
		t.Fatalf("expected the remounted fetch result, got %+v", state)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected two fetches, got %d", calls)
	}
}

func TestScreenCancelledMountActsAsUnmount(t *testing.T) {
	src := &stubWeekly{results: []weeklyResult{
		{block: make(chan struct{})},
		{summary: models.WeeklySummary{WeeklyData: []models.MoodPoint{{Day: "Tue", Mood: 4}}}},
	}}
	l := NewWeeklyScreen(src, Options[models.WeeklySummary]{})

	ctx, cancel := context.WithCancel(context.Background())
	l.Mount(ctx)
	cancel()

	if state := wait(t, l); state.Phase != PhaseLoading {
		t.Fatalf("expected no update after cancellation, got %v", state.Phase)
	}
	if l.Retry() || l.Refresh() {
		t.Fatal("expected retry and refresh to be ignored once the mount context ended")
	}

	l.Mount(context.Background())
	if state := wait(t, l); state.Phase != PhaseSuccess {
		t.Fatalf("expected success after remount, got %v", state.Phase)
	}
	if src.Calls() != 2 {
		t.Fatalf("expected two fetches, got %d", src.Calls())
	}
}

type stubInsights struct {
	insights models.Insights
}

func (s stubInsights) Insights(context.Context) (models.Insights, error) {
	return s.insights, nil
}

func TestInsightsScreenEmpty(t *testing.T) {
	l := NewInsightsScreen(stubInsights{}, Options[models.Insights]{})
	l.Mount(context.Background())
	if state := wait(t, l); state.Phase != PhaseEmpty {
		t.Fatalf("expected empty phase, got %v", state.Phase)
	}

	l = NewInsightsScreen(stubInsights{insights: models.Insights{MoodDistribution: []models.DistributionPoint{{Day: "Mon", Value: 60}}}}, Options[models.Insights]{})
	l.Mount(context.Background())
	if state := wait(t, l); state.Phase != PhaseSuccess {
		t.Fatalf("expected success phase, got %v", state.Phase)
	}
}

func TestInsightText(t *testing.T) {
	if got := InsightText(models.WeeklySummary{}); got != InsightFallback {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := InsightText(models.WeeklySummary{Insight: "Nice week."}); got != "Nice week." {
		t.Fatalf("expected insight, got %q", got)
	}
}
