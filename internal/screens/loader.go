package screens

import (
	"context"
	"errors"
	"sync"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/logging"
)

// Phase is the render state of a data-fetching screen.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseSuccess
	PhaseEmpty
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseEmpty:
		return "empty"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a screen. Data is set for PhaseSuccess and
// PhaseEmpty; Message and Err are set for PhaseError.
type State[T any] struct {
	Phase    Phase
	Data     T
	Message  string
	CanRetry bool
	Err      error
}

// SessionObserver is told when a fetch failed because the session expired.
// The credential store has already been cleared at that point.
type SessionObserver interface {
	SessionExpired(ctx context.Context)
}

// SessionObserverFunc adapts a function to SessionObserver.
type SessionObserverFunc func(ctx context.Context)

// SessionExpired implements SessionObserver.
func (f SessionObserverFunc) SessionExpired(ctx context.Context) { f(ctx) }

// LoaderConfig configures a Loader.
type LoaderConfig[T any] struct {
	Fetch func(ctx context.Context) (T, error)
	// IsEmpty marks successful responses that should render the empty state.
	IsEmpty func(T) bool
	// FallbackMessage is shown when an error carries no backend message.
	FallbackMessage string
	// OnChange runs with the loader locked and must not call back into it.
	OnChange func(State[T])
	Session  SessionObserver
}

// Loader drives Loading -> {Success, Empty, Error} for one data source. At
// most one fetch is in flight; Retry and Refresh are ignored while loading.
// Unmount cancels the in-flight fetch and suppresses any later update.
type Loader[T any] struct {
	cfg LoaderConfig[T]

	mu       sync.Mutex
	state    State[T]
	parent   context.Context
	cancel   context.CancelFunc
	mounted  bool
	inflight bool
	done     chan struct{}
}

// NewLoader constructs an unmounted Loader in PhaseLoading.
func NewLoader[T any](cfg LoaderConfig[T]) *Loader[T] {
	if cfg.Fetch == nil {
		panic("screens: fetch must not be nil")
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = api.DefaultErrorMessage
	}
	done := make(chan struct{})
	close(done)
	return &Loader[T]{cfg: cfg, state: State[T]{Phase: PhaseLoading}, done: done}
}

// Mount starts the initial fetch. Mounting twice is a no-op. Cancelling ctx
// has the same effect as Unmount.
func (l *Loader[T]) Mount(ctx context.Context) {
	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		return
	}
	l.mounted = true
	l.parent, l.cancel = context.WithCancel(ctx)
	l.startLocked()
	l.mu.Unlock()
}

// Retry re-fetches after an error. It reports whether a fetch was started.
func (l *Loader[T]) Retry() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mounted || l.inflight || l.state.Phase != PhaseError {
		return false
	}
	l.startLocked()
	return true
}

// Refresh re-fetches on user request (pull to refresh) from any settled state.
func (l *Loader[T]) Refresh() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mounted || l.inflight {
		return false
	}
	l.startLocked()
	return true
}

// Unmount cancels any in-flight fetch. No state change is published afterwards.
func (l *Loader[T]) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mounted {
		return
	}
	l.mounted = false
	l.cancel()
}

// State returns the current snapshot.
func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Wait blocks until no fetch is in flight or ctx is done, then returns the state.
func (l *Loader[T]) Wait(ctx context.Context) (State[T], error) {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return l.State(), ctx.Err()
	case <-done:
		return l.State(), nil
	}
}

func (l *Loader[T]) startLocked() {
	l.inflight = true
	l.done = make(chan struct{})
	l.publishLocked(State[T]{Phase: PhaseLoading})

	ctx := l.parent
	done := l.done
	go l.run(ctx, done)
}

func (l *Loader[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	data, err := l.cfg.Fetch(ctx)

	l.mu.Lock()
	if l.done != done {
		// A remount started a newer fetch that now owns the loader.
		l.mu.Unlock()
		return
	}
	l.inflight = false
	if !l.mounted {
		l.mu.Unlock()
		return
	}
	if ctx.Err() != nil {
		// The mount context ended without Unmount; treat it as one so a
		// later Mount can start over.
		l.mounted = false
		l.cancel()
		l.mu.Unlock()
		return
	}

	if err == nil {
		phase := PhaseSuccess
		if l.cfg.IsEmpty != nil && l.cfg.IsEmpty(data) {
			phase = PhaseEmpty
		}
		l.publishLocked(State[T]{Phase: phase, Data: data})
		l.mu.Unlock()
		return
	}

	logging.FromContext(ctx).Debug("screen fetch failed", "error", err)
	expired := errors.Is(err, api.ErrSessionExpired)
	l.publishLocked(State[T]{
		Phase:    PhaseError,
		Message:  api.Message(err, l.cfg.FallbackMessage),
		CanRetry: !expired,
		Err:      err,
	})
	l.mu.Unlock()

	if expired && l.cfg.Session != nil {
		l.cfg.Session.SessionExpired(ctx)
	}
}

func (l *Loader[T]) publishLocked(state State[T]) {
	l.state = state
	if l.cfg.OnChange != nil {
		l.cfg.OnChange(state)
	}
}
