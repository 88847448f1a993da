package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/reflecta/reflecta/internal/logging"
)

// TooManyAttemptsMessage is returned with 429 responses.
const TooManyAttemptsMessage = "Too many attempts. Please wait a moment and try again."

// Limiter decides whether another attempt under key may proceed now. The
// returned duration is how long the caller should wait when it may not.
type Limiter interface {
	Reserve(key string) (bool, time.Duration)
}

type bucket struct {
	tokens *rate.Limiter
	used   time.Time
}

// AttemptLimiter is a token bucket per key. Buckets untouched for longer
// than the idle period are dropped on the next sweep.
type AttemptLimiter struct {
	perMinute int
	burst     int
	idle      time.Duration
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewAttemptLimiter allows perMinute attempts per key on average, with burst
// attempts available up front.
func NewAttemptLimiter(perMinute, burst int, idle time.Duration) *AttemptLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = perMinute
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &AttemptLimiter{
		perMinute: perMinute,
		burst:     burst,
		idle:      idle,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// SetClock replaces the time source.
func (l *AttemptLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Reserve implements Limiter.
func (l *AttemptLimiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst)}
		l.buckets[key] = b
	}
	b.used = now

	r := b.tokens.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len reports how many keys are tracked.
func (l *AttemptLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *AttemptLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.used) > l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Throttle answers 429 with a Retry-After header once the caller's address
// runs out of attempts in scope. A nil limiter disables throttling.
// X-Forwarded-For is only consulted when trustProxy is set.
func Throttle(limiter Limiter, scope string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + remoteAddress(r, trustProxy)
			ok, wait := limiter.Reserve(key)
			if !ok {
				seconds := int(math.Ceil(wait.Seconds()))
				logging.FromContext(r.Context()).Warn("attempt throttled", "scope", scope, "key", key, "retry_after", seconds)
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeMessage(w, http.StatusTooManyRequests, TooManyAttemptsMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// remoteAddress returns the socket peer, or the first X-Forwarded-For hop
// when the server sits behind a trusted proxy.
func remoteAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if hop, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(hop) != "" {
			return strings.TrimSpace(hop)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
