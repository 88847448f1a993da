package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reflecta/reflecta/internal/logging"
)

// RequestIDHeader carries the correlation id the client stamps on each call.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// statusRecorder remembers what the handler wrote so it can be logged.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// RequestLogger attaches a request-scoped logger and id to each request and
// writes one access line when it finishes. A client-supplied X-Request-ID is
// kept so both sides of a call share an id. Panics become 500 responses.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			logger := base.With(
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ctx := logging.WithRequestID(logging.WithLogger(r.Context(), logger), id)
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panicked", "panic", p)
					if rec.status == 0 {
						writeMessage(rec, http.StatusInternalServerError, "Something went wrong. Please try again.")
					}
				}
				logger.Log(ctx, accessLevel(rec.code()), "request completed",
					slog.Int("status", rec.code()),
					slog.Int("bytes", rec.bytes),
					slog.Duration("duration", time.Since(started)),
				)
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	return id
}

func accessLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

