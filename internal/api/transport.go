package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reflecta/reflecta/internal/logging"
)

// RequestIDHeader correlates client and server log lines.
const RequestIDHeader = "X-Request-ID"

// Middleware decorates an outgoing round trip.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Chain wraps base with middlewares; the first middleware runs first.
func Chain(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	rt := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		rt = middlewares[i](rt)
	}
	return rt
}

// BearerToken reads the stored token before every request and attaches it as
// an Authorization header. Requests go out unauthenticated when no token is
// stored.
func BearerToken(store CredentialStore) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			token, ok := store.Token(r.Context())
			if !ok || token == "" {
				return next.RoundTrip(r)
			}
			authed := r.Clone(r.Context())
			authed.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(authed)
		})
	}
}

// ClearOnUnauthorized clears the credential store whenever a response carries
// status 401, regardless of endpoint. The response itself is passed through.
func ClearOnUnauthorized(store CredentialStore, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(r)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			// The caller's context may already be done once the body is
			// consumed; clearing must not depend on it.
			clearCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
			defer cancel()
			if clearErr := store.Clear(clearCtx); clearErr != nil {
				logger.Error("clear credentials after 401", "path", r.URL.Path, "error", clearErr)
			} else {
				logger.Warn("session cleared after 401", "path", r.URL.Path)
			}
			return resp, nil
		})
	}
}

// LogRequests stamps a request id on every call and logs its outcome.
func LogRequests(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
				r = r.Clone(r.Context())
				r.Header.Set(RequestIDHeader, requestID)
			}

			logger := logging.FromContextOr(r.Context(), base).With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			resp, err := next.RoundTrip(r)
			if err != nil {
				logger.Warn("request failed", slog.Duration("duration", time.Since(start)), "error", err)
				return nil, err
			}

			logger.Debug("request completed",
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", time.Since(start)),
			)
			return resp, nil
		})
	}
}
