package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reflecta/reflecta/internal/logging"
)

// SessionExpiredMessage is returned with every 401 from an authenticated route.
const SessionExpiredMessage = "Your session has expired. Please sign in again."

// TokenVerifier resolves a bearer token to the user id it was issued to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type userIDKey struct{}

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// RequireBearer rejects requests without a valid `Authorization: Bearer`
// token and exposes the caller's user id through UserIDFromContext.
func RequireBearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("middleware: token verifier is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logger.Warn("missing bearer token")
				writeMessage(w, http.StatusUnauthorized, SessionExpiredMessage)
				return
			}

			userID, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Warn("bearer token rejected", "error", err)
				writeMessage(w, http.StatusUnauthorized, SessionExpiredMessage)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logger.With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
