package handlers

import (
	"net/http"
	"time"

	"github.com/reflecta/reflecta/internal/middleware"
)

// TokenService issues and verifies the bearer tokens handed to clients.
type TokenService interface {
	TokenIssuer
	middleware.TokenVerifier
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts    AccountStore
	Reflections ReflectionStore
	Tokens      TokenService
	AuthLimiter middleware.Limiter
	// TrustProxy keys auth throttling on X-Forwarded-For.
	TrustProxy bool
	DB          Pinger
	Location    *time.Location
	NowFunc     func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. The REST
// contract lives under /api.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{Accounts: deps.Accounts, Tokens: deps.Tokens, NowFunc: deps.NowFunc}
	reflections := ReflectionHandler{Reflections: deps.Reflections, NowFunc: deps.NowFunc, Location: deps.Location}

	throttle := middleware.Throttle(deps.AuthLimiter, "auth", deps.TrustProxy)
	authed := middleware.RequireBearer(deps.Tokens)

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/api/auth/login", throttle(http.HandlerFunc(auth.Login)))
	mux.Handle("/api/auth/register", throttle(http.HandlerFunc(auth.Register)))
	mux.Handle("/api/auth/profile", authed(http.HandlerFunc(auth.Profile)))
	mux.Handle("/api/reflections", authed(http.HandlerFunc(reflections.Create)))
	mux.Handle("/api/reflections/weekly", authed(http.HandlerFunc(reflections.Weekly)))
	mux.Handle("/api/reflections/insights", authed(http.HandlerFunc(reflections.Insights)))
}
