package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/models"
)

// Requester issues calls against the reflection service.
type Requester interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// SessionStore persists the client session.
type SessionStore interface {
	Set(ctx context.Context, session models.Session) error
	Clear(ctx context.Context) error
	Token(ctx context.Context) (string, bool)
	User(ctx context.Context) (models.User, bool)
}

// Service wraps the authentication endpoints and owns writes to the session store.
type Service struct {
	client Requester
	store  SessionStore
}

// NewService constructs an auth Service.
func NewService(client Requester, store SessionStore) *Service {
	if client == nil || store == nil {
		panic("auth: client and store must not be nil")
	}
	return &Service{client: client, store: store}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a session and persists it.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "auth.login")
	defer span.End()

	return s.exchange(ctx, "/auth/login", loginRequest{Email: email, Password: password}, span)
}

// Register creates an account and persists the returned session.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "auth.register")
	defer span.End()

	return s.exchange(ctx, "/auth/register", registerRequest{Name: name, Email: email, Password: password}, span)
}

func (s *Service) exchange(ctx context.Context, path string, body any, span *logging.Span) (models.User, error) {
	var resp authResponse
	err := s.client.Do(ctx, api.Request{
		Method:             http.MethodPost,
		Path:               path,
		Body:               body,
		CredentialExchange: true,
	}, &resp)
	if err != nil {
		return models.User{}, span.Fail(err)
	}

	if strings.TrimSpace(resp.Token) == "" {
		return models.User{}, span.Fail(&api.Error{Kind: api.ErrServer, Status: http.StatusOK, Message: "The server did not return a session."})
	}

	if err := s.store.Set(ctx, models.Session{Token: resp.Token, User: resp.User}); err != nil {
		return models.User{}, span.Fail(fmt.Errorf("persist session: %w", err))
	}

	logging.FromContext(ctx).Info("session established", "userId", resp.User.ID)
	return resp.User, nil
}

// Profile fetches the current user. The cached user is left untouched.
func (s *Service) Profile(ctx context.Context) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "auth.profile")
	defer span.End()

	var user models.User
	if err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/auth/profile"}, &user); err != nil {
		return models.User{}, span.Fail(err)
	}
	return user, nil
}

// Logout clears the local session. The backend is not contacted.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// StoredUser returns the cached user, if any.
func (s *Service) StoredUser(ctx context.Context) (models.User, bool) {
	return s.store.User(ctx)
}

// IsAuthenticated reports whether a session token is stored.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.store.Token(ctx)
	return ok
}
