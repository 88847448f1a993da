package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/models"
)

// Keys under which the session is persisted.
const (
	TokenKey = "token"
	UserKey  = "user"
)

var (
	// ErrNotFound indicates the key has no stored value.
	ErrNotFound = errors.New("credential not found")
	// ErrEmptyToken rejects sessions without a bearer token.
	ErrEmptyToken = errors.New("session token must not be empty")
)

// Keyring is a secure string key-value store. Delete of a missing key is not an error.
type Keyring interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store owns the single client session: an opaque token plus the cached user.
// Reads fail silently to "absent"; at most one session exists and the last
// writer wins.
type Store struct {
	kv Keyring
}

// NewStore wraps kv as the process-wide session store.
func NewStore(kv Keyring) *Store {
	if kv == nil {
		panic("credentials: keyring must not be nil")
	}
	return &Store{kv: kv}
}

// Keyring exposes the backing key-value store for other local state.
func (s *Store) Keyring() Keyring {
	return s.kv
}

// Get returns the stored session, or false when no complete session is stored.
func (s *Store) Get(ctx context.Context) (models.Session, bool) {
	token, ok := s.Token(ctx)
	if !ok {
		return models.Session{}, false
	}
	user, ok := s.User(ctx)
	if !ok {
		return models.Session{}, false
	}
	return models.Session{Token: token, User: user}, true
}

// Token returns the stored bearer token.
func (s *Store) Token(ctx context.Context) (string, bool) {
	token, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		logMiss(ctx, TokenKey, err)
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// User returns the cached user profile.
func (s *Store) User(ctx context.Context) (models.User, bool) {
	raw, err := s.kv.Get(ctx, UserKey)
	if err != nil {
		logMiss(ctx, UserKey, err)
		return models.User{}, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		logging.FromContext(ctx).Warn("discarding unreadable cached user", "error", err)
		return models.User{}, false
	}
	return user, true
}

// Set persists the token and the serialized user. Both keys are written
// independently; a failure part way leaves the earlier key in place.
func (s *Store) Set(ctx context.Context, session models.Session) error {
	if strings.TrimSpace(session.Token) == "" {
		return ErrEmptyToken
	}
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, TokenKey, session.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(userJSON)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// Clear removes both the token and the cached user.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	if err := s.kv.Delete(ctx, TokenKey); err != nil {
		errs = append(errs, fmt.Errorf("delete token: %w", err))
	}
	if err := s.kv.Delete(ctx, UserKey); err != nil {
		errs = append(errs, fmt.Errorf("delete user: %w", err))
	}
	return errors.Join(errs...)
}

func logMiss(ctx context.Context, key string, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	logging.FromContext(ctx).Warn("credential read failed", slog.String("key", key), "error", err)
}
