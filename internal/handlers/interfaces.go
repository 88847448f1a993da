package handlers

import (
	"context"
	"time"

	"github.com/reflecta/reflecta/internal/models"
)

// AccountStore captures the persistence operations required by the auth handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// TokenIssuer issues bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// ReflectionStore captures persistence for mood reflections.
type ReflectionStore interface {
	Create(ctx context.Context, reflection models.Reflection) error
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.Reflection, error)
}

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
