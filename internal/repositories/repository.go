package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/reflecta/reflecta/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row, or when a write
	// references an account that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an email or id is already taken.
	ErrConflict = errors.New("record conflict")
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// ReflectionRepository exposes data access for mood reflections.
type ReflectionRepository interface {
	Create(ctx context.Context, reflection models.Reflection) error
	// ListSince returns the user's reflections created at or after since,
	// oldest first.
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.Reflection, error)
}
