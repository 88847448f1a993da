package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reflecta/reflecta/internal/models"
)

// MemoryAccountRepository keeps accounts in process memory. It backs the
// reference server when REFLECTA_STORE=memory and the handler tests.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

// NewMemoryAccountRepository constructs an empty in-memory account repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]models.Account)}
}

// Create stores account, rejecting duplicate ids and emails.
func (r *MemoryAccountRepository) Create(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return ErrConflict
		}
	}
	r.accounts[account.ID] = account
	return nil
}

// FindByEmail fetches an account by email, ignoring case.
func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return models.Account{}, ErrNotFound
}

// FindByID fetches an account by id.
func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return account, nil
}

// MemoryReflectionRepository keeps reflections in process memory.
type MemoryReflectionRepository struct {
	mu          sync.RWMutex
	reflections []models.Reflection
}

// NewMemoryReflectionRepository constructs an empty in-memory reflection repository.
func NewMemoryReflectionRepository() *MemoryReflectionRepository {
	return &MemoryReflectionRepository{}
}

// Create appends reflection.
func (r *MemoryReflectionRepository) Create(_ context.Context, reflection models.Reflection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reflections {
		if existing.ID == reflection.ID {
			return ErrConflict
		}
	}
	r.reflections = append(r.reflections, reflection)
	return nil
}

// ListSince returns the user's reflections created at or after since, oldest first.
func (r *MemoryReflectionRepository) ListSince(_ context.Context, userID string, since time.Time) ([]models.Reflection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Reflection
	for _, reflection := range r.reflections {
		if reflection.UserID != userID || reflection.CreatedAt.Before(since) {
			continue
		}
		out = append(out, reflection)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)
var _ ReflectionRepository = (*MemoryReflectionRepository)(nil)
