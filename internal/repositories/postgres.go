package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reflecta/reflecta/internal/db"
	"github.com/reflecta/reflecta/internal/models"
)

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, account.ID, account.Name, account.Email, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches an account by its email address.
func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, column, value string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of two fixed identifiers chosen above, never user input.
	row := conn.QueryRow(ctx, `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM users
        WHERE `+column+` = $1
    `, value)

	var account models.Account
	if err := row.Scan(&account.ID, &account.Name, &account.Email, &account.PasswordHash, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

// PostgresReflectionRepository provides PostgreSQL-backed persistence for reflections.
type PostgresReflectionRepository struct {
	pool db.Pool
}

// NewPostgresReflectionRepository constructs a reflection repository backed by PostgreSQL.
func NewPostgresReflectionRepository(pool db.Pool) *PostgresReflectionRepository {
	return &PostgresReflectionRepository{pool: pool}
}

// Create stores a new reflection.
func (r *PostgresReflectionRepository) Create(ctx context.Context, reflection models.Reflection) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO reflections (id, user_id, mood, note, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, reflection.ID, reflection.UserID, reflection.Mood, reflection.Note, reflection.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert reflection: %w", err)
	}

	return nil
}

// ListSince returns the user's reflections created at or after since, oldest first.
func (r *PostgresReflectionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]models.Reflection, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, mood, note, created_at
        FROM reflections
        WHERE user_id = $1 AND created_at >= $2
        ORDER BY created_at ASC
    `, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query reflections: %w", err)
	}
	defer rows.Close()

	var reflections []models.Reflection
	for rows.Next() {
		var reflection models.Reflection
		if err := rows.Scan(&reflection.ID, &reflection.UserID, &reflection.Mood, &reflection.Note, &reflection.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		reflection.CreatedAt = reflection.CreatedAt.UTC()
		reflections = append(reflections, reflection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reflections: %w", err)
	}

	return reflections, nil
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
var _ ReflectionRepository = (*PostgresReflectionRepository)(nil)
