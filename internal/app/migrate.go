package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reflecta/reflecta/internal/config"
	"github.com/reflecta/reflecta/internal/db"
)

const (
	migrationAttempts    = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

// transientPgCodes are SQLSTATEs worth retrying a migration for.
var transientPgCodes = []string{
	"40001", // serialization_failure
	"40P01", // deadlock_detected
	"55P03", // lock_not_available
}

// migrator applies the numbered .sql files in dir, recording each one in
// schema_migrations inside the same serializable transaction.
type migrator struct {
	conn *pgxpool.Conn
	dir  string
	out  io.Writer
}

func runMigrations(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	mode := "up"
	if len(args) > 0 {
		mode = args[0]
	}
	if mode != "up" && mode != "status" {
		if mode == "down" {
			return errors.New("down migrations are not supported; restore from a backup instead")
		}
		return fmt.Errorf("unknown migrate command %q", mode)
	}

	dir, err := resolveDir(cfg.Server.MigrationDir)
	if err != nil {
		return err
	}
	files, err := listMigrations(dir)
	if err != nil {
		return err
	}

	return withConn(ctx, cfg.Server.DatabaseURL, func(conn *pgxpool.Conn) error {
		m := migrator{conn: conn, dir: dir, out: out}
		applied, err := m.applied(ctx)
		if err != nil {
			return err
		}
		if mode == "status" {
			m.status(files, applied)
			return nil
		}
		return m.up(ctx, files, applied)
	})
}

func (m migrator) status(files []string, applied map[string]bool) {
	for _, name := range files {
		state := "pending"
		if applied[name] {
			state = "applied"
		}
		fmt.Fprintf(m.out, "%-8s %s\n", state, name)
	}
}

func (m migrator) up(ctx context.Context, files []string, applied map[string]bool) error {
	count := 0
	for _, name := range files {
		if applied[name] {
			continue
		}
		sql, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = retryTransient(ctx, migrationAttempts, func(attempt int) error {
			if attempt > 1 {
				fmt.Fprintf(m.out, "retrying %s (attempt %d/%d)\n", name, attempt, migrationAttempts)
			}
			return m.apply(ctx, name, string(sql))
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "applied %s\n", name)
		count++
	}
	if count == 0 {
		fmt.Fprintln(m.out, "database is up to date")
	}
	return nil
}

func (m migrator) apply(ctx context.Context, name, sql string) error {
	return pgx.BeginTxFunc(ctx, m.conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		return nil
	})
}

func (m migrator) applied(ctx context.Context) (map[string]bool, error) {
	if _, err := m.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// listMigrations returns the .sql files in dir in lexical order.
func listMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func runSeed(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: reflecta seed <name> (e.g. dev)")
	}

	dir, err := resolveDir(cfg.Server.SeedDir)
	if err != nil {
		return err
	}
	name := seedFileName(args[0])
	sql, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}

	return withConn(ctx, cfg.Server.DatabaseURL, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		fmt.Fprintf(out, "seeded %s\n", name)
		return nil
	})
}

func withConn(ctx context.Context, databaseURL string, fn func(*pgxpool.Conn) error) error {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

func seedFileName(name string) string {
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return name + "_seed.sql"
}

func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}

// retryTransient runs fn up to attempts times, backing off between tries,
// for as long as it fails with a transient database error.
func retryTransient(ctx context.Context, attempts int, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if waitErr := sleepContext(ctx, migrationBackoff(attempt-1)); waitErr != nil {
				return waitErr
			}
		}
		if err = fn(attempt); err == nil || !isTransient(err) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// migrationBackoff doubles from migrationBaseBackoff per retry, capped at
// migrationMaxBackoff.
func migrationBackoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	backoff := migrationBaseBackoff << (retry - 1)
	if backoff <= 0 || backoff > migrationMaxBackoff {
		return migrationMaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && slices.Contains(transientPgCodes, pgErr.Code)
}
