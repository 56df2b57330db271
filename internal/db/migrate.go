package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// Migrator applies the numbered .sql files in Dir, recording each in schema_migrations.
type Migrator struct {
	Dir    string
	Logger *slog.Logger
}

// Migration is one .sql file and whether it has been applied.
type Migration struct {
	Name    string
	Applied bool
}

// Status lists every migration file in order with its applied state.
func (m Migrator) Status(ctx context.Context, conn *pgxpool.Conn) ([]Migration, error) {
	names, err := m.files()
	if err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		_, ok := applied[name]
		out = append(out, Migration{Name: name, Applied: ok})
	}
	return out, nil
}

// Up applies all pending migrations in name order and returns the names applied.
func (m Migrator) Up(ctx context.Context, conn *pgxpool.Conn) ([]string, error) {
	status, err := m.Status(ctx, conn)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range status {
		if migration.Applied {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(m.Dir, migration.Name))
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", migration.Name, err)
		}
		if err := m.applyWithRetry(ctx, conn, migration.Name, string(contents)); err != nil {
			return done, err
		}
		m.logger().Info("applied migration", "name", migration.Name)
		done = append(done, migration.Name)
	}
	return done, nil
}

// PrintStatus writes one "[x] name" / "[ ] name" line per migration.
func PrintStatus(w io.Writer, status []Migration) {
	for _, migration := range status {
		mark := " "
		if migration.Applied {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, migration.Name)
	}
}

func (m Migrator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Migrator) files() ([]string, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, version := range versions {
		applied[version] = struct{}{}
	}
	return applied, nil
}

func (m Migrator) applyWithRetry(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	var lastErr error
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = applyOnce(ctx, conn, name, contents)
		if lastErr == nil {
			return nil
		}
		if !shouldRetryMigration(lastErr) {
			return lastErr
		}
		m.logger().Warn("transient migration error", "name", name, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("apply migration %s: exceeded max retries (%d): %w", name, migrationMaxRetries, lastErr)
}

func applyOnce(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, contents); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}
