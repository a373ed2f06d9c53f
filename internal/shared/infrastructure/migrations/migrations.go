// Package migrations applies embedded schema migrations.
//
// PostgreSQL migrations run through the goose v3 provider. SQLite uses a
// small ordered runner keyed on PRAGMA user_version, which avoids goose's
// per-connection locking on the pure-Go driver.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.up.sql
var sqliteFS embed.FS

// UpPostgres applies all pending PostgreSQL migrations.
func UpPostgres(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	subFS, err := fs.Sub(postgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("migrations: creating sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, subFS)
	if err != nil {
		return fmt.Errorf("migrations: creating provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}
	return nil
}

// UpSQLite applies all pending SQLite migrations in version order.
func UpSQLite(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("migrations: read schema version: %w", err)
	}

	names, err := fs.Glob(sqliteFS, "sqlite/*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}
		if err := applySQLiteMigration(ctx, db, name, version); err != nil {
			return err
		}
		logger.Info("applied migration",
			slog.String("source", path.Base(name)),
			slog.Int("version", version),
		)
	}
	return nil
}

// migrationVersion parses the numeric prefix of a migration file name.
func migrationVersion(name string) (int, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, fmt.Errorf("migrations: malformed migration name %q", base)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migrations: malformed migration version in %q: %w", base, err)
	}
	return version, nil
}

// applySQLiteMigration runs one migration and stamps the new version inside
// a single transaction.
func applySQLiteMigration(ctx context.Context, db *sql.DB, name string, version int) error {
	migrationSQL, err := fs.ReadFile(sqliteFS, name)
	if err != nil {
		return fmt.Errorf("migrations: read %s: %w", name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations: begin tx for %s: %w", name, err)
	}

	if _, execErr := tx.ExecContext(ctx, string(migrationSQL)); execErr != nil {
		rollbackErr := tx.Rollback()
		return fmt.Errorf("migrations: exec %s: %w (rollback: %v)", name, execErr, rollbackErr)
	}

	// PRAGMA cannot be parameterized.
	if _, execErr := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); execErr != nil {
		rollbackErr := tx.Rollback()
		return fmt.Errorf("migrations: stamp version %d: %w (rollback: %v)", version, execErr, rollbackErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrations: commit %s: %w", name, err)
	}
	return nil
}
