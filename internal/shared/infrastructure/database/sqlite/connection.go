// Package sqlite opens local SQLite databases with the pragmas the
// application relies on.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/database"
)

// pragmas are applied to every connection. WAL keeps readers from
// blocking the writer and busy_timeout retries instead of failing fast.
const pragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)"

// Open opens the SQLite database described by cfg, creating the parent
// directory when needed, and verifies the connection with a ping.
func Open(ctx context.Context, cfg database.Config) (*sql.DB, error) {
	path, err := resolvePath(cfg)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(path, ":memory:") {
		if err := database.EnsureDirectory(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection serializes writers so concurrent commands never
	// trip over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func resolvePath(cfg database.Config) (string, error) {
	if cfg.URL != "" {
		return strings.TrimPrefix(cfg.URL, "sqlite://"), nil
	}
	if cfg.SQLitePath != "" {
		return cfg.SQLitePath, nil
	}
	return database.DefaultSQLitePath()
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}
