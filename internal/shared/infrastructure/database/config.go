package database

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config describes how to reach the database. URL takes precedence when
// set; otherwise SQLitePath selects a local file store.
type Config struct {
	// Driver selects the backend. When empty it is detected from URL.
	Driver Driver

	// URL is the connection string (postgres:// or a sqlite path/URI).
	URL string

	// SQLitePath is the database file used when no URL is given.
	SQLitePath string

	// MaxConns caps the connection pool size. Zero means the driver default.
	MaxConns int
}

// ResolvedDriver returns the configured driver, falling back to detection
// from the connection string.
func (c Config) ResolvedDriver() Driver {
	if c.Driver.IsValid() {
		return c.Driver
	}
	return DetectDriver(c.URL)
}

// DefaultSQLitePath returns the per-user database location used in local
// mode when no explicit path is configured.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".calbrew", "calbrew.db"), nil
}

// EnsureDirectory creates the parent directory of path if it does not exist.
func EnsureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}
