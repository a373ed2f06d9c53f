package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// SQLiteTokenRepository implements oauth.TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewSQLiteTokenRepository creates a new SQLite token repository.
func NewSQLiteTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

func (r *SQLiteTokenRepository) querier(ctx context.Context) sharedPersistence.SQLiteExecutor {
	return sharedPersistence.SQLiteQuerier(ctx, r.db)
}

// Save upserts the encrypted token blob for a user and provider.
func (r *SQLiteTokenRepository) Save(ctx context.Context, userID uuid.UUID, provider string, ciphertext []byte) error {
	query := `
		INSERT INTO oauth_tokens (user_id, provider, ciphertext, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.querier(ctx).ExecContext(ctx, query, userID.String(), provider, ciphertext, now, now)
	return err
}

// Find returns the encrypted token blob, or (nil, nil) when none is stored.
func (r *SQLiteTokenRepository) Find(ctx context.Context, userID uuid.UUID, provider string) ([]byte, error) {
	query := `
		SELECT ciphertext
		FROM oauth_tokens
		WHERE user_id = ? AND provider = ?
	`

	var ciphertext []byte
	err := r.querier(ctx).QueryRowContext(ctx, query, userID.String(), provider).Scan(&ciphertext)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ciphertext, nil
}
