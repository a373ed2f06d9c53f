// Package persistence stores encrypted OAuth token blobs.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// PostgresTokenRepository implements oauth.TokenRepository using PostgreSQL.
// Only the sealed ciphertext is stored; one row per (user, provider).
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Save upserts the encrypted token blob for a user and provider.
func (r *PostgresTokenRepository) Save(ctx context.Context, userID uuid.UUID, provider string, ciphertext []byte) error {
	query := `
		INSERT INTO oauth_tokens (user_id, provider, ciphertext, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			updated_at = EXCLUDED.updated_at
	`

	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		userID, provider, ciphertext, time.Now().UTC(),
	)
	return err
}

// Find returns the encrypted token blob, or (nil, nil) when none is stored.
func (r *PostgresTokenRepository) Find(ctx context.Context, userID uuid.UUID, provider string) ([]byte, error) {
	query := `
		SELECT ciphertext
		FROM oauth_tokens
		WHERE user_id = $1 AND provider = $2
	`

	var ciphertext []byte
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID, provider).Scan(&ciphertext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ciphertext, nil
}
