// Package persistence implements calendar binding repositories for
// PostgreSQL and SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// PostgresCalendarBindingRepository implements CalendarBindingRepository
// using PostgreSQL. Queries join the context transaction when one is open.
type PostgresCalendarBindingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCalendarBindingRepository creates a new PostgreSQL binding repository.
func NewPostgresCalendarBindingRepository(pool *pgxpool.Pool) *PostgresCalendarBindingRepository {
	return &PostgresCalendarBindingRepository{pool: pool}
}

// Save persists a binding (create or rebind) with optimistic concurrency
// control. One row exists per (user, provider).
func (r *PostgresCalendarBindingRepository) Save(ctx context.Context, binding *domain.CalendarBinding) error {
	query := `
		INSERT INTO calendar_bindings (
			id, user_id, provider, calendar_id, resolved_at, created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE calendar_bindings.version = $9
	`

	newVersion := binding.Version() + 1

	result, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		binding.ID(),
		binding.UserID(),
		binding.Provider().String(),
		binding.CalendarID(),
		binding.ResolvedAt(),
		binding.CreatedAt(),
		binding.UpdatedAt(),
		newVersion,
		binding.Version(),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: binding %s", sharedDomain.ErrConcurrentModification, binding.ID())
	}

	binding.SetVersion(newVersion)
	return nil
}

// FindByUserAndProvider returns the user's binding for a provider, or
// (nil, nil) when none exists yet.
func (r *PostgresCalendarBindingRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.CalendarBinding, error) {
	query := `
		SELECT id, user_id, provider, calendar_id, resolved_at, created_at, updated_at, version
		FROM calendar_bindings
		WHERE user_id = $1 AND provider = $2
	`

	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, userID, provider.String())
	return scanBinding(row)
}

// Delete removes a binding.
func (r *PostgresCalendarBindingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM calendar_bindings WHERE id = $1`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query, id)
	return err
}

func scanBinding(row pgx.Row) (*domain.CalendarBinding, error) {
	var (
		id         uuid.UUID
		userID     uuid.UUID
		provider   string
		calendarID string
		resolvedAt time.Time
		createdAt  time.Time
		updatedAt  time.Time
		version    int
	)

	err := row.Scan(&id, &userID, &provider, &calendarID, &resolvedAt, &createdAt, &updatedAt, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydrateCalendarBinding(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		version,
		userID,
		domain.ProviderType(provider),
		calendarID,
		resolvedAt,
	), nil
}
