// Package persistence implements anniversary event, occurrence, and sync
// run repositories for PostgreSQL and SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// PostgresEventRepository implements EventRepository using PostgreSQL.
// Queries join the context transaction when one is open.
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// Save persists an event (create or update) with optimistic concurrency
// control. The anchor date is immutable and never updated in place.
func (r *PostgresEventRepository) Save(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO anniversary_events (
			id, user_id, title, description, anchor_day, anchor_month, anchor_year,
			recurrence, last_synced_year, created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			last_synced_year = EXCLUDED.last_synced_year,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE anniversary_events.version = $13
	`

	newVersion := event.Version() + 1

	result, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		event.ID(),
		event.UserID(),
		event.Title(),
		event.Description(),
		event.Anchor().Day,
		event.Anchor().Month,
		event.Anchor().Year,
		string(event.Recurrence()),
		event.LastSyncedYear(),
		event.CreatedAt(),
		event.UpdatedAt(),
		newVersion,
		event.Version(),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: event %s", sharedDomain.ErrConcurrentModification, event.ID())
	}

	event.SetVersion(newVersion)
	return nil
}

// FindByID returns the event with the given ID, or (nil, nil) when it does
// not exist.
func (r *PostgresEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `
		SELECT id, user_id, title, description, anchor_day, anchor_month, anchor_year,
		       recurrence, last_synced_year, created_at, updated_at, version
		FROM anniversary_events
		WHERE id = $1
	`

	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

// FindByUserID returns all events owned by a user, oldest first.
func (r *PostgresEventRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Event, error) {
	query := `
		SELECT id, user_id, title, description, anchor_day, anchor_month, anchor_year,
		       recurrence, last_synced_year, created_at, updated_at, version
		FROM anniversary_events
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// ListUserIDs returns every user that owns at least one event. The worker
// sweep fans out over this list.
func (r *PostgresEventRepository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT user_id FROM anniversary_events ORDER BY user_id`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]uuid.UUID, 0)
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return userIDs, nil
}

// Delete removes an event. Occurrence rows go with it via the foreign key
// cascade.
func (r *PostgresEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM anniversary_events WHERE id = $1`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query, id)
	return err
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		id             uuid.UUID
		userID         uuid.UUID
		title          string
		description    string
		anchorDay      int
		anchorMonth    int
		anchorYear     int
		recurrence     string
		lastSyncedYear int
		createdAt      time.Time
		updatedAt      time.Time
		version        int
	)

	err := row.Scan(&id, &userID, &title, &description, &anchorDay, &anchorMonth, &anchorYear,
		&recurrence, &lastSyncedYear, &createdAt, &updatedAt, &version)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateEvent(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		version,
		userID,
		title,
		description,
		hebdate.Date{Day: anchorDay, Month: anchorMonth, Year: anchorYear},
		domain.RecurrenceKind(recurrence),
		lastSyncedYear,
	), nil
}
