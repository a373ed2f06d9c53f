package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteEventRepository implements EventRepository using SQLite. Timestamps
// are stored as RFC 3339 strings, Gregorian dates as YYYY-MM-DD.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates a new SQLite event repository.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) querier(ctx context.Context) sharedPersistence.SQLiteExecutor {
	return sharedPersistence.SQLiteQuerier(ctx, r.db)
}

// Save persists an event (create or update) with optimistic concurrency
// control. The anchor date is immutable and never updated in place.
func (r *SQLiteEventRepository) Save(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO anniversary_events (
			id, user_id, title, description, anchor_day, anchor_month, anchor_year,
			recurrence, last_synced_year, created_at, updated_at, version
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			last_synced_year = excluded.last_synced_year,
			updated_at = excluded.updated_at,
			version = excluded.version
		WHERE anniversary_events.version = ?
	`

	newVersion := event.Version() + 1

	result, err := r.querier(ctx).ExecContext(ctx, query,
		event.ID().String(),
		event.UserID().String(),
		event.Title(),
		event.Description(),
		event.Anchor().Day,
		event.Anchor().Month,
		event.Anchor().Year,
		string(event.Recurrence()),
		event.LastSyncedYear(),
		formatTime(event.CreatedAt()),
		formatTime(event.UpdatedAt()),
		newVersion,
		event.Version(),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: event %s", sharedDomain.ErrConcurrentModification, event.ID())
	}

	event.SetVersion(newVersion)
	return nil
}

// FindByID returns the event with the given ID, or (nil, nil) when it does
// not exist.
func (r *SQLiteEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `
		SELECT id, user_id, title, description, anchor_day, anchor_month, anchor_year,
		       recurrence, last_synced_year, created_at, updated_at, version
		FROM anniversary_events
		WHERE id = ?
	`

	row := r.querier(ctx).QueryRowContext(ctx, query, id.String())
	event, err := scanSQLiteEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

// FindByUserID returns all events owned by a user, oldest first.
func (r *SQLiteEventRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Event, error) {
	query := `
		SELECT id, user_id, title, description, anchor_day, anchor_month, anchor_year,
		       recurrence, last_synced_year, created_at, updated_at, version
		FROM anniversary_events
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.querier(ctx).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanSQLiteEvent(rows)
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
func (r *SQLiteEventRepository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT user_id FROM anniversary_events ORDER BY user_id`

	rows, err := r.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]uuid.UUID, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return userIDs, nil
}

// Delete removes an event and, via the foreign key cascade, its occurrences.
func (r *SQLiteEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM anniversary_events WHERE id = ?`
	_, err := r.querier(ctx).ExecContext(ctx, query, id.String())
	return err
}

func scanSQLiteEvent(row rowScanner) (*domain.Event, error) {
	var (
		idStr          string
		userIDStr      string
		title          string
		description    string
		anchorDay      int
		anchorMonth    int
		anchorYear     int
		recurrence     string
		lastSyncedYear int
		createdAtStr   string
		updatedAtStr   string
		version        int
	)

	err := row.Scan(&idStr, &userIDStr, &title, &description, &anchorDay, &anchorMonth, &anchorYear,
		&recurrence, &lastSyncedYear, &createdAtStr, &updatedAtStr, &version)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, err
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtStr)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
