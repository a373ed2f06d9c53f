package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

const gregorianDateLayout = "2006-01-02"

// SQLiteOccurrenceRepository implements OccurrenceRepository using SQLite.
// Occurrence rows are immutable once written.
type SQLiteOccurrenceRepository struct {
	db *sql.DB
}

// NewSQLiteOccurrenceRepository creates a new SQLite occurrence repository.
func NewSQLiteOccurrenceRepository(db *sql.DB) *SQLiteOccurrenceRepository {
	return &SQLiteOccurrenceRepository{db: db}
}

func (r *SQLiteOccurrenceRepository) querier(ctx context.Context) sharedPersistence.SQLiteExecutor {
	return sharedPersistence.SQLiteQuerier(ctx, r.db)
}

// Save inserts an occurrence row. A second row for the same (event, hebrew
// year) is rejected with ErrDuplicateOccurrence.
func (r *SQLiteOccurrenceRepository) Save(ctx context.Context, occurrence *domain.Occurrence) error {
	query := `
		INSERT INTO event_occurrences (
			id, event_id, hebrew_year, gregorian_date, external_event_id, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.querier(ctx).ExecContext(ctx, query,
		occurrence.ID().String(),
		occurrence.EventID().String(),
		occurrence.HebrewYear(),
		occurrence.GregorianDate().UTC().Format(gregorianDateLayout),
		occurrence.ExternalEventID(),
		formatTime(occurrence.CreatedAt()),
		formatTime(occurrence.UpdatedAt()),
	)
	if err != nil {
		if isUniqueViolation(err, "event_occurrences") {
			return fmt.Errorf("%w: event %s year %d", domain.ErrDuplicateOccurrence, occurrence.EventID(), occurrence.HebrewYear())
		}
		return err
	}

	return nil
}

// FindByEventID returns all occurrences of an event ordered by Hebrew year.
func (r *SQLiteOccurrenceRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.Occurrence, error) {
	query := `
		SELECT id, event_id, hebrew_year, gregorian_date, external_event_id, created_at, updated_at
		FROM event_occurrences
		WHERE event_id = ?
		ORDER BY hebrew_year ASC
	`

	rows, err := r.querier(ctx).QueryContext(ctx, query, eventID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occurrences := make([]*domain.Occurrence, 0)
	for rows.Next() {
		occurrence, err := scanSQLiteOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occurrence)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return occurrences, nil
}

// YearsByEventID returns the Hebrew years already materialized for an event,
// ascending.
func (r *SQLiteOccurrenceRepository) YearsByEventID(ctx context.Context, eventID uuid.UUID) ([]int, error) {
	query := `
		SELECT hebrew_year
		FROM event_occurrences
		WHERE event_id = ?
		ORDER BY hebrew_year ASC
	`

	rows, err := r.querier(ctx).QueryContext(ctx, query, eventID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	years := make([]int, 0)
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return years, nil
}

// DeleteByEventID removes all occurrence rows of an event.
func (r *SQLiteOccurrenceRepository) DeleteByEventID(ctx context.Context, eventID uuid.UUID) error {
	query := `DELETE FROM event_occurrences WHERE event_id = ?`
	_, err := r.querier(ctx).ExecContext(ctx, query, eventID.String())
	return err
}

func scanSQLiteOccurrence(row rowScanner) (*domain.Occurrence, error) {
	var (
		idStr            string
		eventIDStr       string
		hebrewYear       int
		gregorianDateStr string
		externalEventID  string
		createdAtStr     string
		updatedAtStr     string
	)

	err := row.Scan(&idStr, &eventIDStr, &hebrewYear, &gregorianDateStr, &externalEventID, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		return nil, err
	}

	gregorianDate, err := time.Parse(gregorianDateLayout, gregorianDateStr)
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

	return domain.RehydrateOccurrence(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		eventID,
		hebrewYear,
		gregorianDate,
		externalEventID,
	), nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure on the given table. The driver exposes no typed error for this,
// so match on the message.
func isUniqueViolation(err error, table string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+table)
}
