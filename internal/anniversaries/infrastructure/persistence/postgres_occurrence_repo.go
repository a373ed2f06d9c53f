package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// Postgres unique_violation error code.
const uniqueViolationCode = "23505"

// PostgresOccurrenceRepository implements OccurrenceRepository using
// PostgreSQL. Occurrence rows are immutable once written.
type PostgresOccurrenceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOccurrenceRepository creates a new PostgreSQL occurrence repository.
func NewPostgresOccurrenceRepository(pool *pgxpool.Pool) *PostgresOccurrenceRepository {
	return &PostgresOccurrenceRepository{pool: pool}
}

// Save inserts an occurrence row. A second row for the same (event, hebrew
// year) is rejected with ErrDuplicateOccurrence.
func (r *PostgresOccurrenceRepository) Save(ctx context.Context, occurrence *domain.Occurrence) error {
	query := `
		INSERT INTO event_occurrences (
			id, event_id, hebrew_year, gregorian_date, external_event_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		occurrence.ID(),
		occurrence.EventID(),
		occurrence.HebrewYear(),
		occurrence.GregorianDate(),
		occurrence.ExternalEventID(),
		occurrence.CreatedAt(),
		occurrence.UpdatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "uq_event_occurrences_event_year" {
			return fmt.Errorf("%w: event %s year %d", domain.ErrDuplicateOccurrence, occurrence.EventID(), occurrence.HebrewYear())
		}
		return err
	}

	return nil
}

// FindByEventID returns all occurrences of an event ordered by Hebrew year.
func (r *PostgresOccurrenceRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.Occurrence, error) {
	query := `
		SELECT id, event_id, hebrew_year, gregorian_date, external_event_id, created_at, updated_at
		FROM event_occurrences
		WHERE event_id = $1
		ORDER BY hebrew_year ASC
	`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occurrences := make([]*domain.Occurrence, 0)
	for rows.Next() {
		occurrence, err := scanOccurrence(rows)
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
func (r *PostgresOccurrenceRepository) YearsByEventID(ctx context.Context, eventID uuid.UUID) ([]int, error) {
	query := `
		SELECT hebrew_year
		FROM event_occurrences
		WHERE event_id = $1
		ORDER BY hebrew_year ASC
	`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, eventID)
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
func (r *PostgresOccurrenceRepository) DeleteByEventID(ctx context.Context, eventID uuid.UUID) error {
	query := `DELETE FROM event_occurrences WHERE event_id = $1`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query, eventID)
	return err
}

func scanOccurrence(row pgx.Row) (*domain.Occurrence, error) {
	var (
		id              uuid.UUID
		eventID         uuid.UUID
		hebrewYear      int
		gregorianDate   time.Time
		externalEventID string
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(&id, &eventID, &hebrewYear, &gregorianDate, &externalEventID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateOccurrence(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		eventID,
		hebrewYear,
		gregorianDate.UTC(),
		externalEventID,
	), nil
}
