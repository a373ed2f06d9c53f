package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// SQLiteCalendarBindingRepository implements CalendarBindingRepository using
// SQLite. Timestamps are stored as RFC 3339 strings.
type SQLiteCalendarBindingRepository struct {
	db *sql.DB
}

// NewSQLiteCalendarBindingRepository creates a new SQLite binding repository.
func NewSQLiteCalendarBindingRepository(db *sql.DB) *SQLiteCalendarBindingRepository {
	return &SQLiteCalendarBindingRepository{db: db}
}

func (r *SQLiteCalendarBindingRepository) querier(ctx context.Context) sharedPersistence.SQLiteExecutor {
	return sharedPersistence.SQLiteQuerier(ctx, r.db)
}

// Save persists a binding (create or rebind) with optimistic concurrency control.
func (r *SQLiteCalendarBindingRepository) Save(ctx context.Context, binding *domain.CalendarBinding) error {
	query := `
		INSERT INTO calendar_bindings (
			id, user_id, provider, calendar_id, resolved_at, created_at, updated_at, version
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			resolved_at = excluded.resolved_at,
			updated_at = excluded.updated_at,
			version = excluded.version
		WHERE calendar_bindings.version = ?
	`

	newVersion := binding.Version() + 1

	result, err := r.querier(ctx).ExecContext(ctx, query,
		binding.ID().String(),
		binding.UserID().String(),
		binding.Provider().String(),
		binding.CalendarID(),
		formatBindingTime(binding.ResolvedAt()),
		formatBindingTime(binding.CreatedAt()),
		formatBindingTime(binding.UpdatedAt()),
		newVersion,
		binding.Version(),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: binding %s", sharedDomain.ErrConcurrentModification, binding.ID())
	}

	binding.SetVersion(newVersion)
	return nil
}

// FindByUserAndProvider returns the user's binding for a provider, or
// (nil, nil) when none exists yet.
func (r *SQLiteCalendarBindingRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.CalendarBinding, error) {
	query := `
		SELECT id, user_id, provider, calendar_id, resolved_at, created_at, updated_at, version
		FROM calendar_bindings
		WHERE user_id = ? AND provider = ?
	`

	row := r.querier(ctx).QueryRowContext(ctx, query, userID.String(), provider.String())
	return scanSQLiteBinding(row)
}

// Delete removes a binding.
func (r *SQLiteCalendarBindingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM calendar_bindings WHERE id = ?`
	_, err := r.querier(ctx).ExecContext(ctx, query, id.String())
	return err
}

func scanSQLiteBinding(row *sql.Row) (*domain.CalendarBinding, error) {
	var (
		idStr         string
		userIDStr     string
		provider      string
		calendarID    string
		resolvedAtStr string
		createdAtStr  string
		updatedAtStr  string
		version       int
	)

	err := row.Scan(&idStr, &userIDStr, &provider, &calendarID, &resolvedAtStr, &createdAtStr, &updatedAtStr, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
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

	resolvedAt, err := parseBindingTime(resolvedAtStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseBindingTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseBindingTime(updatedAtStr)
	if err != nil {
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

func formatBindingTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseBindingTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
