package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// SQLiteSyncRunRepository implements SyncRunRepository using SQLite. Year and
// error lists are stored as JSON text.
type SQLiteSyncRunRepository struct {
	db *sql.DB
}

// NewSQLiteSyncRunRepository creates a new SQLite sync run repository.
func NewSQLiteSyncRunRepository(db *sql.DB) *SQLiteSyncRunRepository {
	return &SQLiteSyncRunRepository{db: db}
}

func (r *SQLiteSyncRunRepository) querier(ctx context.Context) sharedPersistence.SQLiteExecutor {
	return sharedPersistence.SQLiteQuerier(ctx, r.db)
}

// Save inserts a sync run record.
func (r *SQLiteSyncRunRepository) Save(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			id, user_id, triggered_by, events_processed, events_needing_update,
			events_updated, events_failed, synced_years, failed_years, errors,
			duration_ms, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	syncedYears, err := marshalInts(run.SyncedYears())
	if err != nil {
		return err
	}
	failedYears, err := marshalInts(run.FailedYears())
	if err != nil {
		return err
	}
	errs, err := marshalStrings(run.Errors())
	if err != nil {
		return err
	}

	_, err = r.querier(ctx).ExecContext(ctx, query,
		run.ID().String(),
		run.UserID().String(),
		string(run.Trigger()),
		run.Processed(),
		run.NeedingUpdate(),
		run.Updated(),
		run.Failed(),
		syncedYears,
		failedYears,
		errs,
		run.Duration().Milliseconds(),
		formatTime(run.CreatedAt()),
		formatTime(run.UpdatedAt()),
	)
	return err
}

// ListByUserID returns the most recent runs for a user, newest first.
func (r *SQLiteSyncRunRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.SyncRun, error) {
	query := `
		SELECT id, user_id, triggered_by, events_processed, events_needing_update,
		       events_updated, events_failed, synced_years, failed_years, errors,
		       duration_ms, created_at, updated_at
		FROM sync_runs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.querier(ctx).QueryContext(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.SyncRun, 0)
	for rows.Next() {
		run, err := scanSQLiteSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

func scanSQLiteSyncRun(row rowScanner) (*domain.SyncRun, error) {
	var (
		idStr          string
		userIDStr      string
		trigger        string
		processed      int
		needingUpdate  int
		updated        int
		failed         int
		syncedYearsStr string
		failedYearsStr string
		errsStr        string
		durationMS     int64
		createdAtStr   string
		updatedAtStr   string
	)

	err := row.Scan(&idStr, &userIDStr, &trigger, &processed, &needingUpdate, &updated, &failed,
		&syncedYearsStr, &failedYearsStr, &errsStr, &durationMS, &createdAtStr, &updatedAtStr)
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

	var syncedYears, failedYears []int
	if err := json.Unmarshal([]byte(syncedYearsStr), &syncedYears); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(failedYearsStr), &failedYears); err != nil {
		return nil, err
	}
	var errs []string
	if err := json.Unmarshal([]byte(errsStr), &errs); err != nil {
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

	return domain.RehydrateSyncRun(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID,
		domain.SyncTrigger(trigger),
		processed,
		needingUpdate,
		updated,
		failed,
		syncedYears,
		failedYears,
		errs,
		time.Duration(durationMS)*time.Millisecond,
	), nil
}

func marshalInts(values []int) (string, error) {
	if values == nil {
		values = []int{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
