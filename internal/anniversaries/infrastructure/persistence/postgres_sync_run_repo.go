package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	sharedPersistence "github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/persistence"
)

// PostgresSyncRunRepository implements SyncRunRepository using PostgreSQL.
// Runs are append-only audit records, so Save never updates.
type PostgresSyncRunRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSyncRunRepository creates a new PostgreSQL sync run repository.
func NewPostgresSyncRunRepository(pool *pgxpool.Pool) *PostgresSyncRunRepository {
	return &PostgresSyncRunRepository{pool: pool}
}

// Save inserts a sync run record.
func (r *PostgresSyncRunRepository) Save(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			id, user_id, triggered_by, events_processed, events_needing_update,
			events_updated, events_failed, synced_years, failed_years, errors,
			duration_ms, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		run.ID(),
		run.UserID(),
		string(run.Trigger()),
		run.Processed(),
		run.NeedingUpdate(),
		run.Updated(),
		run.Failed(),
		toInt64Array(run.SyncedYears()),
		toInt64Array(run.FailedYears()),
		pq.StringArray(run.Errors()),
		run.Duration().Milliseconds(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	return err
}

// ListByUserID returns the most recent runs for a user, newest first.
func (r *PostgresSyncRunRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.SyncRun, error) {
	query := `
		SELECT id, user_id, triggered_by, events_processed, events_needing_update,
		       events_updated, events_failed, synced_years, failed_years, errors,
		       duration_ms, created_at, updated_at
		FROM sync_runs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.SyncRun, 0)
	for rows.Next() {
		run, err := scanSyncRun(rows)
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

func scanSyncRun(row pgx.Row) (*domain.SyncRun, error) {
	var (
		id            uuid.UUID
		userID        uuid.UUID
		trigger       string
		processed     int
		needingUpdate int
		updated       int
		failed        int
		syncedYears   pq.Int64Array
		failedYears   pq.Int64Array
		errs          pq.StringArray
		durationMS    int64
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(&id, &userID, &trigger, &processed, &needingUpdate, &updated, &failed,
		&syncedYears, &failedYears, &errs, &durationMS, &createdAt, &updatedAt)
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
		toIntSlice(syncedYears),
		toIntSlice(failedYears),
		[]string(errs),
		time.Duration(durationMS)*time.Millisecond,
	), nil
}

func toInt64Array(years []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(years))
	for i, y := range years {
		arr[i] = int64(y)
	}
	return arr
}

func toIntSlice(arr pq.Int64Array) []int {
	years := make([]int, len(arr))
	for i, v := range arr {
		years[i] = int(v)
	}
	return years
}
