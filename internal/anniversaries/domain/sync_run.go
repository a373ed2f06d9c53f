package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
)

// SyncTrigger identifies what initiated a progression run.
type SyncTrigger string

const (
	TriggerAPI    SyncTrigger = "api"
	TriggerCLI    SyncTrigger = "cli"
	TriggerWorker SyncTrigger = "worker"
	TriggerMCP    SyncTrigger = "mcp"
)

// SyncRun is the audit record of one user-scoped progression run.
type SyncRun struct {
	sharedDomain.BaseEntity
	userID        uuid.UUID
	trigger       SyncTrigger
	processed     int
	needingUpdate int
	updated       int
	failed        int
	syncedYears   []int
	failedYears   []int
	errors        []string
	duration      time.Duration
}

// NewSyncRun records the outcome of a progression run.
func NewSyncRun(userID uuid.UUID, trigger SyncTrigger, processed, needingUpdate, updated, failed int, syncedYears, failedYears []int, errs []string, duration time.Duration) *SyncRun {
	return &SyncRun{
		BaseEntity:    sharedDomain.NewBaseEntity(),
		userID:        userID,
		trigger:       trigger,
		processed:     processed,
		needingUpdate: needingUpdate,
		updated:       updated,
		failed:        failed,
		syncedYears:   syncedYears,
		failedYears:   failedYears,
		errors:        errs,
		duration:      duration,
	}
}

// RehydrateSyncRun recreates a sync run from persisted state.
func RehydrateSyncRun(base sharedDomain.BaseEntity, userID uuid.UUID, trigger SyncTrigger, processed, needingUpdate, updated, failed int, syncedYears, failedYears []int, errs []string, duration time.Duration) *SyncRun {
	return &SyncRun{
		BaseEntity:    base,
		userID:        userID,
		trigger:       trigger,
		processed:     processed,
		needingUpdate: needingUpdate,
		updated:       updated,
		failed:        failed,
		syncedYears:   syncedYears,
		failedYears:   failedYears,
		errors:        errs,
		duration:      duration,
	}
}

func (r *SyncRun) UserID() uuid.UUID       { return r.userID }
func (r *SyncRun) Trigger() SyncTrigger    { return r.trigger }
func (r *SyncRun) Processed() int          { return r.processed }
func (r *SyncRun) NeedingUpdate() int      { return r.needingUpdate }
func (r *SyncRun) Updated() int            { return r.updated }
func (r *SyncRun) Failed() int             { return r.failed }
func (r *SyncRun) SyncedYears() []int      { return r.syncedYears }
func (r *SyncRun) FailedYears() []int      { return r.failedYears }
func (r *SyncRun) Errors() []string        { return r.errors }
func (r *SyncRun) Duration() time.Duration { return r.duration }

// SyncRunRepository persists progression audit records.
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*SyncRun, error)
}
