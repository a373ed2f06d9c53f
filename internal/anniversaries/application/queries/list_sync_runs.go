package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
)

const (
	defaultSyncRunLimit = 20
	maxSyncRunLimit     = 100
)

// SyncRunDTO is a data transfer object for one progression audit row.
type SyncRunDTO struct {
	ID            uuid.UUID
	Trigger       string
	Processed     int
	NeedingUpdate int
	Updated       int
	Failed        int
	SyncedYears   []int
	FailedYears   []int
	Errors        []string
	Duration      time.Duration
	CreatedAt     time.Time
}

// ListSyncRunsQuery contains the parameters for listing recent sync runs.
type ListSyncRunsQuery struct {
	UserID uuid.UUID
	Limit  int
}

// ListSyncRunsHandler handles the ListSyncRunsQuery.
type ListSyncRunsHandler struct {
	syncRunRepo domain.SyncRunRepository
}

// NewListSyncRunsHandler creates a new ListSyncRunsHandler.
func NewListSyncRunsHandler(syncRunRepo domain.SyncRunRepository) *ListSyncRunsHandler {
	return &ListSyncRunsHandler{syncRunRepo: syncRunRepo}
}

// Handle executes the ListSyncRunsQuery.
func (h *ListSyncRunsHandler) Handle(ctx context.Context, query ListSyncRunsQuery) ([]SyncRunDTO, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSyncRunLimit
	}
	if limit > maxSyncRunLimit {
		limit = maxSyncRunLimit
	}

	runs, err := h.syncRunRepo.ListByUserID(ctx, query.UserID, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]SyncRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = SyncRunDTO{
			ID:            run.ID(),
			Trigger:       string(run.Trigger()),
			Processed:     run.Processed(),
			NeedingUpdate: run.NeedingUpdate(),
			Updated:       run.Updated(),
			Failed:        run.Failed(),
			SyncedYears:   run.SyncedYears(),
			FailedYears:   run.FailedYears(),
			Errors:        run.Errors(),
			Duration:      run.Duration(),
			CreatedAt:     run.CreatedAt(),
		}
	}
	return dtos, nil
}
