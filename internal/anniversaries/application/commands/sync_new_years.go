package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
)

// SyncNewYearsCommand requests progression sync for one event.
type SyncNewYearsCommand struct {
	UserID   uuid.UUID
	EventID  uuid.UUID
	Provider string
}

// SyncNewYearsResult reports the years materialized by the sync. A rerun
// with nothing pending returns an empty YearsSynced.
type SyncNewYearsResult struct {
	EventID     uuid.UUID
	YearsSynced []int
	FailedYears []int
	Errors      []string
}

// SyncNewYearsHandler handles the SyncNewYearsCommand.
type SyncNewYearsHandler struct {
	eventRepo domain.EventRepository
	syncer    EventSyncer
}

// NewSyncNewYearsHandler creates a new SyncNewYearsHandler.
func NewSyncNewYearsHandler(eventRepo domain.EventRepository, syncer EventSyncer) *SyncNewYearsHandler {
	return &SyncNewYearsHandler{eventRepo: eventRepo, syncer: syncer}
}

// Handle executes the SyncNewYearsCommand.
func (h *SyncNewYearsHandler) Handle(ctx context.Context, cmd SyncNewYearsCommand) (*SyncNewYearsResult, error) {
	providerType, err := resolveProviderType(cmd.Provider)
	if err != nil {
		return nil, err
	}

	event, err := h.eventRepo.FindByID(ctx, cmd.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil || !event.BelongsTo(cmd.UserID) {
		return nil, apperror.Wrap(apperror.KindNotFound, "event not found", domain.ErrEventNotFound)
	}

	outcome, err := h.syncer.SyncEvent(ctx, event, providerType)
	if err != nil {
		return nil, err
	}

	return &SyncNewYearsResult{
		EventID:     event.ID(),
		YearsSynced: outcome.YearsSynced,
		FailedYears: outcome.FailedYears,
		Errors:      outcome.Errors,
	}, nil
}
