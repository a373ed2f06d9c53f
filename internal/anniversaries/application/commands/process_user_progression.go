package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// ProcessUserProgressionCommand runs progression across all of a user's
// events.
type ProcessUserProgressionCommand struct {
	UserID   uuid.UUID
	Provider string
	Trigger  string
}

// ProcessUserProgressionResult aggregates the run.
type ProcessUserProgressionResult struct {
	RunID         uuid.UUID
	Processed     int
	NeedingUpdate int
	Updated       int
	Failed        int
	SyncedYears   []int
	FailedYears   []int
	Errors        []string
	Duration      time.Duration
}

// ProcessUserProgressionHandler handles the ProcessUserProgressionCommand.
// An event counts as failed only when its sync could not run at all;
// per-year failures inside a sync stay partial.
type ProcessUserProgressionHandler struct {
	eventRepo   domain.EventRepository
	syncRunRepo domain.SyncRunRepository
	outboxRepo  outbox.Repository
	syncer      EventSyncer
	logger      *slog.Logger
	now         func() time.Time
}

// NewProcessUserProgressionHandler creates a new ProcessUserProgressionHandler.
func NewProcessUserProgressionHandler(
	eventRepo domain.EventRepository,
	syncRunRepo domain.SyncRunRepository,
	outboxRepo outbox.Repository,
	syncer EventSyncer,
	logger *slog.Logger,
) *ProcessUserProgressionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessUserProgressionHandler{
		eventRepo:   eventRepo,
		syncRunRepo: syncRunRepo,
		outboxRepo:  outboxRepo,
		syncer:      syncer,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle executes the ProcessUserProgressionCommand.
func (h *ProcessUserProgressionHandler) Handle(ctx context.Context, cmd ProcessUserProgressionCommand) (*ProcessUserProgressionResult, error) {
	providerType, err := resolveProviderType(cmd.Provider)
	if err != nil {
		return nil, err
	}
	trigger := resolveTrigger(cmd.Trigger)

	events, err := h.eventRepo.FindByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to load events", err)
	}

	start := h.now()
	currentYear := hebdate.CurrentYear(start)

	result := &ProcessUserProgressionResult{
		SyncedYears: []int{},
		FailedYears: []int{},
	}

	for _, event := range events {
		result.Processed++

		window := domain.ComputeSyncWindow(event.Anchor().Year, currentYear)
		if event.LastSyncedYear() >= window.End {
			continue
		}
		result.NeedingUpdate++

		outcome, err := h.syncer.SyncEvent(ctx, event, providerType)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", event.ID(), err))
			h.logger.Warn("progression sync failed",
				"event_id", event.ID(),
				"user_id", cmd.UserID,
				"error", err,
			)
			continue
		}

		result.Updated++
		result.SyncedYears = append(result.SyncedYears, outcome.YearsSynced...)
		result.FailedYears = append(result.FailedYears, outcome.FailedYears...)
		for _, msg := range outcome.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %s", event.ID(), msg))
		}
	}

	result.SyncedYears = sortedUnique(result.SyncedYears)
	result.FailedYears = sortedUnique(result.FailedYears)
	result.Duration = h.now().Sub(start)

	run := domain.NewSyncRun(
		cmd.UserID,
		trigger,
		result.Processed,
		result.NeedingUpdate,
		result.Updated,
		result.Failed,
		result.SyncedYears,
		result.FailedYears,
		result.Errors,
		result.Duration,
	)
	result.RunID = run.ID()

	// The audit row and completion event are best effort; a failing audit
	// store must not turn a finished run into an error.
	if err := h.syncRunRepo.Save(ctx, run); err != nil {
		h.logger.Error("failed to record sync run", "user_id", cmd.UserID, "error", err)
	}
	h.publishCompletion(ctx, run)

	return result, nil
}

func (h *ProcessUserProgressionHandler) publishCompletion(ctx context.Context, run *domain.SyncRun) {
	event := domain.NewProgressionCompletedEvent(
		run.ID(), run.UserID(), run.Trigger(),
		run.Processed(), run.Updated(), run.Failed(),
	)
	msg, err := outbox.NewMessage(event)
	if err != nil {
		h.logger.Warn("failed to encode progression event", "error", err)
		return
	}
	if err := h.outboxRepo.Save(ctx, msg); err != nil {
		h.logger.Warn("failed to enqueue progression event", "error", err)
	}
}

// resolveTrigger parses the trigger field, defaulting to the API.
func resolveTrigger(trigger string) domain.SyncTrigger {
	switch domain.SyncTrigger(trigger) {
	case domain.TriggerCLI:
		return domain.TriggerCLI
	case domain.TriggerWorker:
		return domain.TriggerWorker
	case domain.TriggerMCP:
		return domain.TriggerMCP
	default:
		return domain.TriggerAPI
	}
}

// sortedUnique sorts the years ascending and drops duplicates.
func sortedUnique(years []int) []int {
	if len(years) == 0 {
		return years
	}
	sort.Ints(years)

	out := years[:1]
	for _, y := range years[1:] {
		if y != out[len(out)-1] {
			out = append(out, y)
		}
	}
	return out
}
