// Package commands holds the write-side handlers for anniversary events:
// create, update, delete, and the progression sync operations.
package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	sharedApplication "github.com/raziel-gershoni/calbrew-sub001/internal/shared/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// CreateEventCommand contains the data needed to register an anniversary.
type CreateEventCommand struct {
	UserID      uuid.UUID
	Title       string
	Description string
	AnchorDay   int
	AnchorMonth int
	AnchorYear  int
	Provider    string
}

// CreateEventResult contains the result of creating an event. The initial
// window sync runs after the event row is committed; when it fails the event
// still exists and SyncWarning carries the reason.
type CreateEventResult struct {
	EventID     uuid.UUID
	YearsSynced []int
	FailedYears []int
	SyncWarning string
}

// CreateEventHandler handles the CreateEventCommand.
type CreateEventHandler struct {
	eventRepo  domain.EventRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	syncer     EventSyncer
	logger     *slog.Logger
}

// NewCreateEventHandler creates a new CreateEventHandler.
func NewCreateEventHandler(
	eventRepo domain.EventRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	syncer EventSyncer,
	logger *slog.Logger,
) *CreateEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateEventHandler{
		eventRepo:  eventRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
		syncer:     syncer,
		logger:     logger,
	}
}

// Handle executes the CreateEventCommand.
func (h *CreateEventHandler) Handle(ctx context.Context, cmd CreateEventCommand) (*CreateEventResult, error) {
	providerType, err := resolveProviderType(cmd.Provider)
	if err != nil {
		return nil, err
	}

	anchor := hebdate.Date{Day: cmd.AnchorDay, Month: cmd.AnchorMonth, Year: cmd.AnchorYear}
	event, err := domain.NewEvent(cmd.UserID, cmd.Title, cmd.Description, anchor)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "invalid anniversary event", err)
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.eventRepo.Save(txCtx, event); err != nil {
			return err
		}

		events := event.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs := make([]*outbox.Message, 0, len(events))
		for _, ev := range events {
			msg, err := outbox.NewMessage(ev)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return h.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return nil, err
	}
	event.ClearDomainEvents()

	result := &CreateEventResult{EventID: event.ID(), YearsSynced: []int{}}

	// The event row is durable; a failed initial sync degrades to a warning
	// and the progression worker picks the event up later.
	outcome, err := h.syncer.SyncEvent(ctx, event, providerType)
	if err != nil {
		h.logger.Warn("initial window sync failed",
			"event_id", event.ID(),
			"user_id", cmd.UserID,
			"error", err,
		)
		result.SyncWarning = apperror.MessageOf(err)
		return result, nil
	}

	result.YearsSynced = outcome.YearsSynced
	result.FailedYears = outcome.FailedYears
	return result, nil
}

// resolveProviderType parses the provider field, defaulting to Google.
func resolveProviderType(provider string) (calendarDomain.ProviderType, error) {
	if provider == "" {
		return calendarDomain.ProviderGoogle, nil
	}
	providerType := calendarDomain.ProviderType(provider)
	if !providerType.IsValid() {
		return "", apperror.Newf(apperror.KindValidation, "unsupported calendar provider %q", provider)
	}
	return providerType, nil
}
