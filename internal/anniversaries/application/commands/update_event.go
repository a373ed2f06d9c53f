package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/services"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	sharedApplication "github.com/raziel-gershoni/calbrew-sub001/internal/shared/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// UpdateEventCommand changes an event's title and description.
type UpdateEventCommand struct {
	UserID      uuid.UUID
	EventID     uuid.UUID
	Title       string
	Description string
	Provider    string
}

// UpdateEventResult reports how many remote occurrences were reconciled.
type UpdateEventResult struct {
	EventID            uuid.UUID
	OccurrencesUpdated int
	OccurrencesFailed  int
	Errors             []string
}

// UpdateEventHandler handles the UpdateEventCommand. The local row is
// updated first; remote entries are then patched one by one, and a single
// entry's failure never blocks the others.
type UpdateEventHandler struct {
	eventRepo      domain.EventRepository
	occurrenceRepo domain.OccurrenceRepository
	outboxRepo     outbox.Repository
	uow            sharedApplication.UnitOfWork
	resolver       *calendarApp.BindingResolver
	registry       *calendarApp.ProviderRegistry
	materializer   *services.OccurrenceMaterializer
	logger         *slog.Logger
}

// NewUpdateEventHandler creates a new UpdateEventHandler.
func NewUpdateEventHandler(
	eventRepo domain.EventRepository,
	occurrenceRepo domain.OccurrenceRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	resolver *calendarApp.BindingResolver,
	registry *calendarApp.ProviderRegistry,
	materializer *services.OccurrenceMaterializer,
	logger *slog.Logger,
) *UpdateEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateEventHandler{
		eventRepo:      eventRepo,
		occurrenceRepo: occurrenceRepo,
		outboxRepo:     outboxRepo,
		uow:            uow,
		resolver:       resolver,
		registry:       registry,
		materializer:   materializer,
		logger:         logger,
	}
}

// Handle executes the UpdateEventCommand.
func (h *UpdateEventHandler) Handle(ctx context.Context, cmd UpdateEventCommand) (*UpdateEventResult, error) {
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

	if err := event.UpdateDetails(cmd.Title, cmd.Description); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "invalid event details", err)
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

	result := &UpdateEventResult{EventID: event.ID()}

	occurrences, err := h.occurrenceRepo.FindByEventID(ctx, event.ID())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to load occurrences", err)
	}
	if len(occurrences) == 0 {
		return result, nil
	}

	calendarID, err := h.resolver.Resolve(ctx, cmd.UserID, providerType)
	if err != nil {
		return nil, err
	}
	provider, err := h.registry.Get(providerType)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindCalendar, "calendar provider not configured", err)
	}

	for _, occ := range occurrences {
		payload, err := h.materializer.PayloadForYear(event, occ.HebrewYear())
		if err != nil {
			result.OccurrencesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("year %d: %v", occ.HebrewYear(), err))
			continue
		}

		err = provider.PatchEvent(ctx, cmd.UserID, calendarID, occ.ExternalEventID(), payload)
		if errors.Is(err, calendarApp.ErrNotFound) {
			// The cached calendar ID may be stale. One fresh resolution;
			// the retry only makes sense when the ID actually changed.
			freshID, rerr := h.resolver.ForceResolve(ctx, cmd.UserID, providerType)
			if rerr == nil && freshID != calendarID {
				calendarID = freshID
				err = provider.PatchEvent(ctx, cmd.UserID, calendarID, occ.ExternalEventID(), payload)
			}
		}
		if err != nil {
			result.OccurrencesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("year %d: %v", occ.HebrewYear(), err))
			h.logger.Warn("failed to patch occurrence",
				"event_id", event.ID(),
				"year", occ.HebrewYear(),
				"external_event_id", occ.ExternalEventID(),
				"error", err,
			)
			continue
		}
		result.OccurrencesUpdated++
	}

	return result, nil
}
