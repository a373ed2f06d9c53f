package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	sharedApplication "github.com/raziel-gershoni/calbrew-sub001/internal/shared/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// DeleteEventCommand removes an event, its occurrences, and best-effort the
// remote calendar entries.
type DeleteEventCommand struct {
	UserID   uuid.UUID
	EventID  uuid.UUID
	Provider string
}

// DeleteEventResult reports the deletion. Local rows are always gone on
// success; Warning is set when remote cleanup was skipped or incomplete.
type DeleteEventResult struct {
	EventID            uuid.UUID
	OccurrencesDeleted int
	RemoteDeleted      int
	RemoteFailed       int
	Warning            string
}

// DeleteEventHandler handles the DeleteEventCommand. Local deletion always
// wins: remote failures degrade to a warning, never to a failed command.
type DeleteEventHandler struct {
	eventRepo      domain.EventRepository
	occurrenceRepo domain.OccurrenceRepository
	outboxRepo     outbox.Repository
	uow            sharedApplication.UnitOfWork
	resolver       *calendarApp.BindingResolver
	registry       *calendarApp.ProviderRegistry
	logger         *slog.Logger
}

// NewDeleteEventHandler creates a new DeleteEventHandler.
func NewDeleteEventHandler(
	eventRepo domain.EventRepository,
	occurrenceRepo domain.OccurrenceRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	resolver *calendarApp.BindingResolver,
	registry *calendarApp.ProviderRegistry,
	logger *slog.Logger,
) *DeleteEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteEventHandler{
		eventRepo:      eventRepo,
		occurrenceRepo: occurrenceRepo,
		outboxRepo:     outboxRepo,
		uow:            uow,
		resolver:       resolver,
		registry:       registry,
		logger:         logger,
	}
}

// Handle executes the DeleteEventCommand.
func (h *DeleteEventHandler) Handle(ctx context.Context, cmd DeleteEventCommand) (*DeleteEventResult, error) {
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

	occurrences, err := h.occurrenceRepo.FindByEventID(ctx, event.ID())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to load occurrences", err)
	}

	result := &DeleteEventResult{EventID: event.ID(), OccurrencesDeleted: len(occurrences)}

	if len(occurrences) > 0 {
		result.RemoteDeleted, result.RemoteFailed, result.Warning = h.deleteRemote(ctx, cmd.UserID, providerType, occurrences)
	}

	event.MarkDeleted(len(occurrences))

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.occurrenceRepo.DeleteByEventID(txCtx, event.ID()); err != nil {
			return err
		}
		if err := h.eventRepo.Delete(txCtx, event.ID()); err != nil {
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

	return result, nil
}

// deleteRemote removes the occurrence entries from the bound calendar. When
// the binding is absent or the calendar itself is gone, every remote call is
// skipped and local cleanup proceeds with a warning.
func (h *DeleteEventHandler) deleteRemote(ctx context.Context, userID uuid.UUID, providerType calendarDomain.ProviderType, occurrences []*domain.Occurrence) (deleted, failed int, warning string) {
	calendarID, found, err := h.resolver.Lookup(ctx, userID, providerType)
	if err != nil {
		h.logger.Warn("binding lookup failed during delete", "user_id", userID, "error", err)
		return 0, 0, "calendar binding could not be read; removed local entries only"
	}
	if !found {
		return 0, 0, "no calendar binding on record; removed local entries only"
	}
	if !h.resolver.VerifyExists(ctx, userID, providerType, calendarID) {
		return 0, 0, "bound calendar no longer exists; removed local entries only"
	}

	provider, err := h.registry.Get(providerType)
	if err != nil {
		h.logger.Warn("calendar provider not configured during delete", "provider", providerType, "error", err)
		return 0, 0, "calendar provider not configured; removed local entries only"
	}

	for _, occ := range occurrences {
		err := provider.DeleteEvent(ctx, userID, calendarID, occ.ExternalEventID())
		if err != nil && !errors.Is(err, calendarApp.ErrNotFound) {
			failed++
			h.logger.Warn("failed to delete remote occurrence",
				"year", occ.HebrewYear(),
				"external_event_id", occ.ExternalEventID(),
				"error", err,
			)
			continue
		}
		deleted++
	}

	if failed > 0 {
		warning = fmt.Sprintf("%d calendar entries could not be removed", failed)
	}
	return deleted, failed, warning
}
