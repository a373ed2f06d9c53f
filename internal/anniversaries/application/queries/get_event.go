package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
)

// OccurrenceDTO is a data transfer object for one materialized occurrence.
type OccurrenceDTO struct {
	HebrewYear      int
	GregorianDate   time.Time
	ExternalEventID string
}

// EventDetailDTO is an event summary plus its materialized occurrences.
type EventDetailDTO struct {
	EventSummaryDTO
	UpdatedAt   time.Time
	Occurrences []OccurrenceDTO
}

// GetEventQuery contains the parameters for fetching a single event.
type GetEventQuery struct {
	EventID uuid.UUID
	UserID  uuid.UUID
}

// GetEventHandler handles the GetEventQuery.
type GetEventHandler struct {
	eventRepo      domain.EventRepository
	occurrenceRepo domain.OccurrenceRepository
}

// NewGetEventHandler creates a new GetEventHandler.
func NewGetEventHandler(eventRepo domain.EventRepository, occurrenceRepo domain.OccurrenceRepository) *GetEventHandler {
	return &GetEventHandler{eventRepo: eventRepo, occurrenceRepo: occurrenceRepo}
}

// Handle executes the GetEventQuery.
func (h *GetEventHandler) Handle(ctx context.Context, query GetEventQuery) (*EventDetailDTO, error) {
	event, err := h.eventRepo.FindByID(ctx, query.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil || !event.BelongsTo(query.UserID) {
		return nil, apperror.Wrap(apperror.KindNotFound, "event not found", domain.ErrEventNotFound)
	}

	occurrences, err := h.occurrenceRepo.FindByEventID(ctx, event.ID())
	if err != nil {
		return nil, err
	}

	dto := &EventDetailDTO{
		EventSummaryDTO: toEventSummaryDTO(event),
		UpdatedAt:       event.UpdatedAt(),
		Occurrences:     make([]OccurrenceDTO, len(occurrences)),
	}
	for i, occ := range occurrences {
		dto.Occurrences[i] = OccurrenceDTO{
			HebrewYear:      occ.HebrewYear(),
			GregorianDate:   occ.GregorianDate(),
			ExternalEventID: occ.ExternalEventID(),
		}
	}
	return dto, nil
}
