// Package queries holds the read-side handlers for anniversary events.
package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
)

// EventSummaryDTO is a data transfer object for event listings.
type EventSummaryDTO struct {
	ID             uuid.UUID
	Title          string
	Description    string
	AnchorDay      int
	AnchorMonth    int
	AnchorYear     int
	HebrewDate     string
	Recurrence     string
	LastSyncedYear int
	CreatedAt      time.Time
}

// ListEventsQuery contains the parameters for listing a user's events.
type ListEventsQuery struct {
	UserID uuid.UUID
}

// ListEventsHandler handles the ListEventsQuery.
type ListEventsHandler struct {
	eventRepo domain.EventRepository
}

// NewListEventsHandler creates a new ListEventsHandler.
func NewListEventsHandler(eventRepo domain.EventRepository) *ListEventsHandler {
	return &ListEventsHandler{eventRepo: eventRepo}
}

// Handle executes the ListEventsQuery.
func (h *ListEventsHandler) Handle(ctx context.Context, query ListEventsQuery) ([]EventSummaryDTO, error) {
	events, err := h.eventRepo.FindByUserID(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	dtos := make([]EventSummaryDTO, len(events))
	for i, event := range events {
		dtos[i] = toEventSummaryDTO(event)
	}
	return dtos, nil
}

func toEventSummaryDTO(event *domain.Event) EventSummaryDTO {
	anchor := event.Anchor()
	return EventSummaryDTO{
		ID:             event.ID(),
		Title:          event.Title(),
		Description:    event.Description(),
		AnchorDay:      anchor.Day,
		AnchorMonth:    anchor.Month,
		AnchorYear:     anchor.Year,
		HebrewDate:     anchor.String(),
		Recurrence:     string(event.Recurrence()),
		LastSyncedYear: event.LastSyncedYear(),
		CreatedAt:      event.CreatedAt(),
	}
}
