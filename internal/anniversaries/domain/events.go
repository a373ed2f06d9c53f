package domain

import (
	"github.com/google/uuid"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

const aggregateType = "anniversary_event"

// EventCreatedEvent is emitted when a user registers a new anniversary.
type EventCreatedEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	AnchorDay   int       `json:"anchor_day"`
	AnchorMonth int       `json:"anchor_month"`
	AnchorYear  int       `json:"anchor_year"`
}

// NewEventCreatedEvent creates an EventCreatedEvent.
func NewEventCreatedEvent(eventID, userID uuid.UUID, title string, anchor hebdate.Date) *EventCreatedEvent {
	return &EventCreatedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(eventID, aggregateType, "anniversary.event.created"),
		UserID:      userID,
		Title:       title,
		AnchorDay:   anchor.Day,
		AnchorMonth: anchor.Month,
		AnchorYear:  anchor.Year,
	}
}

// EventUpdatedEvent is emitted when title or description change.
type EventUpdatedEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// NewEventUpdatedEvent creates an EventUpdatedEvent.
func NewEventUpdatedEvent(eventID, userID uuid.UUID, title, description string) *EventUpdatedEvent {
	return &EventUpdatedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(eventID, aggregateType, "anniversary.event.updated"),
		UserID:      userID,
		Title:       title,
		Description: description,
	}
}

// EventDeletedEvent is emitted when an event and its occurrences are removed.
type EventDeletedEvent struct {
	sharedDomain.BaseEvent
	UserID          uuid.UUID `json:"user_id"`
	OccurrenceCount int       `json:"occurrence_count"`
}

// NewEventDeletedEvent creates an EventDeletedEvent.
func NewEventDeletedEvent(eventID, userID uuid.UUID, occurrenceCount int) *EventDeletedEvent {
	return &EventDeletedEvent{
		BaseEvent:       sharedDomain.NewBaseEvent(eventID, aggregateType, "anniversary.event.deleted"),
		UserID:          userID,
		OccurrenceCount: occurrenceCount,
	}
}

// OccurrencesMaterializedEvent is emitted after a materialization batch,
// successful years and failed years alike.
type OccurrencesMaterializedEvent struct {
	sharedDomain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	CalendarID  string    `json:"calendar_id"`
	Years       []int     `json:"years"`
	FailedYears []int     `json:"failed_years,omitempty"`
}

// NewOccurrencesMaterializedEvent creates an OccurrencesMaterializedEvent.
func NewOccurrencesMaterializedEvent(eventID, userID uuid.UUID, calendarID string, years, failedYears []int) *OccurrencesMaterializedEvent {
	return &OccurrencesMaterializedEvent{
		BaseEvent:   sharedDomain.NewBaseEvent(eventID, aggregateType, "anniversary.occurrences.materialized"),
		UserID:      userID,
		CalendarID:  calendarID,
		Years:       years,
		FailedYears: failedYears,
	}
}

// ProgressionCompletedEvent is emitted after a user-scoped progression run.
type ProgressionCompletedEvent struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID `json:"user_id"`
	Trigger   string    `json:"trigger"`
	Processed int       `json:"processed"`
	Updated   int       `json:"updated"`
	Failed    int       `json:"failed"`
}

// NewProgressionCompletedEvent creates a ProgressionCompletedEvent.
func NewProgressionCompletedEvent(runID, userID uuid.UUID, trigger SyncTrigger, processed, updated, failed int) *ProgressionCompletedEvent {
	return &ProgressionCompletedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(runID, "sync_run", "anniversary.progression.completed"),
		UserID:    userID,
		Trigger:   string(trigger),
		Processed: processed,
		Updated:   updated,
		Failed:    failed,
	}
}
