package domain

import (
	"github.com/google/uuid"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
)

const (
	// AggregateTypeCalendarBinding is the aggregate type for bindings.
	AggregateTypeCalendarBinding = "calendar_binding"

	// Event routing keys.
	RoutingKeyCalendarBound   = "calendar.binding.created"
	RoutingKeyCalendarRebound = "calendar.binding.replaced"
)

// CalendarBoundEvent is published when a calendar is first resolved for a user.
type CalendarBoundEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID    `json:"user_id"`
	Provider   ProviderType `json:"provider"`
	CalendarID string       `json:"calendar_id"`
}

// NewCalendarBoundEvent creates a new CalendarBoundEvent.
func NewCalendarBoundEvent(aggregateID, userID uuid.UUID, provider ProviderType, calendarID string) *CalendarBoundEvent {
	return &CalendarBoundEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(aggregateID, AggregateTypeCalendarBinding, RoutingKeyCalendarBound),
		UserID:     userID,
		Provider:   provider,
		CalendarID: calendarID,
	}
}

// CalendarReboundEvent is published when a stale binding self-heals onto a
// replacement calendar.
type CalendarReboundEvent struct {
	sharedDomain.BaseEvent
	UserID             uuid.UUID    `json:"user_id"`
	Provider           ProviderType `json:"provider"`
	PreviousCalendarID string       `json:"previous_calendar_id"`
	CalendarID         string       `json:"calendar_id"`
}

// NewCalendarReboundEvent creates a new CalendarReboundEvent.
func NewCalendarReboundEvent(aggregateID, userID uuid.UUID, provider ProviderType, previousID, calendarID string) *CalendarReboundEvent {
	return &CalendarReboundEvent{
		BaseEvent:          sharedDomain.NewBaseEvent(aggregateID, AggregateTypeCalendarBinding, RoutingKeyCalendarRebound),
		UserID:             userID,
		Provider:           provider,
		PreviousCalendarID: previousID,
		CalendarID:         calendarID,
	}
}
