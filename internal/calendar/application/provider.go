// Package application defines the provider port for external calendar
// services and the binding resolver that keeps one authoritative calendar
// bound per user.
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WellKnownCalendarName is the display name of the calendar this service
// creates and searches for on the provider account.
const WellKnownCalendarName = "Calbrew"

// Calendar describes one calendar visible on the provider account.
type Calendar struct {
	ID      string
	Name    string
	Primary bool
}

// EventPayload is the provider-neutral shape of a single all-day occurrence
// entry. SourceEventID links the remote entry back to the owning anniversary
// event for provenance.
type EventPayload struct {
	Title         string
	Description   string
	Date          time.Time
	SourceEventID string
}

// Provider is the port to one external calendar service. Implementations
// return StatusError-wrapped sentinel errors so callers can classify
// failures without knowing the provider's wire format.
type Provider interface {
	// ListCalendars returns the calendars on the user's account.
	ListCalendars(ctx context.Context, userID uuid.UUID) ([]Calendar, error)

	// CreateCalendar creates a calendar with the given display name and
	// returns its provider-assigned ID.
	CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error)

	// CalendarExists probes whether the calendar is still present. A
	// remote not-found answers (false, nil); other failures are errors.
	CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error)

	// InsertEvent creates an all-day entry and returns its provider ID.
	InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload EventPayload) (string, error)

	// PatchEvent updates title and description of an existing entry.
	PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload EventPayload) error

	// DeleteEvent removes an entry.
	DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error
}
