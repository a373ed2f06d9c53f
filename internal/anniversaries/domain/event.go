// Package domain holds the anniversary event aggregate, its occurrences,
// and the sync window policy.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

// Domain errors for anniversary events.
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrTitleTooLong      = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrEventNotFound     = errors.New("event not found")
	ErrNotOwner          = errors.New("event does not belong to user")
)

const (
	maxTitleLength       = 512
	maxDescriptionLength = 4096
)

// RecurrenceKind describes how an event repeats. Only yearly anniversaries
// exist today; the field is persisted for forward compatibility.
type RecurrenceKind string

// RecurrenceYearly is one occurrence per matching anniversary per Hebrew year.
const RecurrenceYearly RecurrenceKind = "yearly"

// Event is a recurring anniversary anchored to a Hebrew calendar date.
// Its Gregorian occurrences are materialized per Hebrew year and mirrored
// into the owner's external calendar.
type Event struct {
	sharedDomain.BaseAggregateRoot
	userID         uuid.UUID
	title          string
	description    string
	anchor         hebdate.Date
	recurrence     RecurrenceKind
	lastSyncedYear int
}

// NewEvent creates an anniversary event. The anchor must name a real Hebrew
// calendar date; titles are NFC-normalized so lookups and remote payloads
// agree on one byte representation.
func NewEvent(userID uuid.UUID, title, description string, anchor hebdate.Date) (*Event, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	title = normalizeText(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}
	description = normalizeText(description)
	if len(description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if err := hebdate.Validate(anchor.Day, anchor.Month, anchor.Year); err != nil {
		return nil, fmt.Errorf("invalid anchor date: %w", err)
	}

	event := &Event{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		title:             title,
		description:       description,
		anchor:            anchor,
		recurrence:        RecurrenceYearly,
	}

	event.AddDomainEvent(NewEventCreatedEvent(event.ID(), userID, title, anchor))
	return event, nil
}

// RehydrateEvent recreates an event from persisted state.
func RehydrateEvent(
	base sharedDomain.BaseEntity,
	version int,
	userID uuid.UUID,
	title, description string,
	anchor hebdate.Date,
	recurrence RecurrenceKind,
	lastSyncedYear int,
) *Event {
	return &Event{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base, version),
		userID:            userID,
		title:             title,
		description:       description,
		anchor:            anchor,
		recurrence:        recurrence,
		lastSyncedYear:    lastSyncedYear,
	}
}

func (e *Event) UserID() uuid.UUID          { return e.userID }
func (e *Event) Title() string              { return e.title }
func (e *Event) Description() string        { return e.description }
func (e *Event) Anchor() hebdate.Date       { return e.anchor }
func (e *Event) Recurrence() RecurrenceKind { return e.recurrence }
func (e *Event) LastSyncedYear() int        { return e.lastSyncedYear }

// BelongsTo reports whether the event is owned by the given user.
func (e *Event) BelongsTo(userID uuid.UUID) bool {
	return e.userID == userID
}

// DisplayTitle renders the occurrence title for a Hebrew year, prefixing the
// anniversary ordinal when it is positive: the anchor year itself shows the
// bare title, later years show "(N) Title".
func (e *Event) DisplayTitle(year int) string {
	n := year - e.anchor.Year
	if n > 0 {
		return fmt.Sprintf("(%d) %s", n, e.title)
	}
	return e.title
}

// UpdateDetails changes title and description, to be propagated to all
// materialized occurrences by the caller.
func (e *Event) UpdateDetails(title, description string) error {
	title = normalizeText(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	description = normalizeText(description)
	if len(description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}

	e.title = title
	e.description = description
	e.Touch()

	e.AddDomainEvent(NewEventUpdatedEvent(e.ID(), e.userID, title, description))
	return nil
}

// AdvanceLastSyncedYear raises the high-water mark. It never regresses: the
// mark is a cache over occurrence rows and only moves forward.
func (e *Event) AdvanceLastSyncedYear(year int) {
	if year > e.lastSyncedYear {
		e.lastSyncedYear = year
		e.Touch()
	}
}

// RecordMaterialization advances the high-water mark to the window end and
// emits the batch event. Failed years stay behind the mark; occurrence rows
// remain the authority on what still needs materializing.
func (e *Event) RecordMaterialization(calendarID string, windowEnd int, years, failedYears []int) {
	e.AdvanceLastSyncedYear(windowEnd)
	e.AddDomainEvent(NewOccurrencesMaterializedEvent(e.ID(), e.userID, calendarID, years, failedYears))
}

// MarkDeleted records the deletion event for outbox publication.
func (e *Event) MarkDeleted(occurrenceCount int) {
	e.AddDomainEvent(NewEventDeletedEvent(e.ID(), e.userID, occurrenceCount))
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// EventRepository defines persistence operations for anniversary events.
type EventRepository interface {
	Save(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Event, error)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
