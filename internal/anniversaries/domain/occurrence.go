package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
)

// Domain errors for occurrences.
var (
	ErrEmptyEventID        = errors.New("event ID cannot be empty")
	ErrEmptyExternalID     = errors.New("external event ID cannot be empty")
	ErrInvalidHebrewYear   = errors.New("hebrew year must be positive")
	ErrDuplicateOccurrence = errors.New("occurrence already exists for this event and year")
)

// Occurrence is one materialized instance of an anniversary event: the
// Gregorian date of the anniversary in a single Hebrew year, mirrored as an
// all-day entry in the external calendar.
type Occurrence struct {
	sharedDomain.BaseEntity
	eventID         uuid.UUID
	hebrewYear      int
	gregorianDate   time.Time
	externalEventID string
}

// NewOccurrence creates an occurrence record. An occurrence only exists once
// the external entry was created, so the external event ID is mandatory.
func NewOccurrence(eventID uuid.UUID, hebrewYear int, gregorianDate time.Time, externalEventID string) (*Occurrence, error) {
	if eventID == uuid.Nil {
		return nil, ErrEmptyEventID
	}
	if hebrewYear <= 0 {
		return nil, ErrInvalidHebrewYear
	}
	if externalEventID == "" {
		return nil, ErrEmptyExternalID
	}
	return &Occurrence{
		BaseEntity:      sharedDomain.NewBaseEntity(),
		eventID:         eventID,
		hebrewYear:      hebrewYear,
		gregorianDate:   gregorianDate.UTC(),
		externalEventID: externalEventID,
	}, nil
}

// RehydrateOccurrence recreates an occurrence from persisted state.
func RehydrateOccurrence(
	base sharedDomain.BaseEntity,
	eventID uuid.UUID,
	hebrewYear int,
	gregorianDate time.Time,
	externalEventID string,
) *Occurrence {
	return &Occurrence{
		BaseEntity:      base,
		eventID:         eventID,
		hebrewYear:      hebrewYear,
		gregorianDate:   gregorianDate,
		externalEventID: externalEventID,
	}
}

func (o *Occurrence) EventID() uuid.UUID       { return o.eventID }
func (o *Occurrence) HebrewYear() int          { return o.hebrewYear }
func (o *Occurrence) GregorianDate() time.Time { return o.gregorianDate }
func (o *Occurrence) ExternalEventID() string  { return o.externalEventID }

// OccurrenceRepository defines persistence operations for occurrences.
// Save must reject a second occurrence for the same (event, hebrew year)
// with ErrDuplicateOccurrence; callers treat that as already-present.
type OccurrenceRepository interface {
	Save(ctx context.Context, occurrence *Occurrence) error
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*Occurrence, error)
	YearsByEventID(ctx context.Context, eventID uuid.UUID) ([]int, error)
	DeleteByEventID(ctx context.Context, eventID uuid.UUID) error
}
