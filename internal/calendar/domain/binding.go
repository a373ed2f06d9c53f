// Package domain holds the calendar binding aggregate: the single external
// calendar considered authoritative for a user on a given provider.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
)

// Domain errors for calendar bindings.
var (
	ErrEmptyUserID     = errors.New("user ID cannot be empty")
	ErrInvalidProvider = errors.New("unsupported calendar provider")
	ErrEmptyCalendarID = errors.New("calendar ID cannot be empty")
	ErrBindingNotFound = errors.New("calendar binding not found")
)

// CalendarBinding records which external calendar holds a user's anniversary
// occurrences. The binding is mutable: when the remote calendar disappears,
// Rebind replaces the stale ID and the old one is forgotten.
type CalendarBinding struct {
	sharedDomain.BaseAggregateRoot
	userID     uuid.UUID
	provider   ProviderType
	calendarID string
	resolvedAt time.Time
}

// NewCalendarBinding creates a binding for a freshly resolved calendar.
func NewCalendarBinding(userID uuid.UUID, provider ProviderType, calendarID string) (*CalendarBinding, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if !provider.IsValid() {
		return nil, ErrInvalidProvider
	}
	if calendarID == "" {
		return nil, ErrEmptyCalendarID
	}

	binding := &CalendarBinding{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		provider:          provider,
		calendarID:        calendarID,
		resolvedAt:        time.Now().UTC(),
	}
	binding.AddDomainEvent(NewCalendarBoundEvent(binding.ID(), userID, provider, calendarID))
	return binding, nil
}

// RehydrateCalendarBinding recreates a binding from persisted state.
func RehydrateCalendarBinding(base sharedDomain.BaseEntity, version int, userID uuid.UUID, provider ProviderType, calendarID string, resolvedAt time.Time) *CalendarBinding {
	return &CalendarBinding{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base, version),
		userID:            userID,
		provider:          provider,
		calendarID:        calendarID,
		resolvedAt:        resolvedAt,
	}
}

func (b *CalendarBinding) UserID() uuid.UUID      { return b.userID }
func (b *CalendarBinding) Provider() ProviderType { return b.provider }
func (b *CalendarBinding) CalendarID() string     { return b.calendarID }
func (b *CalendarBinding) ResolvedAt() time.Time  { return b.resolvedAt }

// Rebind replaces a stale calendar ID after the remote calendar was deleted
// externally and a replacement was found or created.
func (b *CalendarBinding) Rebind(calendarID string) error {
	if calendarID == "" {
		return ErrEmptyCalendarID
	}
	if calendarID == b.calendarID {
		return nil
	}

	previous := b.calendarID
	b.calendarID = calendarID
	b.resolvedAt = time.Now().UTC()
	b.Touch()

	b.AddDomainEvent(NewCalendarReboundEvent(b.ID(), b.userID, b.provider, previous, calendarID))
	return nil
}

// CalendarBindingRepository defines persistence for calendar bindings.
// FindByUserAndProvider returns (nil, nil) when no binding exists yet.
type CalendarBindingRepository interface {
	Save(ctx context.Context, binding *CalendarBinding) error
	FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider ProviderType) (*CalendarBinding, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
