package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

func validAnchor() hebdate.Date {
	return hebdate.Date{Day: 15, Month: 1, Year: 5744}
}

func TestNewEvent(t *testing.T) {
	userID := uuid.New()

	event, err := NewEvent(userID, "Grandma's birthday", "Born in Jerusalem", validAnchor())
	require.NoError(t, err)

	assert.Equal(t, userID, event.UserID())
	assert.Equal(t, "Grandma's birthday", event.Title())
	assert.Equal(t, "Born in Jerusalem", event.Description())
	assert.Equal(t, validAnchor(), event.Anchor())
	assert.Equal(t, RecurrenceYearly, event.Recurrence())
	assert.Zero(t, event.LastSyncedYear())
	assert.NotEqual(t, uuid.Nil, event.ID())

	events := event.DomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*EventCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "anniversary.event.created", created.RoutingKey())
	assert.Equal(t, 5744, created.AnchorYear)
}

func TestNewEventValidation(t *testing.T) {
	userID := uuid.New()

	t.Run("empty user", func(t *testing.T) {
		_, err := NewEvent(uuid.Nil, "title", "", validAnchor())
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("empty title", func(t *testing.T) {
		_, err := NewEvent(userID, "   ", "", validAnchor())
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})

	t.Run("title too long", func(t *testing.T) {
		_, err := NewEvent(userID, strings.Repeat("x", 513), "", validAnchor())
		assert.ErrorIs(t, err, ErrTitleTooLong)
	})

	t.Run("impossible anchor date", func(t *testing.T) {
		_, err := NewEvent(userID, "title", "", hebdate.Date{Day: 31, Month: 1, Year: 5744})
		assert.Error(t, err)
	})

	t.Run("adar II anchor in common year", func(t *testing.T) {
		require.False(t, hebdate.IsLeapYear(5745))
		_, err := NewEvent(userID, "title", "", hebdate.Date{Day: 14, Month: 13, Year: 5745})
		assert.Error(t, err)
	})
}

func TestNewEventNormalizesTitle(t *testing.T) {
	// Decomposed "é" must be stored in its composed form.
	event, err := NewEvent(uuid.New(), "café", "", validAnchor())
	require.NoError(t, err)
	assert.Equal(t, "café", event.Title())
}

func TestDisplayTitle(t *testing.T) {
	event, err := NewEvent(uuid.New(), "Wedding", "", validAnchor())
	require.NoError(t, err)

	assert.Equal(t, "Wedding", event.DisplayTitle(5744), "anchor year shows the bare title")
	assert.Equal(t, "(1) Wedding", event.DisplayTitle(5745))
	assert.Equal(t, "(40) Wedding", event.DisplayTitle(5784))
	assert.Equal(t, "Wedding", event.DisplayTitle(5740), "years before the anchor never show a negative ordinal")
}

func TestUpdateDetails(t *testing.T) {
	event, err := NewEvent(uuid.New(), "Old", "old desc", validAnchor())
	require.NoError(t, err)
	event.ClearDomainEvents()

	require.NoError(t, event.UpdateDetails("New", "new desc"))
	assert.Equal(t, "New", event.Title())
	assert.Equal(t, "new desc", event.Description())

	events := event.DomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "anniversary.event.updated", events[0].RoutingKey())

	assert.ErrorIs(t, event.UpdateDetails("", ""), ErrEmptyTitle)
}

func TestAdvanceLastSyncedYearIsMonotonic(t *testing.T) {
	event, err := NewEvent(uuid.New(), "Wedding", "", validAnchor())
	require.NoError(t, err)

	event.AdvanceLastSyncedYear(5780)
	assert.Equal(t, 5780, event.LastSyncedYear())

	event.AdvanceLastSyncedYear(5754)
	assert.Equal(t, 5780, event.LastSyncedYear(), "high-water mark never regresses")

	event.AdvanceLastSyncedYear(5790)
	assert.Equal(t, 5790, event.LastSyncedYear())
}

func TestBelongsTo(t *testing.T) {
	owner := uuid.New()
	event, err := NewEvent(owner, "Wedding", "", validAnchor())
	require.NoError(t, err)

	assert.True(t, event.BelongsTo(owner))
	assert.False(t, event.BelongsTo(uuid.New()))
}

func TestNewOccurrence(t *testing.T) {
	eventID := uuid.New()
	date, err := hebdate.ToGregorian(15, 1, 5784)
	require.NoError(t, err)

	occ, err := NewOccurrence(eventID, 5784, date, "ext-abc123")
	require.NoError(t, err)
	assert.Equal(t, eventID, occ.EventID())
	assert.Equal(t, 5784, occ.HebrewYear())
	assert.Equal(t, date, occ.GregorianDate())
	assert.Equal(t, "ext-abc123", occ.ExternalEventID())

	_, err = NewOccurrence(uuid.Nil, 5784, date, "ext")
	assert.ErrorIs(t, err, ErrEmptyEventID)

	_, err = NewOccurrence(eventID, 0, date, "ext")
	assert.ErrorIs(t, err, ErrInvalidHebrewYear)

	_, err = NewOccurrence(eventID, 5784, date, "")
	assert.ErrorIs(t, err, ErrEmptyExternalID)
}
