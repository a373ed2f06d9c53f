package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

// mockProvider is a mock implementation of the calendar provider port.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendarApp.Calendar, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]calendarApp.Calendar), args.Error(1)
}

func (m *mockProvider) CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	args := m.Called(ctx, userID, name)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error) {
	args := m.Called(ctx, userID, calendarID)
	return args.Bool(0), args.Error(1)
}

func (m *mockProvider) InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload calendarApp.EventPayload) (string, error) {
	args := m.Called(ctx, userID, calendarID, payload)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload calendarApp.EventPayload) error {
	args := m.Called(ctx, userID, calendarID, eventID, payload)
	return args.Error(0)
}

func (m *mockProvider) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	args := m.Called(ctx, userID, calendarID, eventID)
	return args.Error(0)
}

func newTestEvent(t *testing.T, title, description string, anchor hebdate.Date) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(uuid.New(), title, description, anchor)
	require.NoError(t, err)
	event.ClearDomainEvents()
	return event
}

// matchTitle matches the insert payload for one target year by its rendered
// title, which is unique per year.
func matchTitle(event *domain.Event, year int) func(calendarApp.EventPayload) bool {
	title := event.DisplayTitle(year)
	return func(p calendarApp.EventPayload) bool { return p.Title == title }
}

func TestOccurrenceMaterializer_PayloadForYear(t *testing.T) {
	materializer := NewOccurrenceMaterializer(nil)

	t.Run("anchor year keeps the bare title", func(t *testing.T) {
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		payload, err := materializer.PayloadForYear(event, 5784)

		require.NoError(t, err)
		assert.Equal(t, "Wedding anniversary", payload.Title)
		assert.Equal(t, "15 Nisan 5784", payload.Description)
		assert.Equal(t, time.Date(2024, time.April, 23, 0, 0, 0, 0, time.UTC), payload.Date)
		assert.Equal(t, event.ID().String(), payload.SourceEventID)
	})

	t.Run("later years carry the anniversary ordinal", func(t *testing.T) {
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		payload, err := materializer.PayloadForYear(event, 5789)

		require.NoError(t, err)
		assert.Equal(t, "(5) Wedding anniversary", payload.Title)
	})

	t.Run("event description is appended after the hebrew date", func(t *testing.T) {
		event := newTestEvent(t, "Saba's yahrzeit", "Light a candle at sunset", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		payload, err := materializer.PayloadForYear(event, 5785)

		require.NoError(t, err)
		assert.Equal(t, "15 Nisan 5785\n\nLight a candle at sunset", payload.Description)
	})

	t.Run("adar II anchors fall back to adar in common years", func(t *testing.T) {
		event := newTestEvent(t, "Purim seuda", "", hebdate.Date{Day: 14, Month: 13, Year: 5784})

		payload, err := materializer.PayloadForYear(event, 5785)

		require.NoError(t, err)
		assert.Equal(t, "14 Adar 5785", payload.Description)
		assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), payload.Date)
	})
}

func TestOccurrenceMaterializer_Materialize(t *testing.T) {
	ctx := context.Background()
	materializer := NewOccurrenceMaterializer(nil)

	t.Run("creates one remote entry per year", func(t *testing.T) {
		event := newTestEvent(t, "Aliyah day", "", hebdate.Date{Day: 1, Month: 7, Year: 5784})
		provider := new(mockProvider)
		provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.MatchedBy(matchTitle(event, 5784))).
			Return("ext-5784", nil).Once()
		provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.MatchedBy(matchTitle(event, 5785))).
			Return("ext-5785", nil).Once()

		result := materializer.Materialize(ctx, provider, event, []int{5784, 5785}, "cal-1")

		require.Len(t, result.Created, 2)
		assert.Empty(t, result.FailedYears)
		assert.Equal(t, 5784, result.Created[0].Year)
		assert.Equal(t, "ext-5784", result.Created[0].ExternalEventID)
		assert.Equal(t, time.Date(2023, time.September, 16, 0, 0, 0, 0, time.UTC), result.Created[0].GregorianDate)
		assert.Equal(t, 5785, result.Created[1].Year)
		assert.Equal(t, "ext-5785", result.Created[1].ExternalEventID)
		provider.AssertExpectations(t)
	})

	t.Run("a failing year is recorded and the batch continues", func(t *testing.T) {
		event := newTestEvent(t, "Bar mitzvah anniversary", "", hebdate.Date{Day: 5, Month: 3, Year: 5773})
		provider := new(mockProvider)

		failing := map[int]bool{5775: true, 5780: true, 5785: true}
		for year := range failing {
			provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.MatchedBy(matchTitle(event, year))).
				Return("", errors.New("backend unavailable")).Once()
		}
		provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-ok", nil)

		years := domain.SyncWindow{Start: 5773, End: 5793}.Years()
		result := materializer.Materialize(ctx, provider, event, years, "cal-1")

		assert.Len(t, result.Created, 18)
		assert.ElementsMatch(t, []int{5775, 5780, 5785}, result.FailedYears)
		require.Len(t, result.Errors, 3)
		for _, rec := range result.Created {
			assert.False(t, failing[rec.Year], "year %d failed remotely but was recorded as created", rec.Year)
		}
	})

	t.Run("a year that cannot convert fails without a provider call", func(t *testing.T) {
		event := newTestEvent(t, "Chuppah", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})
		provider := new(mockProvider)

		result := materializer.Materialize(ctx, provider, event, []int{0}, "cal-1")

		assert.Empty(t, result.Created)
		assert.Equal(t, []int{0}, result.FailedYears)
		provider.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
