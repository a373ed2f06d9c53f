package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// mockBindingRepo is a mock implementation of domain.CalendarBindingRepository.
type mockBindingRepo struct {
	mock.Mock
}

func (m *mockBindingRepo) Save(ctx context.Context, binding *domain.CalendarBinding) error {
	args := m.Called(ctx, binding)
	return args.Error(0)
}

func (m *mockBindingRepo) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*domain.CalendarBinding, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalendarBinding), args.Error(1)
}

func (m *mockBindingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockCalendarProvider is a mock implementation of Provider.
type mockCalendarProvider struct {
	mock.Mock
}

func (m *mockCalendarProvider) ListCalendars(ctx context.Context, userID uuid.UUID) ([]Calendar, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Calendar), args.Error(1)
}

func (m *mockCalendarProvider) CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	args := m.Called(ctx, userID, name)
	return args.String(0), args.Error(1)
}

func (m *mockCalendarProvider) CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error) {
	args := m.Called(ctx, userID, calendarID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCalendarProvider) InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload EventPayload) (string, error) {
	args := m.Called(ctx, userID, calendarID, payload)
	return args.String(0), args.Error(1)
}

func (m *mockCalendarProvider) PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload EventPayload) error {
	args := m.Called(ctx, userID, calendarID, eventID, payload)
	return args.Error(0)
}

func (m *mockCalendarProvider) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	args := m.Called(ctx, userID, calendarID, eventID)
	return args.Error(0)
}

func newTestRegistry(t *testing.T, provider Provider) *ProviderRegistry {
	t.Helper()
	registry := NewProviderRegistry()
	registry.Register(domain.ProviderGoogle, provider)
	return registry
}

func existingBinding(t *testing.T, userID uuid.UUID, calendarID string) *domain.CalendarBinding {
	t.Helper()
	binding, err := domain.NewCalendarBinding(userID, domain.ProviderGoogle, calendarID)
	require.NoError(t, err)
	binding.ClearDomainEvents()
	return binding
}

func TestBindingResolver_Resolve(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	t.Run("returns cached binding without remote calls", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).
			Return(existingBinding(t, userID, "cal-cached"), nil)

		id, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "cal-cached", id)
		bindings.AssertExpectations(t)
		provider.AssertNotCalled(t, "ListCalendars", mock.Anything, mock.Anything)
	})

	t.Run("finds the well-known calendar among existing ones", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		outboxRepo := outbox.NewInMemoryRepository()
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), outboxRepo, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)
		provider.On("ListCalendars", ctx, userID).Return([]Calendar{
			{ID: "cal-personal", Name: "Personal", Primary: true},
			{ID: "cal-hebrew", Name: WellKnownCalendarName},
		}, nil)
		bindings.On("Save", ctx, mock.AnythingOfType("*domain.CalendarBinding")).Return(nil)

		id, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "cal-hebrew", id)
		provider.AssertNotCalled(t, "CreateCalendar", mock.Anything, mock.Anything, mock.Anything)

		pending, err := outboxRepo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, domain.RoutingKeyCalendarBound, pending[0].RoutingKey)
	})

	t.Run("creates the calendar when absent", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)
		provider.On("ListCalendars", ctx, userID).Return([]Calendar{
			{ID: "cal-personal", Name: "Personal", Primary: true},
		}, nil)
		provider.On("CreateCalendar", ctx, userID, WellKnownCalendarName).Return("cal-new", nil)

		var saved *domain.CalendarBinding
		bindings.On("Save", ctx, mock.AnythingOfType("*domain.CalendarBinding")).
			Run(func(args mock.Arguments) {
				saved = args.Get(1).(*domain.CalendarBinding)
			}).
			Return(nil)

		id, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "cal-new", id)
		require.NotNil(t, saved)
		assert.Equal(t, "cal-new", saved.CalendarID())
		assert.Equal(t, userID, saved.UserID())
		provider.AssertExpectations(t)
	})

	t.Run("wraps list failures as calendar errors", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)
		provider.On("ListCalendars", ctx, userID).Return(nil, errors.New("network down"))

		_, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindCalendar, apperror.KindOf(err))
	})

	t.Run("wraps create failures as calendar errors", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)
		provider.On("ListCalendars", ctx, userID).Return([]Calendar{}, nil)
		provider.On("CreateCalendar", ctx, userID, WellKnownCalendarName).
			Return("", errors.New("quota exceeded"))

		_, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindCalendar, apperror.KindOf(err))
	})

	t.Run("fails for an unregistered provider", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		resolver := NewBindingResolver(bindings, NewProviderRegistry(), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)

		_, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindCalendar, apperror.KindOf(err))
	})
}

func TestBindingResolver_ForceResolve(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	t.Run("rebinds an existing binding to the replacement calendar", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		outboxRepo := outbox.NewInMemoryRepository()
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), outboxRepo, nil)

		stale := existingBinding(t, userID, "cal-deleted")
		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(stale, nil)
		provider.On("ListCalendars", ctx, userID).Return([]Calendar{}, nil)
		provider.On("CreateCalendar", ctx, userID, WellKnownCalendarName).Return("cal-fresh", nil)
		bindings.On("Save", ctx, stale).Return(nil)

		id, err := resolver.ForceResolve(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "cal-fresh", id)
		assert.Equal(t, "cal-fresh", stale.CalendarID())

		pending, err := outboxRepo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, domain.RoutingKeyCalendarRebound, pending[0].RoutingKey)
	})

	t.Run("reuses a surviving well-known calendar", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		stale := existingBinding(t, userID, "cal-deleted")
		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(stale, nil)
		provider.On("ListCalendars", ctx, userID).Return([]Calendar{
			{ID: "cal-recreated", Name: WellKnownCalendarName},
		}, nil)
		bindings.On("Save", ctx, stale).Return(nil)

		id, err := resolver.ForceResolve(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, "cal-recreated", id)
		provider.AssertNotCalled(t, "CreateCalendar", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBindingResolver_Lookup(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	t.Run("returns the persisted binding", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).
			Return(existingBinding(t, userID, "cal-bound"), nil)

		id, found, err := resolver.Lookup(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "cal-bound", id)
		provider.AssertNotCalled(t, "ListCalendars", mock.Anything, mock.Anything)
	})

	t.Run("reports absence without resolving", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil)

		_, found, err := resolver.Lookup(ctx, userID, domain.ProviderGoogle)

		require.NoError(t, err)
		assert.False(t, found)
		provider.AssertNotCalled(t, "ListCalendars", mock.Anything, mock.Anything)
		provider.AssertNotCalled(t, "CreateCalendar", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wraps repository failures", func(t *testing.T) {
		bindings := new(mockBindingRepo)
		resolver := NewBindingResolver(bindings, NewProviderRegistry(), nil, nil)

		bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).
			Return(nil, errors.New("connection refused"))

		_, _, err := resolver.Lookup(ctx, userID, domain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindCalendar, apperror.KindOf(err))
	})
}

func TestBindingResolver_VerifyExists(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	t.Run("reports remote answer", func(t *testing.T) {
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(new(mockBindingRepo), newTestRegistry(t, provider), nil, nil)

		provider.On("CalendarExists", ctx, userID, "cal-1").Return(true, nil).Once()
		assert.True(t, resolver.VerifyExists(ctx, userID, domain.ProviderGoogle, "cal-1"))

		provider.On("CalendarExists", ctx, userID, "cal-1").Return(false, nil).Once()
		assert.False(t, resolver.VerifyExists(ctx, userID, domain.ProviderGoogle, "cal-1"))
	})

	t.Run("assumes existence when the probe fails", func(t *testing.T) {
		provider := new(mockCalendarProvider)
		resolver := NewBindingResolver(new(mockBindingRepo), newTestRegistry(t, provider), nil, nil)

		provider.On("CalendarExists", ctx, userID, "cal-1").
			Return(false, errors.New("transient"))

		assert.True(t, resolver.VerifyExists(ctx, userID, domain.ProviderGoogle, "cal-1"))
	})

	t.Run("reports false for an unregistered provider", func(t *testing.T) {
		resolver := NewBindingResolver(new(mockBindingRepo), NewProviderRegistry(), nil, nil)

		assert.False(t, resolver.VerifyExists(ctx, userID, domain.ProviderCalDAV, "cal-1"))
	})
}

func TestBindingResolver_SecondResolveUsesPersistedBinding(t *testing.T) {
	userID := uuid.New()
	ctx := context.Background()

	bindings := new(mockBindingRepo)
	provider := new(mockCalendarProvider)
	resolver := NewBindingResolver(bindings, newTestRegistry(t, provider), nil, nil)

	binding := existingBinding(t, userID, "cal-1")
	bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(nil, nil).Twice()
	bindings.On("FindByUserAndProvider", ctx, userID, domain.ProviderGoogle).Return(binding, nil)
	provider.On("ListCalendars", ctx, userID).Return([]Calendar{
		{ID: "cal-1", Name: WellKnownCalendarName},
	}, nil).Once()
	bindings.On("Save", ctx, mock.AnythingOfType("*domain.CalendarBinding")).Return(nil)

	first, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, userID, domain.ProviderGoogle)
	require.NoError(t, err)

	assert.Equal(t, "cal-1", first)
	assert.Equal(t, first, second)
	provider.AssertExpectations(t)
}
