package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/application/services"
	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/outbox"
)

// mockEventRepo is a mock implementation of domain.EventRepository.
type mockEventRepo struct {
	mock.Mock
}

func (m *mockEventRepo) Save(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *mockEventRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Event, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

func (m *mockEventRepo) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockOccurrenceRepo is a mock implementation of domain.OccurrenceRepository.
type mockOccurrenceRepo struct {
	mock.Mock
}

func (m *mockOccurrenceRepo) Save(ctx context.Context, occurrence *domain.Occurrence) error {
	args := m.Called(ctx, occurrence)
	return args.Error(0)
}

func (m *mockOccurrenceRepo) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.Occurrence, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Occurrence), args.Error(1)
}

func (m *mockOccurrenceRepo) YearsByEventID(ctx context.Context, eventID uuid.UUID) ([]int, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *mockOccurrenceRepo) DeleteByEventID(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// mockSyncRunRepo is a mock implementation of domain.SyncRunRepository.
type mockSyncRunRepo struct {
	mock.Mock
}

func (m *mockSyncRunRepo) Save(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockSyncRunRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.SyncRun, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncRun), args.Error(1)
}

// mockEventSyncer is a mock implementation of EventSyncer.
type mockEventSyncer struct {
	mock.Mock
}

func (m *mockEventSyncer) SyncEvent(ctx context.Context, event *domain.Event, providerType calendarDomain.ProviderType) (*services.SyncOutcome, error) {
	args := m.Called(ctx, event, providerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncOutcome), args.Error(1)
}

// mockUnitOfWork is a mock implementation of application.UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockBindingRepo is a mock implementation of the calendar binding repository.
type mockBindingRepo struct {
	mock.Mock
}

func (m *mockBindingRepo) Save(ctx context.Context, binding *calendarDomain.CalendarBinding) error {
	args := m.Called(ctx, binding)
	return args.Error(0)
}

func (m *mockBindingRepo) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*calendarDomain.CalendarBinding, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendarDomain.CalendarBinding), args.Error(1)
}

func (m *mockBindingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

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

func newStoredEvent(t *testing.T, userID uuid.UUID, title, description string, anchor hebdate.Date) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(userID, title, description, anchor)
	require.NoError(t, err)
	event.ClearDomainEvents()
	return event
}

func makeOccurrence(t *testing.T, eventID uuid.UUID, year int, externalID string) *domain.Occurrence {
	t.Helper()
	date, err := hebdate.ToGregorian(15, 1, year)
	require.NoError(t, err)
	occ, err := domain.NewOccurrence(eventID, year, date, externalID)
	require.NoError(t, err)
	return occ
}

func yearsRange(from, to int) []int {
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

func TestCreateEventHandler_Handle(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, "tx", "transaction")
	userID := uuid.New()

	validCmd := CreateEventCommand{
		UserID:      userID,
		Title:       "Grandma's yahrzeit",
		Description: "Light a candle",
		AnchorDay:   15,
		AnchorMonth: 1,
		AnchorYear:  5784,
	}

	t.Run("creates the event and runs the initial window sync", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		syncer := new(mockEventSyncer)
		uow := new(mockUnitOfWork)
		outboxRepo := outbox.NewInMemoryRepository()
		handler := NewCreateEventHandler(eventRepo, outboxRepo, uow, syncer, nil)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)

		var saved *domain.Event
		eventRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Event")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Event) }).
			Return(nil)
		syncer.On("SyncEvent", ctx, mock.AnythingOfType("*domain.Event"), calendarDomain.ProviderGoogle).
			Return(&services.SyncOutcome{YearsSynced: yearsRange(5784, 5795)}, nil)

		result, err := handler.Handle(ctx, validCmd)

		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, saved.ID(), result.EventID)
		assert.Equal(t, "Grandma's yahrzeit", saved.Title())
		assert.Equal(t, hebdate.Date{Day: 15, Month: 1, Year: 5784}, saved.Anchor())
		assert.Equal(t, yearsRange(5784, 5795), result.YearsSynced)
		assert.Empty(t, result.SyncWarning)

		pending, err := outboxRepo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "anniversary.event.created", pending[0].RoutingKey)
	})

	t.Run("rejects an anchor day that does not exist", func(t *testing.T) {
		handler := NewCreateEventHandler(new(mockEventRepo), outbox.NewInMemoryRepository(), new(mockUnitOfWork), new(mockEventSyncer), nil)

		cmd := validCmd
		cmd.AnchorDay = 31

		_, err := handler.Handle(ctx, cmd)

		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("rejects an empty title", func(t *testing.T) {
		handler := NewCreateEventHandler(new(mockEventRepo), outbox.NewInMemoryRepository(), new(mockUnitOfWork), new(mockEventSyncer), nil)

		cmd := validCmd
		cmd.Title = "   "

		_, err := handler.Handle(ctx, cmd)

		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("rejects an unknown provider", func(t *testing.T) {
		handler := NewCreateEventHandler(new(mockEventRepo), outbox.NewInMemoryRepository(), new(mockUnitOfWork), new(mockEventSyncer), nil)

		cmd := validCmd
		cmd.Provider = "outlook"

		_, err := handler.Handle(ctx, cmd)

		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("a failed initial sync degrades to a warning", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		syncer := new(mockEventSyncer)
		uow := new(mockUnitOfWork)
		handler := NewCreateEventHandler(eventRepo, outbox.NewInMemoryRepository(), uow, syncer, nil)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		eventRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Event")).Return(nil)
		syncer.On("SyncEvent", ctx, mock.AnythingOfType("*domain.Event"), calendarDomain.ProviderGoogle).
			Return(nil, apperror.New(apperror.KindCalendar, "failed to list calendars"))

		result, err := handler.Handle(ctx, validCmd)

		require.NoError(t, err, "the event row is durable; the sync failure must not fail the command")
		assert.Equal(t, "failed to list calendars", result.SyncWarning)
		assert.Empty(t, result.YearsSynced)
	})

	t.Run("a failed save aborts creation", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		syncer := new(mockEventSyncer)
		uow := new(mockUnitOfWork)
		handler := NewCreateEventHandler(eventRepo, outbox.NewInMemoryRepository(), uow, syncer, nil)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Event")).
			Return(errors.New("connection reset"))

		_, err := handler.Handle(ctx, validCmd)

		require.Error(t, err)
		syncer.AssertNotCalled(t, "SyncEvent", mock.Anything, mock.Anything, mock.Anything)
		uow.AssertCalled(t, "Rollback", txCtx)
	})
}

// Mid-winter instant safely inside Hebrew year 5785.
var during5785 = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
