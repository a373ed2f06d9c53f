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
	calendarDomain "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/lock"
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

// Mid-winter instants safely inside one Hebrew year each.
var (
	during5769 = time.Date(2009, time.January, 15, 12, 0, 0, 0, time.UTC)
	during5783 = time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC)
	during5785 = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
)

func yearsRange(from, to int) []int {
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

type syncerFixture struct {
	events      *mockEventRepo
	occurrences *mockOccurrenceRepo
	bindings    *mockBindingRepo
	provider    *mockProvider
	uow         *mockUnitOfWork
	outboxRepo  *outbox.InMemoryRepository
	locker      *lock.MemoryLocker
	syncer      *ProgressionSyncer
}

func newSyncerFixture(t *testing.T, now time.Time) *syncerFixture {
	t.Helper()

	f := &syncerFixture{
		events:      new(mockEventRepo),
		occurrences: new(mockOccurrenceRepo),
		bindings:    new(mockBindingRepo),
		provider:    new(mockProvider),
		uow:         new(mockUnitOfWork),
		outboxRepo:  outbox.NewInMemoryRepository(),
		locker:      lock.NewMemoryLocker(),
	}

	registry := calendarApp.NewProviderRegistry()
	registry.Register(calendarDomain.ProviderGoogle, f.provider)
	resolver := calendarApp.NewBindingResolver(f.bindings, registry, nil, nil)

	f.syncer = NewProgressionSyncer(
		f.events,
		f.occurrences,
		f.outboxRepo,
		resolver,
		registry,
		NewOccurrenceMaterializer(nil),
		f.locker,
		f.uow,
		nil,
	)
	f.syncer.now = func() time.Time { return now }
	return f
}

func (f *syncerFixture) bindCalendar(t *testing.T, userID uuid.UUID, calendarID string) {
	t.Helper()
	binding, err := calendarDomain.NewCalendarBinding(userID, calendarDomain.ProviderGoogle, calendarID)
	require.NoError(t, err)
	binding.ClearDomainEvents()
	f.bindings.On("FindByUserAndProvider", mock.Anything, userID, calendarDomain.ProviderGoogle).Return(binding, nil)
}

func TestProgressionSyncer_SyncEvent(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, "tx", "transaction")

	t.Run("materializes every missing window year and advances the mark", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil)
		f.bindCalendar(t, event.UserID(), "cal-1")
		f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-1", nil)

		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)

		var savedYears []int
		f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).
			Run(func(args mock.Arguments) {
				savedYears = append(savedYears, args.Get(1).(*domain.Occurrence).HebrewYear())
			}).
			Return(nil)
		f.events.On("Save", txCtx, event).Return(nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, yearsRange(5784, 5795), outcome.YearsSynced)
		assert.Equal(t, yearsRange(5784, 5795), savedYears)
		assert.Empty(t, outcome.FailedYears)
		assert.Equal(t, 5795, event.LastSyncedYear())

		pending, err := f.outboxRepo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "anniversary.occurrences.materialized", pending[0].RoutingKey)

		release, err := f.locker.Acquire(ctx, lock.EventSyncKey(event.ID()), time.Minute)
		require.NoError(t, err, "the sync lock must be free after the run")
		release(ctx)
	})

	t.Run("rerun with full coverage syncs nothing and catches up the mark", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return(yearsRange(5784, 5795), nil)
		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.events.On("Save", txCtx, event).Return(nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Empty(t, outcome.YearsSynced)
		assert.Equal(t, 5795, event.LastSyncedYear())
		f.provider.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.bindings.AssertNotCalled(t, "FindByUserAndProvider", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rerun with a current mark does not touch storage", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})
		event.AdvanceLastSyncedYear(5795)

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return(yearsRange(5784, 5795), nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Empty(t, outcome.YearsSynced)
		f.uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("fills only the gap years", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Bat mitzvah anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return(yearsRange(5784, 5790), nil)
		f.bindCalendar(t, event.UserID(), "cal-1")
		f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-gap", nil)

		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).Return(nil)
		f.events.On("Save", txCtx, event).Return(nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, yearsRange(5791, 5795), outcome.YearsSynced)
		f.provider.AssertNumberOfCalls(t, "InsertEvent", 5)
	})

	t.Run("returns conflict when another sync holds the lock", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		_, err := f.locker.Acquire(ctx, lock.EventSyncKey(event.ID()), time.Minute)
		require.NoError(t, err)

		_, err = f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		f.occurrences.AssertNotCalled(t, "YearsByEventID", mock.Anything, mock.Anything)
	})

	t.Run("failed years are reported and the mark still advances", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil)
		f.bindCalendar(t, event.UserID(), "cal-1")
		for _, year := range []int{5786, 5790} {
			f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.MatchedBy(matchTitle(event, year))).
				Return("", errors.New("rate limited")).Once()
		}
		f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-ok", nil)

		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).Return(nil)
		f.events.On("Save", txCtx, event).Return(nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Len(t, outcome.YearsSynced, 10)
		assert.NotContains(t, outcome.YearsSynced, 5786)
		assert.NotContains(t, outcome.YearsSynced, 5790)
		assert.Equal(t, []int{5786, 5790}, outcome.FailedYears)
		require.Len(t, outcome.Errors, 2)
		assert.Contains(t, outcome.Errors[0], "year 5786")
		assert.Equal(t, 5795, event.LastSyncedYear(), "failed years must not hold the mark back; the rows keep them eligible")
	})

	t.Run("duplicate occurrence rows are skipped, not fatal", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil)
		f.bindCalendar(t, event.UserID(), "cal-1")
		f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-1", nil)

		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.occurrences.On("Save", txCtx, mock.MatchedBy(func(o *domain.Occurrence) bool { return o.HebrewYear() == 5784 })).
			Return(domain.ErrDuplicateOccurrence).Once()
		f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).Return(nil)
		f.events.On("Save", txCtx, event).Return(nil)

		outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.NoError(t, err)
		assert.Equal(t, yearsRange(5785, 5795), outcome.YearsSynced)
	})

	t.Run("a failing transaction surfaces as internal", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil)
		f.bindCalendar(t, event.UserID(), "cal-1")
		f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-1", nil)

		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Rollback", txCtx).Return(nil)
		f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).
			Return(errors.New("disk full"))

		_, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
		f.uow.AssertCalled(t, "Rollback", txCtx)
	})

	t.Run("binding resolution failures abort before any insert", func(t *testing.T) {
		f := newSyncerFixture(t, during5785)
		event := newTestEvent(t, "Wedding anniversary", "", hebdate.Date{Day: 15, Month: 1, Year: 5784})

		f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil)
		f.bindings.On("FindByUserAndProvider", mock.Anything, event.UserID(), calendarDomain.ProviderGoogle).
			Return(nil, errors.New("db down"))

		_, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)

		require.Error(t, err)
		assert.Equal(t, apperror.KindCalendar, apperror.KindOf(err))
		f.provider.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestProgressionSyncer_WindowProgression walks one event through the years:
// created while its anchor is still in the future, then synced again after
// the calendar has moved on.
func TestProgressionSyncer_WindowProgression(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, "tx", "transaction")

	f := newSyncerFixture(t, during5769)
	event := newTestEvent(t, "Saba's yahrzeit", "", hebdate.Date{Day: 1, Month: 7, Year: 5770})

	f.bindCalendar(t, event.UserID(), "cal-1")
	f.provider.On("InsertEvent", ctx, event.UserID(), "cal-1", mock.Anything).Return("ext-1", nil)
	f.uow.On("Begin", ctx).Return(txCtx, nil)
	f.uow.On("Commit", txCtx).Return(nil)
	f.events.On("Save", txCtx, event).Return(nil)

	var rows []int
	f.occurrences.On("Save", txCtx, mock.AnythingOfType("*domain.Occurrence")).
		Run(func(args mock.Arguments) {
			rows = append(rows, args.Get(1).(*domain.Occurrence).HebrewYear())
		}).
		Return(nil)

	// Created during 5769, one year before the anchor: the window starts at
	// the anchor and runs ten years out.
	f.occurrences.On("YearsByEventID", ctx, event.ID()).Return([]int{}, nil).Once()

	outcome, err := f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, yearsRange(5770, 5780), outcome.YearsSynced)
	assert.Equal(t, 5780, event.LastSyncedYear())
	require.Len(t, rows, 11)

	// Years later the clock reads 5783. Only the thirteen years the rows do
	// not cover yet are materialized.
	f.syncer.now = func() time.Time { return during5783 }
	f.occurrences.On("YearsByEventID", ctx, event.ID()).Return(append([]int(nil), rows...), nil).Once()

	outcome, err = f.syncer.SyncEvent(ctx, event, calendarDomain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, yearsRange(5781, 5793), outcome.YearsSynced)
	assert.Equal(t, 5793, event.LastSyncedYear())
	assert.Len(t, rows, 24)
}
