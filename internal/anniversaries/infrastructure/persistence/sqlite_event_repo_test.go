package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/migrations"
)

func setupAnniversariesDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.UpSQLite(context.Background(), db, nil))
	return db
}

func newTestEvent(t *testing.T, userID uuid.UUID) *domain.Event {
	t.Helper()

	event, err := domain.NewEvent(userID, "Wedding anniversary", "Light a candle", hebdate.Date{Day: 15, Month: 1, Year: 5784})
	require.NoError(t, err)
	event.ClearDomainEvents()
	return event
}

func newTestOccurrence(t *testing.T, eventID uuid.UUID, year int) *domain.Occurrence {
	t.Helper()

	date, err := hebdate.ToGregorian(15, 1, year)
	require.NoError(t, err)
	occurrence, err := domain.NewOccurrence(eventID, year, date, "ext-"+uuid.NewString()[:8])
	require.NoError(t, err)
	return occurrence
}

func TestSQLiteEventRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	event := newTestEvent(t, uuid.New())
	require.NoError(t, repo.Save(ctx, event))
	assert.Equal(t, 1, event.Version())

	found, err := repo.FindByID(ctx, event.ID())
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, event.ID(), found.ID())
	assert.Equal(t, event.UserID(), found.UserID())
	assert.Equal(t, "Wedding anniversary", found.Title())
	assert.Equal(t, "Light a candle", found.Description())
	assert.Equal(t, hebdate.Date{Day: 15, Month: 1, Year: 5784}, found.Anchor())
	assert.Equal(t, domain.RecurrenceYearly, found.Recurrence())
	assert.Zero(t, found.LastSyncedYear())
	assert.Equal(t, 1, found.Version())
	assert.WithinDuration(t, event.CreatedAt(), found.CreatedAt(), time.Second)
}

func TestSQLiteEventRepository_FindMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	found, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteEventRepository_UpdatePersists(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	event := newTestEvent(t, uuid.New())
	require.NoError(t, repo.Save(ctx, event))

	require.NoError(t, event.UpdateDetails("Renamed", "New notes"))
	event.AdvanceLastSyncedYear(5795)
	event.ClearDomainEvents()
	require.NoError(t, repo.Save(ctx, event))
	assert.Equal(t, 2, event.Version())

	found, err := repo.FindByID(ctx, event.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Renamed", found.Title())
	assert.Equal(t, "New notes", found.Description())
	assert.Equal(t, 5795, found.LastSyncedYear())
	assert.Equal(t, hebdate.Date{Day: 15, Month: 1, Year: 5784}, found.Anchor())
}

func TestSQLiteEventRepository_StaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	event := newTestEvent(t, uuid.New())
	require.NoError(t, repo.Save(ctx, event))

	first, err := repo.FindByID(ctx, event.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, event.ID())
	require.NoError(t, err)

	require.NoError(t, first.UpdateDetails("First writer", ""))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.UpdateDetails("Second writer", ""))
	err = repo.Save(ctx, second)
	require.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)
}

func TestSQLiteEventRepository_FindByUserID(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	userID := uuid.New()
	first := newTestEvent(t, userID)
	require.NoError(t, repo.Save(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := newTestEvent(t, userID)
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, newTestEvent(t, uuid.New())))

	events, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID(), events[0].ID())
	assert.Equal(t, second.ID(), events[1].ID())
}

func TestSQLiteEventRepository_ListUserIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(setupAnniversariesDB(t))

	userIDs, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, userIDs)

	userID := uuid.New()
	require.NoError(t, repo.Save(ctx, newTestEvent(t, userID)))
	require.NoError(t, repo.Save(ctx, newTestEvent(t, userID)))
	other := uuid.New()
	require.NoError(t, repo.Save(ctx, newTestEvent(t, other)))

	userIDs, err = repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, userIDs, 2)
	assert.Contains(t, userIDs, userID)
	assert.Contains(t, userIDs, other)
}

func TestSQLiteEventRepository_DeleteCascadesToOccurrences(t *testing.T) {
	ctx := context.Background()
	db := setupAnniversariesDB(t)
	events := NewSQLiteEventRepository(db)
	occurrences := NewSQLiteOccurrenceRepository(db)

	event := newTestEvent(t, uuid.New())
	require.NoError(t, events.Save(ctx, event))
	require.NoError(t, occurrences.Save(ctx, newTestOccurrence(t, event.ID(), 5784)))

	require.NoError(t, events.Delete(ctx, event.ID()))

	found, err := events.FindByID(ctx, event.ID())
	require.NoError(t, err)
	assert.Nil(t, found)

	years, err := occurrences.YearsByEventID(ctx, event.ID())
	require.NoError(t, err)
	assert.Empty(t, years)
}
