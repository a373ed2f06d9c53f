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

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
	sharedDomain "github.com/raziel-gershoni/calbrew-sub001/internal/shared/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/infrastructure/migrations"
)

func setupBindingDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.UpSQLite(context.Background(), db, nil))
	return db
}

func newTestBinding(t *testing.T) *domain.CalendarBinding {
	t.Helper()

	binding, err := domain.NewCalendarBinding(uuid.New(), domain.ProviderGoogle, "cal-primary")
	require.NoError(t, err)
	return binding
}

func TestSQLiteCalendarBindingRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	binding := newTestBinding(t)
	require.NoError(t, repo.Save(ctx, binding))
	assert.Equal(t, 1, binding.Version())

	found, err := repo.FindByUserAndProvider(ctx, binding.UserID(), domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, binding.ID(), found.ID())
	assert.Equal(t, binding.UserID(), found.UserID())
	assert.Equal(t, domain.ProviderGoogle, found.Provider())
	assert.Equal(t, "cal-primary", found.CalendarID())
	assert.Equal(t, 1, found.Version())
	assert.WithinDuration(t, binding.ResolvedAt(), found.ResolvedAt(), time.Second)
}

func TestSQLiteCalendarBindingRepository_FindMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	found, err := repo.FindByUserAndProvider(ctx, uuid.New(), domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteCalendarBindingRepository_RebindPersists(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	binding := newTestBinding(t)
	require.NoError(t, repo.Save(ctx, binding))

	require.NoError(t, binding.Rebind("cal-replacement"))
	require.NoError(t, repo.Save(ctx, binding))
	assert.Equal(t, 2, binding.Version())

	found, err := repo.FindByUserAndProvider(ctx, binding.UserID(), domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "cal-replacement", found.CalendarID())
	assert.Equal(t, 2, found.Version())
}

func TestSQLiteCalendarBindingRepository_StaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	binding := newTestBinding(t)
	require.NoError(t, repo.Save(ctx, binding))

	first, err := repo.FindByUserAndProvider(ctx, binding.UserID(), domain.ProviderGoogle)
	require.NoError(t, err)
	second, err := repo.FindByUserAndProvider(ctx, binding.UserID(), domain.ProviderGoogle)
	require.NoError(t, err)

	require.NoError(t, first.Rebind("cal-a"))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.Rebind("cal-b"))
	err = repo.Save(ctx, second)
	require.ErrorIs(t, err, sharedDomain.ErrConcurrentModification)
}

func TestSQLiteCalendarBindingRepository_OneBindingPerProvider(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	userID := uuid.New()
	google, err := domain.NewCalendarBinding(userID, domain.ProviderGoogle, "g-cal")
	require.NoError(t, err)
	caldav, err := domain.NewCalendarBinding(userID, domain.ProviderCalDAV, "/calendars/user/cal/")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, google))
	require.NoError(t, repo.Save(ctx, caldav))

	foundGoogle, err := repo.FindByUserAndProvider(ctx, userID, domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, foundGoogle)
	assert.Equal(t, "g-cal", foundGoogle.CalendarID())

	foundCalDAV, err := repo.FindByUserAndProvider(ctx, userID, domain.ProviderCalDAV)
	require.NoError(t, err)
	require.NotNil(t, foundCalDAV)
	assert.Equal(t, "/calendars/user/cal/", foundCalDAV.CalendarID())
}

func TestSQLiteCalendarBindingRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCalendarBindingRepository(setupBindingDB(t))

	binding := newTestBinding(t)
	require.NoError(t, repo.Save(ctx, binding))
	require.NoError(t, repo.Delete(ctx, binding.ID()))

	found, err := repo.FindByUserAndProvider(ctx, binding.UserID(), domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, found)
}
