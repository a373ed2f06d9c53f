package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
)

func TestSQLiteSyncRunRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSyncRunRepository(setupAnniversariesDB(t))

	userID := uuid.New()
	run := domain.NewSyncRun(userID, domain.TriggerWorker, 3, 2, 1, 1,
		[]int{5786, 5787}, []int{5788}, []string{"year 5788: rate limited"}, 1500*time.Millisecond)
	require.NoError(t, repo.Save(ctx, run))

	runs, err := repo.ListByUserID(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	found := runs[0]
	assert.Equal(t, run.ID(), found.ID())
	assert.Equal(t, userID, found.UserID())
	assert.Equal(t, domain.TriggerWorker, found.Trigger())
	assert.Equal(t, 3, found.Processed())
	assert.Equal(t, 2, found.NeedingUpdate())
	assert.Equal(t, 1, found.Updated())
	assert.Equal(t, 1, found.Failed())
	assert.Equal(t, []int{5786, 5787}, found.SyncedYears())
	assert.Equal(t, []int{5788}, found.FailedYears())
	assert.Equal(t, []string{"year 5788: rate limited"}, found.Errors())
	assert.Equal(t, 1500*time.Millisecond, found.Duration())
}

func TestSQLiteSyncRunRepository_EmptyListsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSyncRunRepository(setupAnniversariesDB(t))

	userID := uuid.New()
	run := domain.NewSyncRun(userID, domain.TriggerAPI, 0, 0, 0, 0, nil, nil, nil, 0)
	require.NoError(t, repo.Save(ctx, run))

	runs, err := repo.ListByUserID(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].SyncedYears())
	assert.Empty(t, runs[0].FailedYears())
	assert.Empty(t, runs[0].Errors())
	assert.Zero(t, runs[0].Duration())
}

func TestSQLiteSyncRunRepository_ListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSyncRunRepository(setupAnniversariesDB(t))

	userID := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := domain.NewSyncRun(userID, domain.TriggerCLI, i, 0, 0, 0, nil, nil, nil, 0)
		require.NoError(t, repo.Save(ctx, run))
		ids = append(ids, run.ID())
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := repo.ListByUserID(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID())
	assert.Equal(t, ids[1], runs[1].ID())
}

func TestSQLiteSyncRunRepository_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSyncRunRepository(setupAnniversariesDB(t))

	userID := uuid.New()
	require.NoError(t, repo.Save(ctx, domain.NewSyncRun(userID, domain.TriggerAPI, 1, 0, 0, 0, nil, nil, nil, 0)))
	require.NoError(t, repo.Save(ctx, domain.NewSyncRun(uuid.New(), domain.TriggerAPI, 1, 0, 0, 0, nil, nil, nil, 0)))

	runs, err := repo.ListByUserID(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, userID, runs[0].UserID())
}
