package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raziel-gershoni/calbrew-sub001/internal/anniversaries/domain"
	"github.com/raziel-gershoni/calbrew-sub001/internal/hebdate"
)

func TestListEventsHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("maps events to summaries in repository order", func(t *testing.T) {
		repo := new(mockEventRepo)
		handler := NewListEventsHandler(repo)

		first := createTestEvent(userID, "Wedding anniversary", hebdate.Date{Day: 15, Month: 1, Year: 5784})
		second := createTestEvent(userID, "Purim seuda", hebdate.Date{Day: 14, Month: 13, Year: 5784})
		second.AdvanceLastSyncedYear(5790)
		repo.On("FindByUserID", mock.Anything, userID).Return([]*domain.Event{first, second}, nil)

		result, err := handler.Handle(context.Background(), ListEventsQuery{UserID: userID})

		require.NoError(t, err)
		require.Len(t, result, 2)

		assert.Equal(t, first.ID(), result[0].ID)
		assert.Equal(t, "Wedding anniversary", result[0].Title)
		assert.Equal(t, 15, result[0].AnchorDay)
		assert.Equal(t, 1, result[0].AnchorMonth)
		assert.Equal(t, 5784, result[0].AnchorYear)
		assert.Equal(t, "15 Nisan 5784", result[0].HebrewDate)
		assert.Equal(t, "yearly", result[0].Recurrence)
		assert.Zero(t, result[0].LastSyncedYear)

		assert.Equal(t, "14 Adar II 5784", result[1].HebrewDate)
		assert.Equal(t, 5790, result[1].LastSyncedYear)
	})

	t.Run("a user without events gets an empty list", func(t *testing.T) {
		repo := new(mockEventRepo)
		handler := NewListEventsHandler(repo)

		repo.On("FindByUserID", mock.Anything, userID).Return([]*domain.Event{}, nil)

		result, err := handler.Handle(context.Background(), ListEventsQuery{UserID: userID})

		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("fails when repository error", func(t *testing.T) {
		repo := new(mockEventRepo)
		handler := NewListEventsHandler(repo)

		repo.On("FindByUserID", mock.Anything, userID).Return(nil, errors.New("database error"))

		result, err := handler.Handle(context.Background(), ListEventsQuery{UserID: userID})

		assert.Error(t, err)
		assert.Nil(t, result)
	})
}
