package clicks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, testLogger()), mock
}

func TestRepositoryImpl_RecordInteraction(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("returns generated id and timestamp", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		id := uuid.New()
		created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
		mock.ExpectQuery(`INSERT INTO restaurant_clicks \(user_id, restaurant_id, type\)`).
			WithArgs(user, "a", types.InteractionTypeRestaurant).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, created))

		got, err := repo.RecordInteraction(ctx, types.Interaction{UserID: user, RestaurantID: "a", Type: types.InteractionTypeRestaurant})
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, created, got.CreatedAt)
		assert.Equal(t, "a", got.RestaurantID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		mock.ExpectQuery(`INSERT INTO restaurant_clicks`).WillReturnError(errors.New("connection reset"))

		got, err := repo.RecordInteraction(ctx, types.Interaction{UserID: user, RestaurantID: "a"})
		assert.Nil(t, got)
		assert.Error(t, err)
	})
}

func TestRepositoryImpl_GetRecentRestaurantIDs(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	user := uuid.New()
	mock.ExpectQuery(`SELECT restaurant_id FROM restaurant_clicks WHERE user_id = \$1 GROUP BY restaurant_id ORDER BY MAX\(created_at\) DESC LIMIT \$2`).
		WithArgs(user, 10).
		WillReturnRows(pgxmock.NewRows([]string{"restaurant_id"}).AddRow("c").AddRow("a"))

	ids, err := repo.GetRecentRestaurantIDs(context.Background(), user, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_DeleteUserInteractions(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	user := uuid.New()
	mock.ExpectExec(`DELETE FROM restaurant_clicks WHERE user_id = \$1`).
		WithArgs(user).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, repo.DeleteUserInteractions(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository_RecentIDsAreDistinct(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	user := uuid.New()

	var last time.Time
	for _, id := range []string{"a", "b", "a"} {
		got, err := repo.RecordInteraction(ctx, types.Interaction{UserID: user, RestaurantID: id})
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.After(last))
		last = got.CreatedAt
	}

	ids, err := repo.GetRecentRestaurantIDs(ctx, user, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
