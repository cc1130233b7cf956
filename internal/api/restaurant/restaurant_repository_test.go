package restaurant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var restaurantColumnNames = []string{
	"id", "name", "address", "address1", "city", "state", "zip_code", "latitude", "longitude",
	"price", "rating", "review_count", "categories", "phone", "url", "image_url", "photos", "last_updated",
}

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, testLogger()), mock
}

func TestRepositoryImpl_GetRestaurant(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		updated := time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)
		rows := pgxmock.NewRows(restaurantColumnNames).AddRow(
			"a", "Pizzeria", "1 Main St", "1 Main St", "Lisbon", "LX", "1000-001", ptr(38.72), ptr(-9.14),
			ptr("$$"), 4.5, 120, []byte(`[{"alias":"pizza","title":"Pizza"}]`),
			"+351", "https://yelp.example/a", "", []string{"p.jpg"}, updated,
		)
		mock.ExpectQuery(`SELECT .+ FROM restaurants WHERE id = \$1`).WithArgs("a").WillReturnRows(rows)

		got, err := repo.GetRestaurant(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Pizzeria", got.Name)
		assert.Equal(t, "pizza", got.PrimaryCategory())
		assert.Equal(t, "$$", *got.Price)
		assert.Equal(t, updated, got.LastUpdated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent is nil without error", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		mock.ExpectQuery(`SELECT .+ FROM restaurants WHERE id = \$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetRestaurant(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("store failure is a cache error", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		mock.ExpectQuery(`SELECT .+ FROM restaurants`).WithArgs("a").WillReturnError(errors.New("connection refused"))

		got, err := repo.GetRestaurant(ctx, "a")
		assert.Nil(t, got)
		var cacheErr *types.CacheError
		require.True(t, errors.As(err, &cacheErr))
		assert.Equal(t, "get", cacheErr.Op)
	})
}

func TestRepositoryImpl_UpsertRestaurant(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps last_updated from the store", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return now }
		rec := sampleRestaurant("a", 4.2, "pizza")

		args := make([]any, 0, 18)
		for i := 0; i < 17; i++ {
			args = append(args, pgxmock.AnyArg())
		}
		args = append(args, now)
		mock.ExpectQuery(`INSERT INTO restaurants .+ ON CONFLICT \(id\) DO UPDATE`).
			WithArgs(args...).
			WillReturnRows(pgxmock.NewRows([]string{"last_updated"}).AddRow(now))

		saved, err := repo.UpsertRestaurant(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, now, saved.LastUpdated)
		assert.Equal(t, rec.Categories, saved.Categories)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure is a cache error", func(t *testing.T) {
		repo, mock := setupRepositoryTest(t)
		mock.ExpectQuery(`INSERT INTO restaurants`).WillReturnError(errors.New("disk full"))

		_, err := repo.UpsertRestaurant(ctx, sampleRestaurant("a", 4))
		var cacheErr *types.CacheError
		require.True(t, errors.As(err, &cacheErr))
		assert.Equal(t, "upsert", cacheErr.Op)
	})

	for name, rec := range map[string]types.Restaurant{
		"missing id":            {Name: "x"},
		"rating above range":    {ID: "x", Rating: 9.5},
		"negative review count": {ID: "x", Rating: 4, ReviewCount: -3},
	} {
		t.Run(name+" never reaches the store", func(t *testing.T) {
			repo, mock := setupRepositoryTest(t)
			_, err := repo.UpsertRestaurant(ctx, rec)
			var validation *types.ValidationError
			require.True(t, errors.As(err, &validation))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepositoryImpl_QueryFresh(t *testing.T) {
	ctx := context.Background()
	repo, mock := setupRepositoryTest(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	q := types.CacheQuery{
		Category:  "Pizza",
		Price:     "$$",
		MinRating: ptr(4.0),
		Box:       &types.BoundingBox{MinLat: 1, MaxLat: 2, MinLon: 3, MaxLon: 4},
		Limit:     500,
	}
	mock.ExpectQuery(`FROM restaurants WHERE last_updated > \$1 AND EXISTS .+ AND price = \$3 AND rating >= \$4 AND latitude BETWEEN \$5 AND \$6 AND longitude BETWEEN \$7 AND \$8 ORDER BY .+ LIMIT \$9`).
		WithArgs(now.Add(-types.CacheDuration), "%pizza%", "$$", 4.0, 1.0, 2.0, 3.0, 4.0, types.MaxCachedResults).
		WillReturnRows(pgxmock.NewRows(restaurantColumnNames))

	got, err := repo.QueryFresh(ctx, q)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_QueryFreshStoreError(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	mock.ExpectQuery(`FROM restaurants WHERE last_updated`).WillReturnError(errors.New("timeout"))

	got, err := repo.QueryFresh(context.Background(), types.CacheQuery{})
	assert.Nil(t, got)
	var cacheErr *types.CacheError
	require.True(t, errors.As(err, &cacheErr))
}
