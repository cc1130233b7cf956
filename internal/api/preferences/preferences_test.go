package preferences

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func TestServiceImpl_GetPreferencesDefaults(t *testing.T) {
	svc := NewServiceImpl(NewMemoryRepository(), testLogger())
	user := uuid.New()

	got, err := svc.GetPreferences(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, types.DefaultPriceRange, got.PreferredPriceRange)
	assert.NotNil(t, got.FavoriteCuisines)
}

func TestServiceImpl_UpdatePreferences(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		svc := NewServiceImpl(NewMemoryRepository(), testLogger())
		_, err := svc.UpdatePreferences(ctx, user, types.UpdatePreferencesParams{
			LikedFoods:       ptr([]string{"ramen"}),
			FavoriteCuisines: ptr([]string{"japanese"}),
		})
		require.NoError(t, err)

		got, err := svc.UpdatePreferences(ctx, user, types.UpdatePreferencesParams{PreferredPriceRange: ptr("3")})
		require.NoError(t, err)
		assert.Equal(t, []string{"ramen"}, got.LikedFoods)
		assert.Equal(t, []string{"japanese"}, got.FavoriteCuisines)
		assert.Equal(t, "$$$", got.PreferredPriceRange)
	})

	t.Run("invalid price range", func(t *testing.T) {
		svc := NewServiceImpl(NewMemoryRepository(), testLogger())
		_, err := svc.UpdatePreferences(ctx, user, types.UpdatePreferencesParams{PreferredPriceRange: ptr("cheap")})
		var validation *types.ValidationError
		require.True(t, errors.As(err, &validation))
	})
}

func TestRepositoryImpl_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock, testLogger())
	user := uuid.New()
	updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM user_preferences WHERE user_id = \$1`).WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "liked_foods", "disliked_foods", "favorite_cuisines",
			"preferred_price_range", "dietary_restrictions", "updated_at",
		}).AddRow(user, []string{"tacos"}, []string{}, []string{"mexican"}, "$", []string{"vegan"}, updated))

	got, err := repo.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{"tacos"}, got.LikedFoods)
	assert.Equal(t, "$", got.PreferredPriceRange)

	mock.ExpectQuery(`FROM user_preferences`).WithArgs(user).WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), user)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock, testLogger())
	prefs := *types.DefaultPreferences(uuid.New())
	updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO user_preferences .+ ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(prefs.UserID, []string{}, []string{}, []string{}, "$$", []string{}).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))

	got, err := repo.Upsert(context.Background(), prefs)
	require.NoError(t, err)
	assert.Equal(t, updated, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerImpl_Preferences(t *testing.T) {
	user := uuid.New()
	h := NewHandlerImpl(NewServiceImpl(NewMemoryRepository(), testLogger()), testLogger())
	withUser := func(req *http.Request) *http.Request {
		return req.WithContext(auth.WithUserID(req.Context(), user.String()))
	}

	rr := httptest.NewRecorder()
	h.UpdatePreferences(rr, withUser(httptest.NewRequest(http.MethodPut, "/preferences",
		strings.NewReader(`{"disliked_foods":["olives"]}`))))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.GetPreferences(rr, withUser(httptest.NewRequest(http.MethodGet, "/preferences", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"disliked_foods":["olives"]`)
	assert.Contains(t, rr.Body.String(), `"preferred_price_range":"$$"`)

	rr = httptest.NewRecorder()
	h.GetPreferences(rr, httptest.NewRequest(http.MethodGet, "/preferences", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
