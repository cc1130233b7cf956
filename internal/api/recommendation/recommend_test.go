package recommendation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

func rest(id string, rating float64, aliases ...string) types.Restaurant {
	r := types.Restaurant{ID: id, Name: id, Rating: rating}
	for _, a := range aliases {
		r.Categories = append(r.Categories, types.Category{Alias: a, Title: a})
	}
	return r
}

func ids(rs []types.Restaurant) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		history []types.Restaurant
		current []types.Restaurant
		want    []string
	}{
		{
			name:    "viewed and non matching categories are excluded",
			history: []types.Restaurant{rest("A", 4, "pizza")},
			current: []types.Restaurant{rest("A", 4, "pizza"), rest("B", 3, "pizza"), rest("C", 5, "sushi")},
			want:    []string{"B"},
		},
		{
			name:    "cold start keeps every record ranked by rating",
			current: []types.Restaurant{rest("B", 4.8, "pizza"), rest("C", 4.5, "sushi"), rest("D", 4.1, "thai")},
			want:    []string{"B", "C", "D"},
		},
		{
			name:    "empty current is empty regardless of history",
			history: []types.Restaurant{rest("A", 4, "pizza")},
			want:    []string{},
		},
		{
			name:    "history without aliases only excludes viewed",
			history: []types.Restaurant{rest("A", 4)},
			current: []types.Restaurant{rest("A", 4, "pizza"), rest("B", 3, "sushi")},
			want:    []string{"B"},
		},
		{
			name:    "ties keep input order",
			current: []types.Restaurant{rest("x", 4), rest("y", 4.5), rest("z", 4), rest("w", 4)},
			want:    []string{"y", "x", "z", "w"},
		},
		{
			name: "at most five",
			current: []types.Restaurant{
				rest("1", 1), rest("2", 2), rest("3", 3), rest("4", 4), rest("5", 5), rest("6", 4.5), rest("7", 0),
			},
			want: []string{"5", "6", "4", "3", "2"},
		},
		{
			name:    "alias match is exact",
			history: []types.Restaurant{rest("A", 4, "Pizza")},
			current: []types.Restaurant{rest("B", 4, "pizza", "bars"), rest("C", 3, "Pizza")},
			want:    []string{"C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.history, tt.current, types.MaxRecommendations)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRecommendDoesNotReorderInput(t *testing.T) {
	current := []types.Restaurant{rest("a", 1), rest("b", 5)}
	_ = Recommend(nil, current, 5)
	assert.Equal(t, []string{"a", "b"}, ids(current))
}

// MockHistorySource is a mock implementation of HistorySource
type MockHistorySource struct {
	mock.Mock
}

func (m *MockHistorySource) History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Restaurant), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceImpl_Recommend(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("filters with the user's history", func(t *testing.T) {
		src := new(MockHistorySource)
		src.On("History", mock.Anything, user, types.HistoryLimit).Return([]types.Restaurant{rest("A", 4, "pizza")}, nil).Once()
		svc := NewServiceImpl(src, testLogger())

		got, err := svc.Recommend(ctx, user, []types.Restaurant{rest("A", 4, "pizza"), rest("B", 3, "pizza"), rest("C", 5, "sushi")})
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, ids(got))
	})

	t.Run("history failure is a cold start", func(t *testing.T) {
		src := new(MockHistorySource)
		src.On("History", mock.Anything, user, types.HistoryLimit).Return(nil, errors.New("db down")).Once()
		svc := NewServiceImpl(src, testLogger())

		got, err := svc.Recommend(ctx, user, []types.Restaurant{rest("B", 3, "pizza"), rest("C", 5, "sushi")})
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "B"}, ids(got))
	})

	t.Run("empty current skips history", func(t *testing.T) {
		src := new(MockHistorySource)
		svc := NewServiceImpl(src, testLogger())

		got, err := svc.Recommend(ctx, user, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		src.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlerImpl_Recommend(t *testing.T) {
	user := uuid.New()
	src := new(MockHistorySource)
	src.On("History", mock.Anything, user, types.HistoryLimit).Return([]types.Restaurant{}, nil).Once()
	h := NewHandlerImpl(NewServiceImpl(src, testLogger()), testLogger())

	body := `{"restaurants":[{"id":"a","name":"A","rating":3.5},{"id":"b","name":"B","rating":4.5}]}`
	req := httptest.NewRequest(http.MethodPost, "/recommendations", strings.NewReader(body))
	req = req.WithContext(auth.WithUserID(req.Context(), user.String()))
	rr := httptest.NewRecorder()
	h.Recommend(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"b"`)
	assert.Less(t, strings.Index(rr.Body.String(), `"id":"b"`), strings.Index(rr.Body.String(), `"id":"a"`))
}

func TestHandlerImpl_RecommendRequiresUser(t *testing.T) {
	h := NewHandlerImpl(NewServiceImpl(new(MockHistorySource), testLogger()), testLogger())
	rr := httptest.NewRecorder()
	h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/recommendations", strings.NewReader(`{"restaurants":[]}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
