package clicks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// MockService is a mock implementation of Service
type MockService struct {
	mock.Mock
}

func (m *MockService) TrackClick(ctx context.Context, userID uuid.UUID, restaurantID, interactionType string) (*types.TrackClickResult, error) {
	args := m.Called(ctx, userID, restaurantID, interactionType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TrackClickResult), args.Error(1)
}

func (m *MockService) History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Restaurant), args.Error(1)
}

func (m *MockService) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func newTestRouter(h *HandlerImpl, caller uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), caller.String())))
		})
	})
	r.Post("/clicks", h.TrackClick)
	r.Get("/clicks/history", h.GetOwnHistory)
	r.Get("/clicks/history/{userID}", h.GetHistory)
	r.Delete("/clicks/history", h.ClearHistory)
	return r
}

func TestHandlerImpl_TrackClick(t *testing.T) {
	caller := uuid.New()

	t.Run("defaults to the caller", func(t *testing.T) {
		svc := new(MockService)
		svc.On("TrackClick", mock.Anything, caller, "a", "").
			Return(&types.TrackClickResult{Enrichment: types.EnrichmentScheduled}, nil).Once()

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clicks", strings.NewReader(`{"restaurant_id":"a"}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"enrichment":"scheduled"`)
		svc.AssertExpectations(t)
	})

	t.Run("missing restaurant id is 400", func(t *testing.T) {
		svc := new(MockService)
		svc.On("TrackClick", mock.Anything, caller, "", "").
			Return(nil, types.NewValidationError("restaurant_id", "restaurant id is required")).Once()

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clicks", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("another user's id is 403", func(t *testing.T) {
		svc := new(MockService)
		body := `{"user_id":"` + uuid.NewString() + `","restaurant_id":"a"}`

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clicks", strings.NewReader(body)))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		svc.AssertNotCalled(t, "TrackClick", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed user id is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(new(MockService), testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clicks", strings.NewReader(`{"user_id":"nope","restaurant_id":"a"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandlerImpl_GetHistory(t *testing.T) {
	caller := uuid.New()

	t.Run("own history", func(t *testing.T) {
		svc := new(MockService)
		svc.On("History", mock.Anything, caller, types.HistoryLimit).
			Return([]types.Restaurant{{ID: "a"}}, nil).Once()

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clicks/history/"+caller.String(), nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"a"`)
	})

	t.Run("no user id means the caller", func(t *testing.T) {
		svc := new(MockService)
		svc.On("History", mock.Anything, caller, types.HistoryLimit).
			Return([]types.Restaurant{{ID: "b"}}, nil).Once()

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clicks/history", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"b"`)
		svc.AssertExpectations(t)
	})

	t.Run("someone else's history is 403", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(new(MockService), testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clicks/history/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("empty history is an empty array", func(t *testing.T) {
		svc := new(MockService)
		svc.On("History", mock.Anything, caller, 3).Return([]types.Restaurant{}, nil).Once()

		rr := httptest.NewRecorder()
		newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clicks/history/"+caller.String()+"?limit=3", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})
}

func TestHandlerImpl_ClearHistory(t *testing.T) {
	caller := uuid.New()
	svc := new(MockService)
	svc.On("ClearHistory", mock.Anything, caller).Return(nil).Once()

	rr := httptest.NewRecorder()
	newTestRouter(NewHandlerImpl(svc, testLogger(), false), caller).
		ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/clicks/history", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	svc.AssertExpectations(t)
}
