package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// MockAuthService is a mock implementation of Service
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req types.RegisterRequest) (*types.UserAuth, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*types.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginResponse), args.Error(1)
}

func (m *MockAuthService) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.UserAuth, error) {
	args := m.Called(ctx, provider, providerUser)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthService) IssueToken(user types.UserAuth) (*types.LoginResponse, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginResponse), args.Error(1)
}

func TestHandlerImpl_Signup(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewHandlerImpl(svc, testLogger())
		svc.On("Register", mock.Anything, mock.MatchedBy(func(r types.RegisterRequest) bool {
			return r.Email == "a@b.co" && r.FirstName == "Ada"
		})).Return(&types.UserAuth{ID: uuid.New()}, nil).Once()

		rr := httptest.NewRecorder()
		body := `{"first_name":"Ada","last_name":"L","email":"a@b.co","password":"pw"}`
		h.Signup(rr, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("validation error is 400", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewHandlerImpl(svc, testLogger())
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, types.NewValidationError("email", "email is required")).Once()

		rr := httptest.NewRecorder()
		h.Signup(rr, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"first_name":"Ada"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewHandlerImpl(svc, testLogger())
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, types.ErrConflict).Once()

		rr := httptest.NewRecorder()
		h.Signup(rr, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"email":"a@b.co"}`)))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown field is 400", func(t *testing.T) {
		h := NewHandlerImpl(new(MockAuthService), testLogger())
		rr := httptest.NewRecorder()
		h.Signup(rr, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"username":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandlerImpl_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewHandlerImpl(svc, testLogger())
		svc.On("Login", mock.Anything, "a@b.co", "pw").
			Return(&types.LoginResponse{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil).Once()

		rr := httptest.NewRecorder()
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`)))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp types.LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "tok", resp.AccessToken)
	})

	t.Run("bad credentials is 401", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewHandlerImpl(svc, testLogger())
		svc.On("Login", mock.Anything, "a@b.co", "nope").Return(nil, types.ErrUnauthenticated).Once()

		rr := httptest.NewRecorder()
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"nope"}`)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		h := NewHandlerImpl(new(MockAuthService), testLogger())
		rr := httptest.NewRecorder()
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthenticate(t *testing.T) {
	cfg := testJWTConfig()
	svc := NewServiceImpl(new(MockRepository), cfg, testLogger())
	user := types.UserAuth{ID: uuid.New(), Email: "a@b.co"}
	token, err := svc.IssueToken(user)
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := UserIDFromContext(r.Context())
		require.NoError(t, err)
		seen = id.String()
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Authenticate(testLogger(), cfg)(next)
	streaming := Authenticate(testLogger(), cfg, AllowQueryToken())(next)

	t.Run("bearer header", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, user.ID.String(), seen)
	})

	t.Run("query token accepted when allowed", func(t *testing.T) {
		seen = ""
		rr := httptest.NewRecorder()
		streaming.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?access_token="+token.AccessToken, nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, user.ID.String(), seen)
	})

	t.Run("query token rejected by default", func(t *testing.T) {
		seen = ""
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?access_token="+token.AccessToken, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, seen)
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUserIDFromContext(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	_, err = UserIDFromContext(WithUserID(context.Background(), "not-a-uuid"))
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}
