package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/api"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// Signup godoc
// @Summary      Register a new user
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.RegisterRequest true "New account"
// @Success      201 {object} api.Response
// @Failure      400 {object} api.ErrorBody
// @Failure      409 {object} api.ErrorBody
// @Router       /auth/signup [post]
func (h *HandlerImpl) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Signup", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/signup"),
	))
	defer span.End()

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.Register(ctx, req); err != nil {
		h.logger.WarnContext(ctx, "Signup failed", slog.Any("error", err))
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, api.Response{Success: true, Message: "Signup successful! Please log in."})
}

// Login godoc
// @Summary      Log in with email and password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.LoginRequest true "Credentials"
// @Success      200 {object} types.LoginResponse
// @Failure      400 {object} api.ErrorBody
// @Failure      401 {object} api.ErrorBody
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/login"),
	))
	defer span.End()

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "Login failed", slog.Any("error", err))
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func withProviderQuery(r *http.Request) *http.Request {
	if p := chi.URLParam(r, "provider"); p != "" {
		q := r.URL.Query()
		q.Set("provider", p)
		r.URL.RawQuery = q.Encode()
	}
	return r
}

// BeginProviderAuth godoc
// @Summary      Start OAuth sign-in
// @Tags         Auth
// @Param        provider path string true "OAuth provider, e.g. google"
// @Success      307
// @Router       /auth/{provider} [get]
func (h *HandlerImpl) BeginProviderAuth(w http.ResponseWriter, r *http.Request) {
	r = withProviderQuery(r)
	if u, err := gothic.CompleteUserAuth(w, r); err == nil {
		h.finishProviderAuth(w, r, u.Provider, u)
		return
	}
	gothic.BeginAuthHandler(w, r)
}

// ProviderCallback godoc
// @Summary      OAuth callback
// @Tags         Auth
// @Produce      json
// @Param        provider path string true "OAuth provider"
// @Success      200 {object} types.LoginResponse
// @Failure      401 {object} api.ErrorBody
// @Router       /auth/{provider}/callback [get]
func (h *HandlerImpl) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	r = withProviderQuery(r)
	providerUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "OAuth callback failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Provider sign-in failed")
		return
	}
	h.finishProviderAuth(w, r, providerUser.Provider, providerUser)
}

func (h *HandlerImpl) finishProviderAuth(w http.ResponseWriter, r *http.Request, provider string, providerUser goth.User) {
	ctx := r.Context()
	user, err := h.service.GetOrCreateUserFromProvider(ctx, provider, providerUser)
	if err != nil {
		h.logger.ErrorContext(ctx, "Could not resolve provider user", slog.String("provider", provider), slog.Any("error", err))
		api.RespondError(w, r, err, false)
		return
	}
	if err := gothic.Logout(w, r); err != nil {
		h.logger.DebugContext(ctx, "Could not clear OAuth session", slog.Any("error", err))
	}

	resp, err := h.service.IssueToken(*user)
	if err != nil {
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
