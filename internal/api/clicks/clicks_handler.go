package clicks

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/api"
	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

type HandlerImpl struct {
	service       Service
	logger        *slog.Logger
	exposeDetails bool
}

func NewHandlerImpl(service Service, logger *slog.Logger, exposeDetails bool) *HandlerImpl {
	return &HandlerImpl{
		service:       service,
		logger:        logger,
		exposeDetails: exposeDetails,
	}
}

// TrackClick godoc
// @Summary      Record a restaurant view
// @Description  Appends a click event. Uncached restaurants are fetched in the background.
// @Tags         Clicks
// @Accept       json
// @Produce      json
// @Param        body body types.TrackClickRequest true "Click event"
// @Success      200 {object} types.TrackClickResult
// @Failure      400 {object} api.ErrorBody
// @Failure      403 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /clicks [post]
func (h *HandlerImpl) TrackClick(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ClicksHandler").Start(r.Context(), "TrackClick", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/clicks"),
	))
	defer span.End()

	var req types.TrackClickRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := h.targetUser(r, req.UserID)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	res, err := h.service.TrackClick(ctx, userID, req.RestaurantID, req.Type)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to track click", slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// GetOwnHistory godoc
// @Summary      The caller's recently viewed restaurants
// @Tags         Clicks
// @Produce      json
// @Param        limit  query int    false "At most 10"
// @Success      200 {array} types.Restaurant
// @Failure      400 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /clicks/history [get]
func (h *HandlerImpl) GetOwnHistory(w http.ResponseWriter, r *http.Request) {
	h.GetHistory(w, r)
}

// GetHistory godoc
// @Summary      Recently viewed restaurants of a user
// @Description  Only the caller's own history is visible.
// @Tags         Clicks
// @Produce      json
// @Param        userID path  string true  "User ID"
// @Param        limit  query int    false "At most 10"
// @Success      200 {array} types.Restaurant
// @Failure      400 {object} api.ErrorBody
// @Failure      403 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /clicks/history/{userID} [get]
func (h *HandlerImpl) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ClicksHandler").Start(r.Context(), "GetHistory", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/clicks/history/{userID}"),
	))
	defer span.End()

	userID, err := h.targetUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	limit := types.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	history, err := h.service.History(ctx, userID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load click history", slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, history)
}

// ClearHistory godoc
// @Summary      Forget the caller's viewing history
// @Tags         Clicks
// @Success      204
// @Security     BearerAuth
// @Router       /clicks/history [delete]
func (h *HandlerImpl) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ClicksHandler").Start(r.Context(), "ClearHistory")
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	if err := h.service.ClearHistory(ctx, userID); err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// targetUser resolves the user a request acts on. An empty raw id means the
// caller; any other id must match the caller.
func (h *HandlerImpl) targetUser(r *http.Request, raw string) (uuid.UUID, error) {
	caller, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		return uuid.Nil, err
	}
	if raw == "" {
		return caller, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, types.NewValidationError("user_id", "must be a valid UUID")
	}
	if id != caller {
		return uuid.Nil, types.ErrForbidden
	}
	return id, nil
}
