package recommendation

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/api"
	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
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

// Recommend godoc
// @Summary      Recommend from the visible results
// @Description  Up to 5 of the given restaurants, unseen and matching the caller's viewed categories.
// @Tags         Recommendations
// @Accept       json
// @Produce      json
// @Param        body body types.RecommendationRequest true "Currently loaded results"
// @Success      200 {array} types.Restaurant
// @Failure      400 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /recommendations [post]
func (h *HandlerImpl) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendationHandler").Start(r.Context(), "Recommend", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/recommendations"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.RespondError(w, r, err, false)
		return
	}

	var req types.RecommendationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.service.Recommend(ctx, userID, req.Restaurants)
	if err != nil {
		h.logger.ErrorContext(ctx, "Recommendation failed", slog.Any("error", err))
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, out)
}
