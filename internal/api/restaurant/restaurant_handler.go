package restaurant

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/api"
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

// SearchRestaurants godoc
// @Summary      Search restaurants
// @Description  Live provider search with transparent fallback to cached records.
// @Tags         Restaurants
// @Produce      json
// @Param        location   query string false "Free-text location"
// @Param        latitude   query number false "Latitude" minimum(-90) maximum(90)
// @Param        longitude  query number false "Longitude" minimum(-180) maximum(180)
// @Param        radius     query int    false "Radius in meters"
// @Param        category   query string false "Category alias"
// @Param        price      query string false "Price tier ($..$$$$ or 1..4)"
// @Param        minRating  query number false "Minimum rating" minimum(0) maximum(5)
// @Param        sortBy     query string false "best_match, rating, review_count or distance"
// @Param        term       query string false "Search term"
// @Success      200 {array} types.Restaurant
// @Failure      400 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /restaurants/search [get]
func (h *HandlerImpl) SearchRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RestaurantHandler").Start(r.Context(), "SearchRestaurants", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/restaurants/search"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SearchRestaurants"))

	params, err := parseSearchParams(r)
	if err != nil {
		l.WarnContext(ctx, "Invalid search parameters", slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	results, err := h.service.SearchRestaurants(ctx, params)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, results)
}

// GetRestaurant godoc
// @Summary      Get restaurant details
// @Description  Cache-first lookup; serves stale data when the provider is down.
// @Tags         Restaurants
// @Produce      json
// @Param        id path string true "Provider restaurant ID"
// @Success      200 {object} types.Restaurant
// @Failure      400 {object} api.ErrorBody
// @Failure      404 {object} api.ErrorBody
// @Failure      503 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /restaurants/{id} [get]
func (h *HandlerImpl) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RestaurantHandler").Start(r.Context(), "GetRestaurant", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/restaurants/{id}"),
	))
	defer span.End()

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Restaurant ID is required")
		return
	}

	rest, err := h.service.GetRestaurant(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "Restaurant lookup failed", slog.String("id", id), slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rest)
}

// SaveRestaurants godoc
// @Summary      Save restaurants
// @Description  Explicit bulk upsert into the cache store.
// @Tags         Restaurants
// @Accept       json
// @Produce      json
// @Param        body body types.SaveRestaurantsRequest true "Restaurants to save"
// @Success      200 {object} types.SaveRestaurantsResponse
// @Failure      400 {object} api.ErrorBody
// @Failure      503 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /restaurants [post]
func (h *HandlerImpl) SaveRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RestaurantHandler").Start(r.Context(), "SaveRestaurants", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/restaurants"),
	))
	defer span.End()

	var req types.SaveRestaurantsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SaveRestaurants(ctx, req.Restaurants)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func parseSearchParams(r *http.Request) (types.SearchParams, error) {
	q := r.URL.Query()
	params := types.SearchParams{
		Location: strings.TrimSpace(q.Get("location")),
		Category: strings.TrimSpace(q.Get("category")),
		Price:    strings.TrimSpace(q.Get("price")),
		SortBy:   strings.TrimSpace(firstNonEmpty(q.Get("sortBy"), q.Get("sort_by"))),
		Term:     strings.TrimSpace(q.Get("term")),
	}

	var err error
	if params.Latitude, err = optionalFloat(q.Get("latitude"), "latitude"); err != nil {
		return params, err
	}
	if params.Longitude, err = optionalFloat(q.Get("longitude"), "longitude"); err != nil {
		return params, err
	}
	if params.MinRating, err = optionalFloat(firstNonEmpty(q.Get("minRating"), q.Get("min_rating")), "minRating"); err != nil {
		return params, err
	}
	if v := q.Get("radius"); v != "" {
		if params.Radius, err = strconv.Atoi(v); err != nil {
			return params, types.NewValidationError("radius", "must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if params.Limit, err = strconv.Atoi(v); err != nil {
			return params, types.NewValidationError("limit", "must be an integer")
		}
	}
	return params, params.Validate()
}

func optionalFloat(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, types.NewValidationError(field, "must be a finite number")
	}
	return &v, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
