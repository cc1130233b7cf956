package preferences

import (
	"log/slog"
	"net/http"

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

// GetPreferences godoc
// @Summary      Get the caller's food preferences
// @Tags         Preferences
// @Produce      json
// @Success      200 {object} types.UserPreferences
// @Failure      401 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /preferences [get]
func (h *HandlerImpl) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		api.RespondError(w, r, err, false)
		return
	}
	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load preferences", slog.Any("error", err))
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, prefs)
}

// UpdatePreferences godoc
// @Summary      Update the caller's food preferences
// @Description  Omitted fields are left unchanged.
// @Tags         Preferences
// @Accept       json
// @Produce      json
// @Param        body body types.UpdatePreferencesParams true "Fields to change"
// @Success      200 {object} types.UserPreferences
// @Failure      400 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /preferences [put]
func (h *HandlerImpl) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		api.RespondError(w, r, err, false)
		return
	}

	var params types.UpdatePreferencesParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	prefs, err := h.service.UpdatePreferences(r.Context(), userID, params)
	if err != nil {
		api.RespondError(w, r, err, false)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, prefs)
}
