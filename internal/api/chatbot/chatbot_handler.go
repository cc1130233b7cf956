package chatbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/api"
	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 5 * time.Minute
)

type HandlerImpl struct {
	service       Service
	logger        *slog.Logger
	exposeDetails bool
	upgrader      websocket.Upgrader
}

func NewHandlerImpl(service Service, logger *slog.Logger, exposeDetails bool, allowedOrigins []string) *HandlerImpl {
	return &HandlerImpl{
		service:       service,
		logger:        logger,
		exposeDetails: exposeDetails,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Chat godoc
// @Summary      Ask the assistant
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        body body types.ChatRequest true "Message and context"
// @Success      200 {object} types.ChatResponse
// @Failure      400 {object} api.ErrorBody
// @Failure      503 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /chat [post]
func (h *HandlerImpl) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatbotHandler").Start(r.Context(), "Chat", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Chat(ctx, userID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "Chat failed", slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ChatStream godoc
// @Summary      Stream the assistant's answer
// @Description  Server-sent events: data frames carry {"text": chunk}, then an end or error event.
// @Tags         Chat
// @Produce      text/event-stream
// @Param        message     query string true  "User message"
// @Param        location    query string false "Location"
// @Param        cuisine     query string false "Cuisine"
// @Param        dietary     query string false "Dietary needs"
// @Param        instruction query string false "Extra instruction"
// @Param        access_token query string false "JWT when headers cannot be set"
// @Success      200
// @Failure      400 {object} api.ErrorBody
// @Failure      401 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /chat/stream [get]
func (h *HandlerImpl) ChatStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatbotHandler").Start(r.Context(), "ChatStream", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/stream"),
	))
	defer span.End()

	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	q := r.URL.Query()
	req := types.ChatRequest{
		Message:     q.Get("message"),
		Location:    q.Get("location"),
		Cuisine:     q.Get("cuisine"),
		Dietary:     q.Get("dietary"),
		Instruction: q.Get("instruction"),
	}
	if err := validateChat(req); err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_, err = h.service.ChatStream(ctx, userID, req, func(chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeSSE(w, flusher, "", map[string]string{"text": chunk})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.InfoContext(ctx, "Client disconnected from chat stream")
			return
		}
		h.logger.ErrorContext(ctx, "Chat stream failed", slog.Any("error", err))
		_ = writeSSE(w, flusher, "error", map[string]string{"error": h.streamErrorMessage(err)})
		return
	}
	_ = writeSSE(w, flusher, "end", map[string]string{})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (h *HandlerImpl) streamErrorMessage(err error) string {
	if h.exposeDetails {
		return err.Error()
	}
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return "Failed to generate response"
}

// ChatWebSocket godoc
// @Summary      Chat over a websocket
// @Description  Client sends ChatRequest JSON frames; the server answers with chunk frames followed by end or error.
// @Tags         Chat
// @Param        access_token query string false "JWT when headers cannot be set"
// @Success      101
// @Failure      401 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /chat/ws [get]
func (h *HandlerImpl) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "Websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	send := func(ev types.ChatStreamEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(ev)
	}

	for {
		var req types.ChatRequest
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WarnContext(ctx, "Websocket read failed", slog.Any("error", err))
			}
			return
		}

		resp, err := h.service.ChatStream(ctx, userID, req, func(chunk string) error {
			return send(types.ChatStreamEvent{Type: "chunk", Text: chunk})
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if sendErr := send(types.ChatStreamEvent{Type: "error", Error: h.streamErrorMessage(err)}); sendErr != nil {
				return
			}
			continue
		}
		if err := send(types.ChatStreamEvent{Type: "end", Text: resp.Response}); err != nil {
			return
		}
	}
}

// GetHistory godoc
// @Summary      Conversation history grouped by day
// @Tags         Chat
// @Produce      json
// @Success      200 {object} types.ChatHistory
// @Security     BearerAuth
// @Router       /chat/history [get]
func (h *HandlerImpl) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	history, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load chat history", slog.Any("error", err))
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, history)
}

// ClearHistory godoc
// @Summary      Delete the caller's conversations
// @Tags         Chat
// @Success      204
// @Security     BearerAuth
// @Router       /chat/history [delete]
func (h *HandlerImpl) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	if err := h.service.ClearHistory(r.Context(), userID); err != nil {
		api.RespondError(w, r, err, h.exposeDetails)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
