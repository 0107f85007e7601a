package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/middleware"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/internal/service"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
	"github.com/capitalize-ai/chat-chain/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	messageService      *service.MessageService
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	msgSvc *service.MessageService,
	convSvc *service.ConversationService,
	log *logger.Logger,
) *StreamHandler {
	if log == nil {
		log = logger.Global()
	}
	return &StreamHandler{
		messageService:      msgSvc,
		conversationService: convSvc,
		logger:              log,
	}
}

// StreamWithMessage handles POST /api/v1/conversations/:id/stream. It runs one turn
// and streams the answer as SSE token events.
func (h *StreamHandler) StreamWithMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversationService.Get(ctx, tenantID, conversationID); err != nil {
		writeServiceError(w, err, "failed to get conversation")
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	reply, err := h.messageService.SendWithStream(ctx, tenantID, conversationID, &req,
		func(token string, index int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
				Token: token,
				Index: index,
			})
		},
	)
	if err != nil {
		h.logger.Error("stream failed",
			zap.String("conversation_id", conversationID),
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.Error(err),
		)
		event := &model.ErrorEvent{Code: "stream_error", Message: "failed to generate response"}
		if errors.Is(err, service.ErrConversationNotFound) {
			event = &model.ErrorEvent{Code: "not_found", Message: "conversation not found"}
		}
		sendSSEEvent(w, flusher, "error", event)
		return
	}

	sendSSEEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
		Message:  *reply,
		Mode:     reply.Mode,
		Sequence: reply.Sequence,
	})
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}
