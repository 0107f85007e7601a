package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-chain/internal/knowledge"
	"github.com/capitalize-ai/chat-chain/internal/middleware"
	"github.com/capitalize-ai/chat-chain/internal/model"
	"github.com/capitalize-ai/chat-chain/pkg/logger"
)

// KnowledgeWriter loads the knowledge base.
type KnowledgeWriter interface {
	AddParts(ctx context.Context, collection string, docs []knowledge.Document) ([]string, error)
	SetTagPrompt(ctx context.Context, tag, prompt string) error
}

// KnowledgeHandler handles knowledge ingestion endpoints.
type KnowledgeHandler struct {
	writer KnowledgeWriter
	logger *logger.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(writer KnowledgeWriter, log *logger.Logger) *KnowledgeHandler {
	if log == nil {
		log = logger.Global()
	}
	return &KnowledgeHandler{writer: writer, logger: log}
}

// AddParts handles POST /api/v1/knowledge/{collection}/parts
func (h *KnowledgeHandler) AddParts(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if err := middleware.ValidateName(collection); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateKnowledgeParts(req.Parts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs := make([]knowledge.Document, len(req.Parts))
	for i, p := range req.Parts {
		docs[i] = knowledge.Document{Content: p.Content, Tags: p.Tags}
	}

	ids, err := h.writer.AddParts(r.Context(), collection, docs)
	if err != nil {
		if errors.Is(err, knowledge.ErrEmptyDocument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to add knowledge", zap.String("collection", collection), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to add knowledge")
		return
	}

	writeJSON(w, http.StatusCreated, &model.AddKnowledgeResponse{Collection: collection, IDs: ids})
}

// SetTagPrompt handles PUT /api/v1/knowledge/tags/{tag}
func (h *KnowledgeHandler) SetTagPrompt(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := middleware.ValidateName(tag); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SetTagPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.writer.SetTagPrompt(r.Context(), tag, req.Prompt); err != nil {
		h.logger.Error("failed to set tag prompt", zap.String("tag", tag), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to set tag prompt")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
