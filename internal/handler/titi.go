package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/titi-ai/titi/internal/middleware"
	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/internal/service"
	"github.com/titi-ai/titi/pkg/logger"
)

// Processor runs one assistant request.
type Processor interface {
	Process(ctx context.Context, req *model.TitiRequest) (*model.TitiResponse, error)
}

// TitiHandler handles the assistant endpoint.
type TitiHandler struct {
	agent  Processor
	logger *logger.Logger
}

// NewTitiHandler creates a new assistant handler.
func NewTitiHandler(agent Processor, log *logger.Logger) *TitiHandler {
	return &TitiHandler{
		agent:  agent,
		logger: log.Named("handler"),
	}
}

// Process handles POST /titi
func (h *TitiHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxRequestBodyBytes)

	var req model.TitiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitiRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.agent.Process(ctx, &req)
	if err != nil {
		if errors.Is(err, mode.ErrUnknownMode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var perr *service.PipelineError
		conversationID := req.ConversationID
		if errors.As(err, &perr) {
			conversationID = perr.ConversationID
		}
		log.Error("request failed", zap.String("conversation_id", conversationID), zap.Error(err))

		writeJSON(w, http.StatusInternalServerError, model.TitiResponse{
			ConversationID: conversationID,
			Answer:         "Error interno: " + err.Error(),
			Error:          err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
