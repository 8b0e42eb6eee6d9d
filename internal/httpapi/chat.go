package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/chat"
)

type chatRequest struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	AgentID string `json:"agentId,omitempty"`
}

type chatResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reply, err := h.chat.Respond(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("Chat reply failed",
			zap.String("room_id", req.RoomID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, chatResponse{
			Message:   chat.ErrorReply(err),
			Timestamp: h.timestamp(),
		})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Message: reply, Timestamp: h.timestamp()})
}
