package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

type composeRequest struct {
	orchestrator.Request
	// AgentIDs maps capability names to worker ids.
	AgentIDs map[string]string `json:"agentIds,omitempty"`
}

type submitResponse struct {
	Submission orchestrator.Submission `json:"submission"`
	Tasks      []graph.ComposedTask    `json:"tasks"`
}

func (h *Handler) compose(w http.ResponseWriter, r *http.Request) ([]graph.ComposedTask, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	var req composeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	ids := make(map[workers.Capability]string, len(req.AgentIDs))
	for name, id := range req.AgentIDs {
		c, err := workers.ParseCapability(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, sanitizeErr(err.Error()))
			return nil, false
		}
		ids[c] = id
	}
	tasks, err := h.research.Compose(req.Request, ids)
	if err != nil {
		writeError(w, statusFor(err), sanitizeErr(err.Error()))
		return nil, false
	}
	return tasks, true
}

func (h *Handler) handleCompose(w http.ResponseWriter, r *http.Request) {
	tasks, ok := h.compose(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		writeError(w, http.StatusNotImplemented, "no task submitter configured")
		return
	}
	tasks, ok := h.compose(w, r)
	if !ok {
		return
	}
	sub, err := h.submitter.Submit(r.Context(), tasks)
	if err != nil {
		h.logger.Error("Failed to submit composed tasks", zap.Int("tasks", len(tasks)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to submit composed tasks")
		return
	}
	h.logger.Info("Submitted composed tasks",
		zap.String("submission_id", sub.ID),
		zap.String("backend", sub.Backend),
		zap.Int("tasks", len(tasks)),
	)
	writeJSON(w, http.StatusAccepted, submitResponse{Submission: sub, Tasks: tasks})
}
