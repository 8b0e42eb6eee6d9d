package health

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPHandler provides HTTP endpoints for health checks
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{manager: manager, logger: logger}
}

// RegisterRoutes registers health check endpoints with an HTTP mux
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.get(h.handleHealth))
	mux.HandleFunc("/health/ready", h.get(h.handleReadiness))
	mux.HandleFunc("/health/live", h.get(h.handleLiveness))
	mux.HandleFunc("/health/detailed", h.get(h.handleDetailed))
}

func (h *HTTPHandler) get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.write(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		next(w, r)
	}
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := h.manager.GetOverallHealth(r.Context())
	status := http.StatusOK
	if overall.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.write(w, status, map[string]any{
		"status":    overall.Status.String(),
		"message":   overall.Message,
		"timestamp": overall.Timestamp.Unix(),
		"duration":  overall.Duration.String(),
		"degraded":  overall.Degraded,
		"ready":     overall.Ready,
		"live":      overall.Live,
	})
}

func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ready := h.manager.IsReady(r.Context())
	status, message := http.StatusOK, "ready"
	if !ready {
		status, message = http.StatusServiceUnavailable, "not ready"
	}
	h.write(w, status, map[string]any{"status": message, "ready": ready, "timestamp": time.Now().Unix()})
}

func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	live := h.manager.IsLive(r.Context())
	status, message := http.StatusOK, "alive"
	if !live {
		status, message = http.StatusServiceUnavailable, "not alive"
	}
	h.write(w, status, map[string]any{"status": message, "live": live, "timestamp": time.Now().Unix()})
}

func (h *HTTPHandler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	detailed := h.manager.GetDetailedHealth(r.Context())
	status := http.StatusOK
	if detailed.Overall.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.write(w, status, detailed)
}

func (h *HTTPHandler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
