// Package httpapi serves the public HTTP surface: the MCP tool endpoint,
// chat, graph composition and a liveness probe.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/chat"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "Research Orchestrator Agent"

const maxBodyBytes = 4 << 20

// Researcher is the part of the orchestrator the handlers use.
type Researcher interface {
	ConductResearch(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Compose(req orchestrator.Request, agentIDs map[workers.Capability]string) ([]graph.ComposedTask, error)
}

// Options wires the handler's collaborators. Tools serves the individual
// capabilities exposed over MCP. Submitter may be nil, which disables
// /api/compose/submit.
type Options struct {
	Research  Researcher
	Tools     workers.Invoker
	Chat      *chat.Responder
	Submitter orchestrator.Submitter
	// APIKey, when set, is required in the X-Api-Key header of every
	// request except the health check.
	APIKey string
	Logger *zap.Logger
	Now    func() time.Time
}

// Handler serves the public API.
type Handler struct {
	research  Researcher
	tools     workers.Invoker
	chat      *chat.Responder
	submitter orchestrator.Submitter
	apiKey    string
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a handler from opts.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		research:  opts.Research,
		tools:     opts.Tools,
		chat:      opts.Chat,
		submitter: opts.Submitter,
		apiKey:    opts.APIKey,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// RegisterRoutes registers the API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.Handle("/api/mcp", h.requireKey(http.HandlerFunc(h.handleMCP)))
	mux.Handle("/api/chat", h.requireKey(http.HandlerFunc(h.handleChat)))
	mux.Handle("/api/compose", h.requireKey(http.HandlerFunc(h.handleCompose)))
	mux.Handle("/api/compose/submit", h.requireKey(http.HandlerFunc(h.handleSubmit)))
}

func (h *Handler) requireKey(next http.Handler) http.Handler {
	if h.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != h.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": h.timestamp(),
	})
}

// statusFor maps an error to the HTTP status of the response carrying it.
func statusFor(err error) int {
	var rErr *orchestrator.ResearchError
	var invErr *workers.InvocationError
	switch {
	case errors.Is(err, workers.ErrInvalidArguments), orchestrator.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, workers.ErrUnknownCapability):
		return http.StatusNotFound
	case errors.As(err, &rErr), errors.As(err, &invErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sanitizeErr(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "\r", " ")
}
