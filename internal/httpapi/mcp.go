package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// toolConductResearch runs the whole pipeline; every other tool name is a
// single capability.
const toolConductResearch = "conductResearch"

func (h *Handler) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req workers.MCPRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Method != workers.MethodToolsCall {
		writeError(w, http.StatusBadRequest, "Unknown method: "+req.Method)
		return
	}

	args := req.Params.Arguments
	if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
		args = json.RawMessage("{}")
	}
	text, err := h.callTool(r, req.Params.Name, args)
	if err != nil {
		status := statusFor(err)
		h.logger.Warn("MCP tool call failed",
			zap.String("tool", req.Params.Name),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeJSON(w, status, workers.TextResponse("Error: "+sanitizeErr(err.Error())))
		return
	}
	writeJSON(w, http.StatusOK, workers.TextResponse(text))
}

// callTool returns the tool result as indented JSON text.
func (h *Handler) callTool(r *http.Request, name string, args json.RawMessage) (string, error) {
	if name == toolConductResearch {
		var req orchestrator.Request
		if err := json.Unmarshal(args, &req); err != nil {
			return "", fmt.Errorf("%w: %v", workers.ErrInvalidArguments, err)
		}
		res, err := h.research.ConductResearch(r.Context(), req)
		if err != nil {
			return "", err
		}
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	c, err := workers.ParseCapability(name)
	if err != nil {
		return "", unknownToolError(name)
	}
	raw, err := h.tools.Invoke(r.Context(), c, args)
	if err != nil {
		return "", err
	}
	content, err := workers.Content(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, content, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// unknownToolError is reported for tool names that are neither the
// pipeline nor a capability.
type unknownToolError string

func (e unknownToolError) Error() string { return "Unknown tool: " + string(e) }

func (e unknownToolError) Is(target error) bool { return target == workers.ErrUnknownCapability }
