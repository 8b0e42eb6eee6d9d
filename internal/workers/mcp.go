package workers

import (
	"encoding/json"
	"strings"
)

// MethodToolsCall is the only MCP method the workers serve.
const MethodToolsCall = "tools/call"

// MCPRequest is the body posted to a worker's /api/mcp endpoint.
type MCPRequest struct {
	Method string        `json:"method"`
	Params MCPCallParams `json:"params"`
}

type MCPCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MCPResponse carries a tool result as text content.
type MCPResponse struct {
	Content []MCPContent `json:"content"`
	Error   string       `json:"error,omitempty"`
}

// TextResponse builds a single text content response.
func TextResponse(text string) MCPResponse {
	return MCPResponse{Content: []MCPContent{{Type: "text", Text: text}}}
}

// Text concatenates all text content items.
func (r MCPResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
