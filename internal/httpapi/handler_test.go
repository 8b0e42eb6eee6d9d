package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/research-orchestrator/internal/agents"
	"github.com/Kocoro-lab/research-orchestrator/internal/chat"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)

type stubSubmitter struct {
	tasks []graph.ComposedTask
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, tasks []graph.ComposedTask) (orchestrator.Submission, error) {
	s.tasks = tasks
	if s.err != nil {
		return orchestrator.Submission{}, s.err
	}
	return orchestrator.Submission{ID: "sub-1", Backend: "stub", Status: "queued"}, nil
}

func newServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	local := workers.NewLocalInvoker(zaptest.NewLogger(t))
	agents.Register(local, agents.Deps{Now: func() time.Time { return fixedNow }})
	orch := orchestrator.New(local, orchestrator.Config{}, zaptest.NewLogger(t))
	classifier, err := chat.NewKeywordClassifier()
	require.NoError(t, err)

	if opts.Research == nil {
		opts.Research = orch
	}
	if opts.Tools == nil {
		opts.Tools = local
	}
	if opts.Chat == nil {
		opts.Chat = chat.NewResponder(classifier, opts.Research, nil)
	}
	opts.Logger = zaptest.NewLogger(t)
	opts.Now = func() time.Time { return fixedNow }

	mux := http.NewServeMux()
	NewHandler(opts).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func mcpText(t *testing.T, body []byte) string {
	t.Helper()
	var resp workers.MCPResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Text()
}

func TestHealth(t *testing.T) {
	srv := newServer(t, Options{APIKey: "secret"})
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{
		"status":    "healthy",
		"service":   "Research Orchestrator Agent",
		"timestamp": "2024-03-05T09:30:00.000Z",
	}, body)
}

func TestMCPConductResearch(t *testing.T) {
	srv := newServer(t, Options{})
	resp, body := post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"conductResearch","arguments":{"query":"renewable energy","maxSources":4,"citationFormat":"ieee"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	text := mcpText(t, body)
	assert.True(t, strings.HasPrefix(text, "{\n  \"query\": \"renewable energy\""), text)

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Len(t, res.SearchResults, 4)
	assert.Len(t, res.Citations.FormattedSources, 4)
}

func TestMCPCapabilityTool(t *testing.T) {
	srv := newServer(t, Options{})
	resp, body := post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"search","arguments":{"query":"wind"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []workers.SearchRecord
	require.NoError(t, json.Unmarshal([]byte(mcpText(t, body)), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Search Result for: wind", records[0].Title)

	// missing arguments fall back to handler defaults
	resp, body = post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"formatCitations"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, mcpText(t, body), "Bibliography (APA Format)")
}

func TestMCPErrors(t *testing.T) {
	srv := newServer(t, Options{})

	resp, body := post(t, srv.URL+"/api/mcp", `{"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Unknown method: tools/list"}`, string(body))

	resp, body = post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"translate"}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Error: Unknown tool: translate", mcpText(t, body))

	resp, body = post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"conductResearch","arguments":{"query":""}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Error: research query is empty", mcpText(t, body))

	resp, body = post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"generateSummary","arguments":{"analysis":{}}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, strings.HasPrefix(mcpText(t, body), "Error: invoke generateSummary"))

	resp, _ = post(t, srv.URL+"/api/mcp", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingResearcher struct{ err error }

func (f failingResearcher) ConductResearch(context.Context, orchestrator.Request) (*orchestrator.Result, error) {
	return nil, f.err
}

func (f failingResearcher) Compose(orchestrator.Request, map[workers.Capability]string) ([]graph.ComposedTask, error) {
	return nil, f.err
}

func TestMCPWorkerFailureIsBadGateway(t *testing.T) {
	err := &orchestrator.ResearchError{RunID: "r1", NodeID: "2", Capability: workers.CapabilitySearch, Err: errors.New("timeout")}
	srv := newServer(t, Options{Research: failingResearcher{err: err}})

	resp, body := post(t, srv.URL+"/api/mcp", `{"method":"tools/call","params":{"name":"conductResearch","arguments":{"query":"q"}}}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Error: research run r1: node 2 (search): timeout", mcpText(t, body))
}

func TestChat(t *testing.T) {
	srv := newServer(t, Options{})

	resp, body := post(t, srv.URL+"/api/chat", `{"message":"hello","roomId":"r","userId":"u","agentId":"a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply chatResponse
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.True(t, strings.HasPrefix(reply.Message, "Hello! I'm the Research Orchestrator Agent."))
	assert.Equal(t, "2024-03-05T09:30:00.000Z", reply.Timestamp)

	resp, body = post(t, srv.URL+"/api/chat", `{"message":"Research tidal power"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.True(t, strings.HasPrefix(reply.Message, "🔍 Research Complete: tidal power"))
	assert.Contains(t, reply.Message, "📚 Sources: 4 sources found")
}

func TestChatError(t *testing.T) {
	srv := newServer(t, Options{Research: failingResearcher{err: errors.New("boom")}})

	resp, body := post(t, srv.URL+"/api/chat", `{"message":"research anything"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var reply chatResponse
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, "I apologize, but I encountered an error: boom. Please try rephrasing your request.", reply.Message)
}

func TestCompose(t *testing.T) {
	srv := newServer(t, Options{})

	resp, body := post(t, srv.URL+"/api/compose", `{"query":"fusion","agentIds":{"tools/search":"web-search-1"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tasks []graph.ComposedTask
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 7)
	assert.Equal(t, "web-search-1", tasks[0].AgentID)
	assert.Equal(t, "tools/formatCitations", tasks[6].Operation)

	resp, _ = post(t, srv.URL+"/api/compose", `{"query":"fusion","agentIds":{"translate":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/compose", `{"query":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestComposeSubmit(t *testing.T) {
	srv := newServer(t, Options{})
	resp, _ := post(t, srv.URL+"/api/compose/submit", `{"query":"fusion"}`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	sub := &stubSubmitter{}
	srv = newServer(t, Options{Submitter: sub})
	resp, body := post(t, srv.URL+"/api/compose/submit", `{"query":"fusion"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out submitResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "sub-1", out.Submission.ID)
	assert.Len(t, out.Tasks, 7)
	assert.Len(t, sub.tasks, 7)

	srv = newServer(t, Options{Submitter: &stubSubmitter{err: errors.New("scheduler down")}})
	resp, _ = post(t, srv.URL+"/api/compose/submit", `{"query":"fusion"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newServer(t, Options{APIKey: "secret"})

	resp, _ := post(t, srv.URL+"/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/chat", `{"message":"hi"}`, "X-Api-Key", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
