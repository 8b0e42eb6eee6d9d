package edenlayer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

type recorded struct {
	method string
	path   string
	query  string
	key    string
	body   string
}

func fakeEdenlayer(t *testing.T, handle func(r recorded) (int, string)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("X-Api-Key"), string(body)}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		status, out := handle(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientEndpoints(t *testing.T) {
	srv, calls := fakeEdenlayer(t, func(r recorded) (int, string) {
		switch {
		case r.method == http.MethodPost && r.path == "/agents":
			return http.StatusOK, `{"agentId":"agent-1"}`
		case r.method == http.MethodPost && r.path == "/tasks":
			return http.StatusOK, `{"taskId":"t1","state":"pending"}`
		case r.method == http.MethodPost && r.path == "/tasks/compose":
			return http.StatusOK, `{"taskId":"c1","state":"in_progress"}`
		case r.method == http.MethodGet && r.path == "/tasks/c1":
			return http.StatusOK, `{"taskId":"c1","state":"completed","result":{"type":"json","data":{"content":[{"type":"text","text":"done"}]}}}`
		case r.path == "/agents/search":
			return http.StatusOK, `[{"id":"a2","name":"Citation Agent","mcpUrl":"http://x"}]`
		case r.path == "/agents":
			return http.StatusOK, `[{"id":"a1","name":"Web Search Agent"}]`
		}
		return http.StatusNotFound, `{"error":"not found"}`
	})
	c := NewClient(Config{APIURL: srv.URL + "/", APIKey: "k"}, zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := c.RegisterAgent(ctx, AgentRegistration{Name: "Web Search Agent"})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)

	res, err := c.ExecuteTask(ctx, TaskRequest{AgentID: "a1", Operation: "tools/search", Params: json.RawMessage(`{"query":"q"}`)})
	require.NoError(t, err)
	assert.Equal(t, TaskPending, res.State)

	tasks := []graph.ComposedTask{{AgentID: "a1", Operation: "tools/search", Params: map[string]graph.Param{}}}
	sub, err := c.Submit(ctx, tasks)
	require.NoError(t, err)
	assert.Equal(t, "c1", sub.ID)
	assert.Equal(t, "edenlayer", sub.Backend)
	assert.Equal(t, "in_progress", sub.Status)

	status, err := c.GetTaskStatus(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, status.State)
	assert.Contains(t, string(status.Result), `"text":"done"`)

	agents, err := c.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0].ID)

	found, err := c.SearchAgents(ctx, "citation format")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, string(found[0].Raw), "mcpUrl")

	for _, rec := range *calls {
		assert.Equal(t, "k", rec.key, rec.path)
	}
	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "query=citation+format", last.query)
	compose := (*calls)[2]
	assert.JSONEq(t, `[{"agentId":"a1","operation":"tools/search","params":{}}]`, compose.body)
}

func TestClientAPIError(t *testing.T) {
	srv, _ := fakeEdenlayer(t, func(recorded) (int, string) {
		return http.StatusUnauthorized, `{"error":"bad key"}`
	})
	c := NewClient(Config{APIURL: srv.URL}, nil)

	_, err := c.RegisterAgent(context.Background(), AgentRegistration{Name: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad key")
}

func TestRegisterAgentRequiresID(t *testing.T) {
	srv, _ := fakeEdenlayer(t, func(recorded) (int, string) { return http.StatusOK, `{}` })
	c := NewClient(Config{APIURL: srv.URL}, nil)
	_, err := c.RegisterAgent(context.Background(), AgentRegistration{Name: "x"})
	assert.ErrorContains(t, err, "no agentId")
}

func TestManifests(t *testing.T) {
	ms, err := Manifests("https://agents.example.com/")
	require.NoError(t, err)
	require.Len(t, ms, 5)

	var envs []string
	for _, m := range ms {
		envs = append(envs, m.EnvVar)
		assert.Equal(t, "https://agents.example.com/api/mcp", m.Registration.MCPURL)
		assert.Equal(t, "https://agents.example.com/api/chat", m.Registration.ChatURL)
		require.Len(t, m.Registration.Capabilities.Tools, 1)
	}
	assert.Equal(t, []string{
		"WEB_SEARCH_AGENT_ID",
		"DATA_ANALYSIS_AGENT_ID",
		"SUMMARIZATION_AGENT_ID",
		"CITATION_AGENT_ID",
		"ORCHESTRATOR_AGENT_ID",
	}, envs)

	orch := ms[4]
	assert.True(t, orch.Orchestrator)
	assert.Equal(t, "conductResearch", orch.Registration.Capabilities.Tools[0].Name)
	assert.Equal(t, "https://agents.example.com/agent-orchestrator.png", orch.Registration.ImageURL)
	assert.Equal(t, []any{"query"}, orch.Registration.Capabilities.Tools[0].InputSchema["required"])

	// manifests serialize with the registry's field names
	raw, err := json.Marshal(ms[0].Registration)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"mcpUrl":"https://agents.example.com/api/mcp"`))
	assert.True(t, strings.Contains(string(raw), `"outputSchema"`))
}

func TestRegisterAllContinuesAfterFailure(t *testing.T) {
	srv, _ := fakeEdenlayer(t, func(r recorded) (int, string) {
		if strings.Contains(r.body, `"name":"Data Analysis Agent"`) {
			return http.StatusInternalServerError, `{"error":"boom"}`
		}
		var reg AgentRegistration
		_ = json.Unmarshal([]byte(r.body), &reg)
		return http.StatusOK, `{"agentId":"id-` + strings.ReplaceAll(reg.Name, " ", "-") + `"}`
	})
	c := NewClient(Config{APIURL: srv.URL}, zaptest.NewLogger(t))
	ms, err := Manifests("http://localhost:8080")
	require.NoError(t, err)

	regs := c.RegisterAll(context.Background(), ms)
	require.Len(t, regs, 5)
	assert.Error(t, regs[1].Err)
	assert.Equal(t, "WEB_SEARCH_AGENT_ID=id-Web-Search-Agent", regs[0].EnvLine())
	assert.Equal(t, "ORCHESTRATOR_AGENT_ID=id-Research-Orchestrator", regs[4].EnvLine())

	ids := AgentIDs(regs)
	assert.Equal(t, map[workers.Capability]string{
		workers.CapabilitySearch:          "id-Web-Search-Agent",
		workers.CapabilityGenerateSummary: "id-Summarization-Agent",
		workers.CapabilityFormatCitations: "id-Citation-Agent",
	}, ids)
}
