package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/research-orchestrator/internal/config"
	"github.com/Kocoro-lab/research-orchestrator/internal/edenlayer"
	"github.com/Kocoro-lab/research-orchestrator/internal/workflows"
)

func baseConfig() *config.Config {
	return &config.Config{
		Workers:   config.WorkersConfig{Mode: "local"},
		Submitter: "none",
		Temporal:  config.TemporalConfig{TaskQueue: "research-test"},
	}
}

func fixedNow() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }

func TestBuildLocal(t *testing.T) {
	c, err := Build(baseConfig(), zaptest.NewLogger(t), WithClock(fixedNow))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Submitter)
	assert.Nil(t, c.Temporal)
	_, err = c.NewTemporalWorker()
	assert.Error(t, err)
	assert.Equal(t, []string{"templates"}, c.Health.Checkers())

	srv := httptest.NewServer(c.PublicHandler())
	defer srv.Close()
	body := `{"method":"tools/call","params":{"name":"conductResearch","arguments":{"query":"solar panels","maxSources":2}}}`
	resp, err := http.Post(srv.URL+"/api/mcp", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	admin := httptest.NewServer(c.AdminHandler())
	defer admin.Close()
	resp, err = http.Get(admin.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(admin.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildRedisCacheAndEdenlayerSubmitter(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Search.Cache.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Submitter = "edenlayer"

	c, err := Build(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Redis)
	assert.IsType(t, &edenlayer.Client{}, c.Submitter)
	assert.Equal(t, []string{"redis", "templates"}, c.Health.Checkers())
}

func TestBuildRemoteWorkersRegistersEndpointChecks(t *testing.T) {
	cfg := baseConfig()
	cfg.Workers.Mode = "remote"
	cfg.Workers.Remote.BaseURL = "http://workers:3000"
	cfg.Workers.Remote.Endpoints = map[string]string{"formatcitations": "http://citations:3000"}

	c, err := Build(cfg, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, []string{"templates", "worker:formatCitations", "worker:search"}, c.Health.Checkers())
}

func TestBuildTemporalSubmitter(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("Close").Return()
	cfg := baseConfig()
	cfg.Temporal.Enabled = true
	cfg.Submitter = "temporal"

	c, err := Build(cfg, zaptest.NewLogger(t), WithTemporalClient(tc))
	require.NoError(t, err)
	assert.IsType(t, &workflows.Submitter{}, c.Submitter)

	c.Close()
	tc.AssertCalled(t, "Close")
}

func TestBuildRejectsUnknownSearchProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Search.Provider = "bing"
	_, err := Build(cfg, nil)
	assert.ErrorContains(t, err, `unknown search provider "bing"`)
}
