// Package edenlayer is a client for the Edenlayer agent registry and task
// router, which runs composed task graphs on registered agents.
package edenlayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
)

const DefaultAPIURL = "https://api.edenlayer.com"

// Config locates the Edenlayer API.
type Config struct {
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("edenlayer: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the Edenlayer REST API with the X-Api-Key header.
type Client struct {
	base   string
	apiKey string
	httpw  *circuitbreaker.HTTPWrapper
	log    *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		base:   strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		httpw:  circuitbreaker.NewHTTPWrapper(httpClient, "edenlayer", "edenlayer", logger),
		log:    logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	ctx, span := tracing.StartHTTPSpan(ctx, method, u)
	defer span.End()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("edenlayer: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("edenlayer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return fmt.Errorf("edenlayer: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("edenlayer: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Edenlayer request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("edenlayer: decode response: %w", err)
	}
	return nil
}

// RegisterAgent registers an agent and returns its assigned id.
func (c *Client) RegisterAgent(ctx context.Context, reg AgentRegistration) (string, error) {
	var out struct {
		AgentID string `json:"agentId"`
	}
	if err := c.do(ctx, http.MethodPost, "/agents", nil, reg, &out); err != nil {
		return "", err
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("edenlayer: register %q: response has no agentId", reg.Name)
	}
	return out.AgentID, nil
}

// ExecuteTask runs one operation on one agent.
func (c *Client) ExecuteTask(ctx context.Context, task TaskRequest) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, task, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComposeTasks submits a composed task graph for asynchronous execution.
func (c *Client) ComposeTasks(ctx context.Context, tasks []graph.ComposedTask) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks/compose", nil, tasks, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTaskStatus fetches the state of a task or composed graph.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAgents returns every registered agent.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, http.MethodGet, "/agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchAgents returns agents matching query.
func (c *Client) SearchAgents(ctx context.Context, query string) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, http.MethodGet, "/agents/search", url.Values{"query": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit implements orchestrator.Submitter on top of ComposeTasks.
func (c *Client) Submit(ctx context.Context, tasks []graph.ComposedTask) (orchestrator.Submission, error) {
	res, err := c.ComposeTasks(ctx, tasks)
	if err != nil {
		return orchestrator.Submission{}, err
	}
	return orchestrator.Submission{ID: res.TaskID, Backend: "edenlayer", Status: string(res.State)}, nil
}
