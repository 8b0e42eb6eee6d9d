package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
)

const (
	modeRemote      = "remote"
	maxResponseSize = 8 << 20
)

// RemoteConfig locates remote workers. It is built once by the config
// package and handed to NewHTTPInvoker.
type RemoteConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	APIKey    string            `mapstructure:"api_key"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	RateLimit float64           `mapstructure:"rate_limit"`
	Burst     int               `mapstructure:"burst"`
}

// Endpoint returns the base URL serving capability c. Per-capability
// overrides win over BaseURL. Keys are matched case-insensitively since
// viper lowercases map keys.
func (c RemoteConfig) Endpoint(capability Capability) string {
	for k, v := range c.Endpoints {
		if strings.EqualFold(k, string(capability)) && v != "" {
			return v
		}
	}
	return c.BaseURL
}

// HTTPInvoker calls capabilities on remote workers through their MCP endpoint.
type HTTPInvoker struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.Mutex
	wrappers map[string]*circuitbreaker.HTTPWrapper
}

// NewHTTPInvoker creates an invoker for the workers described by cfg.
func NewHTTPInvoker(cfg RemoteConfig, logger *zap.Logger) *HTTPInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &HTTPInvoker{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		logger:   logger,
		wrappers: make(map[string]*circuitbreaker.HTTPWrapper),
	}
}

// wrapper returns the breaker-guarded client for one worker host.
func (h *HTTPInvoker) wrapper(base string) *circuitbreaker.HTTPWrapper {
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.wrappers[host]; ok {
		return w
	}
	w := circuitbreaker.NewHTTPWrapper(h.client, "worker:"+host, "workers", h.logger)
	h.wrappers[host] = w
	return w
}

func (h *HTTPInvoker) Invoke(ctx context.Context, c Capability, args json.RawMessage) (json.RawMessage, error) {
	base := h.cfg.Endpoint(c)
	if base == "" {
		return nil, &InvocationError{Capability: c, Mode: modeRemote, Err: ErrNoEndpoint}
	}

	ctx, span := tracing.StartSpan(ctx, "worker.invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.capability", string(c)),
		attribute.String("worker.mode", modeRemote),
		attribute.String("worker.endpoint", base),
	)

	start := time.Now()
	out, err := h.call(ctx, base, c, args)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordWorkerInvocation(string(c), modeRemote, "error", elapsed.Seconds())
		h.logger.Warn("Remote worker invocation failed",
			zap.String("capability", string(c)),
			zap.String("endpoint", base),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, &InvocationError{Capability: c, Mode: modeRemote, Err: err}
	}
	metrics.RecordWorkerInvocation(string(c), modeRemote, "success", elapsed.Seconds())
	return out, nil
}

func (h *HTTPInvoker) call(ctx context.Context, base string, c Capability, args json.RawMessage) (json.RawMessage, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(MCPRequest{
		Method: MethodToolsCall,
		Params: MCPCallParams{Name: string(c), Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/api/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", h.cfg.APIKey)
	}
	tracing.InjectTraceparent(ctx, req)

	resp, err := h.wrapper(base).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var mcp MCPResponse
	decodeErr := json.Unmarshal(data, &mcp)

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil {
			if t := mcp.Text(); t != "" {
				msg = t
			} else if mcp.Error != "" {
				msg = mcp.Error
			}
		}
		err := fmt.Errorf("worker returned %d: %s", resp.StatusCode, msg)
		if rejected(resp.StatusCode) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, decodeErr)
	}

	payload := json.RawMessage(strings.TrimSpace(mcp.Text()))
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, fmt.Errorf("%w: text content is not JSON", ErrInvalidResult)
	}
	if err := ValidateResult(c, payload); err != nil {
		return nil, err
	}
	return Wrap(payload)
}

// rejected reports whether the worker refused the request itself. Timeouts
// and throttling stay retryable.
func rejected(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
