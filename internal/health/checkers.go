package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
)

// TemplateChecker requires the pipeline template the orchestrator runs by
// default to be loaded.
type TemplateChecker struct {
	registry *templates.Registry
	required string
}

func NewTemplateChecker(registry *templates.Registry, required string) *TemplateChecker {
	return &TemplateChecker{registry: registry, required: required}
}

func (t *TemplateChecker) Name() string           { return "templates" }
func (t *TemplateChecker) IsCritical() bool       { return true }
func (t *TemplateChecker) Timeout() time.Duration { return time.Second }

func (t *TemplateChecker) Check(context.Context) CheckResult {
	list := t.registry.List()
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Key)
	}
	details := map[string]any{"loaded": names}
	if _, ok := t.registry.Lookup(t.required); !ok {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   fmt.Sprintf("template %q not loaded", t.required),
			Details: details,
		}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d template(s) loaded", len(list)), Details: details}
}

// EndpointChecker probes a remote worker's base URL. Any HTTP response
// below 500 counts as reachable.
type EndpointChecker struct {
	name    string
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewEndpointChecker(name, url string, client *http.Client) *EndpointChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &EndpointChecker{name: name, url: strings.TrimRight(url, "/"), client: client, timeout: 3 * time.Second}
}

func (e *EndpointChecker) Name() string           { return e.name }
func (e *EndpointChecker) IsCritical() bool       { return false }
func (e *EndpointChecker) Timeout() time.Duration { return e.timeout }

func (e *EndpointChecker) Check(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Details: map[string]any{"url": e.url}}
	}
	resp.Body.Close()
	details := map[string]any{"url": e.url, "status_code": resp.StatusCode}
	if resp.StatusCode >= http.StatusInternalServerError {
		return CheckResult{Status: StatusUnhealthy, Error: resp.Status, Details: details}
	}
	return CheckResult{Status: StatusHealthy, Details: details}
}

// RedisChecker pings the search cache. A tripped breaker reports degraded
// without issuing the ping.
type RedisChecker struct {
	redis *circuitbreaker.RedisWrapper
}

func NewRedisChecker(redis *circuitbreaker.RedisWrapper) *RedisChecker {
	return &RedisChecker{redis: redis}
}

func (r *RedisChecker) Name() string           { return "redis" }
func (r *RedisChecker) IsCritical() bool       { return false }
func (r *RedisChecker) Timeout() time.Duration { return 2 * time.Second }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	if r.redis.IsCircuitBreakerOpen() {
		return CheckResult{Status: StatusDegraded, Message: "circuit breaker open"}
	}
	if err := r.redis.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// FuncChecker adapts a function.
type FuncChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	fn       func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, critical bool, timeout time.Duration, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, critical: critical, timeout: timeout, fn: fn}
}

func (f *FuncChecker) Name() string                          { return f.name }
func (f *FuncChecker) IsCritical() bool                      { return f.critical }
func (f *FuncChecker) Timeout() time.Duration                { return f.timeout }
func (f *FuncChecker) Check(ctx context.Context) CheckResult { return f.fn(ctx) }
