// Package server assembles the research service from its configuration
// and exposes the public and admin HTTP handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/activities"
	"github.com/Kocoro-lab/research-orchestrator/internal/agents"
	"github.com/Kocoro-lab/research-orchestrator/internal/chat"
	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/config"
	"github.com/Kocoro-lab/research-orchestrator/internal/edenlayer"
	"github.com/Kocoro-lab/research-orchestrator/internal/health"
	"github.com/Kocoro-lab/research-orchestrator/internal/httpapi"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/temporal"
	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
	"github.com/Kocoro-lab/research-orchestrator/internal/workflows"
)

// Components is the wired service.
type Components struct {
	Config       *config.Config
	Logger       *zap.Logger
	Templates    *templates.Registry
	Invoker      workers.Invoker
	Orchestrator *orchestrator.Orchestrator
	Chat         *chat.Responder
	Edenlayer    *edenlayer.Client
	Health       *health.Manager
	Submitter    orchestrator.Submitter

	// Redis is set when the search cache uses it.
	Redis *circuitbreaker.RedisWrapper
	// Temporal is set when temporal.enabled is true.
	Temporal client.Client

	now func() time.Time
}

// Option adjusts Build.
type Option func(*Components)

// WithTemporalClient uses c instead of dialing temporal.host.
func WithTemporalClient(c client.Client) Option {
	return func(s *Components) { s.Temporal = c }
}

// WithClock fixes the clock used for citation dates and chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Components) { s.now = now }
}

// Build wires every component described by cfg. Temporal is dialed only
// when enabled and no client was supplied.
func Build(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg, Logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	c.Templates = templates.NewRegistry()
	if err := c.Templates.LoadBuiltins(); err != nil {
		return nil, fmt.Errorf("load builtin templates: %w", err)
	}
	if dir := cfg.Research.TemplateDir; dir != "" {
		if err := c.Templates.LoadDirectory(dir); err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", dir, err)
		}
	}

	if cfg.Search.Cache.Backend == "redis" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.Redis = circuitbreaker.NewRedisWrapper(rc, "search-cache", logger)
	}

	inv, err := c.buildInvoker()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Invoker = inv

	c.Orchestrator = orchestrator.New(inv, orchestrator.Config{
		MaxConcurrency: cfg.Research.MaxConcurrency,
		AgentIDs:       cfg.AgentIDs.ByCapability(),
		Templates:      c.Templates,
	}, logger)

	classifier, err := chat.NewKeywordClassifier()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build chat classifier: %w", err)
	}
	c.Chat = chat.NewResponder(classifier, c.Orchestrator, logger)
	c.Edenlayer = edenlayer.NewClient(cfg.Edenlayer, logger)

	if cfg.Temporal.Enabled && c.Temporal == nil {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.Host,
			Namespace: cfg.Temporal.Namespace,
			Logger:    temporal.NewZapAdapter(logger),
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("dial temporal %s: %w", cfg.Temporal.Host, err)
		}
		c.Temporal = tc
	}

	switch strings.ToLower(cfg.Submitter) {
	case "edenlayer":
		c.Submitter = c.Edenlayer
	case "temporal":
		if c.Temporal == nil {
			c.Close()
			return nil, errors.New("temporal submitter configured without a temporal client")
		}
		c.Submitter = workflows.NewSubmitter(c.Temporal, cfg.Temporal.TaskQueue, logger)
	}

	c.Health = health.NewManager(logger)
	if err := c.registerCheckers(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) buildInvoker() (workers.Invoker, error) {
	switch c.Config.Workers.Mode {
	case "remote":
		return workers.NewHTTPInvoker(c.Config.Workers.Remote, c.Logger), nil
	case "", "local":
		search, err := agents.NewSearchProvider(c.Config.Search, c.Redis, c.Logger)
		if err != nil {
			return nil, err
		}
		local := workers.NewLocalInvoker(c.Logger)
		agents.Register(local, agents.Deps{Search: search, Now: c.now})
		return local, nil
	}
	return nil, fmt.Errorf("unknown worker mode %q", c.Config.Workers.Mode)
}

func (c *Components) registerCheckers() error {
	checkers := []health.Checker{health.NewTemplateChecker(c.Templates, templates.CanonicalName)}
	if c.Redis != nil {
		checkers = append(checkers, health.NewRedisChecker(c.Redis))
	}
	if c.Config.Workers.Mode == "remote" {
		seen := make(map[string]bool)
		for _, capability := range workers.Capabilities() {
			url := c.Config.Workers.Remote.Endpoint(capability)
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			checkers = append(checkers, health.NewEndpointChecker("worker:"+string(capability), url, nil))
		}
	}
	for _, chk := range checkers {
		if err := c.Health.RegisterChecker(chk); err != nil {
			return fmt.Errorf("register health checker: %w", err)
		}
	}
	return nil
}

// PublicHandler serves the /api routes.
func (c *Components) PublicHandler() http.Handler {
	h := httpapi.NewHandler(httpapi.Options{
		Research:  c.Orchestrator,
		Tools:     c.Invoker,
		Chat:      c.Chat,
		Submitter: c.Submitter,
		APIKey:    c.Config.Server.APIKey,
		Logger:    c.Logger,
		Now:       c.now,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// AdminHandler serves health probes and Prometheus metrics.
func (c *Components) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	health.NewHTTPHandler(c.Health, c.Logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// NewTemporalWorker returns a worker on the configured task queue with the
// composed graph workflow registered. The caller runs and stops it.
func (c *Components) NewTemporalWorker() (worker.Worker, error) {
	if c.Temporal == nil {
		return nil, errors.New("temporal is not enabled")
	}
	w := worker.New(c.Temporal, c.Config.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, activities.NewActivities(c.Invoker, c.Logger))
	return w, nil
}

// WatchTemplates hot-reloads the template directory until ctx is done.
// It is a no-op without a directory or with watching disabled.
func (c *Components) WatchTemplates(ctx context.Context) error {
	dir := c.Config.Research.TemplateDir
	if dir == "" || !c.Config.Research.WatchTemplates {
		return nil
	}
	return c.Templates.Watch(ctx, dir, c.Logger)
}

// Close releases clients opened by Build.
func (c *Components) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}
