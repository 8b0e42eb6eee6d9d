// Package orchestrator runs research pipelines: it plans the search
// fan-out, builds the task graph from a pipeline template, executes it
// layer by layer and assembles the aggregated result. It can also export
// the unexecuted graph for an external scheduler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/execution"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// DefaultMaxSources bounds the merged source list when a request leaves it unset.
const DefaultMaxSources = 5

// Request is the input of one research run.
type Request struct {
	Query          string                 `json:"query"`
	FocusAreas     []string               `json:"focusAreas,omitempty"`
	MaxSources     int                    `json:"maxSources,omitempty"`
	CitationFormat workers.CitationFormat `json:"citationFormat,omitempty"`
	// Template selects a registered pipeline; empty runs the canonical one.
	Template string `json:"template,omitempty"`
	// TaskID is echoed into the result when the run was dispatched by a scheduler.
	TaskID string `json:"taskId,omitempty"`
}

// TemplateSource looks up compiled pipeline templates by name.
type TemplateSource interface {
	Lookup(name string) (*templates.Compiled, bool)
}

// Config holds the orchestrator's collaborators and limits.
type Config struct {
	// MaxConcurrency bounds invocations per graph layer; 0 means unbounded.
	MaxConcurrency int
	// AgentIDs names the worker serving each capability in exported graphs.
	AgentIDs map[workers.Capability]string
	// Templates resolves Request.Template. Nil allows only the canonical template.
	Templates TemplateSource
}

// Orchestrator coordinates research runs against one worker invoker.
type Orchestrator struct {
	invoker workers.Invoker
	cfg     Config
	logger  *zap.Logger
}

// New creates an orchestrator. The invoker may be local or remote.
func New(inv workers.Invoker, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{invoker: inv, cfg: cfg, logger: logger}
}

// normalize applies request defaults and rejects unusable input before
// anything is planned.
func normalize(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, ErrEmptyQuery
	}
	if req.MaxSources <= 0 {
		req.MaxSources = DefaultMaxSources
	}
	if req.CitationFormat == "" {
		req.CitationFormat = workers.CitationAPA
	}
	if !req.CitationFormat.Valid() {
		return req, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.CitationFormat)
	}
	return req, nil
}

func (o *Orchestrator) template(name string) (*templates.Compiled, error) {
	if name == "" || name == templates.CanonicalName {
		if o.cfg.Templates != nil {
			if c, ok := o.cfg.Templates.Lookup(templates.CanonicalName); ok {
				return c, nil
			}
		}
		return templates.Canonical()
	}
	if o.cfg.Templates != nil {
		if c, ok := o.cfg.Templates.Lookup(name); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

func (o *Orchestrator) build(req Request, agentIDs map[workers.Capability]string) (*graph.Graph, error) {
	compiled, err := o.template(req.Template)
	if err != nil {
		return nil, err
	}
	return graph.Build(compiled, graph.RootParams{
		Query:          req.Query,
		FocusAreas:     req.FocusAreas,
		MaxSources:     req.MaxSources,
		CitationFormat: req.CitationFormat,
		AgentIDs:       agentIDs,
	})
}

// ConductResearch executes the pipeline synchronously and returns the
// aggregated result. Any failed node fails the whole run with a
// ResearchError naming the earliest root-cause node; partial results are
// never returned.
func (o *Orchestrator) ConductResearch(ctx context.Context, req Request) (*Result, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "research.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("research.run_id", runID),
		attribute.Int("research.max_sources", req.MaxSources),
		attribute.String("research.citation_format", string(req.CitationFormat)),
	)

	logger := o.logger.With(zap.String("run_id", runID))
	templateName := req.Template
	if templateName == "" {
		templateName = templates.CanonicalName
	}

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordResearchRun(templateName, "error", time.Since(start).Seconds(), 0)
		logger.Warn("Research run failed", zap.String("query", req.Query), zap.Error(err))
		return nil, err
	}

	g, err := o.build(req, o.cfg.AgentIDs)
	if err != nil {
		return fail(err)
	}
	logger.Info("Starting research run",
		zap.String("query", req.Query),
		zap.String("template", g.Template),
		zap.Int("nodes", g.Len()),
		zap.Int("max_sources", req.MaxSources),
	)

	summary, err := execution.ExecuteHybrid(ctx, g, o.invoker, execution.HybridConfig{
		MaxConcurrency: o.cfg.MaxConcurrency,
		Logger:         logger,
	})
	if err != nil {
		return fail(&ResearchError{RunID: runID, Err: err})
	}
	if n := g.FirstFailure(); n != nil {
		return fail(&ResearchError{RunID: runID, NodeID: n.ID, Capability: n.Capability, Err: n.Err})
	}

	res, err := aggregate(g, req.Query, req.MaxSources)
	if err != nil {
		return fail(&ResearchError{RunID: runID, Err: err})
	}
	res.TaskID = req.TaskID

	elapsed := time.Since(start)
	metrics.RecordResearchRun(templateName, "success", elapsed.Seconds(), len(res.SearchResults))
	logger.Info("Research run completed",
		zap.Int("layers", summary.Layers),
		zap.Int("sources", len(res.SearchResults)),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

// GenerateComposedTasks builds the canonical graph for query with default
// settings and returns it unexecuted in the composed-task wire format.
// agentIDs override the configured worker ids per capability.
func (o *Orchestrator) GenerateComposedTasks(query string, agentIDs map[workers.Capability]string) ([]graph.ComposedTask, error) {
	return o.Compose(Request{Query: query}, agentIDs)
}

// Compose is GenerateComposedTasks for an arbitrary request.
func (o *Orchestrator) Compose(req Request, agentIDs map[workers.Capability]string) ([]graph.ComposedTask, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}
	ids := make(map[workers.Capability]string, len(o.cfg.AgentIDs)+len(agentIDs))
	for c, id := range o.cfg.AgentIDs {
		ids[c] = id
	}
	for c, id := range agentIDs {
		if id != "" {
			ids[c] = id
		}
	}
	g, err := o.build(req, ids)
	if err != nil {
		return nil, err
	}
	metrics.GraphsComposed.WithLabelValues(g.Template).Inc()
	o.logger.Debug("Composed task graph",
		zap.String("query", req.Query),
		zap.String("template", g.Template),
		zap.Int("tasks", g.Len()),
	)
	return g.Export(), nil
}

// IsClientError reports whether err was caused by the request rather than
// by a worker or the engine.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnknownTemplate)
}
