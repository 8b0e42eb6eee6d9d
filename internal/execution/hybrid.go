package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// HybridConfig controls graph execution.
type HybridConfig struct {
	MaxConcurrency int // per layer
	Logger         *zap.Logger
}

// HybridResult summarizes a finished graph run. Node results and errors
// stay on the graph.
type HybridResult struct {
	Layers    int
	Completed int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// ExecuteHybrid drives g to completion. Each layer of ready nodes has its
// references resolved and is then invoked as one concurrent batch; the
// next layer is computed only after the whole batch is terminal. Nodes
// whose parents failed are failed without being invoked.
//
// The returned error is reserved for the engine itself (a cancelled
// context or a graph that can make no progress). Worker failures are
// recorded on their nodes.
func ExecuteHybrid(ctx context.Context, g *graph.Graph, inv workers.Invoker, cfg HybridConfig) (*HybridResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	res := &HybridResult{}

	logger.Debug("Starting graph execution",
		zap.String("template", g.Template),
		zap.Int("nodes", g.Len()),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	for {
		layer := g.NextLayer()
		for _, n := range layer.Skipped {
			res.Skipped++
			metrics.DependencyShortCircuits.WithLabelValues(string(n.Capability)).Inc()
			metrics.RecordNodeTerminal(string(n.Capability), graph.StateFailed.String())
			logger.Debug("Skipping node with failed dependency",
				zap.String("node_id", n.ID),
				zap.String("capability", string(n.Capability)),
				zap.Error(n.Err),
			)
		}
		if len(layer.Ready) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execute graph: %w", err)
		}

		res.Layers++
		completed, failed := runLayer(ctx, g, inv, layer.Ready, res.Layers, cfg, logger)
		res.Completed += completed
		res.Failed += failed
	}

	metrics.GraphLayers.Observe(float64(res.Layers))
	res.Duration = time.Since(start)
	if !g.Done() {
		return res, errors.New("execute graph: no runnable nodes left but graph is not terminal")
	}

	logger.Debug("Graph execution completed",
		zap.String("template", g.Template),
		zap.Int("layers", res.Layers),
		zap.Int("completed", res.Completed),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func runLayer(ctx context.Context, g *graph.Graph, inv workers.Invoker, ready []*graph.TaskNode, number int, cfg HybridConfig, logger *zap.Logger) (completed, failed int) {
	ctx, span := tracing.StartSpan(ctx, "graph.layer")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.layer", number),
		attribute.Int("graph.layer.size", len(ready)),
	)

	// references are resolved on this goroutine before dispatch; only the
	// invocations run concurrently
	runnable := make([]*graph.TaskNode, 0, len(ready))
	tasks := make([]Task[json.RawMessage], 0, len(ready))
	for _, n := range ready {
		args, err := g.ResolveParams(n)
		if err != nil {
			_ = n.Fail(err)
			failed++
			metrics.RecordNodeTerminal(string(n.Capability), graph.StateFailed.String())
			logger.Warn("Failed to resolve node parameters",
				zap.String("node_id", n.ID),
				zap.String("capability", string(n.Capability)),
				zap.Error(err),
			)
			continue
		}
		_ = n.Start()
		runnable = append(runnable, n)
		c := n.Capability
		tasks = append(tasks, func(ctx context.Context) (json.RawMessage, error) {
			return inv.Invoke(ctx, c, args)
		})
	}

	outcomes := RunAll(ctx, tasks, ParallelConfig{MaxConcurrency: cfg.MaxConcurrency})
	for i, out := range outcomes {
		n := runnable[i]
		if out.Err != nil {
			var invErr *workers.InvocationError
			err := out.Err
			if !errors.As(err, &invErr) {
				err = &workers.InvocationError{Capability: n.Capability, Err: err}
			}
			_ = n.Fail(err)
			failed++
			metrics.RecordNodeTerminal(string(n.Capability), graph.StateFailed.String())
			logger.Warn("Node failed",
				zap.String("node_id", n.ID),
				zap.String("capability", string(n.Capability)),
				zap.Error(err),
			)
			continue
		}
		_ = n.Complete(out.Value)
		completed++
		metrics.RecordNodeTerminal(string(n.Capability), graph.StateCompleted.String())
	}
	return completed, failed
}
