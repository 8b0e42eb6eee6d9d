// Package workflows holds the Temporal workflows that execute composed
// task graphs durably.
package workflows

import (
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Kocoro-lab/research-orchestrator/internal/activities"
	"github.com/Kocoro-lab/research-orchestrator/internal/constants"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// ErrTypeGraphConstruction marks a payload that does not form a valid graph.
const ErrTypeGraphConstruction = "GraphConstructionError"

// ComposedGraphInput is an export payload plus execution limits.
type ComposedGraphInput struct {
	Tasks []graph.ComposedTask `json:"tasks"`
	// MaxConcurrency caps in-flight activities per layer. Zero means the
	// whole layer at once.
	MaxConcurrency int `json:"max_concurrency,omitempty"`
}

// NodeOutcome is the terminal state of one node.
type NodeOutcome struct {
	ID         string          `json:"id"`
	Capability string          `json:"capability"`
	State      string          `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ComposedGraphResult summarizes a finished graph.
type ComposedGraphResult struct {
	Nodes        []NodeOutcome `json:"nodes"`
	Layers       int           `json:"layers"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	FirstFailure string        `json:"first_failure,omitempty"`
	Success      bool          `json:"success"`
}

// ComposedGraphWorkflow executes an exported task graph layer by layer.
// Every ready node of a layer is dispatched as an InvokeCapability activity
// and the next layer is computed once the whole layer is terminal. Nodes
// with a failed parent are failed without dispatch. Node failures are
// reported in the result; the workflow itself fails only on a malformed
// payload.
func ComposedGraphWorkflow(ctx workflow.Context, input ComposedGraphInput) (ComposedGraphResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ComposedGraphWorkflow", "tasks", len(input.Tasks))

	g, err := graph.FromComposed(input.Tasks)
	if err != nil {
		return ComposedGraphResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeGraphConstruction, err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var res ComposedGraphResult
	for {
		layer := g.NextLayer()
		for _, n := range layer.Skipped {
			res.Skipped++
			logger.Debug("Skipping node with failed dependency", "node_id", n.ID, "error", n.Err)
		}
		if len(layer.Ready) == 0 {
			break
		}
		res.Layers++
		completed, failed := runLayer(ctx, g, layer.Ready, input.MaxConcurrency)
		res.Completed += completed
		res.Failed += failed
		logger.Info("Layer completed", "layer", res.Layers, "completed", completed, "failed", failed)
	}
	if !g.Done() {
		return res, errors.New("composed graph: no runnable nodes left but graph is not terminal")
	}

	res.Nodes = outcomes(g)
	if f := g.FirstFailure(); f != nil {
		res.FirstFailure = f.ID
	}
	res.Success = res.Failed == 0 && res.Skipped == 0
	logger.Info("ComposedGraphWorkflow completed",
		"layers", res.Layers,
		"completed", res.Completed,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res, nil
}

type inflight struct {
	node   *graph.TaskNode
	future workflow.Future
}

func runLayer(ctx workflow.Context, g *graph.Graph, ready []*graph.TaskNode, limit int) (completed, failed int) {
	if limit <= 0 || limit > len(ready) {
		limit = len(ready)
	}
	for start := 0; start < len(ready); start += limit {
		batch := ready[start:min(start+limit, len(ready))]

		pending := make([]inflight, 0, len(batch))
		for _, n := range batch {
			args, err := g.ResolveParams(n)
			if err != nil {
				_ = n.Fail(err)
				failed++
				continue
			}
			_ = n.Start()
			f := workflow.ExecuteActivity(ctx, constants.InvokeCapabilityActivity, activities.InvokeInput{
				NodeID:     n.ID,
				Capability: string(n.Capability),
				Args:       args,
			})
			pending = append(pending, inflight{node: n, future: f})
		}

		for _, p := range pending {
			var out activities.InvokeResult
			if err := p.future.Get(ctx, &out); err != nil {
				_ = p.node.Fail(&workers.InvocationError{Capability: p.node.Capability, Err: err})
				failed++
				continue
			}
			_ = p.node.Complete(out.Result)
			completed++
		}
	}
	return completed, failed
}

func outcomes(g *graph.Graph) []NodeOutcome {
	out := make([]NodeOutcome, len(g.Nodes))
	for i, n := range g.Nodes {
		o := NodeOutcome{
			ID:         n.ID,
			Capability: string(n.Capability),
			State:      n.State.String(),
			Result:     n.Result,
		}
		if n.Err != nil {
			o.Error = n.Err.Error()
		}
		out[i] = o
	}
	return out
}
