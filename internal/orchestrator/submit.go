package orchestrator

import (
	"context"

	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
)

// Submission identifies a composed graph handed to an external scheduler.
type Submission struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Status  string `json:"status,omitempty"`
}

// Submitter hands an exported task graph to a scheduler that executes it
// asynchronously.
type Submitter interface {
	Submit(ctx context.Context, tasks []graph.ComposedTask) (Submission, error)
}
