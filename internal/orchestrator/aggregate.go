package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// Result is the aggregated output of one research run. It is assembled
// once every node is terminal and not modified afterwards.
type Result struct {
	Query         string                 `json:"query"`
	SearchResults []workers.SearchRecord `json:"searchResults"`
	Analysis      workers.Analysis       `json:"analysis"`
	Summary       workers.Summary        `json:"summary"`
	Citations     workers.Citations      `json:"citations"`
	TaskID        string                 `json:"taskId,omitempty"`
}

// aggregate reads the designated output stages of a finished graph. The
// source list is every node of the sources stage merged in construction
// order and truncated to maxSources.
func aggregate(g *graph.Graph, query string, maxSources int) (*Result, error) {
	out := g.Outputs()
	res := &Result{Query: query, SearchResults: []workers.SearchRecord{}}

	if out.Sources != "" {
		nodes := g.StageNodes(out.Sources)
		ids := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i] = n.ID
		}
		ref := graph.ArrayRef(ids, workers.ContentPath)
		ref.Limit = maxSources
		raw, err := g.Collect(ref)
		if err != nil {
			return nil, fmt.Errorf("collect sources: %w", err)
		}
		if err := decodeOutput(raw, &res.SearchResults, out.Sources); err != nil {
			return nil, err
		}
	}

	singles := []struct {
		stage string
		into  any
	}{
		{out.Analysis, &res.Analysis},
		{out.Summary, &res.Summary},
		{out.Citations, &res.Citations},
	}
	for _, s := range singles {
		if s.stage == "" {
			continue
		}
		nodes := g.StageNodes(s.stage)
		if len(nodes) != 1 {
			return nil, &graph.AggregationError{
				NodeID: s.stage,
				Field:  workers.ContentPath,
				Reason: fmt.Sprintf("output stage has %d nodes, want 1", len(nodes)),
			}
		}
		raw, err := g.Collect(graph.SingleRef(nodes[0].ID, workers.ContentPath))
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", s.stage, err)
		}
		if err := decodeOutput(raw, s.into, nodes[0].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func decodeOutput(raw json.RawMessage, into any, nodeID string) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return &graph.AggregationError{NodeID: nodeID, Field: workers.ContentPath, Reason: err.Error()}
	}
	return nil
}
