package graph

import (
	"errors"
	"strconv"

	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
	"github.com/Kocoro-lab/research-orchestrator/internal/validation"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// ComposedTask is one entry of the export payload consumed by external
// schedulers. Its ID is its position in the payload.
type ComposedTask struct {
	AgentID   string           `json:"agentId"`
	Operation string           `json:"operation"`
	Parents   []string         `json:"parents,omitempty"`
	Params    map[string]Param `json:"params"`
}

// Export returns the unexecuted graph in wire form.
func (g *Graph) Export() []ComposedTask {
	out := make([]ComposedTask, len(g.Nodes))
	for i, n := range g.Nodes {
		var parents []string
		if len(n.Parents) > 0 {
			parents = append([]string(nil), n.Parents...)
		}
		out[i] = ComposedTask{
			AgentID:   n.AgentID,
			Operation: n.Capability.Operation(),
			Parents:   parents,
			Params:    cloneParams(n.Params),
		}
	}
	return out
}

// FromComposed rebuilds a graph from an export payload. Parents must be
// positions within the payload, references may only cite parents, every
// operation must name a known capability and the graph must be acyclic.
// The returned graph has no stages or outputs.
func FromComposed(tasks []ComposedTask) (*Graph, error) {
	var issues []templates.ValidationIssue
	add := func(code, format string, args ...any) {
		issues = append(issues, constructionError("", code, format, args...).Issues...)
	}

	deps := make([]validation.Dependency, len(tasks))
	g := newGraph("", templates.Outputs{})
	for i, t := range tasks {
		id := strconv.Itoa(i)
		c, err := workers.ParseCapability(t.Operation)
		if err != nil {
			add("operation_unknown", "task %s: %v", id, err)
		}

		parentSet := make(map[string]struct{}, len(t.Parents))
		for _, p := range t.Parents {
			j, err := strconv.Atoi(p)
			switch {
			case err != nil || j < 0 || j >= len(tasks):
				add("parent_unknown", "task %s: parent %q is not a task position", id, p)
			case j == i:
				add("parent_self", "task %s lists itself as a parent", id)
			}
			if _, dup := parentSet[p]; dup {
				add("parent_duplicate", "task %s lists parent %s twice", id, p)
			}
			parentSet[p] = struct{}{}
		}
		for name, param := range t.Params {
			if !param.IsRef() {
				continue
			}
			for _, src := range param.Ref.SourceIDs {
				if _, ok := parentSet[src]; !ok {
					add("reference_not_parent", "task %s param %q references %s which is not a parent", id, name, src)
				}
			}
		}

		deps[i] = validation.Dependency{ID: id, DependsOn: t.Parents}
		g.add(&TaskNode{
			AgentID:    t.AgentID,
			Capability: c,
			Parents:    append([]string(nil), t.Parents...),
			Params:     cloneParams(t.Params),
		})
	}
	if len(issues) > 0 {
		return nil, &GraphConstructionError{Issues: issues}
	}

	if _, err := validation.TopologicalOrder(deps); err != nil {
		var cycle *validation.CycleError
		if errors.As(err, &cycle) {
			return nil, constructionError("", "cycle", "%v", err)
		}
		return nil, constructionError("", "parent_unknown", "%v", err)
	}
	return g, nil
}
