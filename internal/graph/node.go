// Package graph holds the task graph of one orchestration run: nodes with
// their parents, parameter placeholders and lifecycle state, plus the
// builder that synthesizes a graph from a pipeline template and the
// resolver that fills placeholders from completed parents.
package graph

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// TaskNode is one schedulable unit of work. Only the goroutine driving the
// graph mutates a node.
type TaskNode struct {
	ID         string
	Stage      string
	AgentID    string
	Capability workers.Capability
	Parents    []string
	Params     map[string]Param

	State  State
	Result json.RawMessage
	Err    error
}

func (n *TaskNode) transition(to State) error {
	if !n.State.canTransition(to) {
		return &TransitionError{NodeID: n.ID, From: n.State, To: to}
	}
	n.State = to
	return nil
}

// Start marks a ready node as dispatched.
func (n *TaskNode) Start() error { return n.transition(StateRunning) }

// Complete records a successful result.
func (n *TaskNode) Complete(result json.RawMessage) error {
	if err := n.transition(StateCompleted); err != nil {
		return err
	}
	n.Result = result
	return nil
}

// Fail records err as the terminal cause.
func (n *TaskNode) Fail(err error) error {
	if err := n.transition(StateFailed); err != nil {
		return err
	}
	n.Err = err
	return nil
}

// DependencyFailed reports whether the node was short-circuited by a failed parent.
func (n *TaskNode) DependencyFailed() bool {
	return n.State == StateFailed && errors.Is(n.Err, ErrDependencyFailed)
}

// Graph is the set of nodes of one run, in construction order.
type Graph struct {
	Template string
	Nodes    []*TaskNode

	index   map[string]int
	stages  map[string][]string
	outputs templates.Outputs
}

func newGraph(template string, outputs templates.Outputs) *Graph {
	return &Graph{
		Template: template,
		index:    make(map[string]int),
		stages:   make(map[string][]string),
		outputs:  outputs,
	}
}

// add appends n, assigning its construction index as its ID.
func (g *Graph) add(n *TaskNode) *TaskNode {
	n.ID = strconv.Itoa(len(g.Nodes))
	g.index[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	if n.Stage != "" {
		g.stages[n.Stage] = append(g.stages[n.Stage], n.ID)
	}
	return n
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*TaskNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.Nodes[i], true
}

// StageNodes returns the nodes synthesized for a template stage, in order.
func (g *Graph) StageNodes(stage string) []*TaskNode {
	ids := g.stages[stage]
	out := make([]*TaskNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Nodes[g.index[id]])
	}
	return out
}

// Outputs names the stages whose results form the terminal result.
func (g *Graph) Outputs() templates.Outputs { return g.outputs }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.Nodes) }

// Done reports whether every node is terminal.
func (g *Graph) Done() bool {
	for _, n := range g.Nodes {
		if !n.State.Terminal() {
			return false
		}
	}
	return true
}

// Layer is the outcome of one readiness pass.
type Layer struct {
	// Ready nodes may be invoked concurrently.
	Ready []*TaskNode
	// Skipped nodes were failed with DependencyFailedError during this pass.
	Skipped []*TaskNode
}

// NextLayer promotes every pending node whose parents have all completed
// to Ready and fails every pending node with a failed parent. Failures
// cascade within one call, so a pending node never waits on a parent that
// can no longer complete.
func (g *Graph) NextLayer() Layer {
	var layer Layer
	for changed := true; changed; {
		changed = false
		for _, n := range g.Nodes {
			if n.State != StatePending {
				continue
			}
			failed := g.failedParent(n)
			if failed == "" {
				continue
			}
			_ = n.Fail(&DependencyFailedError{NodeID: n.ID, ParentID: failed})
			layer.Skipped = append(layer.Skipped, n)
			changed = true
		}
	}

	for _, n := range g.Nodes {
		if n.State == StatePending && g.parentsCompleted(n) {
			_ = n.transition(StateReady)
			layer.Ready = append(layer.Ready, n)
		}
	}
	return layer
}

func (g *Graph) failedParent(n *TaskNode) string {
	for _, pid := range n.Parents {
		if p, ok := g.Node(pid); ok && p.State == StateFailed {
			return pid
		}
	}
	return ""
}

func (g *Graph) parentsCompleted(n *TaskNode) bool {
	for _, pid := range n.Parents {
		p, ok := g.Node(pid)
		if !ok || p.State != StateCompleted {
			return false
		}
	}
	return true
}

// FirstFailure returns the earliest node, in construction order, that
// failed for a reason of its own rather than a failed parent.
func (g *Graph) FirstFailure() *TaskNode {
	for _, n := range g.Nodes {
		if n.State == StateFailed && !n.DependencyFailed() {
			return n
		}
	}
	return nil
}

// Counts tallies nodes per state.
func (g *Graph) Counts() map[State]int {
	out := make(map[State]int, len(stateNames))
	for _, n := range g.Nodes {
		out[n.State]++
	}
	return out
}
