package graph

import (
	"strconv"

	"github.com/Kocoro-lab/research-orchestrator/internal/planner"
	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// RootParams is the per-run input a template is instantiated with.
type RootParams struct {
	Query          string
	FocusAreas     []string
	MaxSources     int
	CitationFormat workers.CitationFormat
	// AgentIDs maps a capability to the worker that serves it. Missing
	// entries fall back to the capability name.
	AgentIDs map[workers.Capability]string
}

func (r RootParams) agentFor(c workers.Capability) string {
	if id := r.AgentIDs[c]; id != "" {
		return id
	}
	return string(c)
}

// Build synthesizes the task graph for one run. Stages are expanded in
// template order and node IDs are construction indices, so identical
// templates and inputs always yield identical graphs.
func Build(compiled *templates.Compiled, root RootParams) (*Graph, error) {
	if compiled == nil || compiled.Template == nil {
		return nil, constructionError("", "template_nil", "template is nil")
	}
	name := compiled.Name()

	queries := planner.Plan(root.Query, root.FocusAreas)
	focus := root.FocusAreas
	if focus == nil {
		focus = []string{}
	}
	bindings := map[string]any{
		templates.BindQuery:          root.Query,
		templates.BindFocusAreas:     focus,
		templates.BindMaxSources:     root.MaxSources,
		templates.BindPerQueryLimit:  planner.PerQueryLimit(root.MaxSources, len(queries)),
		templates.BindCitationFormat: string(root.CitationFormat),
	}

	g := newGraph(name, compiled.Outputs())
	for i := range compiled.Stages {
		st := &compiled.Stages[i]
		base, err := baseParams(name, st, bindings)
		if err != nil {
			return nil, err
		}

		if st.Kind == templates.StageFanOut {
			for _, q := range queries {
				params := cloneParams(base)
				if params[st.FanOut.Param], err = Literal(q); err != nil {
					return nil, constructionError(name, "param_encode", "stage '%s': %v", st.ID, err)
				}
				g.add(&TaskNode{
					Stage:      st.ID,
					AgentID:    root.agentFor(st.Capability),
					Capability: st.Capability,
					Params:     params,
				})
			}
			continue
		}

		node := &TaskNode{
			Stage:      st.ID,
			AgentID:    root.agentFor(st.Capability),
			Capability: st.Capability,
			Params:     base,
		}
		seen := make(map[string]struct{})
		for _, in := range st.Inputs {
			sources := g.stages[in.From]
			if len(sources) == 0 {
				return nil, constructionError(name, "input_source_empty", "stage '%s' input '%s': stage '%s' produced no nodes", st.ID, in.Param, in.From)
			}
			ref, err := inputReference(name, st.ID, in, sources, bindings)
			if err != nil {
				return nil, err
			}
			node.Params[in.Param] = RefParam(ref)
			for _, id := range sources {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					node.Parents = append(node.Parents, id)
				}
			}
		}
		g.add(node)
	}
	return g, nil
}

func baseParams(template string, st *templates.CompiledStage, bindings map[string]any) (map[string]Param, error) {
	params := make(map[string]Param, len(st.Params)+len(st.Bind)+len(st.Inputs)+1)
	for k, v := range st.Params {
		p, err := Literal(v)
		if err != nil {
			return nil, constructionError(template, "param_encode", "stage '%s' param '%s': %v", st.ID, k, err)
		}
		params[k] = p
	}
	for k, root := range st.Bind {
		v, ok := bindings[root]
		if !ok {
			return nil, constructionError(template, "bind_unknown", "stage '%s' binds unknown root input '%s'", st.ID, root)
		}
		p, err := Literal(v)
		if err != nil {
			return nil, constructionError(template, "param_encode", "stage '%s' bind '%s': %v", st.ID, k, err)
		}
		params[k] = p
	}
	return params, nil
}

func inputReference(template, stage string, in templates.CompiledInput, sources []string, bindings map[string]any) (*Reference, error) {
	if in.Container == templates.ContainerSingle {
		if len(sources) != 1 {
			return nil, constructionError(template, "input_single_over_fan_out",
				"stage '%s' input '%s' takes a single value from %d nodes", stage, in.Param, len(sources))
		}
		return SingleRef(sources[0], in.Field), nil
	}

	ref := ArrayRef(sources, in.Field)
	ref.DistinctBy = in.Distinct
	if in.Limit == "" {
		return ref, nil
	}
	if n, err := strconv.Atoi(in.Limit); err == nil {
		ref.Limit = n
		return ref, nil
	}
	n, ok := bindings[in.Limit].(int)
	if !ok {
		return nil, constructionError(template, "input_limit_invalid",
			"stage '%s' input '%s' limit '%s' is not an integer input", stage, in.Param, in.Limit)
	}
	if n > 0 {
		ref.Limit = n
	}
	return ref, nil
}

func cloneParams(in map[string]Param) map[string]Param {
	out := make(map[string]Param, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
