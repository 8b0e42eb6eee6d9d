package templates

import (
	"strings"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

const defaultField = workers.ContentPath

// Compiled is a validated template with every stage's kind and every
// input's container and field resolved.
type Compiled struct {
	Template *Template
	Stages   []CompiledStage
	index    map[string]int
}

// CompiledStage is one stage ready for graph construction.
type CompiledStage struct {
	ID         string
	Capability workers.Capability
	Kind       StageKind
	FanOut     *FanOut
	Params     map[string]any
	Bind       map[string]string
	Inputs     []CompiledInput
}

// CompiledInput is a stage input with defaults applied.
type CompiledInput struct {
	Param     string
	From      string
	Field     string
	Container Container
	Limit     string
	Distinct  string
}

// CompileTemplate validates tpl and resolves stage kinds.
func CompileTemplate(tpl *Template) (*Compiled, error) {
	if err := ValidateTemplate(tpl); err != nil {
		return nil, err
	}

	c := &Compiled{
		Template: tpl,
		Stages:   make([]CompiledStage, 0, len(tpl.Stages)),
		index:    make(map[string]int, len(tpl.Stages)),
	}
	for _, st := range tpl.Stages {
		cs := CompiledStage{
			ID:         strings.TrimSpace(st.ID),
			Capability: st.CapabilityOf(),
			Kind:       StageSingle,
			FanOut:     st.FanOut,
			Params:     st.Params,
			Bind:       st.Bind,
		}
		if st.FanOut != nil {
			cs.Kind = StageFanOut
		}
		for _, in := range st.Inputs {
			from := c.Stages[c.index[in.From]]
			ci := CompiledInput{
				Param:     in.Param,
				From:      in.From,
				Field:     strings.TrimSpace(in.Field),
				Container: containerFor(in, from.Kind == StageFanOut),
				Limit:     in.Limit,
				Distinct:  in.Distinct,
			}
			if ci.Field == "" {
				ci.Field = defaultField
			}
			if ci.Container == ContainerArray {
				cs.Kind = StageFanIn
			}
			cs.Inputs = append(cs.Inputs, ci)
		}
		c.index[cs.ID] = len(c.Stages)
		c.Stages = append(c.Stages, cs)
	}
	return c, nil
}

// Stage returns the compiled stage with the given id.
func (c *Compiled) Stage(id string) (*CompiledStage, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return &c.Stages[i], true
}

// Name returns the template name.
func (c *Compiled) Name() string { return c.Template.Name }

// Outputs returns the stages designated for the terminal result.
func (c *Compiled) Outputs() Outputs { return c.Template.Outputs }
