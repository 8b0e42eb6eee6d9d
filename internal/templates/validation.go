package templates

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationIssue captures a single validation failure with a stable code for metrics.
type ValidationIssue struct {
	Code    string
	Message string
}

// ValidationError aggregates template validation failures.
type ValidationError struct {
	Issues []ValidationIssue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch len(e.Issues) {
	case 0:
		return "template validation failed"
	case 1:
		return e.Issues[0].Message
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.Issues), strings.Join(e.Messages(), "; "))
}

// HasIssues reports whether any validation problems were captured.
func (e *ValidationError) HasIssues() bool {
	return e != nil && len(e.Issues) > 0
}

// Messages returns just the human-readable text for each issue.
func (e *ValidationError) Messages() []string {
	if e == nil {
		return nil
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return msgs
}

// Codes returns the issue codes in order.
func (e *ValidationError) Codes() []string {
	if e == nil {
		return nil
	}
	codes := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		codes[i] = issue.Code
	}
	return codes
}

var rootBindings = map[string]struct{}{
	BindQuery:          {},
	BindFocusAreas:     {},
	BindMaxSources:     {},
	BindPerQueryLimit:  {},
	BindCitationFormat: {},
}

// IsRootBinding reports whether name is a root input a stage may bind to.
func IsRootBinding(name string) bool {
	_, ok := rootBindings[name]
	return ok
}

type issues []ValidationIssue

func (is *issues) add(code, format string, args ...any) {
	*is = append(*is, ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...)})
}

// ValidateTemplate performs structural checks and returns a ValidationError when problems exist.
// A stage may only consume stages declared before it, so a valid template is acyclic.
func ValidateTemplate(tpl *Template) error {
	if tpl == nil {
		return &ValidationError{Issues: []ValidationIssue{{Code: "template_nil", Message: "template is nil"}}}
	}

	var is issues
	if strings.TrimSpace(tpl.Name) == "" {
		is.add("template_name_missing", "template name is required")
	}
	if len(tpl.Stages) == 0 {
		is.add("template_stages_empty", "at least one stage is required")
	}

	declared := make(map[string]struct{}, len(tpl.Stages))
	for _, st := range tpl.Stages {
		declared[strings.TrimSpace(st.ID)] = struct{}{}
	}
	// position of every stage seen so far, and whether it fans out
	position := make(map[string]int, len(tpl.Stages))
	fanOut := make(map[string]bool, len(tpl.Stages))

	for i := range tpl.Stages {
		st := &tpl.Stages[i]
		id := strings.TrimSpace(st.ID)
		if id == "" {
			is.add("stage_id_missing", "stage at index %d is missing an id", i)
			continue
		}
		if _, dup := position[id]; dup {
			is.add("stage_id_duplicate", "duplicate stage id '%s'", id)
			continue
		}
		validateStage(&is, st, declared, position, fanOut)
		position[id] = i
		fanOut[id] = st.FanOut != nil
	}

	outputs := []struct{ name, stage string }{
		{"sources", tpl.Outputs.Sources},
		{"analysis", tpl.Outputs.Analysis},
		{"summary", tpl.Outputs.Summary},
		{"citations", tpl.Outputs.Citations},
	}
	for _, out := range outputs {
		if strings.TrimSpace(out.stage) == "" {
			is.add("output_missing", "outputs.%s is required", out.name)
			continue
		}
		if _, ok := position[out.stage]; !ok {
			is.add("output_stage_unknown", "outputs.%s references unknown stage '%s'", out.name, out.stage)
			continue
		}
		if out.name != "sources" && fanOut[out.stage] {
			is.add("output_fan_out", "outputs.%s must name a single-node stage, '%s' fans out", out.name, out.stage)
		}
	}

	if len(is) > 0 {
		return &ValidationError{Issues: is}
	}
	return nil
}

func validateStage(is *issues, st *Stage, declared map[string]struct{}, position map[string]int, fanOut map[string]bool) {
	if !st.CapabilityOf().Known() {
		is.add("capability_unknown", "unknown capability '%s' at stage '%s'", st.Capability, st.ID)
	}

	// every parameter name must be set exactly once across params, bind, inputs and fan-out
	seen := make(map[string]string)
	claim := func(param, via string) {
		if strings.TrimSpace(param) == "" {
			return
		}
		if prev, ok := seen[param]; ok {
			is.add("param_conflict", "parameter '%s' at stage '%s' set by both %s and %s", param, st.ID, prev, via)
			return
		}
		seen[param] = via
	}

	if st.FanOut != nil {
		if st.FanOut.Over != FanOutQueries {
			is.add("fan_out_source_unknown", "stage '%s' fans out over unknown sequence '%s'", st.ID, st.FanOut.Over)
		}
		if strings.TrimSpace(st.FanOut.Param) == "" {
			is.add("fan_out_param_missing", "stage '%s' fan_out.param is required", st.ID)
		}
		if len(st.Inputs) > 0 {
			is.add("fan_out_inputs", "fan-out stage '%s' cannot consume earlier stages", st.ID)
		}
		claim(st.FanOut.Param, "fan_out")
	}

	for name := range st.Params {
		claim(name, "params")
	}
	for name, root := range st.Bind {
		if !IsRootBinding(root) {
			is.add("bind_unknown", "stage '%s' binds '%s' to unknown root input '%s'", st.ID, name, root)
		}
		claim(name, "bind")
	}

	for j, in := range st.Inputs {
		if strings.TrimSpace(in.Param) == "" {
			is.add("input_param_missing", "input %d of stage '%s' is missing a param", j, st.ID)
		}
		claim(in.Param, "inputs")

		if in.From == st.ID {
			is.add("input_self_reference", "stage '%s' cannot consume itself", st.ID)
			continue
		}
		if _, ok := position[in.From]; !ok {
			if _, later := declared[in.From]; later {
				is.add("input_forward_reference", "stage '%s' references later stage '%s'", st.ID, in.From)
			} else {
				is.add("input_source_unknown", "stage '%s' references unknown stage '%s'", st.ID, in.From)
			}
			continue
		}

		switch in.Container {
		case "":
		case ContainerSingle:
			if fanOut[in.From] {
				is.add("input_single_over_fan_out", "stage '%s' takes a single value from fan-out stage '%s'", st.ID, in.From)
			}
		case ContainerArray:
		default:
			is.add("input_container_invalid", "stage '%s' input '%s' has unknown container '%s'", st.ID, in.Param, in.Container)
		}

		if in.Limit != "" {
			if n, err := strconv.Atoi(in.Limit); err == nil {
				if n <= 0 {
					is.add("input_limit_invalid", "stage '%s' input '%s' limit must be positive", st.ID, in.Param)
				}
			} else if !IsRootBinding(in.Limit) {
				is.add("input_limit_invalid", "stage '%s' input '%s' limit '%s' is neither a number nor a root input", st.ID, in.Param, in.Limit)
			}
		}
		if (in.Limit != "" || in.Distinct != "") && containerFor(in, fanOut[in.From]) != ContainerArray {
			is.add("input_limit_single", "stage '%s' input '%s' limit/distinct only apply to array inputs", st.ID, in.Param)
		}
	}
}

// containerFor derives the container of an input: explicit when given,
// otherwise array for fan-out producers and single for everything else.
func containerFor(in StageInput, fromFanOut bool) Container {
	if in.Container != "" {
		return in.Container
	}
	if fromFanOut {
		return ContainerArray
	}
	return ContainerSingle
}
