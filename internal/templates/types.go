package templates

import "github.com/Kocoro-lab/research-orchestrator/internal/workers"

// Root input bindings a stage may request through `bind` or an input `limit`.
const (
	BindQuery          = "query"
	BindFocusAreas     = "focus_areas"
	BindMaxSources     = "max_sources"
	BindPerQueryLimit  = "per_query_limit"
	BindCitationFormat = "citation_format"
)

// FanOutQueries fans a stage out over the planned search queries.
const FanOutQueries = "queries"

// Container selects how a reference collects its producers' fields.
type Container string

const (
	ContainerSingle Container = "single"
	ContainerArray  Container = "array"
)

// StageKind classifies how many nodes a stage synthesizes and how they connect.
type StageKind string

const (
	StageFanOut StageKind = "fan_out" // one root node per planned query
	StageFanIn  StageKind = "fan_in"  // one node collecting a fan-out stage
	StageSingle StageKind = "single"  // one node with at most single-kind references
)

// Template is a pipeline description: stages in execution order and the
// stages whose outputs make up the terminal result.
type Template struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Version     string         `yaml:"version"`
	Stages      []Stage        `yaml:"stages"`
	Outputs     Outputs        `yaml:"outputs"`
	Metadata    map[string]any `yaml:"metadata"`
}

// Stage names a worker capability plus the literal, bound and referenced
// parameters each of its nodes receives.
type Stage struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Capability  string            `yaml:"capability"`
	FanOut      *FanOut           `yaml:"fan_out"`
	Params      map[string]any    `yaml:"params"`
	Bind        map[string]string `yaml:"bind"`
	Inputs      []StageInput      `yaml:"inputs"`
}

// FanOut expands a stage into one node per item of a root sequence, each
// node receiving its item as Param.
type FanOut struct {
	Over  string `yaml:"over"`
	Param string `yaml:"param"`
}

// StageInput is a reference to the output of an earlier stage.
type StageInput struct {
	Param     string    `yaml:"param"`
	From      string    `yaml:"from"`
	Field     string    `yaml:"field"`
	Container Container `yaml:"container"`
	// Limit truncates an array reference after merging. It is either a root
	// binding name or an integer.
	Limit string `yaml:"limit"`
	// Distinct drops later elements whose value at this path repeats.
	Distinct string `yaml:"distinct"`
}

// Outputs designates the stages feeding the aggregated research result.
type Outputs struct {
	Sources   string `yaml:"sources"`
	Analysis  string `yaml:"analysis"`
	Summary   string `yaml:"summary"`
	Citations string `yaml:"citations"`
}

// StageByID returns a pointer to the stage with the supplied ID, if present.
func (t *Template) StageByID(id string) *Stage {
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i]
		}
	}
	return nil
}

// CapabilityOf returns the stage capability as a typed value.
func (s *Stage) CapabilityOf() workers.Capability {
	return workers.Capability(s.Capability)
}
