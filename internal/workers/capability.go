package workers

import (
	"fmt"
	"strings"
)

// Capability names one operation exposed by a worker.
type Capability string

const (
	CapabilitySearch          Capability = "search"
	CapabilityAnalyze         Capability = "analyze"
	CapabilityGenerateSummary Capability = "generateSummary"
	CapabilityFormatCitations Capability = "formatCitations"
)

// OperationPrefix is prepended to a capability when a task graph is exported.
const OperationPrefix = "tools/"

var known = []Capability{
	CapabilitySearch,
	CapabilityAnalyze,
	CapabilityGenerateSummary,
	CapabilityFormatCitations,
}

// Capabilities returns the capabilities of the research pipeline in stage order.
func Capabilities() []Capability {
	out := make([]Capability, len(known))
	copy(out, known)
	return out
}

// Known reports whether c is one of the pipeline capabilities.
func (c Capability) Known() bool {
	for _, k := range known {
		if c == k {
			return true
		}
	}
	return false
}

// Operation returns the exported operation name, e.g. "tools/search".
func (c Capability) Operation() string {
	return OperationPrefix + string(c)
}

func (c Capability) String() string { return string(c) }

// ParseCapability accepts either a bare capability or an exported operation name.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.TrimPrefix(strings.TrimSpace(s), OperationPrefix))
	if !c.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
	return c, nil
}
