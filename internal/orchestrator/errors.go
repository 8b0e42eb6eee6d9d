package orchestrator

import (
	"errors"
	"fmt"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

var (
	ErrEmptyQuery        = errors.New("research query is empty")
	ErrUnsupportedFormat = errors.New("unsupported citation format")
	ErrUnknownTemplate   = errors.New("unknown pipeline template")
)

// ResearchError reports the node whose failure ended a research run.
type ResearchError struct {
	RunID      string
	NodeID     string
	Capability workers.Capability
	Err        error
}

func (e *ResearchError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("research run %s: %v", e.RunID, e.Err)
	}
	return fmt.Sprintf("research run %s: node %s (%s): %v", e.RunID, e.NodeID, e.Capability, e.Err)
}

func (e *ResearchError) Unwrap() error { return e.Err }
