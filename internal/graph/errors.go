package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
)

var (
	// ErrDependencyFailed is matched by every DependencyFailedError.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnresolvedReference marks a reference evaluated before its source completed.
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// GraphConstructionError reports a template or composed task list that
// cannot be turned into a graph. Nothing has executed when it is returned.
type GraphConstructionError struct {
	Template string
	Issues   []templates.ValidationIssue
}

func (e *GraphConstructionError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Message
	}
	name := e.Template
	if name == "" {
		name = "composed graph"
	}
	return fmt.Sprintf("construct %s: %s", name, strings.Join(msgs, "; "))
}

// Codes returns the issue codes in order.
func (e *GraphConstructionError) Codes() []string {
	codes := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		codes[i] = is.Code
	}
	return codes
}

func constructionError(template, code, format string, args ...any) *GraphConstructionError {
	return &GraphConstructionError{
		Template: template,
		Issues:   []templates.ValidationIssue{{Code: code, Message: fmt.Sprintf(format, args...)}},
	}
}

// NewConstructionError converts a template validation failure into a
// GraphConstructionError, keeping its issue codes.
func NewConstructionError(template string, err error) *GraphConstructionError {
	var cErr *GraphConstructionError
	if errors.As(err, &cErr) {
		return cErr
	}
	var vErr *templates.ValidationError
	if errors.As(err, &vErr) {
		return &GraphConstructionError{Template: template, Issues: vErr.Issues}
	}
	return constructionError(template, "template_invalid", "%v", err)
}

// DependencyFailedError is the cause attached to a node that was never
// invoked because one of its parents failed.
type DependencyFailedError struct {
	NodeID   string
	ParentID string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("node %s: parent %s failed", e.NodeID, e.ParentID)
}

func (e *DependencyFailedError) Is(target error) bool { return target == ErrDependencyFailed }

// AggregationError reports a field missing from a completed node's result.
type AggregationError struct {
	NodeID string
	Field  string
	Reason string
}

func (e *AggregationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("aggregate node %s field %q: %s", e.NodeID, e.Field, e.Reason)
	}
	return fmt.Sprintf("aggregate node %s: field %q missing from result", e.NodeID, e.Field)
}

// TransitionError is returned when a node is driven through an illegal move.
type TransitionError struct {
	NodeID string
	From   State
	To     State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("node %s: %s -> %s", e.NodeID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
