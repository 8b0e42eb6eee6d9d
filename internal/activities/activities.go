// Package activities holds the Temporal activities that cross the worker
// invocation boundary on behalf of workflows.
package activities

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// Error types reported to workflows. They are not retried.
const (
	ErrTypeInvalidArguments  = "InvalidArguments"
	ErrTypeUnknownCapability = "UnknownCapability"
	ErrTypeInvalidResult     = "InvalidResult"
)

// Activities holds dependencies for activities
type Activities struct {
	invoker workers.Invoker
	logger  *zap.Logger
}

// NewActivities creates the activity set served by a worker process
func NewActivities(invoker workers.Invoker, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{invoker: invoker, logger: logger}
}

// InvokeInput is one node dispatch.
type InvokeInput struct {
	NodeID     string          `json:"node_id"`
	Capability string          `json:"capability"`
	Args       json.RawMessage `json:"args"`
}

// InvokeResult carries the result envelope of a completed node.
type InvokeResult struct {
	NodeID string          `json:"node_id"`
	Result json.RawMessage `json:"result"`
}

// InvokeCapability runs one capability through the configured invoker.
// Argument and capability errors are returned as non-retryable
// application errors; transport failures are left to the retry policy.
func (a *Activities) InvokeCapability(ctx context.Context, in InvokeInput) (InvokeResult, error) {
	info := activity.GetInfo(ctx)
	logger := a.logger.With(
		zap.String("workflow_id", info.WorkflowExecution.ID),
		zap.String("node_id", in.NodeID),
		zap.String("capability", in.Capability),
		zap.Int32("attempt", info.Attempt),
	)

	c, err := workers.ParseCapability(in.Capability)
	if err != nil {
		return InvokeResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownCapability, err)
	}

	start := time.Now()
	out, err := a.invoker.Invoke(ctx, c, in.Args)
	if err != nil {
		logger.Warn("Capability invocation failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		switch {
		case errors.Is(err, workers.ErrInvalidArguments):
			return InvokeResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidArguments, err)
		case errors.Is(err, workers.ErrUnknownCapability):
			return InvokeResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownCapability, err)
		case errors.Is(err, workers.ErrInvalidResult):
			return InvokeResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidResult, err)
		}
		return InvokeResult{}, err
	}
	logger.Debug("Capability invocation completed", zap.Duration("duration", time.Since(start)))
	return InvokeResult{NodeID: in.NodeID, Result: out}, nil
}
