package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/activities"
	"github.com/Kocoro-lab/research-orchestrator/internal/constants"
	"github.com/Kocoro-lab/research-orchestrator/internal/graph"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
)

// Submitter starts ComposedGraphWorkflow executions for export payloads.
type Submitter struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewSubmitter(c client.Client, taskQueue string, logger *zap.Logger) *Submitter {
	if taskQueue == "" {
		taskQueue = constants.TaskQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{client: c, taskQueue: taskQueue, timeout: 30 * time.Minute, logger: logger}
}

// Submit validates tasks and starts a workflow for them. The workflow id is
// returned as the submission id.
func (s *Submitter) Submit(ctx context.Context, tasks []graph.ComposedTask) (orchestrator.Submission, error) {
	if _, err := graph.FromComposed(tasks); err != nil {
		return orchestrator.Submission{}, err
	}
	opts := client.StartWorkflowOptions{
		ID:                       "composed-" + uuid.NewString(),
		TaskQueue:                s.taskQueue,
		WorkflowExecutionTimeout: s.timeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, constants.ComposedGraphWorkflow, ComposedGraphInput{Tasks: tasks})
	if err != nil {
		return orchestrator.Submission{}, fmt.Errorf("start composed graph workflow: %w", err)
	}
	s.logger.Info("Started composed graph workflow",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.Int("tasks", len(tasks)),
	)
	return orchestrator.Submission{ID: run.GetID(), Backend: "temporal", Status: "running"}, nil
}

// Register adds the composed graph workflow and its activity to w.
func Register(w worker.Worker, acts *activities.Activities) {
	w.RegisterWorkflowWithOptions(ComposedGraphWorkflow, workflow.RegisterOptions{Name: constants.ComposedGraphWorkflow})
	w.RegisterActivityWithOptions(acts.InvokeCapability, activity.RegisterOptions{Name: constants.InvokeCapabilityActivity})
}
