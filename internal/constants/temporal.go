package constants

// Temporal names shared by the worker registration, the submitter and
// workflow code.
const (
	// TaskQueue is the queue the research worker polls.
	TaskQueue = "research-orchestrator"

	// Workflows
	ComposedGraphWorkflow = "ComposedGraphWorkflow"

	// Activities
	InvokeCapabilityActivity = "InvokeCapability"
)
