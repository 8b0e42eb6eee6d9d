package edenlayer

import "encoding/json"

// AgentCapability describes one tool an agent exposes.
type AgentCapability struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	InputSchema map[string]any `json:"inputSchema" yaml:"inputSchema"`
	Annotations *Annotations   `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

type Annotations struct {
	OutputSchema map[string]any `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
}

type Capabilities struct {
	Tools     []AgentCapability `json:"tools" yaml:"tools"`
	Prompts   []any             `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Resources []any             `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// AgentRegistration is the body of POST /agents.
type AgentRegistration struct {
	Name               string       `json:"name" yaml:"name"`
	Description        string       `json:"description" yaml:"description"`
	DefaultPrompt      string       `json:"defaultPrompt" yaml:"defaultPrompt"`
	ImageURL           string       `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	BackgroundImageURL string       `json:"backgroundImageUrl,omitempty" yaml:"backgroundImageUrl,omitempty"`
	WebsiteURL         string       `json:"websiteUrl,omitempty" yaml:"websiteUrl,omitempty"`
	MCPURL             string       `json:"mcpUrl" yaml:"mcpUrl"`
	ChatURL            string       `json:"chatUrl" yaml:"chatUrl"`
	Capabilities       Capabilities `json:"capabilities" yaml:"capabilities"`
}

// TaskRequest is the body of POST /tasks.
type TaskRequest struct {
	AgentID   string          `json:"agentId"`
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
}

// TaskState is the scheduler-side state of a task.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

// TaskResult is returned by task execution, composition and status calls.
type TaskResult struct {
	TaskID string          `json:"taskId"`
	State  TaskState       `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Agent is one entry of the agent directory. Fields beyond these are kept
// in Raw.
type Agent struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func (a *Agent) UnmarshalJSON(data []byte) error {
	type plain Agent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Agent(p)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}
