package models

// Playground is an ad-hoc, project-scoped scratch space for exercising one
// Agent outside its normal Task flow, distinct from the org-level Workzone.
type Playground struct {
	Base
	ProjectID string `json:"project_id"`
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
}

// CollectionPlaygrounds is the Store collection name for Playground documents.
const CollectionPlaygrounds = "playgrounds"

// PlaygroundInvocation records one Task pair created through a Playground.
type PlaygroundInvocation struct {
	Base
	PlaygroundID     string   `json:"playground_id"`
	ProjectID        string   `json:"project_id"`
	AgentID          string   `json:"agent_id"`
	UserTaskID       string   `json:"user_task_id"`
	AssistantTaskID  string   `json:"assistant_task_id"`
	ExecutionSeconds *float64 `json:"execution_time_seconds,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// CollectionPlaygroundInvocations is the Store collection name for
// PlaygroundInvocation documents.
const CollectionPlaygroundInvocations = "playground_invocations"
