package models

// Tool is a legacy per-agent tool definition predating the Gateway/MCPTool
// publishing flow; kept for Agents created before MCP gateways existed.
// CleanupService deletes these by agent_id alongside their owning Agents.
type Tool struct {
	Base
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CollectionTools is the Store collection name for Tool documents.
const CollectionTools = "tools"

// ToolInvocation records one execution of an MCPTool by an external MCP
// client, per original_source's ToolInvocation model.
type ToolInvocation struct {
	Base
	ToolID           string   `json:"tool_id"`
	UserTaskID       string   `json:"user_task_id"`
	AssistantTaskID  string   `json:"assistant_task_id"`
	ExecutionSeconds *float64 `json:"execution_time_seconds,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// CollectionToolInvocations is the Store collection name for ToolInvocation
// documents.
const CollectionToolInvocations = "tool_invocations"
