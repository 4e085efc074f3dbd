package models

// WorkzoneInvocation records one Task pair created through an org-level
// Workzone on behalf of a Project's Agent. Workzones themselves are
// org-scoped and outside Project ownership, so a project delete only
// removes the invocations attributed to it, per spec.md §4.12.
type WorkzoneInvocation struct {
	Base
	WorkzoneID      string `json:"workzone_id"`
	ProjectID       string `json:"project_id"`
	AgentID         string `json:"agent_id"`
	UserTaskID      string `json:"user_task_id"`
	AssistantTaskID string `json:"assistant_task_id"`
	Error           string `json:"error,omitempty"`
}

// CollectionWorkzoneInvocations is the Store collection name for
// WorkzoneInvocation documents.
const CollectionWorkzoneInvocations = "workzone_invocations"
