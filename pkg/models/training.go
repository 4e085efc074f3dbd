package models

import "time"

// TrainingStatus is the lifecycle state of a data-scan job.
type TrainingStatus string

const (
	TrainingStatusQueued     TrainingStatus = "queued"
	TrainingStatusInProgress TrainingStatus = "in_progress"
	TrainingStatusCompleted  TrainingStatus = "completed"
	TrainingStatusFailed     TrainingStatus = "failed"
)

// ProjectMDStatus is the lifecycle state of the embedded documentation
// generation sub-state driven by DocOrchestrator.
type ProjectMDStatus string

const (
	ProjectMDStatusNone       ProjectMDStatus = ""
	ProjectMDStatusInProgress ProjectMDStatus = "in_progress"
	ProjectMDStatusCompleted  ProjectMDStatus = "completed"
	ProjectMDStatusFailed     ProjectMDStatus = "failed"
)

// ProjectMDGeneration is the embedded sub-state tracking documentation
// generation for a Training, per spec.md §3.
type ProjectMDGeneration struct {
	Status                 ProjectMDStatus `json:"status"`
	DocumentationAgentID   string          `json:"documentation_agent_id,omitempty"`
	DocumentationProjectID string          `json:"documentation_project_id,omitempty"`
	S3URL                  string          `json:"s3_url,omitempty"`
	ErrorMessage           string          `json:"error_message,omitempty"`
	StartedAt              *time.Time      `json:"started_at,omitempty"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
}

// Training is a long-running data-scan job; the scan itself is an
// out-of-scope leaf task this orchestrator only submits and awaits.
type Training struct {
	Base
	ProjectID     string         `json:"project_id"`
	DataSourceIDs []string       `json:"data_source_ids"`
	Status        TrainingStatus `json:"status"`
	Progress      float64        `json:"progress"`
	Error         *string        `json:"error,omitempty"`
	ProjectMD     ProjectMDGeneration `json:"projectmd"`
}

// CollectionTrainings is the Store collection name for Training documents.
const CollectionTrainings = "trainings"
