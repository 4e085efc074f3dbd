package models

// Project is the top-level multi-tenant boundary: it exclusively owns
// Agents, Tasks, Trainings, Evaluations, DataSources, Gateways, and
// FolderUploads (see CleanupService).
type Project struct {
	Base
	OrganizationID string   `json:"organization_id"`
	Name           string   `json:"name"`
	Members        []string `json:"members"`
	APIKey         *string  `json:"api_key,omitempty"`
}

// CollectionProjects is the Store collection name for Project documents.
const CollectionProjects = "projects"
