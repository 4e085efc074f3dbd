package models

import "time"

// AgentState is the enabled/disabled toggle controlling whether an Agent
// accepts new tasks.
type AgentState string

const (
	AgentStateEnabled  AgentState = "enabled"
	AgentStateDisabled AgentState = "disabled"
)

// Capability is one entry from the closed set of agent capabilities.
// The set itself is a deployment-time configuration concern (spec.md §6
// treats it as closed but does not enumerate it for the core); capabilities
// are opaque strings to every component in this package.
type Capability string

// MaxInstructionsLen is the hard cap on Agent.Instructions, per spec.md §3.
const MaxInstructionsLen = 20000

// MaxAgentVersions is the cap on the newest-first version log, per spec.md §3.
const MaxAgentVersions = 30

// AgentVersion is one newest-first snapshot in Agent.Versions.
type AgentVersion struct {
	Instructions string    `json:"instructions"`
	OutputFormat string    `json:"output_format"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedBy    string    `json:"updated_by"`
}

// MCPGatewayBinding records that this agent has been published as a tool on
// a gateway, per Agent.metadata.mcp_gateways.
type MCPGatewayBinding struct {
	GatewayID string    `json:"gateway_id"`
	ToolID    string    `json:"tool_id"`
	EnabledAt time.Time `json:"enabled_at"`
}

// Agent belongs to exactly one Project.
type Agent struct {
	Base
	ProjectID    string                 `json:"project_id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Instructions string                 `json:"instructions"`
	OutputFormat string                 `json:"output_format"`
	State        AgentState             `json:"state"`
	Deployed     bool                   `json:"deployed"`
	Capabilities []Capability           `json:"capabilities"`
	Metadata     map[string]any         `json:"metadata"`
	Versions     []AgentVersion         `json:"versions"`
}

// CollectionAgents is the Store collection name for Agent documents.
const CollectionAgents = "agents"

// MCPGatewaysFromMetadata reads the mcp_gateways list out of Metadata,
// tolerating its absence (agents that were never published as a tool).
func (a *Agent) MCPGatewaysFromMetadata() []MCPGatewayBinding {
	raw, ok := a.Metadata["mcp_gateways"]
	if !ok {
		return nil
	}
	list, ok := raw.([]MCPGatewayBinding)
	if !ok {
		return nil
	}
	return list
}

// AddMCPGatewayBinding appends a binding to metadata.mcp_gateways, deduping
// by (gateway_id, tool_id), per spec.md §4.11 step 6.
func (a *Agent) AddMCPGatewayBinding(b MCPGatewayBinding) {
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	existing := a.MCPGatewaysFromMetadata()
	for _, e := range existing {
		if e.GatewayID == b.GatewayID && e.ToolID == b.ToolID {
			return
		}
	}
	existing = append(existing, b)
	a.Metadata["mcp_gateways"] = existing
}

// PushVersion prepends a snapshot of the agent's current instructions and
// output format, trimming the log to MaxAgentVersions. Called before an
// agent's instructions/output_format are overwritten.
func (a *Agent) PushVersion(updatedBy string, now time.Time) {
	snapshot := AgentVersion{
		Instructions: a.Instructions,
		OutputFormat: a.OutputFormat,
		CreatedAt:    now,
		UpdatedBy:    updatedBy,
	}
	a.Versions = append([]AgentVersion{snapshot}, a.Versions...)
	if len(a.Versions) > MaxAgentVersions {
		a.Versions = a.Versions[:MaxAgentVersions]
	}
}
