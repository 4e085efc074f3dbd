package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskforge/platform/pkg/artifacts"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

// CascadeResult is the outcome record of one CascadeDelete run, per
// spec.md §4.12: per-step counts, a flat error list, and an overall
// completed/partial status.
type CascadeResult struct {
	ProjectID   string         `json:"project_id"`
	Status      string         `json:"status"`
	Deletions   map[string]int `json:"deletions"`
	Errors      []string       `json:"errors"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

const (
	cascadeStatusCompleted = "completed"
	cascadeStatusPartial   = "partial"
)

// CascadeDelete runs the leaf-to-root deletion order of spec.md §4.12 for
// projectID: ToolInvocations -> MCPTools -> MCPGateways ->
// PlaygroundInvocations -> Playgrounds -> WorkzoneInvocations -> Tasks ->
// Tools (via Agents) -> EvaluationRuns -> Evaluations -> Trainings ->
// DataSources -> Agents, then removes the two Artifact-Store prefixes.
// Each step's error is isolated into the result and does not abort later
// steps, per spec.md §7's partial-failure rule.
func CascadeDelete(ctx context.Context, s store.Store, artifactStore artifacts.Store, projectID string, now func() time.Time) (*CascadeResult, error) {
	result := &CascadeResult{
		ProjectID: projectID,
		Deletions: map[string]int{},
		StartedAt: now(),
	}

	// 1: Tool Invocations via MCP Tools via Gateways.
	gatewayIDs := collectIDs(ctx, s, models.CollectionMCPGateways, store.Filter{"project_id": projectID}, func() store.Document { return &models.MCPGateway{} }, result)
	var toolIDs []string
	if len(gatewayIDs) > 0 {
		toolIDs = collectIDsIn(ctx, s, models.CollectionMCPTools, "gateway_id", gatewayIDs, func() store.Document { return &models.MCPTool{} }, result)
	}
	if len(toolIDs) > 0 {
		deleteIn(ctx, s, models.CollectionToolInvocations, "tool_id", toolIDs, func() store.Document { return &models.ToolInvocation{} }, "tool_invocations", result)
	} else {
		result.Deletions["tool_invocations"] = 0
	}

	// 2: MCP Tools via Gateways.
	if len(gatewayIDs) > 0 {
		deleteIn(ctx, s, models.CollectionMCPTools, "gateway_id", gatewayIDs, func() store.Document { return &models.MCPTool{} }, "mcp_tools", result)
	} else {
		result.Deletions["mcp_tools"] = 0
	}

	// 3: MCP Gateways.
	deleteWhere(ctx, s, models.CollectionMCPGateways, store.Filter{"project_id": projectID}, func() store.Document { return &models.MCPGateway{} }, "mcp_gateways", result)

	// 4: Playground Invocations via Playgrounds.
	playgroundIDs := collectIDs(ctx, s, models.CollectionPlaygrounds, store.Filter{"project_id": projectID}, func() store.Document { return &models.Playground{} }, result)
	if len(playgroundIDs) > 0 {
		deleteIn(ctx, s, models.CollectionPlaygroundInvocations, "playground_id", playgroundIDs, func() store.Document { return &models.PlaygroundInvocation{} }, "playground_invocations", result)
	} else {
		result.Deletions["playground_invocations"] = 0
	}

	// 5: Playgrounds.
	deleteWhere(ctx, s, models.CollectionPlaygrounds, store.Filter{"project_id": projectID}, func() store.Document { return &models.Playground{} }, "playgrounds", result)

	// 6: Workzone Invocations (Workzones are org-level; only invocations are project-scoped).
	deleteWhere(ctx, s, models.CollectionWorkzoneInvocations, store.Filter{"project_id": projectID}, func() store.Document { return &models.WorkzoneInvocation{} }, "workzone_invocations", result)

	// 7: Tasks.
	deleteWhere(ctx, s, models.CollectionTasks, store.Filter{"project_id": projectID}, func() store.Document { return &models.Task{} }, "tasks", result)

	// 8: Tools via Agents.
	agentIDs := collectIDs(ctx, s, models.CollectionAgents, store.Filter{"project_id": projectID}, func() store.Document { return &models.Agent{} }, result)
	if len(agentIDs) > 0 {
		deleteIn(ctx, s, models.CollectionTools, "agent_id", agentIDs, func() store.Document { return &models.Tool{} }, "tools", result)
	} else {
		result.Deletions["tools"] = 0
	}

	// 9: Evaluation Runs.
	deleteWhere(ctx, s, models.CollectionEvaluationRuns, store.Filter{"project_id": projectID}, func() store.Document { return &models.EvaluationRun{} }, "evaluation_runs", result)

	// 10: Evaluations.
	deleteWhere(ctx, s, models.CollectionEvaluations, store.Filter{"project_id": projectID}, func() store.Document { return &models.Evaluation{} }, "evaluations", result)

	// 11: Training Jobs.
	deleteWhere(ctx, s, models.CollectionTrainings, store.Filter{"project_id": projectID}, func() store.Document { return &models.Training{} }, "trainings", result)

	// 12: Data Sources.
	deleteWhere(ctx, s, models.CollectionDataSources, store.Filter{"project_id": projectID}, func() store.Document { return &models.DataSource{} }, "data_sources", result)

	// 13: Agents.
	deleteWhere(ctx, s, models.CollectionAgents, store.Filter{"project_id": projectID}, func() store.Document { return &models.Agent{} }, "agents", result)

	// Artifact-Store prefixes: audit trails (lower-cased project id) and artifacts.
	auditPrefix := fmt.Sprintf("audit/%s/", strings.ToLower(projectID))
	if err := artifactStore.DeletePrefix(ctx, auditPrefix); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("audit prefix deletion failed: %v", err))
	}
	artifactsPrefix := fmt.Sprintf("artifacts/%s/", projectID)
	if err := artifactStore.DeletePrefix(ctx, artifactsPrefix); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("artifacts prefix deletion failed: %v", err))
	}

	result.CompletedAt = now()
	if len(result.Errors) > 0 {
		result.Status = cascadeStatusPartial
	} else {
		result.Status = cascadeStatusCompleted
	}
	return result, nil
}

// collectIDs finds every document matching filter in collection and returns
// their ids; a find failure is recorded as a step error and yields no ids,
// matching the original's "initialize to empty to avoid a NameError on a
// failed early query" behavior.
func collectIDs(ctx context.Context, s store.Store, collection string, filter store.Filter, factory func() store.Document, result *CascadeResult) []string {
	docs, err := s.Find(ctx, collection, filter, factory)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s lookup failed: %v", collection, err))
		return nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.GetID()
	}
	return ids
}

// collectIDsIn finds documents whose field value is any of values and
// returns their ids, searching per value since Filter is equality-only.
func collectIDsIn(ctx context.Context, s store.Store, collection, field string, values []string, factory func() store.Document, result *CascadeResult) []string {
	var ids []string
	for _, v := range values {
		docs, err := s.Find(ctx, collection, store.Filter{field: v}, factory)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s lookup failed: %v", collection, err))
			continue
		}
		for _, d := range docs {
			ids = append(ids, d.GetID())
		}
	}
	return ids
}

// deleteWhere deletes every document in collection matching filter,
// recording the per-step count and isolating any error into result.Errors.
func deleteWhere(ctx context.Context, s store.Store, collection string, filter store.Filter, factory func() store.Document, label string, result *CascadeResult) {
	docs, err := s.Find(ctx, collection, filter, factory)
	if err != nil {
		result.Deletions[label] = 0
		result.Errors = append(result.Errors, fmt.Sprintf("%s deletion failed: %v", label, err))
		return
	}
	count := 0
	for _, d := range docs {
		if err := s.Delete(ctx, collection, d.GetID()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s deletion failed: %v", label, err))
			continue
		}
		count++
	}
	result.Deletions[label] = count
}

// deleteIn deletes every document in collection whose field value is any of
// values, searching per value since Filter is equality-only.
func deleteIn(ctx context.Context, s store.Store, collection, field string, values []string, factory func() store.Document, label string, result *CascadeResult) {
	count := 0
	for _, v := range values {
		docs, err := s.Find(ctx, collection, store.Filter{field: v}, factory)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s deletion failed: %v", label, err))
			continue
		}
		for _, d := range docs {
			if err := s.Delete(ctx, collection, d.GetID()); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s deletion failed: %v", label, err))
				continue
			}
			count++
		}
	}
	result.Deletions[label] = count
}
