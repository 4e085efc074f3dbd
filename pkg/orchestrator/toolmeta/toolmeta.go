// Package toolmeta implements ToolMetaOrchestrator: it synthesizes an
// MCPTool's metadata (tool_name, description, input_schema, output_format)
// from its source agent by asking a dedicated metadata-synthesis agent,
// per spec.md §4.11.
package toolmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/orchestrator"
	"github.com/taskforge/platform/pkg/store"
)

// pollInterval and maxIterations are vars, not consts, so tests can shrink
// them rather than waiting out the production 5s/60-iteration bound (the
// same testability deviation used for runner.CancellationPollInterval).
var (
	pollInterval  = 5 * time.Second
	maxIterations = 60 // 300s ceiling / 5s interval, per spec.md §4.11 step 4
)

const (
	promptTemplate = `Synthesize MCP tool metadata for the following agent.

**Agent Name:** %s
**Description:** %s
**Instructions:** %s
**Capabilities:** %v
**Output Format:** %s
**Desired Tool Name:** %s

Respond with a single JSON object matching this schema:
%s`
)

var (
	envelopeSchemaOnce sync.Once
	envelopeSchemaJSON string
)

// envelopeSchema reflects envelope into a JSON Schema document, once, and
// embeds it in the synthesis prompt so the agent sees the exact four-key
// shape to respond with, input_schema included.
func envelopeSchema() string {
	envelopeSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true}
		b, err := json.MarshalIndent(r.Reflect(&envelope{}), "", "  ")
		if err != nil {
			envelopeSchemaJSON = "{}"
			return
		}
		envelopeSchemaJSON = string(b)
	})
	return envelopeSchemaJSON
}

// envelope is the four-key JSON contract spec.md §4.11 step 3 demands.
type envelope struct {
	ToolName     *string         `json:"tool_name"`
	Description  *string         `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputFormat *string         `json:"output_format"`
}

// Orchestrator drives one MCPTool's metadata synthesis to completion.
type Orchestrator struct {
	store         store.Store
	dispatcher    *dispatcher.Dispatcher
	metaProjectID string
	metaAgentID   string
	now           func() time.Time
}

// New builds an Orchestrator. metaProjectID/metaAgentID identify the
// dedicated metadata-synthesis agent, per spec.md §4.11 step 2 ("resolve
// a dedicated metadata-synthesis agent from configuration").
func New(s store.Store, d *dispatcher.Dispatcher, metaProjectID, metaAgentID string) *Orchestrator {
	return &Orchestrator{store: s, dispatcher: d, metaProjectID: metaProjectID, metaAgentID: metaAgentID, now: time.Now}
}

// Run implements spec.md §4.11 steps 1-7 for the MCPTool identified by
// toolID.
func (o *Orchestrator) Run(ctx context.Context, toolID string) error {
	tool := &models.MCPTool{}
	if err := o.store.Get(ctx, models.CollectionMCPTools, toolID, tool); err != nil {
		return fmt.Errorf("toolmeta: load tool %s: %w", toolID, err)
	}
	agent := &models.Agent{}
	if err := o.store.Get(ctx, models.CollectionAgents, tool.SourceAgentID, agent); err != nil {
		return fmt.Errorf("toolmeta: load source agent %s: %w", tool.SourceAgentID, err)
	}

	// Step 1.
	tool.Status = models.MCPToolStatusGenerating
	if err := o.saveTool(ctx, tool); err != nil {
		return err
	}

	// Step 2-3.
	prompt := fmt.Sprintf(promptTemplate, agent.Name, agent.Description, agent.Instructions, agent.Capabilities, agent.OutputFormat, tool.ToolName, envelopeSchema())
	pair, err := o.dispatcher.CreateTask(ctx, dispatcher.CreateTaskInput{
		ProjectID: o.metaProjectID,
		AgentID:   o.metaAgentID,
		Content:   prompt,
	})
	if err != nil {
		return o.fail(ctx, tool, err.Error())
	}

	// Step 4.
	var body string
	poller := orchestrator.Poller{Interval: pollInterval, MaxIterations: maxIterations}
	pollErr := poller.Run(ctx, func(ctx context.Context) (bool, error) {
		task := &models.Task{}
		if err := o.store.Get(ctx, models.CollectionTasks, pair.AssistantTaskID, task); err != nil {
			return false, err
		}
		switch task.Status {
		case models.TaskStatusCompleted:
			body = task.Content
			return true, nil
		case models.TaskStatusFailed:
			return false, fmt.Errorf("synthesis task failed: %s", task.Content)
		default:
			return false, nil
		}
	})
	if pollErr != nil {
		if apperr.Is(pollErr, apperr.Timeout) {
			return o.fail(ctx, tool, "Tool metadata synthesis timed out")
		}
		return o.fail(ctx, tool, pollErr.Error())
	}

	// Step 5.
	raw := orchestrator.ExtractJSONObject(body)
	if raw == "" {
		return o.fail(ctx, tool, "no JSON object found in synthesis response")
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return o.fail(ctx, tool, fmt.Sprintf("parse error: %v", err))
	}

	// Step 6: validate all four keys are present.
	if env.ToolName == nil || env.Description == nil || env.OutputFormat == nil || len(env.InputSchema) == 0 {
		return o.fail(ctx, tool, "synthesis response missing one or more required keys")
	}
	if err := validateInputSchema(env.InputSchema); err != nil {
		return o.fail(ctx, tool, fmt.Sprintf("input_schema invalid: %v", err))
	}
	var inputSchema map[string]any
	if err := json.Unmarshal(env.InputSchema, &inputSchema); err != nil {
		return o.fail(ctx, tool, fmt.Sprintf("parse error: input_schema: %v", err))
	}

	tool.ToolName = *env.ToolName
	tool.Description = *env.Description
	tool.InputSchema = inputSchema
	tool.OutputFormat = *env.OutputFormat
	tool.Status = models.MCPToolStatusReady
	tool.Enabled = true
	if err := o.saveTool(ctx, tool); err != nil {
		return err
	}

	agent.AddMCPGatewayBinding(models.MCPGatewayBinding{GatewayID: tool.GatewayID, ToolID: tool.ID, EnabledAt: o.now()})
	return o.store.Update(ctx, models.CollectionAgents, agent.ID, store.Patch{
		"metadata":   agent.Metadata,
		"updated_at": o.now(),
	})
}

// validateInputSchema enforces the spec.md §8 invariant that a ready
// tool's input_schema is a JSON Schema object containing type and
// properties, and, when it declares required, every required name
// resolves to a declared property. CompileString rejects anything that
// isn't well-formed JSON Schema in the first place.
func validateInputSchema(raw json.RawMessage) error {
	if _, err := jsonschemav5.CompileString("input_schema.json", string(raw)); err != nil {
		return fmt.Errorf("not a well-formed JSON Schema: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if _, ok := doc["type"]; !ok {
		return fmt.Errorf("missing required key: type")
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("missing required key: properties")
	}
	if required, ok := doc["required"]; ok {
		names, ok := required.([]any)
		if !ok {
			return fmt.Errorf("required must be an array")
		}
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				return fmt.Errorf("required entries must be strings")
			}
			if _, ok := props[name]; !ok {
				return fmt.Errorf("required field %q not declared in properties", name)
			}
		}
	}
	return nil
}

// fail implements spec.md §4.11 step 7.
func (o *Orchestrator) fail(ctx context.Context, tool *models.MCPTool, reason string) error {
	tool.Status = models.MCPToolStatusFailed
	if tool.Metadata == nil {
		tool.Metadata = map[string]any{}
	}
	tool.Metadata["error_message"] = reason
	return o.saveTool(ctx, tool)
}

func (o *Orchestrator) saveTool(ctx context.Context, tool *models.MCPTool) error {
	return o.store.Update(ctx, models.CollectionMCPTools, tool.ID, store.Patch{
		"status":        string(tool.Status),
		"tool_name":     tool.ToolName,
		"description":   tool.Description,
		"input_schema":  tool.InputSchema,
		"output_format": tool.OutputFormat,
		"enabled":       tool.Enabled,
		"metadata":      tool.Metadata,
		"updated_at":    o.now(),
	})
}
