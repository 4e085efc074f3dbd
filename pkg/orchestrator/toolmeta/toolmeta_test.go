package toolmeta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/platform/pkg/broker"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
)

func findAssistantTaskID(t *testing.T, s store.Store, agentID string) string {
	t.Helper()
	var taskID string
	require.Eventually(t, func() bool {
		docs, err := s.Find(context.Background(), models.CollectionTasks, store.Filter{
			"agent_id": agentID,
			"role":     string(models.RoleAssistant),
		}, func() store.Document { return &models.Task{} })
		if err != nil || len(docs) == 0 {
			return false
		}
		taskID = docs[0].GetID()
		return true
	}, time.Second, time.Millisecond)
	return taskID
}

func seedFixture(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, models.CollectionAgents, &models.Agent{
		Base: models.Base{ID: "meta-agent"}, ProjectID: "meta-project", Name: "meta",
	}))
	require.NoError(t, s.Insert(ctx, models.CollectionAgents, &models.Agent{
		Base:         models.Base{ID: "source-agent"},
		ProjectID:    "proj-1",
		Name:         "triage",
		Description:  "triages incoming tickets",
		Instructions: "Read the ticket and classify it.",
		OutputFormat: "json",
	}))
	require.NoError(t, s.Insert(ctx, models.CollectionMCPTools, &models.MCPTool{
		Base:          models.Base{ID: "tool-1"},
		ProjectID:     "proj-1",
		GatewayID:     "gateway-1",
		SourceAgentID: "source-agent",
		ToolName:      "triage",
		Status:        models.MCPToolStatusGenerating,
	}))
}

func TestRunHappyPath(t *testing.T) {
	old := pollInterval
	pollInterval = 5 * time.Millisecond
	defer func() { pollInterval = old }()

	ctx := context.Background()
	s := store.NewMemory()
	seedFixture(t, s)

	o := New(s, dispatcher.New(s, broker.NewMemoryBroker()), "meta-project", "meta-agent")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, "tool-1") }()

	taskID := findAssistantTaskID(t, s, "meta-agent")
	require.NoError(t, s.Update(ctx, models.CollectionTasks, taskID, store.Patch{
		"status": string(models.TaskStatusCompleted),
		"content": "Here is the metadata:\n```json\n" +
			`{"tool_name": "triage_ticket", "description": "Classifies a ticket", ` +
			`"input_schema": {"type": "object", "properties": {"ticket_id": {"type": "string"}}, "required": ["ticket_id"]}, "output_format": "json"}` +
			"\n```",
	}))

	require.NoError(t, <-done)

	tool := &models.MCPTool{}
	require.NoError(t, s.Get(ctx, models.CollectionMCPTools, "tool-1", tool))
	assert.Equal(t, models.MCPToolStatusReady, tool.Status)
	assert.True(t, tool.Enabled)
	assert.Equal(t, "triage_ticket", tool.ToolName)
	assert.Equal(t, "Classifies a ticket", tool.Description)
	assert.Equal(t, "json", tool.OutputFormat)
	assert.Equal(t, "object", tool.InputSchema["type"])

	agent := &models.Agent{}
	require.NoError(t, s.Get(ctx, models.CollectionAgents, "source-agent", agent))
	bindings := agent.MCPGatewaysFromMetadata()
	require.Len(t, bindings, 1)
	assert.Equal(t, "gateway-1", bindings[0].GatewayID)
	assert.Equal(t, "tool-1", bindings[0].ToolID)
}

func TestRunFailsOnMissingKeys(t *testing.T) {
	old := pollInterval
	pollInterval = 5 * time.Millisecond
	defer func() { pollInterval = old }()

	ctx := context.Background()
	s := store.NewMemory()
	seedFixture(t, s)

	o := New(s, dispatcher.New(s, broker.NewMemoryBroker()), "meta-project", "meta-agent")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, "tool-1") }()

	taskID := findAssistantTaskID(t, s, "meta-agent")
	require.NoError(t, s.Update(ctx, models.CollectionTasks, taskID, store.Patch{
		"status":  string(models.TaskStatusCompleted),
		"content": `{"tool_name": "triage_ticket"}`,
	}))

	require.NoError(t, <-done)

	tool := &models.MCPTool{}
	require.NoError(t, s.Get(ctx, models.CollectionMCPTools, "tool-1", tool))
	assert.Equal(t, models.MCPToolStatusFailed, tool.Status)
	assert.Contains(t, tool.Metadata["error_message"], "missing")
}

func TestRunFailsOnInvalidInputSchema(t *testing.T) {
	old := pollInterval
	pollInterval = 5 * time.Millisecond
	defer func() { pollInterval = old }()

	ctx := context.Background()
	s := store.NewMemory()
	seedFixture(t, s)

	o := New(s, dispatcher.New(s, broker.NewMemoryBroker()), "meta-project", "meta-agent")

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, "tool-1") }()

	taskID := findAssistantTaskID(t, s, "meta-agent")
	require.NoError(t, s.Update(ctx, models.CollectionTasks, taskID, store.Patch{
		"status": string(models.TaskStatusCompleted),
		"content": `{"tool_name": "triage_ticket", "description": "Classifies a ticket", ` +
			`"input_schema": {"type": "object"}, "output_format": "json"}`,
	}))

	require.NoError(t, <-done)

	tool := &models.MCPTool{}
	require.NoError(t, s.Get(ctx, models.CollectionMCPTools, "tool-1", tool))
	assert.Equal(t, models.MCPToolStatusFailed, tool.Status)
	assert.Contains(t, tool.Metadata["error_message"], "properties")
}

func TestRunFailsOnTimeout(t *testing.T) {
	old := pollInterval
	pollInterval = 1 * time.Millisecond
	defer func() { pollInterval = old }()
	oldMax := maxIterations
	maxIterations = 3
	defer func() { maxIterations = oldMax }()

	ctx := context.Background()
	s := store.NewMemory()
	seedFixture(t, s)

	o := New(s, dispatcher.New(s, broker.NewMemoryBroker()), "meta-project", "meta-agent")
	require.NoError(t, o.Run(ctx, "tool-1"))

	tool := &models.MCPTool{}
	require.NoError(t, s.Get(ctx, models.CollectionMCPTools, "tool-1", tool))
	assert.Equal(t, models.MCPToolStatusFailed, tool.Status)
	assert.Equal(t, "Tool metadata synthesis timed out", tool.Metadata["error_message"])
}
