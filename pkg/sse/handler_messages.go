package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/taskforge/platform/pkg/llmsdk"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/runner"
	"github.com/taskforge/platform/pkg/store"
	"github.com/taskforge/platform/pkg/workspace"
)

// Recognised SSE event types, per spec.md §4.8 step 3.
const (
	eventMessageChunk = "message_chunk"
	eventToolUse      = "tool_use"
	eventToolResult   = "tool_result"
	eventResult       = "result"
	eventError        = "error"

	cancelNotice = "Task was cancelled by user."
)

// SendMessageRequest is the body of POST /{conversation_id}/messages.
type SendMessageRequest struct {
	ProjectID   string         `json:"project_id"`
	AgentID     string         `json:"agent_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	MessageID   string         `json:"message_id"`
	Content     string         `json:"content"`
	AgentConfig map[string]any `json:"agent_config,omitempty"`
}

// HandleSendMessage implements spec.md §4.8 steps 1-4.
func (b *Bridge) HandleSendMessage(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if req.MessageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_id is required")
	}

	ctx := c.Request().Context()

	conv, err := b.resolveConversation(ctx, conversationID, req.ProjectID, req.AgentID)
	if err != nil {
		return mapBridgeError(err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		if conv.SessionID != nil {
			sessionID = *conv.SessionID
		} else if cached, ok, _ := b.sessions.Get(ctx, conversationID); ok {
			sessionID = cached
		}
	}

	agent := &models.Agent{}
	if req.AgentID != "" {
		if err := b.store.Get(ctx, models.CollectionAgents, req.AgentID, agent); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "agent not found")
		}
	}

	userMsg := &models.Message{
		Base:           models.Base{ID: req.MessageID},
		ConversationID: conversationID,
		Role:           models.MessageRoleUser,
		Content:        req.Content,
		Sequence:       len(conv.MessageIDs),
	}
	if err := b.store.Insert(ctx, models.CollectionMessages, userMsg); err != nil {
		return mapBridgeError(err)
	}
	conv.MessageIDs = append(conv.MessageIDs, userMsg.ID)

	key := streamKey(conversationID, req.MessageID)
	runCtx, cancel := context.WithCancel(ctx)
	b.register(key, cancel)
	defer func() {
		cancel()
		b.unregister(key)
	}()

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	mcpTools, mcpServers := b.providers.WorkspaceBinding(runCtx, req.ProjectID)
	ws, err := workspace.Provision(b.cfg.WorkspaceDir, req.ProjectID, conversationID, workspace.Options{
		MCPTools:   mcpTools,
		MCPServers: mcpServers,
	})
	if err != nil {
		writeSSE(resp, eventError, map[string]any{"message": err.Error(), "message_id": req.MessageID, "conversation_id": conversationID})
		return nil
	}
	defer func() { _ = ws.Close() }()

	prompt := runner.BuildPrompt(req.Content, agent.Metadata)
	opts := llmsdk.Options{
		Model:       b.cfg.Model,
		MaxTurns:    b.cfg.MaxTurns,
		WorkDir:     ws.Root,
		SessionID:   sessionID,
		SystemBlock: agent.Instructions,
	}

	final, newSession, cancelled, streamErr := b.stream(runCtx, resp, prompt, opts, req.MessageID, conversationID, sessionID)

	content := final
	switch {
	case cancelled:
		content = cancelNotice
		writeSSE(resp, eventResult, map[string]any{
			"result": cancelNotice, "message_id": req.MessageID, "conversation_id": conversationID, "cancelled": true,
		})
	case streamErr != nil:
		writeSSE(resp, eventError, map[string]any{
			"message": streamErr.Error(), "message_id": req.MessageID, "conversation_id": conversationID,
		})
	default:
		if newSession != "" {
			if err := b.sessions.Set(ctx, conversationID, newSession); err != nil {
				writeSSE(resp, eventError, map[string]any{"message": "session cache write failed", "conversation_id": conversationID})
			}
		}
	}

	assistantMsg := &models.Message{
		Base:           models.Base{ID: uuid.NewString()},
		ConversationID: conversationID,
		Role:           models.MessageRoleAssistant,
		Content:        content,
		Sequence:       len(conv.MessageIDs),
	}
	if err := b.store.Insert(ctx, models.CollectionMessages, assistantMsg); err == nil {
		conv.MessageIDs = append(conv.MessageIDs, assistantMsg.ID)
	}

	patch := store.Patch{"message_ids": conv.MessageIDs}
	if newSession != "" {
		patch["session_id"] = newSession
	}
	_ = b.store.Update(ctx, models.CollectionConversations, conv.ID, patch)

	return nil
}

// stream drains one LLM SDK Query to completion or cancellation, emitting
// an SSE envelope per recognised event, per spec.md §4.8 step 3.
func (b *Bridge) stream(ctx context.Context, resp *echo.Response, prompt string, opts llmsdk.Options, messageID, conversationID, sessionID string) (final, newSessionID string, cancelled bool, err error) {
	it, err := b.sdk.Query(ctx, prompt, opts)
	if err != nil {
		return "", "", false, fmt.Errorf("sse: query: %w", err)
	}
	defer it.Close()

	newSessionID = sessionID
	for it.Next(ctx) {
		switch e := it.Event().(type) {
		case llmsdk.AssistantMessage:
			for _, block := range e.Content {
				switch blk := block.(type) {
				case llmsdk.TextBlock:
					final = blk.Text
					writeSSE(resp, eventMessageChunk, map[string]any{
						"content": blk.Text, "message_id": messageID, "conversation_id": conversationID, "session_id": newSessionID,
					})
				case llmsdk.ToolUseBlock:
					writeSSE(resp, eventToolUse, map[string]any{
						"id": blk.ID, "name": blk.Name, "input": blk.Input, "message_id": messageID, "conversation_id": conversationID,
					})
				case llmsdk.ToolResultBlock:
					writeSSE(resp, eventToolResult, map[string]any{
						"tool_use_id": blk.ToolUseID, "content": blk.Content, "is_error": blk.IsError, "message_id": messageID, "conversation_id": conversationID,
					})
				}
			}
		case llmsdk.ResultMessage:
			if e.Result != nil {
				final = *e.Result
			}
			if e.SessionID != nil {
				newSessionID = *e.SessionID
			}
			writeSSE(resp, eventResult, map[string]any{
				"result": final, "duration_ms": e.DurationMs, "message_id": messageID, "conversation_id": conversationID, "session_id": newSessionID,
			})
		}
	}

	if ctx.Err() != nil {
		return final, newSessionID, true, nil
	}
	if ierr := it.Err(); ierr != nil {
		return final, newSessionID, false, ierr
	}
	return final, newSessionID, false, nil
}

// writeSSE writes one envelope `event: <type>\ndata: <json>\n\n` and
// flushes immediately so the client sees it without buffering delay.
func writeSSE(resp *echo.Response, event string, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, raw)
	resp.Flush()
}
