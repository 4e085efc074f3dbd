// Package runner implements the per-task agent execution loop: workspace
// provisioning, prompt assembly, streaming LLM SDK invocation, cancellation
// polling, retry, and finalization, per spec.md §4.6.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/artifacts"
	"github.com/taskforge/platform/pkg/broker"
	"github.com/taskforge/platform/pkg/cache"
	"github.com/taskforge/platform/pkg/llmsdk"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/providers"
	"github.com/taskforge/platform/pkg/slack"
	"github.com/taskforge/platform/pkg/store"
	"github.com/taskforge/platform/pkg/workspace"
)

// DefaultModel and DefaultMaxTurns are the options defaults spec.md §4.6
// step 4 names; Config overrides them when set.
const (
	DefaultModel    = "claude-sonnet-4-20250514"
	DefaultMaxTurns = 15

	// MaxAttempts is the retry ceiling of spec.md §4.6 step 7.
	MaxAttempts = 3

	cancelSentinel = "Task was cancelled by user."
)

// CancellationPollInterval is the Runner's cancellation oracle poll period,
// per spec.md §4.6 step 6 ("every >=5s"). A var, not a const, so tests can
// shrink it rather than waiting out the production interval.
var CancellationPollInterval = 5 * time.Second

// modelErrorSentinels are the substrings spec.md §4.6 step 7 names as
// triggering a retry.
var modelErrorSentinels = []string{"execution failed"}

// Config carries the Runner's deployment defaults.
type Config struct {
	Model       string
	MaxTurns    int
	WorkspaceDir string
	Env         map[string]string
}

// Runner consumes one TaskMessage delivery at a time. It holds no
// per-message state between calls; every Run invocation is independent,
// matching the teacher's stateless-worker-per-session shape.
type Runner struct {
	store     store.Store
	sdk       llmsdk.SDK
	sessions  cache.SessionCache
	artifacts artifacts.Store
	providers *providers.Registry
	notifier  *slack.Service
	cfg       Config
	now       func() time.Time
}

// New builds a Runner over its dependencies. notifier may be nil, in which
// case terminal-state Slack notifications are skipped (slack.Service is
// nil-safe, but New accepts the nil explicitly so callers don't need to
// construct a no-op value).
func New(s store.Store, sdk llmsdk.SDK, sessions cache.SessionCache, artifactStore artifacts.Store, reg *providers.Registry, notifier *slack.Service, cfg Config) *Runner {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Runner{
		store:     s,
		sdk:       sdk,
		sessions:  sessions,
		artifacts: artifactStore,
		providers: reg,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run implements spec.md §4.6 steps 1-9 for one task delivery.
func (r *Runner) Run(ctx context.Context, msg broker.TaskMessage) error {
	log := slog.With("project_id", msg.ProjectID, "agent_id", msg.AgentID, "task_id", msg.TaskID)

	// Step 1: load agent and project.
	agent := &models.Agent{}
	if err := r.store.Get(ctx, models.CollectionAgents, msg.AgentID, agent); err != nil {
		log.Warn("agent not found, failing assistant task", "error", err)
		return r.failNotFound(ctx, msg, "agent not found")
	}
	project := &models.Project{}
	if err := r.store.Get(ctx, models.CollectionProjects, msg.ProjectID, project); err != nil {
		log.Warn("project not found, failing assistant task", "error", err)
		return r.failNotFound(ctx, msg, "project not found")
	}

	userTask := &models.Task{}
	if err := r.store.Get(ctx, models.CollectionTasks, msg.TaskID, userTask); err != nil {
		return fmt.Errorf("runner: load user task: %w", err)
	}

	conversationOrTask := msg.ConversationID
	if conversationOrTask == "" {
		conversationOrTask = msg.RelatedTaskID
	}

	// Step 2: acquire workspace.
	wsDir := r.cfg.WorkspaceDir
	if wsDir == "" {
		wsDir = "/data/workspaces"
	}
	mcpTools, mcpServers := r.providers.WorkspaceBinding(ctx, msg.ProjectID)
	ws, err := workspace.Provision(wsDir, msg.ProjectID, conversationOrTask, workspace.Options{
		MCPTools:   mcpTools,
		MCPServers: mcpServers,
	})
	if err != nil {
		return fmt.Errorf("runner: provision workspace: %w", err)
	}
	// Step 9: teardown on all exit paths.
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn("workspace teardown failed", "error", cerr)
		}
	}()

	if err := r.markProcessing(ctx, msg.RelatedTaskID); err != nil {
		return fmt.Errorf("runner: mark processing: %w", err)
	}

	// Step 3: build prompt.
	prompt := buildPrompt(userTask.Content, agent.Metadata)

	// Step 4: build options.
	sessionID, _, _ := r.sessions.Get(ctx, conversationOrTask)
	opts := llmsdk.Options{
		Model:       r.cfg.Model,
		MaxTurns:    r.cfg.MaxTurns,
		WorkDir:     ws.Root,
		Env:         r.cfg.Env,
		SessionID:   sessionID,
		SystemBlock: agent.Instructions,
	}

	result, sessionOut, cancelled, attemptMessages, runErr := r.runWithRetry(ctx, prompt, opts, msg.RelatedTaskID)

	messages := make([]auditMessage, 0, len(attemptMessages)+1)
	messages = append(messages, auditMessage{Role: "user", Content: userTask.Content})
	messages = append(messages, attemptMessages...)

	switch {
	case cancelled:
		return r.finalize(ctx, msg, agent.Name, cancelSentinel, models.TaskStatusFailed, messages)
	case runErr != nil:
		log.Error("runner exhausted retries", "error", runErr)
		return r.finalize(ctx, msg, agent.Name, runErr.Error(), models.TaskStatusFailed, messages)
	default:
		if sessionOut != "" {
			if err := r.sessions.Set(ctx, conversationOrTask, sessionOut); err != nil {
				log.Warn("session cache set failed", "error", err)
			}
		}
		return r.finalize(ctx, msg, agent.Name, result, models.TaskStatusCompleted, messages)
	}
}

// runWithRetry drives up to MaxAttempts invocations, per spec.md §4.6 step 7.
// Per spec.md §9's resolved open question, the audit trail concatenates
// every attempt's events rather than overwriting with the final attempt's.
func (r *Runner) runWithRetry(ctx context.Context, prompt string, opts llmsdk.Options, assistantTaskID string) (result, sessionID string, cancelled bool, messages []auditMessage, err error) {
	attemptPrompt := prompt
	var lastErr error

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		var attemptMessages []auditMessage
		result, sessionID, cancelled, attemptMessages, lastErr = r.invoke(ctx, attemptPrompt, opts, assistantTaskID)
		messages = append(messages, attemptMessages...)
		if cancelled {
			return "", "", true, messages, nil
		}
		if lastErr == nil && !isModelError(result) {
			return result, sessionID, false, messages, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: empty or sentinel final answer", apperr.ModelError)
		}
		if attempt < MaxAttempts {
			attemptPrompt = retryPrompt(prompt, attempt, lastErr)
		}
	}
	return "", "", false, messages, lastErr
}

// invoke runs one LLM SDK Query to completion or until cancelled, per
// spec.md §4.6 steps 5-6. It returns every AssistantMessage content block
// and the terminal ResultMessage as auditMessage entries, in event order,
// for the caller to append to the cross-attempt audit trail.
func (r *Runner) invoke(ctx context.Context, prompt string, opts llmsdk.Options, assistantTaskID string) (result, sessionID string, cancelled bool, messages []auditMessage, err error) {
	it, err := r.sdk.Query(ctx, prompt, opts)
	if err != nil {
		return "", "", false, nil, fmt.Errorf("runner: query: %w", err)
	}
	defer it.Close()

	ticker := time.NewTicker(CancellationPollInterval)
	defer ticker.Stop()

	eventCh := make(chan llmsdk.Event)
	errCh := make(chan error, 1)
	go func() {
		defer close(eventCh)
		for it.Next(ctx) {
			eventCh <- it.Event()
		}
		if ierr := it.Err(); ierr != nil {
			errCh <- ierr
		}
	}()

	var best string
	for {
		select {
		case ev, ok := <-eventCh:
			if !ok {
				select {
				case ierr := <-errCh:
					return best, sessionID, false, messages, ierr
				default:
				}
				return best, sessionID, false, messages, nil
			}
			switch e := ev.(type) {
			case llmsdk.AssistantMessage:
				for _, block := range e.Content {
					switch b := block.(type) {
					case llmsdk.TextBlock:
						best = b.Text
						messages = append(messages, auditMessage{Role: "assistant", Content: b.Text})
					case llmsdk.ToolUseBlock:
						messages = append(messages, auditMessage{Role: "assistant", Content: fmt.Sprintf("tool_use: %s(%v)", b.Name, b.Input)})
					case llmsdk.ToolResultBlock:
						messages = append(messages, auditMessage{Role: "tool", Content: b.Content})
					}
				}
			case llmsdk.ResultMessage:
				if e.Result != nil {
					best = *e.Result
					messages = append(messages, auditMessage{Role: "assistant", Content: *e.Result})
				}
				if e.SessionID != nil {
					sessionID = *e.SessionID
				}
			}
		case <-ticker.C:
			if r.cancellationRequested(ctx, assistantTaskID) {
				return best, sessionID, true, messages, nil
			}
		case <-ctx.Done():
			return best, sessionID, false, messages, ctx.Err()
		}
	}
}

// cancellationRequested implements the CancellationOracle of spec.md §4.6
// step 6: a Store-backed flag (cooperative cancellation set by the
// SSEBridge interrupt endpoint, which may also cancel ctx directly).
func (r *Runner) cancellationRequested(ctx context.Context, assistantTaskID string) bool {
	task := &models.Task{}
	if err := r.store.Get(ctx, models.CollectionTasks, assistantTaskID, task); err != nil {
		return false
	}
	return task.CancelRequested
}

func (r *Runner) markProcessing(ctx context.Context, assistantTaskID string) error {
	return r.store.Update(ctx, models.CollectionTasks, assistantTaskID, store.Patch{
		"status":     string(models.TaskStatusProcessing),
		"updated_at": r.now(),
	})
}

type auditMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// finalize implements spec.md §4.6 step 8: write final content + status,
// append the audit envelope to the Artifact Store.
func (r *Runner) finalize(ctx context.Context, msg broker.TaskMessage, agentName, content string, status models.TaskStatus, messages []auditMessage) error {
	if err := r.store.Update(ctx, models.CollectionTasks, msg.RelatedTaskID, store.Patch{
		"content":    content,
		"status":     string(status),
		"updated_at": r.now(),
	}); err != nil {
		return fmt.Errorf("runner: finalize task: %w", err)
	}
	if r.artifacts != nil {
		key := fmt.Sprintf("audit/%s/%s/%s.json", strings.ToLower(msg.ProjectID), msg.AgentID, msg.TaskID)
		if err := r.artifacts.PutJSON(ctx, key, map[string]any{"messages": messages}); err != nil {
			slog.Warn("audit envelope upload failed", "key", key, "error", err)
		}
	}

	notifyInput := slack.TaskCompletedInput{
		TaskID:    msg.RelatedTaskID,
		AgentName: agentName,
		Status:    string(status),
	}
	if status == models.TaskStatusCompleted {
		notifyInput.Content = content
	} else {
		notifyInput.ErrorMessage = content
	}
	r.notifier.NotifyTaskCompleted(ctx, notifyInput)

	return nil
}

func (r *Runner) failNotFound(ctx context.Context, msg broker.TaskMessage, reason string) error {
	return r.store.Update(ctx, models.CollectionTasks, msg.RelatedTaskID, store.Patch{
		"content":    reason,
		"status":     string(models.TaskStatusFailed),
		"updated_at": r.now(),
	})
}

// BuildPrompt exposes buildPrompt to other packages that drive an LLM SDK
// turn outside the queued Task flow (the SSEBridge's direct-streaming path).
func BuildPrompt(question string, agentMetadata map[string]any) string {
	return buildPrompt(question, agentMetadata)
}

// buildPrompt concatenates the sections of spec.md §4.6 step 3.
func buildPrompt(question string, agentMetadata map[string]any) string {
	var b strings.Builder
	if ctxVal, ok := agentMetadata["context"].(string); ok && ctxVal != "" {
		b.WriteString("## Context\n")
		b.WriteString(ctxVal)
		b.WriteString("\n\n")
	}
	b.WriteString("## Question\n")
	b.WriteString(question)
	if fmtVal, ok := agentMetadata["expected_output_format"].(string); ok && fmtVal != "" {
		b.WriteString("\n\n## Expected Output Format\n")
		b.WriteString(fmtVal)
	}
	return b.String()
}

// retryPrompt builds the retry-prefix prompt of spec.md §4.6 step 7,
// documenting the previous attempt's failure.
func retryPrompt(original string, attempt int, lastErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Retry (attempt %d)\nThe previous attempt did not produce a usable answer: %s\nPlease try again.\n\n", attempt+1, lastErr)
	b.WriteString(original)
	return b.String()
}

func isModelError(result string) bool {
	if result == "" {
		return true
	}
	for _, sentinel := range modelErrorSentinels {
		if strings.Contains(result, sentinel) {
			return true
		}
	}
	return false
}
