// Package sse implements the SSEBridge of spec.md §4.8: one live HTTP
// stream per (conversation, message), backed directly by the LLM SDK
// rather than the queued agent.task broker path, with mid-stream interrupt
// support.
package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/cache"
	"github.com/taskforge/platform/pkg/llmsdk"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/providers"
	"github.com/taskforge/platform/pkg/store"
)

// Config carries the Bridge's deployment defaults, mirroring runner.Config.
type Config struct {
	Model        string
	MaxTurns     int
	WorkspaceDir string
}

// Bridge owns the process-wide active-runner map spec.md §4.8 names:
// every live stream registers its context.CancelFunc under
// "{conversation_id}:{message_id}" so the interrupt endpoint can cancel it
// by key, grounded on the teacher's RegisterSession/UnregisterSession
// session-registry shape in pkg/queue/worker.go.
type Bridge struct {
	store     store.Store
	sdk       llmsdk.SDK
	sessions  cache.SessionCache
	providers *providers.Registry
	cfg       Config

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewBridge builds a Bridge over its dependencies.
func NewBridge(s store.Store, sdk llmsdk.SDK, sessions cache.SessionCache, reg *providers.Registry, cfg Config) *Bridge {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 15
	}
	return &Bridge{
		store:     s,
		sdk:       sdk,
		sessions:  sessions,
		providers: reg,
		cfg:       cfg,
		active:    make(map[string]context.CancelFunc),
	}
}

func streamKey(conversationID, messageID string) string {
	return fmt.Sprintf("%s:%s", conversationID, messageID)
}

func (b *Bridge) register(key string, cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[key] = cancel
}

func (b *Bridge) unregister(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, key)
}

// Interrupt cancels the live stream for (conversationID, messageID), if
// one is registered. It is non-blocking: the Runner terminates within its
// own next ctx check, not before Interrupt returns (spec.md §4.6 edge
// cases: "interrupt is non-blocking").
func (b *Bridge) Interrupt(conversationID, messageID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cancel, ok := b.active[streamKey(conversationID, messageID)]
	if ok {
		cancel()
	}
	return ok
}

// CancelAll cancels every live stream for conversationID, used by the
// session-disconnect endpoint. Returns the number of streams cancelled.
func (b *Bridge) CancelAll(conversationID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := conversationID + ":"
	n := 0
	for key, cancel := range b.active {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			cancel()
			n++
		}
	}
	return n
}

// resolveConversation implements spec.md §4.8 step 1's "resolve or create".
func (b *Bridge) resolveConversation(ctx context.Context, conversationID, projectID, agentID string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := b.store.Get(ctx, models.CollectionConversations, conversationID, conv)
	if err == nil {
		return conv, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}

	conv = &models.Conversation{
		Base:      models.Base{ID: conversationID},
		ProjectID: projectID,
	}
	if agentID != "" {
		conv.AgentID = &agentID
	}
	if insertErr := b.store.Insert(ctx, models.CollectionConversations, conv); insertErr != nil {
		return nil, insertErr
	}
	return conv, nil
}
