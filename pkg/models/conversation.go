package models

// Conversation is a multi-turn thread. It owns its Messages (cascade-deleted
// with it) and caches the upstream LLM SDK session id so the next turn can
// resume server-side history.
type Conversation struct {
	Base
	ProjectID  string  `json:"project_id"`
	AgentID    *string `json:"agent_id,omitempty"`
	MessageIDs []string `json:"message_ids"`
	SessionID  *string `json:"session_id,omitempty"`
}

// CollectionConversations is the Store collection name for Conversation documents.
const CollectionConversations = "conversations"

// MessageRole is the speaker of a Message row.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// Message is a single SSE-visible event row attached to a Conversation, kept
// for audit/replay (spec.md §3).
type Message struct {
	Base
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	EventType      string      `json:"event_type"`
	Content        string      `json:"content"`
	Sequence       int         `json:"sequence"`
}

// CollectionMessages is the Store collection name for Message documents.
const CollectionMessages = "messages"
