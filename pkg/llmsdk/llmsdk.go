// Package llmsdk wraps the external LLM SDK behind the opaque contract
// spec.md §4.6 step 5 treats as a black box: Query(prompt, options) ->
// lazy sequence of events. The Runner only ever sees the types in this
// package; it never imports the underlying provider SDK directly.
package llmsdk

import "context"

// Options is the Runner-built request: model, turn budget, workspace
// directory and environment, and the MCP server dict for this task.
type Options struct {
	Model       string
	MaxTurns    int
	WorkDir     string
	Env         map[string]string
	MCPServers  map[string]MCPServerConfig
	SessionID   string
	SystemBlock string
}

// MCPServerConfig is a single entry of the options.MCPServers dict.
type MCPServerConfig struct {
	URL     string
	Command string
	Args    []string
}

// Block is one of TextBlock, ThinkingBlock, ToolUseBlock, ToolResultBlock.
type Block interface{ isBlock() }

type TextBlock struct{ Text string }

type ThinkingBlock struct{ Thinking string }

type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextBlock) isBlock()       {}
func (ThinkingBlock) isBlock()   {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}

// Event is one of AssistantMessage or ResultMessage, matching spec.md
// §4.6 step 5's two recognised variants.
type Event interface{ isEvent() }

// AssistantMessage carries a turn's content blocks. TextBlock.Text is the
// Runner's running "current best final answer"; ToolUseBlock is counted
// and forwarded for SSE.
type AssistantMessage struct {
	Content []Block
}

// ResultMessage is the terminal event of a Query. Result, if non-nil,
// overrides the final answer accumulated from AssistantMessage text
// blocks. SessionID, if non-nil, is persisted via the session cache.
type ResultMessage struct {
	Result     *string
	DurationMs int
	SessionID  *string
	IsError    bool
	ErrMessage string
}

func (AssistantMessage) isEvent() {}
func (ResultMessage) isEvent()    {}

// EventIterator is the lazy sequence Query returns. Next blocks until the
// next event is available, returns false at the end of the stream (after
// a ResultMessage, or on ctx cancellation), and Err reports any
// terminal transport error.
type EventIterator interface {
	Next(ctx context.Context) bool
	Event() Event
	Err() error
	Close() error
}

// SDK is the Query entry point every implementation (the real Anthropic-
// backed one and the in-memory fake used by Runner tests) satisfies.
type SDK interface {
	Query(ctx context.Context, prompt string, opts Options) (EventIterator, error)
}
