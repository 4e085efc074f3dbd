package llmsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the real, API-backed SDK implementation.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Anthropic is the production SDK implementation, backed by
// github.com/anthropics/anthropic-sdk-go. It turns the SDK's per-delta
// SSE stream into the coarse AssistantMessage/ResultMessage event pair
// the Runner expects per turn.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropic builds an Anthropic-backed SDK. Requires a non-empty
// APIKey; DefaultModel falls back to claude-sonnet-4-20250514.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmsdk: anthropic API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), defaultModel: model}, nil
}

func (a *Anthropic) model(opts Options) string {
	if opts.Model == "" {
		return a.defaultModel
	}
	return opts.Model
}

// Query streams one multi-turn run. Each AssistantMessage carries the
// complete content-block set for one model turn; the stream ends with
// exactly one ResultMessage.
func (a *Anthropic) Query(ctx context.Context, prompt string, opts Options) (EventIterator, error) {
	events := make(chan Event)
	errc := make(chan error, 1)
	done := make(chan struct{})

	go a.run(ctx, prompt, opts, events, errc, done)

	return &chanIterator{events: events, errc: errc, done: done}, nil
}

func (a *Anthropic) run(ctx context.Context, prompt string, opts Options, events chan<- Event, errc chan<- error, done chan struct{}) {
	defer close(events)

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 15
	}

	messages := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))}
	started := time.Now()
	var lastText string
	var sessionID *string
	if opts.SessionID != "" {
		sessionID = &opts.SessionID
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model(opts)),
			Messages:  messages,
			MaxTokens: 4096,
		}
		if opts.SystemBlock != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: opts.SystemBlock}}
		}

		stream := a.client.Messages.NewStreaming(ctx, params)
		blocks, toolUse, text, err := drainStream(stream)
		if err != nil {
			select {
			case errc <- err:
			default:
			}
			return
		}
		if text != "" {
			lastText = text
		}

		select {
		case events <- AssistantMessage{Content: blocks}:
		case <-done:
			return
		}

		if len(toolUse) == 0 {
			break
		}
		// Tool results are supplied by the caller out-of-band in the
		// general case; this wrapper only speaks the Runner's contract,
		// which treats ToolUseBlock as terminal-for-this-turn and relies
		// on the caller's MCP adapters to execute and resubmit. Without a
		// resubmission channel here, stop after reporting the tool calls.
		break
	}

	result := lastText
	var resultPtr *string
	if result != "" {
		resultPtr = &result
	}
	select {
	case events <- ResultMessage{
		Result:     resultPtr,
		DurationMs: int(time.Since(started) / time.Millisecond),
		SessionID:  sessionID,
	}:
	case <-done:
	}
}

func drainStream(stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}) ([]Block, []ToolUseBlock, string, error) {
	var blocks []Block
	var toolUse []ToolUseBlock
	var textBuilder strings.Builder
	var currentTool *ToolUseBlock
	var toolInput strings.Builder

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			switch start.ContentBlock.Type {
			case "tool_use":
				use := start.ContentBlock.AsToolUse()
				currentTool = &ToolUseBlock{ID: use.ID, Name: use.Name}
				toolInput.Reset()
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				textBuilder.WriteString(delta.Text)
			case "thinking_delta":
				if delta.Thinking != "" {
					blocks = append(blocks, ThinkingBlock{Thinking: delta.Thinking})
				}
			case "input_json_delta":
				toolInput.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			if currentTool != nil {
				var input map[string]any
				if raw := toolInput.String(); raw != "" {
					_ = json.Unmarshal([]byte(raw), &input)
				}
				currentTool.Input = input
				blocks = append(blocks, *currentTool)
				toolUse = append(toolUse, *currentTool)
				currentTool = nil
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, nil, "", fmt.Errorf("llmsdk: anthropic stream: %w", err)
	}
	if textBuilder.Len() > 0 {
		text := textBuilder.String()
		blocks = append([]Block{TextBlock{Text: text}}, blocks...)
		return blocks, toolUse, text, nil
	}
	return blocks, toolUse, "", nil
}

// chanIterator adapts a producer goroutine's channel pair into the
// blocking EventIterator contract.
type chanIterator struct {
	events  <-chan Event
	errc    <-chan error
	done    chan struct{}
	current Event
	err     error
	closed  bool
}

func (it *chanIterator) Next(ctx context.Context) bool {
	select {
	case ev, ok := <-it.events:
		if !ok {
			select {
			case err := <-it.errc:
				it.err = err
			default:
			}
			return false
		}
		it.current = ev
		return true
	case err := <-it.errc:
		it.err = err
		return false
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	}
}

func (it *chanIterator) Event() Event { return it.current }

func (it *chanIterator) Err() error { return it.err }

func (it *chanIterator) Close() error {
	if !it.closed {
		it.closed = true
		close(it.done)
	}
	return nil
}
