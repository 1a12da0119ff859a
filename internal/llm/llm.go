package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Set on assistant messages that requested tool calls, and on the
	// tool messages answering them.
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec describes a callable function exposed to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalTokens += o.TotalTokens
}

type Request struct {
	Model    string
	Messages []Message
	Tools    []ToolSpec

	// ForceJSON asks the model for a single JSON object response.
	ForceJSON bool
}

type Result struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

type Client interface {
	Complete(ctx context.Context, req Request) (Result, error)

	// StreamComplete forwards answer text deltas to onDelta as they arrive.
	// Tool call fragments are accumulated and returned whole in the Result.
	StreamComplete(ctx context.Context, req Request, onDelta func(delta string)) (Result, error)
}
