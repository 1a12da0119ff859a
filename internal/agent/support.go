package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/agent/tools"
	"github.com/mindline/mindline-backend/internal/llm"
)

type EventType string

const (
	EventAnswer      EventType = "answer"
	EventToolName    EventType = "tool_name"
	EventToolArgs    EventType = "tool_args"
	EventToolContent EventType = "tool_content"
	EventFinalAnswer EventType = "final_answer"
)

// Event is one typed item of a streamed agent run, in emission order.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// maxSteps bounds the tool loop; a run that has not produced a final answer
// by then is treated as an upstream failure.
const maxSteps = 8

// Support is the tool-calling support agent. One Run may make several model
// calls; usage is summed across all of them.
type Support struct {
	client llm.Client
	model  string
	tools  *tools.Registry
	log    *zap.Logger
}

func NewSupport(client llm.Client, model string, reg *tools.Registry, log *zap.Logger) *Support {
	if log == nil {
		log = zap.NewNop()
	}
	return &Support{client: client, model: model, tools: reg, log: log}
}

// Run blocks until the final answer and aggregate usage are available.
func (s *Support) Run(ctx context.Context, rc tools.RunContext, history []llm.Message) (string, llm.Usage, error) {
	return s.run(ctx, rc, history, nil)
}

// RunStream emits typed events as the run progresses: answer text deltas,
// tool invocations and their output, then the assembled final answer.
func (s *Support) RunStream(ctx context.Context, rc tools.RunContext, history []llm.Message, emit func(Event)) (string, llm.Usage, error) {
	if emit == nil {
		return "", llm.Usage{}, errors.New("agent: emit callback is required")
	}
	return s.run(ctx, rc, history, emit)
}

func (s *Support) run(ctx context.Context, rc tools.RunContext, history []llm.Message, emit func(Event)) (string, llm.Usage, error) {
	msgs := withSystemPrompt(history)

	var usage llm.Usage
	for step := 0; step < maxSteps; step++ {
		req := llm.Request{
			Model:    s.model,
			Messages: msgs,
			Tools:    s.tools.Specs(),
		}

		var (
			res llm.Result
			err error
		)
		if emit != nil {
			res, err = s.client.StreamComplete(ctx, req, func(delta string) {
				emit(Event{Type: EventAnswer, Content: delta})
			})
		} else {
			res, err = s.client.Complete(ctx, req)
		}
		if err != nil {
			return "", usage, fmt.Errorf("agent step %d: %w", step, err)
		}
		usage.Add(res.Usage)

		if len(res.ToolCalls) == 0 {
			if emit != nil {
				emit(Event{Type: EventFinalAnswer, Content: res.Text})
			}
			return res.Text, usage, nil
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   res.Text,
			ToolCalls: res.ToolCalls,
		})

		for _, tc := range res.ToolCalls {
			if emit != nil {
				emit(Event{Type: EventToolName, Content: tc.Name})
				emit(Event{Type: EventToolArgs, Content: tc.Arguments})
			}

			out, invokeErr := s.tools.Invoke(ctx, rc, tc.Name, tc.Arguments)
			if invokeErr != nil {
				// The model sees the failure and can tell the user the
				// capability is unavailable instead of claiming success.
				s.log.Warn("tool invocation failed",
					zap.String("tool", tc.Name),
					zap.Error(invokeErr),
				)
				out = fmt.Sprintf("tool error: %v", invokeErr)
			}
			if emit != nil {
				emit(Event{Type: EventToolContent, Content: out})
			}

			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", usage, fmt.Errorf("agent: no final answer after %d steps", maxSteps)
}

func withSystemPrompt(history []llm.Message) []llm.Message {
	if len(history) > 0 && history[0].Role == llm.RoleSystem {
		return history
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	return append(msgs, history...)
}
