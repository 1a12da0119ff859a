package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the hosted chat-completion API. Every call runs under
// an explicit timeout; the hosted side has none of its own.
type OpenAIClient struct {
	api     *openai.Client
	timeout time.Duration
}

func NewOpenAIClient(apiKey string, timeout time.Duration) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIClient{
		api:     openai.NewClient(apiKey),
		timeout: timeout,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(cctx, buildChatRequest(req, false))
	if err != nil {
		return Result{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("openai: empty response")
	}

	choice := resp.Choices[0]
	out := Result{
		Text:  choice.Message.Content,
		Usage: fromOpenAIUsage(resp.Usage),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (c *OpenAIClient) StreamComplete(ctx context.Context, req Request, onDelta func(string)) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	oreq := buildChatRequest(req, true)
	stream, err := c.api.CreateChatCompletionStream(cctx, oreq)
	if err != nil {
		return Result{}, fmt.Errorf("openai: %w", err)
	}
	defer stream.Close()

	var (
		text  strings.Builder
		calls []ToolCall
		usage Usage
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("openai stream: %w", err)
		}

		// Usage arrives on the final chunk when IncludeUsage is set.
		if chunk.Usage != nil {
			usage = fromOpenAIUsage(*chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := len(calls) - 1
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, ToolCall{})
			}
			if idx < 0 {
				continue
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Name += tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				calls[idx].Arguments += tc.Function.Arguments
			}
		}
	}

	return Result{Text: text.String(), ToolCalls: calls, Usage: usage}, nil
}

func buildChatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:  req.Model,
		Stream: stream,
	}
	if stream {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	if req.ForceJSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	for _, m := range req.Messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, om)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIUsage(u openai.Usage) Usage {
	return Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
