package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/mindline/mindline-backend/internal/llm"
)

// scriptedClient returns canned results in order; it records every request.
type scriptedClient struct {
	results []llm.Result
	errs    []error
	calls   []llm.Request
}

func (f *scriptedClient) next() (llm.Result, error) {
	i := len(f.calls) - 1
	var res llm.Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func (f *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	f.calls = append(f.calls, req)
	return f.next()
}

func (f *scriptedClient) StreamComplete(ctx context.Context, req llm.Request, onDelta func(string)) (llm.Result, error) {
	f.calls = append(f.calls, req)
	res, err := f.next()
	if err == nil && res.Text != "" && onDelta != nil {
		onDelta(res.Text)
	}
	return res, err
}

func TestGuardrailClassify(t *testing.T) {
	fake := &scriptedClient{
		results: []llm.Result{{
			Text:  `{"is_mental_health": true, "reasoning": "greeting"}`,
			Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}},
	}
	g := NewGuardrail(fake, "test-model")

	verdict, usage, err := g.Classify(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !verdict.InScope {
		t.Fatalf("expected in-scope verdict")
	}
	if verdict.Reasoning != "greeting" {
		t.Fatalf("unexpected reasoning: %q", verdict.Reasoning)
	}
	if usage.TotalTokens != 15 {
		t.Fatalf("expected usage to surface, got %+v", usage)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.calls))
	}
	req := fake.calls[0]
	if !req.ForceJSON {
		t.Fatalf("expected JSON output mode")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("expected system prompt followed by history, got %+v", req.Messages)
	}
}

func TestGuardrailClassify_MalformedOutputIsFatal(t *testing.T) {
	fake := &scriptedClient{
		results: []llm.Result{{Text: "sure, that is mental health related"}},
	}
	g := NewGuardrail(fake, "test-model")

	_, _, err := g.Classify(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
	})
	if err == nil {
		t.Fatalf("expected malformed verdict to fail classification")
	}
}

func TestGuardrailClassify_CallErrorPropagates(t *testing.T) {
	upstream := errors.New("model unavailable")
	fake := &scriptedClient{errs: []error{upstream}}
	g := NewGuardrail(fake, "test-model")

	_, _, err := g.Classify(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
