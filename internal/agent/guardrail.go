package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindline/mindline-backend/internal/llm"
)

// Verdict is the structured guardrail output: whether the conversation is in
// scope for the support agent, and why. It is never persisted.
type Verdict struct {
	InScope   bool   `json:"is_mental_health"`
	Reasoning string `json:"reasoning"`
}

// Guardrail labels a conversation as in-scope or not with a single
// JSON-output model call.
type Guardrail struct {
	client llm.Client
	model  string
}

func NewGuardrail(client llm.Client, model string) *Guardrail {
	return &Guardrail{client: client, model: model}
}

const guardrailFormatHint = `Respond with a single JSON object: {"is_mental_health": <bool>, "reasoning": "<short explanation>"}`

// Classify runs the guardrail over the ordered conversation. Any call error
// or malformed output is a classification failure; there is no default
// verdict, the caller must abort the turn.
func (g *Guardrail) Classify(ctx context.Context, history []llm.Message) (Verdict, llm.Usage, error) {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleSystem,
		Content: GuardrailPrompt + "\n\n" + guardrailFormatHint,
	})
	msgs = append(msgs, history...)

	res, err := g.client.Complete(ctx, llm.Request{
		Model:     g.model,
		Messages:  msgs,
		ForceJSON: true,
	})
	if err != nil {
		return Verdict{}, res.Usage, fmt.Errorf("guardrail: %w", err)
	}

	var v Verdict
	dec := json.NewDecoder(strings.NewReader(res.Text))
	if err := dec.Decode(&v); err != nil {
		return Verdict{}, res.Usage, fmt.Errorf("guardrail: malformed verdict %q: %w", res.Text, err)
	}
	return v, res.Usage, nil
}
