// Package tools holds the callable capabilities exposed to the support agent.
// Each tool is a value implementing Tool; the agent loop dispatches by name
// through the registry, never by reflection.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mindline/mindline-backend/internal/llm"
)

// ErrNotImplemented marks tools whose persistence side is still missing.
// Surfacing it keeps the model from reporting fabricated success to the user.
var ErrNotImplemented = errors.New("tool not implemented")

// RunContext is the per-request user profile handed to every tool invocation.
type RunContext struct {
	Name   string
	ChatID string
	Age    int
	Gender string
}

type Tool interface {
	Name() string
	Spec() llm.ToolSpec
	Invoke(ctx context.Context, rc RunContext, rawArgs string) (string, error)
}

type Registry struct {
	order  []string
	byName map[string]Tool
}

func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	name := strings.TrimSpace(t.Name())
	if _, ok := r.byName[name]; !ok {
		r.order = append(r.order, name)
	}
	r.byName[name] = t
}

// Specs returns tool definitions in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].Spec())
	}
	return out
}

func (r *Registry) Invoke(ctx context.Context, rc RunContext, name, rawArgs string) (string, error) {
	t, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Invoke(ctx, rc, rawArgs)
}
