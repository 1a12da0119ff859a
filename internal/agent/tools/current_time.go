package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mindline/mindline-backend/internal/llm"
)

// CurrentTime reports the current date and time. No input.
type CurrentTime struct {
	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (CurrentTime) Name() string { return "current_time" }

func (CurrentTime) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "current_time",
		Description: "Fetch the current date and time.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	}
}

func (t CurrentTime) Invoke(ctx context.Context, rc RunContext, rawArgs string) (string, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().Format("Monday, 02 January 2006 15:04:05 MST"), nil
}
