package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindline/mindline-backend/internal/llm"
)

type saveCallbackArgs struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Email  string `json:"email"`
}

// SaveCallbackRequest records a human-callback request for the user.
// The persistence side does not exist yet; the tool validates its arguments
// and then fails loudly rather than pretending the request was saved.
type SaveCallbackRequest struct{}

func (SaveCallbackRequest) Name() string { return "save_callback_request" }

func (SaveCallbackRequest) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "save_callback_request",
		Description: "Register a callback request so a human can reach the user.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name":   {"type": "string", "description": "Name of user"},
				"mobile": {"type": "string", "description": "Mobile number of the user"},
				"email":  {"type": "string", "description": "Email address of the user"}
			},
			"required": ["mobile"]
		}`),
	}
}

func (SaveCallbackRequest) Invoke(ctx context.Context, rc RunContext, rawArgs string) (string, error) {
	var args saveCallbackArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("save_callback_request: bad arguments: %w", err)
	}
	if args.Mobile == "" {
		return "", fmt.Errorf("save_callback_request: mobile is required")
	}
	return "", fmt.Errorf("save_callback_request: %w", ErrNotImplemented)
}
