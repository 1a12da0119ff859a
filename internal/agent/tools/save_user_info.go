package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindline/mindline-backend/internal/llm"
)

type saveUserInfoArgs struct {
	Name   string `json:"name"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
}

// SaveUserInfo is intended to persist profile updates volunteered during a
// conversation. Same seam as SaveCallbackRequest: no real write exists yet.
type SaveUserInfo struct{}

func (SaveUserInfo) Name() string { return "save_user_info" }

func (SaveUserInfo) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "save_user_info",
		Description: "Save user information in database.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name":   {"type": "string", "description": "Name of user"},
				"age":    {"type": "string", "description": "Age of the user"},
				"gender": {"type": "string", "description": "Gender of the user", "enum": ["Male", "Female", "Other"]}
			},
			"required": ["name", "age", "gender"]
		}`),
	}
}

func (SaveUserInfo) Invoke(ctx context.Context, rc RunContext, rawArgs string) (string, error) {
	var args saveUserInfoArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("save_user_info: bad arguments: %w", err)
	}
	return "", fmt.Errorf("save_user_info: %w", ErrNotImplemented)
}
