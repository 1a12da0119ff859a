package pipeline

import (
	"context"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/llm"
)

// HistoryPair is one prior (query, response) exchange supplied by a caller.
type HistoryPair struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// historyLimit caps how many stored turns seed the conversation context.
const historyLimit = 8

// FormatHistory flattens prior pairs into role-tagged turns and appends the
// new query last.
func FormatHistory(pairs []HistoryPair, query string) []llm.Message {
	msgs := make([]llm.Message, 0, len(pairs)*2+1)
	for _, p := range pairs {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: p.Query})
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: p.Response})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
}

// historyFromStore rebuilds conversation context from the chat's persisted
// turns, prefixed with the system instruction.
func (s *Service) historyFromStore(ctx context.Context, chatID, query string) ([]llm.Message, error) {
	stored, err := s.repo.ListRecentMessages(ctx, chatID, historyLimit)
	if err != nil {
		return nil, err
	}

	msgs := make([]llm.Message, 0, len(stored)*2+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: agent.SystemPrompt})
	for _, m := range stored {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Query})
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Response})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: query}), nil
}
