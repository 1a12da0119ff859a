// Package pipeline ties the guardrail, the support agent and persistence
// together: classify the turn, run the agent or the refusal path, deliver,
// then persist exactly one message row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/agent/tools"
	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/llm"
	"github.com/mindline/mindline-backend/internal/models"
)

// ErrUserNotVerified gates webhook turns for chats that have not completed
// registration yet.
var ErrUserNotVerified = errors.New("user not verified")

// Sender delivers outbound platform messages (satisfied by telegram.Client).
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	repo       *Repo
	guardrail  *agent.Guardrail
	support    *agent.Support
	client     llm.Client
	sender     Sender
	agentModel string
	log        *zap.Logger
}

func NewService(repo *Repo, guardrail *agent.Guardrail, support *agent.Support, client llm.Client, sender Sender, agentModel string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if agentModel == "" {
		agentModel = config.AgentModel
	}
	return &Service{
		repo:       repo,
		guardrail:  guardrail,
		support:    support,
		client:     client,
		sender:     sender,
		agentModel: agentModel,
		log:        log,
	}
}

// RunStreamed handles one interactive HTTP turn: classify, then stream either
// the agent run or the refusal completion through emit, persist the completed
// turn, and return the aggregate usage across every model call.
//
// A persistence failure after the reply has been streamed is logged and not
// surfaced; the reply already reached the caller.
func (s *Service) RunStreamed(ctx context.Context, userID, query string, pairs []HistoryPair, emit func(agent.Event)) (llm.Usage, error) {
	history := FormatHistory(pairs, query)

	verdict, usage, err := s.guardrail.Classify(ctx, history)
	if err != nil {
		return usage, err
	}

	var response string
	if verdict.InScope {
		text, runUsage, err := s.support.RunStream(ctx, tools.RunContext{Name: "User", ChatID: userID}, history, emit)
		usage.Add(runUsage)
		if err != nil {
			return usage, err
		}
		response = text
	} else {
		text, refusalUsage, err := s.streamRefusal(ctx, query, verdict.Reasoning, emit)
		usage.Add(refusalUsage)
		if err != nil {
			return usage, err
		}
		response = text
	}

	if _, err := s.persistTurn(ctx, userID, query, response, usage); err != nil {
		s.log.Error("persist turn failed after streamed reply",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return usage, nil
}

// ProcessTelegramTurn handles one queued webhook turn end to end. On any
// pipeline failure the fixed apology is sent (best effort), nothing is
// persisted for the turn, and the error is returned for the task record.
func (s *Service) ProcessTelegramTurn(ctx context.Context, chatID, query string) (messageID string, err error) {
	defer func() {
		if err != nil {
			s.sendApology(chatID)
		}
	}()

	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if user == nil || !user.IsVerified {
		return "", ErrUserNotVerified
	}

	history, err := s.historyFromStore(ctx, chatID, query)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	verdict, usage, err := s.guardrail.Classify(ctx, history)
	if err != nil {
		return "", err
	}

	var response string
	if verdict.InScope {
		rc := tools.RunContext{
			Name:   user.FirstName,
			ChatID: chatID,
			Age:    user.Age,
			Gender: user.Gender,
		}
		text, runUsage, err := s.support.Run(ctx, rc, history)
		usage.Add(runUsage)
		if err != nil {
			return "", err
		}
		response = text
	} else {
		text, refusalUsage, err := s.completeRefusal(ctx, query, verdict.Reasoning)
		usage.Add(refusalUsage)
		if err != nil {
			return "", err
		}
		response = text
	}

	numericChatID, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad chat id %q: %w", chatID, err)
	}
	if err := s.sender.SendMessage(ctx, numericChatID, response); err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}

	// Reply is out; a failed write is logged, never retried, and silent to
	// the user.
	msgID, persistErr := s.persistTurn(ctx, chatID, query, response, usage)
	if persistErr != nil {
		s.log.Error("persist turn failed after delivered reply",
			zap.String("chat_id", chatID),
			zap.Error(persistErr),
		)
		return "", nil
	}
	return msgID, nil
}

// streamRefusal streams the fixed out-of-scope reply built from the query and
// the classifier's reasoning. No tools are ever available on this path.
func (s *Service) streamRefusal(ctx context.Context, query, reasoning string, emit func(agent.Event)) (string, llm.Usage, error) {
	res, err := s.client.StreamComplete(ctx, llm.Request{
		Model: s.agentModel,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: agent.RefusalPrompt(query, reasoning)},
		},
	}, func(delta string) {
		emit(agent.Event{Type: agent.EventAnswer, Content: delta})
	})
	if err != nil {
		return "", res.Usage, fmt.Errorf("refusal: %w", err)
	}
	return res.Text, res.Usage, nil
}

func (s *Service) completeRefusal(ctx context.Context, query, reasoning string) (string, llm.Usage, error) {
	res, err := s.client.Complete(ctx, llm.Request{
		Model: s.agentModel,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: agent.RefusalPrompt(query, reasoning)},
		},
	})
	if err != nil {
		return "", res.Usage, fmt.Errorf("refusal: %w", err)
	}
	return res.Text, res.Usage, nil
}

func (s *Service) persistTurn(ctx context.Context, chatID, query, response string, usage llm.Usage) (string, error) {
	msg := &models.Message{
		Query:        query,
		Response:     response,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		Model:        s.agentModel,
		Provider:     config.ProviderName,
		ChatID:       chatID,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (s *Service) sendApology(chatID string) {
	numericChatID, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		s.log.Error("cannot notify user, bad chat id", zap.String("chat_id", chatID))
		return
	}
	// Detached from the turn's (possibly expired) context.
	if err := s.sender.SendMessage(context.Background(), numericChatID, config.ErrorMessage); err != nil {
		s.log.Error("failed to notify user about the error",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
	}
}
