package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/agent/tools"
	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/llm"
	"github.com/mindline/mindline-backend/internal/models"
)

func testToolRegistry() *tools.Registry {
	return tools.NewRegistry(tools.CurrentTime{})
}

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

type recordingSender struct {
	chatIDs []int64
	texts   []string
}

func (s *recordingSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.chatIDs = append(s.chatIDs, chatID)
	s.texts = append(s.texts, text)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Message{}, &models.Task{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, fake *scriptedClient, sender Sender) *Service {
	t.Helper()
	repo := NewRepo(db)
	guardrail := agent.NewGuardrail(fake, "test-guardrail")
	support := agent.NewSupport(fake, "test-agent", testToolRegistry(), nil)
	return NewService(repo, guardrail, support, fake, sender, config.AgentModel, nil)
}

const inScopeVerdict = `{"is_mental_health": true, "reasoning": "user is sharing feelings"}`

func TestRunStreamed_InScopePersistsTurn(t *testing.T) {
	db := openTestDB(t)
	fake := &scriptedClient{
		results: []llm.Result{
			{Text: inScopeVerdict, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
			{Text: "That sounds tough. I'm here to help. 🌱", Usage: llm.Usage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30}},
		},
	}
	svc := newTestService(t, db, fake, &recordingSender{})

	var events []agent.Event
	usage, err := svc.RunStreamed(context.Background(), "u-123", "I feel anxious today", nil, func(ev agent.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("run streamed: %v", err)
	}
	if usage.TotalTokens != 45 {
		t.Fatalf("expected classifier+agent usage summed, got %+v", usage)
	}
	if len(events) == 0 {
		t.Fatalf("expected streamed events")
	}
	final := events[len(events)-1]
	if final.Type != agent.EventFinalAnswer || final.Content == "" {
		t.Fatalf("expected non-empty final answer, got %+v", final)
	}

	var msgs []models.Message
	if err := db.Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message row, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Query != "I feel anxious today" || m.Response == "" {
		t.Fatalf("unexpected row: %+v", m)
	}
	if m.Model != config.AgentModel || m.Provider != "Openai" {
		t.Fatalf("unexpected model/provider: %q/%q", m.Model, m.Provider)
	}
	if m.InputTokens != 30 || m.OutputTokens != 15 || m.TotalTokens != 45 {
		t.Fatalf("unexpected token counters: %+v", m)
	}
}

func TestRunStreamed_OutOfScopeUsesRefusalTemplate(t *testing.T) {
	db := openTestDB(t)
	query := "What's the weather tomorrow?"
	reasoning := "weather is not a mental health topic"
	fake := &scriptedClient{
		results: []llm.Result{
			{Text: `{"is_mental_health": false, "reasoning": "` + reasoning + `"}`, Usage: llm.Usage{TotalTokens: 12}},
			{Text: "Sorry, I can only help with mental wellbeing.", Usage: llm.Usage{TotalTokens: 8}},
		},
	}
	svc := newTestService(t, db, fake, &recordingSender{})

	var events []agent.Event
	usage, err := svc.RunStreamed(context.Background(), "u-123", query, nil, func(ev agent.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("run streamed: %v", err)
	}
	if usage.TotalTokens != 20 {
		t.Fatalf("expected refusal usage counted, got %+v", usage)
	}

	// The refusal is a plain completion built from {query, reasoning};
	// the agent's tools must never be attached to it.
	refusalReq := fake.calls[1]
	if len(refusalReq.Tools) != 0 {
		t.Fatalf("refusal path must not expose tools")
	}
	prompt := refusalReq.Messages[0].Content
	if !strings.Contains(prompt, query) || !strings.Contains(prompt, reasoning) {
		t.Fatalf("refusal prompt missing query or reasoning: %q", prompt)
	}

	for _, ev := range events {
		if ev.Type == agent.EventToolName || ev.Type == agent.EventToolContent {
			t.Fatalf("out-of-scope turn emitted tool events: %+v", ev)
		}
	}
}

func TestRunStreamed_ClassifierFailurePersistsNothing(t *testing.T) {
	db := openTestDB(t)
	fake := &scriptedClient{errs: []error{errors.New("model unavailable")}}
	svc := newTestService(t, db, fake, &recordingSender{})

	_, err := svc.RunStreamed(context.Background(), "u-123", "hello", nil, func(agent.Event) {})
	if err == nil {
		t.Fatalf("expected classification failure to abort the turn")
	}

	var count int64
	if err := db.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no message rows, got %d", count)
	}
}

func TestProcessTelegramTurn_DeliversAndPersists(t *testing.T) {
	db := openTestDB(t)
	seedVerifiedUser(t, db, "12345")

	// Seed one prior turn so the history is rebuilt from storage.
	if err := db.Create(&models.Message{
		Query:    "hi",
		Response: "hello!",
		ChatID:   "12345",
	}).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	fake := &scriptedClient{
		results: []llm.Result{
			{Text: inScopeVerdict, Usage: llm.Usage{InputTokens: 4, OutputTokens: 2, TotalTokens: 6}},
			{Text: "Take a deep breath. 🌼", Usage: llm.Usage{InputTokens: 6, OutputTokens: 4, TotalTokens: 10}},
		},
	}
	sender := &recordingSender{}
	svc := newTestService(t, db, fake, sender)

	msgID, err := svc.ProcessTelegramTurn(context.Background(), "12345", "I feel low")
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if msgID == "" {
		t.Fatalf("expected persisted message id")
	}

	if len(sender.texts) != 1 || sender.chatIDs[0] != 12345 {
		t.Fatalf("expected one delivery to chat 12345, got %+v", sender)
	}
	if sender.texts[0] != "Take a deep breath. 🌼" {
		t.Fatalf("unexpected delivered text: %q", sender.texts[0])
	}

	// Guardrail input: system prompt, prior pair, then the new query.
	guardMsgs := fake.calls[0].Messages[1:] // skip the guardrail's own system message
	if guardMsgs[0].Role != llm.RoleSystem {
		t.Fatalf("expected stored history to start with system prompt")
	}
	if got := guardMsgs[len(guardMsgs)-1]; got.Role != llm.RoleUser || got.Content != "I feel low" {
		t.Fatalf("expected new query last, got %+v", got)
	}

	var msgs []models.Message
	if err := db.Where("query = ?", "I feel low").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one persisted turn, got %d", len(msgs))
	}
	if msgs[0].TotalTokens != 16 {
		t.Fatalf("expected summed usage, got %+v", msgs[0])
	}
}

func TestProcessTelegramTurn_FailureSendsApologyAndPersistsNothing(t *testing.T) {
	db := openTestDB(t)
	seedVerifiedUser(t, db, "12345")

	fake := &scriptedClient{errs: []error{errors.New("model unavailable")}}
	sender := &recordingSender{}
	svc := newTestService(t, db, fake, sender)

	_, err := svc.ProcessTelegramTurn(context.Background(), "12345", "I feel low")
	if err == nil {
		t.Fatalf("expected turn failure")
	}

	if len(sender.texts) != 1 || sender.texts[0] != config.ErrorMessage {
		t.Fatalf("expected the fixed apology, got %+v", sender.texts)
	}

	var count int64
	if err := db.Model(&models.Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no message rows, got %d", count)
	}
}

func TestProcessTelegramTurn_UnverifiedUserRejected(t *testing.T) {
	db := openTestDB(t)
	if err := db.Create(&models.User{ChatID: "12345", Channel: models.ChannelTelegram}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	fake := &scriptedClient{}
	sender := &recordingSender{}
	svc := newTestService(t, db, fake, sender)

	_, err := svc.ProcessTelegramTurn(context.Background(), "12345", "hello")
	if !errors.Is(err, ErrUserNotVerified) {
		t.Fatalf("expected ErrUserNotVerified, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no model call should run for unverified users")
	}
}

func TestListRecentMessages_CapAndOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		if err := db.Create(&models.Message{
			Query:     queryName(i),
			Response:  "r",
			ChatID:    "12345",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error; err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}

	msgs, err := repo.ListRecentMessages(context.Background(), "12345", 8)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(msgs))
	}
	// The two oldest turns fall off; order is oldest -> newest.
	if msgs[0].Query != queryName(2) || msgs[7].Query != queryName(9) {
		t.Fatalf("unexpected window: first=%q last=%q", msgs[0].Query, msgs[7].Query)
	}
}

func seedVerifiedUser(t *testing.T, db *gorm.DB, chatID string) {
	t.Helper()
	if err := db.Create(&models.User{
		FirstName:  "Asha",
		ChatID:     chatID,
		Channel:    models.ChannelTelegram,
		Age:        30,
		Gender:     "Female",
		IsVerified: true,
	}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func queryName(i int) string {
	return "q" + string(rune('0'+i))
}
