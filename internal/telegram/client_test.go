package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage_EscapesForMarkdownV2(t *testing.T) {
	var got struct {
		ChatID    int64  `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if err := c.SendMessage(context.Background(), 555, "Take a breath. Then rest!"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	if got.ChatID != 555 {
		t.Fatalf("unexpected chat id %d", got.ChatID)
	}
	if got.ParseMode != "MarkdownV2" {
		t.Fatalf("unexpected parse mode %q", got.ParseMode)
	}
	if got.Text != "Take a breath\\. Then rest\\!" {
		t.Fatalf("unexpected escaped text %q", got.Text)
	}
}

func TestSendMarkdownMessage_KeepsMarkupVerbatim(t *testing.T) {
	var got struct {
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	text := "*register* here: [Link](https://example.com/register?chatId=555)\\."
	if err := c.SendMarkdownMessage(context.Background(), 555, text); err != nil {
		t.Fatalf("send markdown message: %v", err)
	}

	if got.Text != text {
		t.Fatalf("markup was altered: %q", got.Text)
	}
	if got.ParseMode != "MarkdownV2" {
		t.Fatalf("unexpected parse mode %q", got.ParseMode)
	}
}

func TestSetWebhook_PlatformRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "bad webhook: failed to resolve host",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.SetWebhook(context.Background(), "https://example.com/hook")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Description != "bad webhook: failed to resolve host" {
		t.Fatalf("unexpected description %q", apiErr.Description)
	}
}

func TestSetWebhook_ReturnsDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/hook" {
			t.Errorf("unexpected webhook url %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          true,
			"description": "Webhook was set",
			"result":      true,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	desc, err := c.SetWebhook(context.Background(), "https://example.com/hook")
	if err != nil {
		t.Fatalf("set webhook: %v", err)
	}
	if desc != "Webhook was set" {
		t.Fatalf("unexpected description %q", desc)
	}
}
