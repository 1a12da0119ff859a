// Package telegram is a thin client for the Bot HTTP API: outbound
// MarkdownV2 messages plus webhook registration.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is stateless and safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient expects baseURL in the form https://api.telegram.org/bot<token>.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// SendMessage delivers text to a chat, escaped for MarkdownV2.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       EscapeMarkdownV2(text),
		"parse_mode": "MarkdownV2",
	}
	_, err := c.post(ctx, "sendMessage", payload)
	return err
}

// SendMarkdownMessage delivers text verbatim as MarkdownV2. For
// service-authored messages that carry real markup; the caller owns the
// escaping of any literal specials.
func (c *Client) SendMarkdownMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	_, err := c.post(ctx, "sendMessage", payload)
	return err
}

// SetWebhook registers url as the bot's update endpoint and returns the
// platform's description. On a platform-side rejection the returned error
// carries the description instead.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) (string, error) {
	u := fmt.Sprintf("%s/setWebhook?url=%s", c.baseURL, url.QueryEscape(webhookURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	out, err := decodeAPIResponse(resp)
	if err != nil {
		return "", err
	}
	return out.Description, nil
}

func (c *Client) post(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp)
}

func decodeAPIResponse(resp *http.Response) (*apiResponse, error) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("telegram: decode response: %w", err)
	}
	if !out.OK {
		desc := out.Description
		if desc == "" {
			desc = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, &APIError{Description: desc}
	}
	return &out, nil
}

// APIError is a platform-side rejection; Description comes from Telegram.
type APIError struct {
	Description string
}

func (e *APIError) Error() string { return "telegram: " + e.Description }
