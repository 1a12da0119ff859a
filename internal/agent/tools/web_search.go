package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mindline/mindline-backend/internal/llm"
)

// WebSearch delegates to an external search API so the agent can ground its
// answers. Results are scoped to the service's fixed locale.
type WebSearch struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

const (
	searchCountry  = "in"
	searchTimezone = "Asia/Kolkata"
	searchMaxHits  = 5
)

func NewWebSearch(baseURL, apiKey string) *WebSearch {
	return &WebSearch{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (*WebSearch) Name() string { return "web_search" }

func (*WebSearch) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "web_search",
		Description: "Search the web for up-to-date information.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"]
		}`),
	}
}

type webSearchArgs struct {
	Query string `json:"query"`
}

type searchHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Organic []searchHit `json:"organic"`
}

func (w *WebSearch) Invoke(ctx context.Context, rc RunContext, rawArgs string) (string, error) {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("web_search: bad arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("web_search: query is required")
	}
	if strings.TrimSpace(w.APIKey) == "" {
		return "", errors.New("web_search: api key is required")
	}

	body, err := json.Marshal(map[string]string{
		"q":  args.Query,
		"gl": searchCountry,
		"tz": searchTimezone,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", w.APIKey)

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("web_search: %s", msg)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	if len(decoded.Organic) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, hit := range decoded.Organic {
		if i >= searchMaxHits {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, hit.Title, hit.Snippet, hit.Link)
	}
	return strings.TrimSpace(b.String()), nil
}
