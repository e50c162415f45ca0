package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client performs a single request/response exchange with a remote agent.
// It deliberately carries no retry policy; callers that need delivery
// guarantees wrap it with the notify package.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Ask sends a text payload to an agent and returns the reply text.
func (c *Client) Ask(ctx context.Context, agentURL string, text string) (string, error) {
	body, err := json.Marshal(Message{Text: text})
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	endpoint := strings.TrimRight(agentURL, "/") + "/a2a"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", fmt.Errorf("agent returned %d: %s", resp.StatusCode, string(b))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return msg.Text, nil
}

// AskJSON sends a structured request and decodes the reply's embedded JSON.
func (c *Client) AskJSON(ctx context.Context, agentURL string, request map[string]any, result any) error {
	b, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	reply, err := c.Ask(ctx, agentURL, string(b))
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(reply)
	if err != nil {
		return fmt.Errorf("reply from %s: %w", agentURL, err)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
