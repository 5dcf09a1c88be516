/**
 * @description
 * This package provides a client for the push-notification gateway that
 * fronts APNs for the mobile and watch apps. A send targets a set of device
 * tokens and returns a per-token success/failure tally; partial failure is
 * not an error.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - internal/domain for the push payload and result models.
 */
package pushclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

// Client is a client for the push gateway.
type Client struct {
	baseURL    string
	apiKey     string
	bundleID   string
	httpClient *http.Client
}

// NewClient creates a new push gateway client.
func NewClient(baseURL, apiKey, bundleID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		bundleID: bundleID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendRequest struct {
	Tokens []string       `json:"tokens"`
	Topic  string         `json:"topic"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Sound  string         `json:"sound"`
	Data   map[string]any `json:"data,omitempty"`
}

// Send pushes one payload to the given device tokens. An empty token list is
// a successful no-op so callers don't have to special-case unregistered
// recipients.
func (c *Client) Send(ctx context.Context, tokens []string, payload domain.PushPayload) (*domain.PushResult, error) {
	if len(tokens) == 0 {
		return &domain.PushResult{}, nil
	}

	reqBody := sendRequest{
		Tokens: tokens,
		Topic:  c.bundleID,
		Title:  payload.Title,
		Body:   payload.Body,
		Sound:  "default",
		Data:   payload.Data,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/push/send", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute push request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var result domain.PushResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return &result, nil
}
