/**
 * @description
 * This package provides a client for the card aggregator's API. It
 * encapsulates authenticated HTTP access to the endpoints this service
 * consumes: token exchange and account listing during card linking, and the
 * cursor-based transaction delta sync.
 *
 * Key features:
 * - Manages the API base URL and client credentials.
 * - JSON serialization/deserialization and error handling for API calls.
 * - A sync call either returns a fully decoded delta page or an error; the
 *   caller owns cursor persistence.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - internal/domain for the aggregator request/response models.
 */
package aggregatorclient

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

// Client is a client for the aggregator API.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
}

// NewClient creates a new aggregator API client.
func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SyncTransactions requests one delta page for the given access token. A
// nil cursor requests a full resync from scratch.
func (c *Client) SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*domain.SyncDelta, error) {
	payload := map[string]any{
		"access_token": accessToken,
	}
	if cursor != nil && *cursor != "" {
		payload["cursor"] = *cursor
	}

	var delta domain.SyncDelta
	if err := c.do(ctx, http.MethodPost, "/transactions/sync", payload, &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// ExchangePublicToken trades the short-lived public token from the link flow
// for a durable access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchange, error) {
	payload := map[string]any{
		"public_token": publicToken,
	}

	var exchange domain.TokenExchange
	if err := c.do(ctx, http.MethodPost, "/item/public_token/exchange", payload, &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}

// GetAccounts lists the accounts attached to an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]domain.AggregatorAccount, error) {
	payload := map[string]any{
		"access_token": accessToken,
	}

	var resp struct {
		Accounts []domain.AggregatorAccount `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodPost, "/accounts/get", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// RefreshTransactions asks the aggregator to fetch fresh data for an item,
// which later surfaces through the sync endpoint.
func (c *Client) RefreshTransactions(ctx context.Context, accessToken string) error {
	payload := map[string]any{
		"access_token": accessToken,
	}
	return c.do(ctx, http.MethodPost, "/transactions/refresh", payload, nil)
}

type apiError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("aggregator error %s/%s: %s", e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// do executes one authenticated JSON request against the aggregator.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Client-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp apiError
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("aggregator %s returned status %d", path, resp.StatusCode)
		}
		return &errResp
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
