/**
 * @description
 * This package provides a client for the SMS provider's REST API (a
 * Twilio-style messages endpoint authenticated with account SID and token).
 * SendToMany is the best-effort fan-out used for parent digests: it sends to
 * every recipient and tallies outcomes without aborting on partial failure.
 *
 * @dependencies
 * - context, fmt, io, net/http, net/url, strings, time: Standard Go libraries.
 * - internal/domain for the SMS result tally.
 */
package smsclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

// Client is a client for the SMS provider.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a new SMS client. An empty accountSID puts the client in
// test mode: sends are logged and reported as delivered without touching the
// provider, mirroring how the service runs in development.
func NewClient(baseURL, accountSID, authToken, fromNumber string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		logger:     logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) testMode() bool {
	return c.accountSID == ""
}

// Send delivers one SMS to one recipient.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if c.testMode() {
		c.logger.Info("test mode: skipping SMS send", "to", to, "body", body)
		return nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SMS provider returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendToMany sends the same message to every recipient, tallying successes
// and failures. A failed recipient never aborts the rest.
func (c *Client) SendToMany(ctx context.Context, recipients []string, body string) (*domain.SMSResult, error) {
	result := &domain.SMSResult{}
	for _, to := range recipients {
		if err := c.Send(ctx, to, body); err != nil {
			c.logger.Error("failed to send SMS", "to", to, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}
	return result, nil
}
