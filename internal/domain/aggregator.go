/**
 * @description
 * DTOs for the card aggregator's API: the cursor-based transaction delta-sync
 * contract plus the token-exchange and account-listing payloads used when
 * linking a card.
 */

package domain

// AggregatorTransaction is one transaction record in a sync delta. Amount is
// signed as delivered by the aggregator: positive is a charge, negative is a
// refund or credit. Removed entries carry only TransactionID.
type AggregatorTransaction struct {
	TransactionID   string                `json:"transaction_id"`
	AccountID       string                `json:"account_id"`
	Amount          float64               `json:"amount"`
	MerchantName    string                `json:"merchant_name"`
	Name            string                `json:"name"`
	Date            string                `json:"date"` // YYYY-MM-DD
	FinanceCategory *AggregatorPFCategory `json:"personal_finance_category,omitempty"`
}

// AggregatorPFCategory is the aggregator's own categorization of a
// transaction. A Detailed value of "SUBSCRIPTION" marks a recurring charge.
type AggregatorPFCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// DisplayMerchant returns the merchant name, falling back to the raw
// transaction name when the aggregator did not resolve a merchant.
func (t AggregatorTransaction) DisplayMerchant() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// IsRecurringMarked reports whether the aggregator flagged this transaction
// as a subscription charge.
func (t AggregatorTransaction) IsRecurringMarked() bool {
	return t.FinanceCategory != nil && t.FinanceCategory.Detailed == "SUBSCRIPTION"
}

// PrimaryCategory returns the aggregator's coarse category, or "" when absent.
func (t AggregatorTransaction) PrimaryCategory() string {
	if t.FinanceCategory == nil {
		return ""
	}
	return t.FinanceCategory.Primary
}

// SyncDelta is one page of the aggregator's delta-sync response. NextCursor
// must be persisted after the page has been applied; HasMore signals that the
// caller should immediately request the next page with the new cursor.
type SyncDelta struct {
	Added      []AggregatorTransaction `json:"added"`
	Modified   []AggregatorTransaction `json:"modified"`
	Removed    []AggregatorTransaction `json:"removed"`
	NextCursor string                  `json:"next_cursor"`
	HasMore    bool                    `json:"has_more"`
}

// TokenExchange is the result of trading a public link token for a durable
// access token.
type TokenExchange struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// AggregatorAccount is one account attached to a linked item.
type AggregatorAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Mask      string `json:"mask"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
}

// IsCreditCard reports whether the account is a credit card.
func (a AggregatorAccount) IsCreditCard() bool {
	return a.Type == "credit" || a.Subtype == "credit card"
}

// WebhookEvent is the aggregator's webhook payload. Only transaction update
// notifications are acted on; everything else is acknowledged and dropped.
type WebhookEvent struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}
