/**
 * @description
 * Notification DTOs and the alert-kind vocabulary shared by the notifier and
 * the alert ledger.
 *
 * @notes
 * - Per-transaction kinds ("child_food_delivery", "parent_purchase") suppress
 *   duplicates forever for a given (recipient, transaction) pair.
 * - Limit kinds embed the calendar month index so a warning already sent in
 *   one month re-arms in the next even though the triggering condition
 *   (percent used >= 90) persists.
 */

package domain

import (
	"fmt"
	"time"
)

const (
	AlertKindChildFoodDelivery = "child_food_delivery"
	AlertKindParentPurchase    = "parent_purchase"
)

// LimitWarningKind returns the ledger kind for the 90% warning in the month
// containing now.
func LimitWarningKind(now time.Time) string {
	return fmt.Sprintf("limit_warning_90_%d", int(now.Month()))
}

// LimitExceededKind returns the ledger kind for the over-limit alert in the
// month containing now.
func LimitExceededKind(now time.Time) string {
	return fmt.Sprintf("limit_exceeded_%d", int(now.Month()))
}

// PushPayload is one push notification. Data rides along to the mobile and
// watch clients for deep linking and glanceable rendering.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushResult tallies a best-effort multi-device send.
type PushResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SMSResult tallies a best-effort multi-recipient SMS fan-out.
type SMSResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SyncSummary tallies an all-cards sync pass. A failure of one card never
// aborts its siblings; both counts are reported for observability.
type SyncSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CardSyncResult reports what one card's sync pass applied.
type CardSyncResult struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Notified int `json:"notified"`
}
