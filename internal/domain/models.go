/**
 * @description
 * This file defines the core domain models for the family-budget backend.
 * These structs map directly to the database tables and are shared across
 * the store, app, and api layers.
 *
 * @notes
 * - Transaction amounts are stored as positive magnitudes with a separate
 *   IsRefund flag derived from the sign of the raw aggregator amount.
 * - ExternalID is the aggregator-assigned transaction id and the idempotency
 *   key for ingestion: the transactions table carries a unique constraint on
 *   it, and inserts use ON CONFLICT DO NOTHING.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes parents from children for alert routing.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// AlertMode controls how a parent receives per-purchase alerts.
type AlertMode string

const (
	AlertModeAll       AlertMode = "all"       // every purchase
	AlertModeThreshold AlertMode = "threshold" // purchases at or above ThresholdAmount
	AlertModeWeekly    AlertMode = "weekly"    // no per-purchase alerts; weekly digest only
)

// Person is a family member with a linked card and notification settings.
type Person struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationSettings holds a parent's per-purchase alert preference.
type NotificationSettings struct {
	PersonID        uuid.UUID `json:"person_id"`
	AlertMode       AlertMode `json:"alert_mode"`
	ThresholdAmount float64   `json:"threshold_amount"`
}

// ParentRecipient joins a parent's identity with their notification settings,
// as needed by the notifier's fan-out.
type ParentRecipient struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	PhoneNumber     *string   `json:"phone_number,omitempty"`
	AlertMode       AlertMode `json:"alert_mode"`
	ThresholdAmount float64   `json:"threshold_amount"`
}

// ShouldNotify decides whether a per-purchase alert goes to this parent.
// Weekly mode suppresses per-purchase alerts entirely; those parents get the
// weekly digest instead.
func (p ParentRecipient) ShouldNotify(amount float64) bool {
	switch p.AlertMode {
	case AlertModeAll:
		return true
	case AlertModeThreshold:
		return amount >= p.ThresholdAmount
	default:
		return false
	}
}

// LinkedCard is one aggregator-linked credit card belonging to one person.
// SyncCursor is nil until the first successful sync page; a nil cursor means
// "full resync from scratch". Re-linking the same physical card (matched by
// LastFour) replaces AccessToken and clears SyncCursor in place.
type LinkedCard struct {
	ID                  uuid.UUID `json:"id"`
	PersonID            uuid.UUID `json:"person_id"`
	AggregatorAccountID string    `json:"aggregator_account_id"`
	AccessToken         string    `json:"-"`
	LastFour            string    `json:"last_four"`
	Nickname            string    `json:"nickname"`
	SyncCursor          *string   `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
}

// Transaction is one card charge or refund ingested from the aggregator.
type Transaction struct {
	ID             uuid.UUID `json:"id"`
	CardID         uuid.UUID `json:"card_id"`
	ExternalID     string    `json:"external_id"`
	Amount         float64   `json:"amount"` // always >= 0; see IsRefund
	MerchantName   string    `json:"merchant_name"`
	Category       string    `json:"category"`
	Date           time.Time `json:"date"`
	IsRecurring    bool      `json:"is_recurring"`
	IsFoodDelivery bool      `json:"is_food_delivery"`
	IsRefund       bool      `json:"is_refund"`
	CreatedAt      time.Time `json:"created_at"`
}

// SpendingLimit is a person's monthly cap. CurrentSpend is a denormalized
// cache refreshed by the rollup job; the authoritative figure is always the
// sum of the person's current-month transactions.
type SpendingLimit struct {
	PersonID     uuid.UUID `json:"person_id"`
	MonthlyLimit float64   `json:"monthly_limit"`
	ResetDay     int       `json:"reset_day"`
	CurrentSpend float64   `json:"current_spend"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BillingCycle is a subscription's renewal period.
type BillingCycle string

const (
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Subscription is a tracked recurring charge for one person.
type Subscription struct {
	ID              uuid.UUID    `json:"id"`
	PersonID        uuid.UUID    `json:"person_id"`
	MerchantName    string       `json:"merchant_name"`
	Amount          float64      `json:"amount"`
	BillingCycle    BillingCycle `json:"billing_cycle"`
	NextRenewalDate time.Time    `json:"next_renewal_date"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
}

// SubscriptionWithOwner carries the cardholder's name alongside the
// subscription for renewal-reminder composition.
type SubscriptionWithOwner struct {
	Subscription
	OwnerName string `json:"owner_name"`
}

// NextRenewal returns the renewal date advanced by exactly one billing
// period. A single rollover pass only ever advances one period, even when
// several have elapsed; frequent job runs catch up incrementally.
func (s Subscription) NextRenewal() time.Time {
	switch s.BillingCycle {
	case CycleWeekly:
		return s.NextRenewalDate.AddDate(0, 0, 7)
	case CycleYearly:
		return s.NextRenewalDate.AddDate(1, 0, 0)
	default:
		return s.NextRenewalDate.AddDate(0, 1, 0)
	}
}

// DeviceToken is one registered push target for a person.
type DeviceToken struct {
	ID       uuid.UUID `json:"id"`
	PersonID uuid.UUID `json:"person_id"`
	Token    string    `json:"token"`
	IsActive bool      `json:"is_active"`
}

// SpendingStatus is the resolver's view of a person's month-to-date spend
// against their limit. PercentUsed is uncapped so callers can tell "at 93%"
// from "at 140%".
type SpendingStatus struct {
	MonthlyLimit float64 `json:"monthly_limit"`
	CurrentSpend float64 `json:"current_spend"`
	PercentUsed  float64 `json:"percent_used"`
	Remaining    float64 `json:"remaining"`
}

// PersonSpend is one row of a summary window: a person's total over the
// window plus their month-to-date position against their limit.
type PersonSpend struct {
	PersonID     uuid.UUID `json:"person_id"`
	Name         string    `json:"name"`
	WindowTotal  float64   `json:"window_total"`
	MonthlyTotal float64   `json:"monthly_total"`
	MonthlyLimit *float64  `json:"monthly_limit,omitempty"`
}

// MerchantTotal is one aggregated merchant row in a summary window.
type MerchantTotal struct {
	MerchantName string  `json:"merchant_name"`
	Total        float64 `json:"total"`
}

// CategoryTotal is one aggregated category row in a summary window.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// RecurringCharge is a merchant that recurred across enough distinct months
// to be treated as a likely subscription by auto-detection.
type RecurringCharge struct {
	MerchantName   string  `json:"merchant_name"`
	Amount         float64 `json:"amount"`
	MonthsAppeared int     `json:"months_appeared"`
}
