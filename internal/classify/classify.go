/**
 * @description
 * Pure merchant-name classification: food-delivery detection, category
 * resolution, and subscription matching. No state and no I/O; every function
 * is total.
 *
 * The pattern tables are ordered and case-insensitive, covering the name
 * variants these services show up under on card statements (e.g.
 * "DOORDASH*BURGER", "UBER *EATS").
 */

package classify

import (
	"math"
	"regexp"
	"strings"
)

// CategoryFoodDelivery is assigned to any merchant matching a delivery
// pattern; CategoryOther is the fallback when the aggregator supplied no
// category of its own.
const (
	CategoryFoodDelivery = "Food Delivery"
	CategoryOther        = "Other"
)

type deliveryService struct {
	pattern *regexp.Regexp
	name    string
}

// Ordered: first match wins. Seamless is Grubhub-owned and normalizes to
// Grubhub.
var deliveryServices = []deliveryService{
	{regexp.MustCompile(`(?i)door\s*dash|dd\s*doordash`), "DoorDash"},
	{regexp.MustCompile(`(?i)grub\s*hub|seamless`), "Grubhub"},
	{regexp.MustCompile(`(?i)uber\s*eats`), "Uber Eats"},
	{regexp.MustCompile(`(?i)postmates`), "Postmates"},
	{regexp.MustCompile(`(?i)instacart`), "Instacart"},
	{regexp.MustCompile(`(?i)caviar`), "Caviar"},
}

// SubscriptionPattern is one well-known subscription service.
type SubscriptionPattern struct {
	Pattern *regexp.Regexp
	Name    string
}

// SubscriptionPatterns lists well-known streaming/cloud/productivity services
// whose charges should be tracked as subscriptions.
var SubscriptionPatterns = []SubscriptionPattern{
	{regexp.MustCompile(`(?i)netflix`), "Netflix"},
	{regexp.MustCompile(`(?i)spotify`), "Spotify"},
	{regexp.MustCompile(`(?i)hulu`), "Hulu"},
	{regexp.MustCompile(`(?i)disney\+|disney\s*plus`), "Disney+"},
	{regexp.MustCompile(`(?i)hbo\s*max|max\.com`), "Max"},
	{regexp.MustCompile(`(?i)amazon\s*prime`), "Amazon Prime"},
	{regexp.MustCompile(`(?i)apple\.com/bill|itunes`), "Apple"},
	{regexp.MustCompile(`(?i)google\s*play|google\s*storage`), "Google"},
	{regexp.MustCompile(`(?i)youtube\s*premium`), "YouTube Premium"},
	{regexp.MustCompile(`(?i)paramount\+|paramount\s*plus`), "Paramount+"},
	{regexp.MustCompile(`(?i)peacock`), "Peacock"},
	{regexp.MustCompile(`(?i)audible`), "Audible"},
	{regexp.MustCompile(`(?i)adobe`), "Adobe"},
	{regexp.MustCompile(`(?i)microsoft\s*365|office\s*365`), "Microsoft 365"},
	{regexp.MustCompile(`(?i)dropbox`), "Dropbox"},
	{regexp.MustCompile(`(?i)icloud`), "iCloud"},
}

// Result is the classification of one merchant.
type Result struct {
	Category       string
	IsFoodDelivery bool
	ServiceName    string // normalized brand name when IsFoodDelivery
}

// IsFoodDelivery reports whether the merchant is a known food-delivery
// service.
func IsFoodDelivery(merchantName string) bool {
	return DeliveryServiceName(merchantName) != ""
}

// DeliveryServiceName returns the normalized brand name of the matching
// delivery service, or "" when the merchant is not one.
func DeliveryServiceName(merchantName string) string {
	if merchantName == "" {
		return ""
	}
	for _, svc := range deliveryServices {
		if svc.pattern.MatchString(merchantName) {
			return svc.name
		}
	}
	return ""
}

// Classify maps a merchant name plus the aggregator's optional upstream
// category to a resolved category. Food delivery wins over the upstream
// category; an empty upstream category falls back to "Other".
func Classify(merchantName, upstreamCategory string) Result {
	if name := DeliveryServiceName(merchantName); name != "" {
		return Result{Category: CategoryFoodDelivery, IsFoodDelivery: true, ServiceName: name}
	}
	if upstreamCategory != "" {
		return Result{Category: upstreamCategory}
	}
	return Result{Category: CategoryOther}
}

// MatchSubscription tests the merchant against the known subscription table.
// The second return is false when nothing matches.
func MatchSubscription(merchantName string) (SubscriptionPattern, bool) {
	if merchantName == "" {
		return SubscriptionPattern{}, false
	}
	for _, p := range SubscriptionPatterns {
		if p.Pattern.MatchString(merchantName) {
			return p, true
		}
	}
	return SubscriptionPattern{}, false
}

// PriorCharge is a prior (merchant, amount) observation used by the
// statistical recurring-charge fallback.
type PriorCharge struct {
	MerchantName string
	Amount       float64
}

// LikelySubscription reports whether the merchant looks like a subscription:
// either it matches the known-service table, or it recurred with a
// near-identical amount (within $1) at least twice in the supplied history.
// The returned name is the normalized service name for table matches, the
// merchant name itself for statistical matches.
func LikelySubscription(merchantName string, amount float64, history []PriorCharge) (string, bool) {
	if merchantName == "" {
		return "", false
	}
	if p, ok := MatchSubscription(merchantName); ok {
		return p.Name, true
	}

	similar := 0
	for _, prior := range history {
		if strings.EqualFold(prior.MerchantName, merchantName) && math.Abs(prior.Amount-amount) < 1 {
			similar++
		}
	}
	if similar >= 2 {
		return merchantName, true
	}
	return "", false
}
