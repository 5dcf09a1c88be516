/**
 * @description
 * Subscription upkeep: refreshing a tracked subscription when a matching
 * charge is observed, and seeding subscriptions from recurring-charge
 * history. Detection combines the known-service pattern table with the
 * statistical same-merchant/same-amount fallback.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/classify"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// recurringLookbackMonths bounds auto-detection history; a merchant must
// appear in at least recurringMinMonths distinct months inside it.
const (
	recurringLookbackMonths = 6
	recurringMinMonths      = 3
	priorChargeWindow       = 24
)

// SubscriptionService maintains tracked subscriptions from observed charges.
type SubscriptionService struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionService creates the subscription maintenance service.
func NewSubscriptionService(repo store.Repository, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, logger: logger, now: time.Now}
}

// ObserveCharge reacts to one newly ingested charge. A charge matching a
// known subscription service refreshes the tracked subscription's renewal
// date and amount; a charge that looks recurrent by history seeds a new
// monthly subscription. Failures are logged and swallowed: subscription
// upkeep must never fail a sync pass.
func (s *SubscriptionService) ObserveCharge(ctx context.Context, txn *domain.Transaction, personID uuid.UUID) {
	if txn.IsRefund {
		return
	}

	if pattern, ok := classify.MatchSubscription(txn.MerchantName); ok {
		if err := s.refreshMatched(ctx, personID, pattern.Name, txn.Amount); err != nil {
			s.logger.Error("failed to refresh subscription", "merchant", pattern.Name, "error", err)
		}
		return
	}

	history, err := s.repo.ListPriorChargesByMerchant(ctx, personID, txn.MerchantName, priorChargeWindow)
	if err != nil {
		s.logger.Error("failed to load charge history", "merchant", txn.MerchantName, "error", err)
		return
	}
	priors := make([]classify.PriorCharge, 0, len(history))
	for _, h := range history {
		if h.ID == txn.ID {
			continue
		}
		priors = append(priors, classify.PriorCharge{MerchantName: h.MerchantName, Amount: h.Amount})
	}

	if name, ok := classify.LikelySubscription(txn.MerchantName, txn.Amount, priors); ok {
		if err := s.seed(ctx, personID, name, txn.Amount); err != nil {
			s.logger.Error("failed to seed subscription", "merchant", name, "error", err)
		}
	}
}

func (s *SubscriptionService) refreshMatched(ctx context.Context, personID uuid.UUID, serviceName string, amount float64) error {
	existing, err := s.repo.FindActiveSubscriptionByMerchant(ctx, personID, serviceName)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.seed(ctx, personID, serviceName, amount)
	}
	next := s.now().AddDate(0, 1, 0)
	return s.repo.UpdateSubscriptionRenewal(ctx, existing.ID, next, amount)
}

func (s *SubscriptionService) seed(ctx context.Context, personID uuid.UUID, merchantName string, amount float64) error {
	sub := &domain.Subscription{
		PersonID:        personID,
		MerchantName:    merchantName,
		Amount:          amount,
		BillingCycle:    domain.CycleMonthly,
		NextRenewalDate: firstOfNextMonth(s.now()),
		IsActive:        true,
	}
	created, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("tracked new subscription", "person_id", personID, "merchant", merchantName, "amount", amount)
	}
	return nil
}

// AutoDetect seeds subscriptions for one person from their transaction
// history: merchants recurring in at least three distinct months over the
// past six. Returns the subscriptions actually created; merchants already
// tracked are skipped by the store's uniqueness constraint.
func (s *SubscriptionService) AutoDetect(ctx context.Context, personID uuid.UUID) ([]domain.Subscription, error) {
	since := s.now().AddDate(0, -recurringLookbackMonths, 0)
	recurring, err := s.repo.ListRecurringCharges(ctx, personID, since, recurringMinMonths)
	if err != nil {
		return nil, fmt.Errorf("failed to detect recurring charges: %w", err)
	}

	var created []domain.Subscription
	for _, charge := range recurring {
		sub := &domain.Subscription{
			PersonID:        personID,
			MerchantName:    charge.MerchantName,
			Amount:          charge.Amount,
			BillingCycle:    domain.CycleMonthly,
			NextRenewalDate: firstOfNextMonth(s.now()),
			IsActive:        true,
		}
		ok, err := s.repo.CreateSubscription(ctx, sub)
		if err != nil {
			return created, fmt.Errorf("failed to create subscription for %s: %w", charge.MerchantName, err)
		}
		if ok {
			created = append(created, *sub)
		}
	}
	return created, nil
}

func firstOfNextMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
