/**
 * @description
 * The notifier evaluates the alert rule set for every genuinely-new
 * transaction and dispatches push notifications through an injected
 * transport. Every rule is gated by the alert ledger, so a retried sync pass
 * re-evaluating the same transaction sends nothing the second time.
 *
 * Rule order is fixed:
 *   1. food-delivery alert to the child cardholder
 *   2. purchase alert to each parent, filtered by their alert mode
 *   3. 90% spending-limit warning to all parents (once per month)
 *   4. over-limit alert to all parents (once per month)
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/classify"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// PushSender is the push transport contract consumed by the notifier and the
// jobs. Partial delivery failure is reported in the result, not as an error.
type PushSender interface {
	Send(ctx context.Context, tokens []string, payload domain.PushPayload) (*domain.PushResult, error)
}

// SMSSender is the SMS transport contract consumed by the summary jobs.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
	SendToMany(ctx context.Context, recipients []string, body string) (*domain.SMSResult, error)
}

// Notifier evaluates alert rules for newly ingested transactions.
type Notifier struct {
	repo     store.Repository
	push     PushSender
	spending *SpendingStatusResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewNotifier creates a notifier with injected storage, transport, and
// spending resolver.
func NewNotifier(repo store.Repository, push PushSender, spending *SpendingStatusResolver, logger *slog.Logger) *Notifier {
	return &Notifier{
		repo:     repo,
		push:     push,
		spending: spending,
		logger:   logger,
		now:      time.Now,
	}
}

func formatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", math.Abs(amount))
}

// ProcessNewTransaction runs the four rule checks for a just-inserted
// transaction and its owning person, returning the number of notifications
// sent. Transport failures are logged and never abort the remaining rules.
func (n *Notifier) ProcessNewTransaction(ctx context.Context, txn *domain.Transaction, owner *domain.Person) (int, error) {
	sent := 0

	status, err := n.spending.StatusFor(ctx, owner.ID)
	if err != nil {
		// Status unknown short-circuits the limit checks but must not block
		// the per-transaction alerts.
		n.logger.Error("failed to resolve spending status", "person_id", owner.ID, "error", err)
		status = nil
	}

	// 1. Alert to the child on food delivery.
	if txn.IsFoodDelivery && owner.Role == domain.RoleChild {
		ok, err := n.sendOnce(ctx, owner.ID, txn.ID, domain.AlertKindChildFoodDelivery, func() error {
			serviceName := classify.DeliveryServiceName(txn.MerchantName)
			if serviceName == "" {
				serviceName = "Food Delivery"
			}
			return n.pushToPerson(ctx, owner.ID, domain.PushPayload{
				Title: "🔴 Food Delivery Alert",
				Body:  fmt.Sprintf("You spent %s at %s", formatCurrency(txn.Amount), serviceName),
				Data:  map[string]any{"type": "food_delivery", "transaction_id": txn.ID.String()},
			})
		})
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	// 2. Alert to parents, by their configured alert mode.
	parents, err := n.repo.ListParentRecipients(ctx)
	if err != nil {
		return sent, fmt.Errorf("failed to list parent recipients: %w", err)
	}
	for _, parent := range parents {
		if !parent.ShouldNotify(txn.Amount) {
			continue
		}
		ok, err := n.sendOnce(ctx, parent.ID, txn.ID, domain.AlertKindParentPurchase, func() error {
			return n.pushToPerson(ctx, parent.ID, n.purchasePayload(txn, owner, status))
		})
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	// 3. 90% warning, re-armed monthly by the month-indexed kind.
	if status != nil && status.PercentUsed >= 90 && status.PercentUsed < 100 {
		ok, err := n.sendOnce(ctx, owner.ID, txn.ID, domain.LimitWarningKind(n.now()), func() error {
			return n.pushToParents(ctx, domain.PushPayload{
				Title: "⚠️ Spending Limit Warning",
				Body: fmt.Sprintf("%s is at %d%% of monthly limit (%s remaining)",
					owner.Name, int(math.Round(status.PercentUsed)), formatCurrency(status.Remaining)),
				Data: map[string]any{"type": "limit_warning", "person_id": owner.ID.String()},
			})
		})
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	// 4. Over-limit alert.
	if status != nil && status.PercentUsed >= 100 {
		ok, err := n.sendOnce(ctx, owner.ID, txn.ID, domain.LimitExceededKind(n.now()), func() error {
			return n.pushToParents(ctx, domain.PushPayload{
				Title: "🚨 Limit Exceeded!",
				Body: fmt.Sprintf("%s has exceeded their monthly limit! %s / %s",
					owner.Name, formatCurrency(status.CurrentSpend), formatCurrency(status.MonthlyLimit)),
				Data: map[string]any{"type": "limit_exceeded", "person_id": owner.ID.String()},
			})
		})
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		n.logger.Info("sent transaction alerts", "transaction_id", txn.ID, "count", sent)
	}
	return sent, nil
}

// sendOnce runs send for the (recipient, reference, kind) triple unless the
// ledger already holds it, then records the triple. The ledger write happens
// even when the transport reported a failure: delivery is best-effort,
// duplicate suppression is not.
func (n *Notifier) sendOnce(ctx context.Context, recipientID, referenceID uuid.UUID, kind string, send func() error) (bool, error) {
	already, err := n.repo.WasAlertSent(ctx, recipientID, referenceID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to check alert ledger: %w", err)
	}
	if already {
		return false, nil
	}

	if err := send(); err != nil {
		n.logger.Error("failed to dispatch notification", "recipient_id", recipientID, "kind", kind, "error", err)
	}

	if err := n.repo.RecordAlert(ctx, recipientID, referenceID, kind); err != nil {
		return false, fmt.Errorf("failed to record alert: %w", err)
	}
	return true, nil
}

func (n *Notifier) purchasePayload(txn *domain.Transaction, owner *domain.Person, status *domain.SpendingStatus) domain.PushPayload {
	var title, body string
	switch {
	case txn.IsRefund:
		title = "💚 Refund"
		body = fmt.Sprintf("%s received %s from %s", owner.Name, formatCurrency(txn.Amount), txn.MerchantName)
	case txn.IsFoodDelivery:
		title = "🔴 Food Delivery"
		body = fmt.Sprintf("%s spent %s at %s", owner.Name, formatCurrency(txn.Amount), txn.MerchantName)
	default:
		title = "New Purchase"
		body = fmt.Sprintf("%s spent %s at %s", owner.Name, formatCurrency(txn.Amount), txn.MerchantName)
	}

	if status != nil && !txn.IsRefund {
		body += fmt.Sprintf(" (%d%% of limit)", int(math.Round(status.PercentUsed)))
	}

	kind := "purchase"
	if txn.IsRefund {
		kind = "refund"
	}

	// The nested transaction block feeds the watch complication.
	return domain.PushPayload{
		Title: title,
		Body:  body,
		Data: map[string]any{
			"type":           kind,
			"transaction_id": txn.ID.String(),
			"person_id":      owner.ID.String(),
			"transaction": map[string]any{
				"amount":           txn.Amount,
				"merchant_name":    txn.MerchantName,
				"cardholder_name":  owner.Name,
				"is_refund":        txn.IsRefund,
				"is_food_delivery": txn.IsFoodDelivery,
			},
		},
	}
}

func (n *Notifier) pushToPerson(ctx context.Context, personID uuid.UUID, payload domain.PushPayload) error {
	tokens, err := n.repo.ListActiveDeviceTokens(ctx, personID)
	if err != nil {
		return fmt.Errorf("failed to list device tokens: %w", err)
	}
	result, err := n.push.Send(ctx, tokens, payload)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		n.logger.Warn("push delivered partially", "person_id", personID, "sent", result.Sent, "failed", result.Failed)
	}
	return nil
}

func (n *Notifier) pushToParents(ctx context.Context, payload domain.PushPayload) error {
	tokens, err := n.repo.ListParentDeviceTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parent device tokens: %w", err)
	}
	result, err := n.push.Send(ctx, tokens, payload)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		n.logger.Warn("parent push delivered partially", "sent", result.Sent, "failed", result.Failed)
	}
	return nil
}
