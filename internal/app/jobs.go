/**
 * @description
 * Scheduled job implementations: the periodic transaction sync, subscription
 * renewal reminders and rollover, the monthly spend-cache rollup, and the
 * weekly/monthly SMS digests.
 *
 * Job-boundary policy: every Run* cron entry point logs failures and returns;
 * the next scheduled tick is the retry mechanism. The ctx-taking methods
 * underneath are also exposed to the HTTP trigger endpoints and report their
 * errors to that caller.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cjflanagan1/FamilyBudget/internal/config"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   store.Repository
	engine *SyncEngine
	push   PushSender
	sms    SMSSender
	logger *slog.Logger
	config config.Config
	now    func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, engine *SyncEngine, push PushSender, sms SMSSender, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		repo:   repo,
		engine: engine,
		push:   push,
		sms:    sms,
		logger: logger,
		config: cfg,
		now:    time.Now,
	}
}

// RunSyncJob is the cron entry point for the periodic transaction sync.
func (j *Jobs) RunSyncJob() {
	j.logger.Info("starting transaction sync job")
	if _, err := j.engine.SyncAll(context.Background()); err != nil {
		j.logger.Error("transaction sync job failed", "error", err)
		return
	}
	j.logger.Info("transaction sync job finished")
}

// RunRenewalJob is the daily cron entry point: roll forward passed renewal
// dates first, then remind parents about upcoming renewals.
func (j *Jobs) RunRenewalJob() {
	j.logger.Info("starting subscription renewal job")
	ctx := context.Background()

	rolled, err := j.RollForwardRenewals(ctx)
	if err != nil {
		j.logger.Error("failed to roll forward renewals", "error", err)
	} else if rolled > 0 {
		j.logger.Info("rolled forward passed renewals", "count", rolled)
	}

	reminded, err := j.CheckUpcomingRenewals(ctx)
	if err != nil {
		j.logger.Error("failed to check upcoming renewals", "error", err)
		return
	}
	j.logger.Info("subscription renewal job finished", "reminders", reminded)
}

// RunRollupJob is the hourly cron entry point for the spend-cache rollup.
func (j *Jobs) RunRollupJob() {
	j.logger.Info("starting monthly spend rollup job")
	if err := j.UpdateMonthlySpending(context.Background()); err != nil {
		j.logger.Error("monthly spend rollup job failed", "error", err)
		return
	}
	j.logger.Info("monthly spend rollup job finished")
}

// RunWeeklySummaryJob is the Sunday cron entry point for the weekly digest.
func (j *Jobs) RunWeeklySummaryJob() {
	j.logger.Info("starting weekly summary job")
	if _, err := j.SendWeeklySummary(context.Background()); err != nil {
		j.logger.Error("weekly summary job failed", "error", err)
		return
	}
	j.logger.Info("weekly summary job finished")
}

// RunMonthlySummaryJob is the first-of-month cron entry point for the
// monthly digest.
func (j *Jobs) RunMonthlySummaryJob() {
	j.logger.Info("starting monthly summary job")
	if _, err := j.SendMonthlySummary(context.Background()); err != nil {
		j.logger.Error("monthly summary job failed", "error", err)
		return
	}
	j.logger.Info("monthly summary job finished")
}

// CheckUpcomingRenewals finds active subscriptions renewing in exactly
// RenewalReminderDays days and sends one reminder per subscription to the
// parents. The date-equality condition fires once per renewal, so no ledger
// entry is needed.
func (j *Jobs) CheckUpcomingRenewals(ctx context.Context) (int, error) {
	target := j.now().AddDate(0, 0, j.config.RenewalReminderDays)
	subs, err := j.repo.ListSubscriptionsRenewingOn(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming renewals: %w", err)
	}

	tokens, err := j.repo.ListParentDeviceTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list parent device tokens: %w", err)
	}

	sent := 0
	for _, sub := range subs {
		payload := domain.PushPayload{
			Title: "📅 Subscription Renewal",
			Body: fmt.Sprintf("%s (%s) renews in %d days - %s's card",
				sub.MerchantName, formatCurrency(sub.Amount), j.config.RenewalReminderDays, sub.OwnerName),
			Data: map[string]any{"type": "subscription_renewal", "subscription_id": sub.ID.String()},
		}
		if _, err := j.push.Send(ctx, tokens, payload); err != nil {
			j.logger.Error("failed to send renewal reminder", "subscription_id", sub.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// RollForwardRenewals advances every active subscription whose renewal date
// has passed by exactly one billing period. One run advances one period even
// when several have elapsed; frequent runs catch up incrementally.
func (j *Jobs) RollForwardRenewals(ctx context.Context) (int, error) {
	passed, err := j.repo.ListPassedRenewals(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list passed renewals: %w", err)
	}

	rolled := 0
	for _, sub := range passed {
		if err := j.repo.UpdateSubscriptionRenewal(ctx, sub.ID, sub.NextRenewal(), sub.Amount); err != nil {
			j.logger.Error("failed to advance renewal date", "subscription_id", sub.ID, "error", err)
			continue
		}
		rolled++
	}
	return rolled, nil
}

// UpdateMonthlySpending recomputes every person's cached current-month spend.
func (j *Jobs) UpdateMonthlySpending(ctx context.Context) error {
	updated, err := j.repo.RefreshCurrentSpendCaches(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh spend caches: %w", err)
	}
	j.logger.Info("monthly spending totals updated", "rows", updated)
	return nil
}

// SendWeeklySummary composes the trailing-7-day digest and sends it to the
// parents over SMS. This is the delivery path for parents in weekly alert
// mode. Returns the composed message for the API trigger's response.
func (j *Jobs) SendWeeklySummary(ctx context.Context) (string, error) {
	end := j.now()
	start := end.AddDate(0, 0, -7)

	message, err := j.composeWindowDigest(ctx, start, end, false)
	if err != nil {
		return "", err
	}
	if err := j.sendToParents(ctx, message); err != nil {
		return message, err
	}
	return message, nil
}

// SendMonthlySummary composes the prior-calendar-month digest with a
// category breakdown and sends it to the parents over SMS.
func (j *Jobs) SendMonthlySummary(ctx context.Context) (string, error) {
	firstOfThisMonth := firstOfNextMonth(j.now()).AddDate(0, -1, 0)
	start := firstOfThisMonth.AddDate(0, -1, 0)
	end := firstOfThisMonth.AddDate(0, 0, -1)

	message, err := j.composeWindowDigest(ctx, start, end, true)
	if err != nil {
		return "", err
	}
	if err := j.sendToParents(ctx, message); err != nil {
		return message, err
	}
	return message, nil
}

func (j *Jobs) composeWindowDigest(ctx context.Context, start, end time.Time, monthly bool) (string, error) {
	rows, err := j.repo.SpendByPerson(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to aggregate spend by person: %w", err)
	}

	if monthly {
		categories, err := j.repo.TopCategories(ctx, start, end, 5)
		if err != nil {
			return "", fmt.Errorf("failed to aggregate categories: %w", err)
		}
		return ComposeMonthlyDigest(start, rows, categories), nil
	}

	merchants, err := j.repo.TopMerchants(ctx, start, end, 3)
	if err != nil {
		return "", fmt.Errorf("failed to aggregate merchants: %w", err)
	}
	return ComposeWeeklyDigest(start, end, rows, merchants), nil
}

func (j *Jobs) sendToParents(ctx context.Context, message string) error {
	phones, err := j.repo.ListParentPhones(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parent phones: %w", err)
	}
	if len(phones) == 0 {
		j.logger.Info("no parent phone numbers registered, skipping digest send")
		return nil
	}

	result, err := j.sms.SendToMany(ctx, phones, message)
	if err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	j.logger.Info("digest sent to parents", "sent", result.Sent, "failed", result.Failed)
	return nil
}
