package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/config"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

func newTestJobs(repo *fakeRepo, push *fakePush, sms *fakeSMS) *Jobs {
	engine := newTestEngine(repo, &fakeAggregator{}, push)
	return NewJobs(repo, engine, push, sms, testLogger(), config.Config{RenewalReminderDays: 3})
}

func TestRollForwardRenewals_AdvancesOnePeriod(t *testing.T) {
	repo := newFakeRepo()
	monthly := domain.Subscription{
		ID: uuid.New(), MerchantName: "Netflix", Amount: 15.99,
		BillingCycle:    domain.CycleMonthly,
		NextRenewalDate: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
	yearly := domain.Subscription{
		ID: uuid.New(), MerchantName: "Amazon Prime", Amount: 139,
		BillingCycle:    domain.CycleYearly,
		NextRenewalDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	repo.passedSubs = []domain.Subscription{monthly, yearly}

	jobs := newTestJobs(repo, &fakePush{}, &fakeSMS{})
	jobs.now = func() time.Time { return time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC) }

	rolled, err := jobs.RollForwardRenewals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rolled != 2 {
		t.Fatalf("rolled = %d, want 2", rolled)
	}

	// One period per run, even when several have elapsed.
	wantMonthly := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)
	if got := repo.renewalUpdates[monthly.ID]; !got.Equal(wantMonthly) {
		t.Errorf("monthly advanced to %v, want %v", got, wantMonthly)
	}
	wantYearly := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	if got := repo.renewalUpdates[yearly.ID]; !got.Equal(wantYearly) {
		t.Errorf("yearly advanced to %v, want %v", got, wantYearly)
	}
}

func TestCheckUpcomingRenewals_SendsReminderPerSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.parentTokens = []string{"tok-1", "tok-2"}
	repo.renewingSubs = []domain.SubscriptionWithOwner{
		{
			Subscription: domain.Subscription{ID: uuid.New(), MerchantName: "Spotify", Amount: 11.99},
			OwnerName:    "Maya",
		},
	}
	push := &fakePush{}
	jobs := newTestJobs(repo, push, &fakeSMS{})

	sent, err := jobs.CheckUpcomingRenewals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	payload := push.sends[0].payload
	if payload.Title != "📅 Subscription Renewal" {
		t.Errorf("unexpected title %q", payload.Title)
	}
	if !strings.Contains(payload.Body, "Spotify") || !strings.Contains(payload.Body, "3 days") {
		t.Errorf("unexpected body %q", payload.Body)
	}
	if !strings.Contains(payload.Body, "Maya's card") {
		t.Errorf("expected owner attribution, got %q", payload.Body)
	}
}

func TestSendWeeklySummary_DeliversDigestToParents(t *testing.T) {
	limit := 500.0
	repo := newFakeRepo()
	repo.parentPhones = []string{"+15550001111"}
	repo.spendRows = []domain.PersonSpend{
		{Name: "Maya", WindowTotal: 120.50, MonthlyTotal: 470, MonthlyLimit: &limit},
		{Name: "Jordan", WindowTotal: 45, MonthlyTotal: 45},
	}
	repo.merchants = []domain.MerchantTotal{{MerchantName: "Target", Total: 80}}
	sms := &fakeSMS{}
	jobs := newTestJobs(repo, &fakePush{}, sms)

	message, err := jobs.SendWeeklySummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.messages) != 1 {
		t.Fatalf("expected one SMS batch, got %d", len(sms.messages))
	}
	if sms.messages[0] != message {
		t.Error("returned message should match the delivered digest")
	}
	if !strings.Contains(message, "Weekly Summary") {
		t.Errorf("unexpected digest: %q", message)
	}
	// Maya sits at 94% of her monthly limit.
	if !strings.Contains(message, "Maya: $120.50 ⚠️") {
		t.Errorf("expected limit flag for Maya, got %q", message)
	}
	if !strings.Contains(message, "Total: $165.50") {
		t.Errorf("expected grand total, got %q", message)
	}
	if !strings.Contains(message, "Top: Target ($80.00)") {
		t.Errorf("expected top merchants, got %q", message)
	}
}

func TestSendWeeklySummary_SkipsWhenNoParentPhones(t *testing.T) {
	repo := newFakeRepo()
	repo.spendRows = []domain.PersonSpend{{Name: "Maya", WindowTotal: 10}}
	sms := &fakeSMS{}
	jobs := newTestJobs(repo, &fakePush{}, sms)

	if _, err := jobs.SendWeeklySummary(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.messages) != 0 {
		t.Fatalf("expected no SMS without registered phones, got %d", len(sms.messages))
	}
}

func TestSendMonthlySummary_CoversPriorCalendarMonth(t *testing.T) {
	limit := 300.0
	repo := newFakeRepo()
	repo.parentPhones = []string{"+15550001111"}
	repo.spendRows = []domain.PersonSpend{
		{Name: "Maya", WindowTotal: 340, MonthlyLimit: &limit},
	}
	repo.categories = []domain.CategoryTotal{
		{Category: "Food Delivery", Total: 130},
		{Category: "Shopping", Total: 90},
	}
	sms := &fakeSMS{}
	jobs := newTestJobs(repo, &fakePush{}, sms)
	jobs.now = func() time.Time { return time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC) }

	message, err := jobs.SendMonthlySummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(message, "Monthly Summary - July 2026") {
		t.Errorf("expected prior month header, got %q", message)
	}
	if !strings.Contains(message, "Maya: $340.00 (limit: $300.00) 🚨") {
		t.Errorf("expected over-limit flag, got %q", message)
	}
	if !strings.Contains(message, "By Category:\n• Food Delivery: $130.00") {
		t.Errorf("expected category breakdown, got %q", message)
	}
}
