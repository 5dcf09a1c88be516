package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

func newTestSubscriptions(repo *fakeRepo, now time.Time) *SubscriptionService {
	svc := NewSubscriptionService(repo, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestObserveCharge_KnownServiceSeedsSubscription(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC)
	svc := newTestSubscriptions(repo, now)
	personID := uuid.New()

	txn := &domain.Transaction{ID: uuid.New(), MerchantName: "NETFLIX.COM", Amount: 15.99}
	svc.ObserveCharge(context.Background(), txn, personID)

	if len(repo.createdSubs) != 1 {
		t.Fatalf("expected one subscription, got %d", len(repo.createdSubs))
	}
	sub := repo.createdSubs[0]
	if sub.MerchantName != "Netflix" {
		t.Errorf("merchant = %q, want the canonical service name", sub.MerchantName)
	}
	if sub.BillingCycle != domain.CycleMonthly {
		t.Errorf("cycle = %q, want monthly", sub.BillingCycle)
	}
	want := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	if !sub.NextRenewalDate.Equal(want) {
		t.Errorf("next renewal = %v, want %v", sub.NextRenewalDate, want)
	}
}

func TestObserveCharge_KnownServiceRefreshesExisting(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC)
	svc := newTestSubscriptions(repo, now)
	personID := uuid.New()

	existing := &domain.Subscription{PersonID: personID, MerchantName: "Spotify", Amount: 9.99}
	if _, err := repo.CreateSubscription(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	txn := &domain.Transaction{ID: uuid.New(), MerchantName: "SPOTIFY USA", Amount: 11.99}
	svc.ObserveCharge(context.Background(), txn, personID)

	if len(repo.createdSubs) != 1 {
		t.Fatalf("observed charge must refresh, not duplicate; have %d subs", len(repo.createdSubs))
	}
	want := now.AddDate(0, 1, 0)
	if got := repo.renewalUpdates[existing.ID]; !got.Equal(want) {
		t.Errorf("renewal pushed to %v, want %v", got, want)
	}
}

func TestObserveCharge_HeuristicSeedsFromHistory(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestSubscriptions(repo, time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))
	personID := uuid.New()

	repo.priorCharges = []domain.Transaction{
		{ID: uuid.New(), MerchantName: "Acme Gym", Amount: 29.99},
		{ID: uuid.New(), MerchantName: "Acme Gym", Amount: 29.99},
	}

	txn := &domain.Transaction{ID: uuid.New(), MerchantName: "Acme Gym", Amount: 29.99}
	svc.ObserveCharge(context.Background(), txn, personID)

	if len(repo.createdSubs) != 1 {
		t.Fatalf("expected heuristic seed, got %d subs", len(repo.createdSubs))
	}
	if repo.createdSubs[0].MerchantName != "Acme Gym" {
		t.Errorf("merchant = %q", repo.createdSubs[0].MerchantName)
	}
}

func TestObserveCharge_IgnoresRefunds(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestSubscriptions(repo, time.Now())

	txn := &domain.Transaction{ID: uuid.New(), MerchantName: "NETFLIX.COM", Amount: 15.99, IsRefund: true}
	svc.ObserveCharge(context.Background(), txn, uuid.New())

	if len(repo.createdSubs) != 0 {
		t.Fatalf("refunds must not touch subscriptions, got %d", len(repo.createdSubs))
	}
}

func TestAutoDetect_SeedsRecurringMerchantsOnce(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC)
	svc := newTestSubscriptions(repo, now)
	personID := uuid.New()

	repo.recurring = []domain.RecurringCharge{
		{MerchantName: "Acme Gym", Amount: 29.99, MonthsAppeared: 4},
		{MerchantName: "CloudDrive", Amount: 2.99, MonthsAppeared: 6},
	}

	created, err := svc.AutoDetect(context.Background(), personID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}

	// Second run finds the same merchants but the uniqueness constraint
	// absorbs them.
	created, err = svc.AutoDetect(context.Background(), personID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("rerun created %d, want 0", len(created))
	}
}
