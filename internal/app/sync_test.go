package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

func newTestEngine(repo *fakeRepo, aggregator AggregatorClient, push *fakePush) *SyncEngine {
	notifier := NewNotifier(repo, push, NewSpendingStatusResolver(repo), testLogger())
	subs := NewSubscriptionService(repo, testLogger())
	return NewSyncEngine(repo, aggregator, notifier, subs, testLogger())
}

func seedCardAndOwner(repo *fakeRepo) (domain.LinkedCard, *domain.Person) {
	owner := &domain.Person{ID: uuid.New(), Name: "Maya", Role: domain.RoleChild}
	repo.persons[owner.ID] = owner
	card := domain.LinkedCard{ID: uuid.New(), PersonID: owner.ID, AccessToken: "tok"}
	return card, owner
}

func TestSyncCard_DrainsPagesAndPersistsCursors(t *testing.T) {
	repo := newFakeRepo()
	aggregator := &fakeAggregator{
		pages: []domain.SyncDelta{
			{
				Added: []domain.AggregatorTransaction{
					{TransactionID: "ext-1", Amount: 12.00, MerchantName: "Target", Date: "2026-08-10"},
				},
				NextCursor: "cursor-1",
				HasMore:    true,
			},
			{
				Added: []domain.AggregatorTransaction{
					{TransactionID: "ext-2", Amount: 8.00, MerchantName: "CVS", Date: "2026-08-11"},
				},
				Removed:    []domain.AggregatorTransaction{{TransactionID: "ext-0"}},
				NextCursor: "cursor-2",
			},
		},
	}
	engine := newTestEngine(repo, aggregator, &fakePush{})
	card, _ := seedCardAndOwner(repo)

	result, err := engine.SyncCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 2 || result.Removed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// First request starts from the card's nil cursor, the second carries the
	// cursor from page one.
	if aggregator.cursors[0] != nil {
		t.Errorf("first request should carry no cursor, got %q", *aggregator.cursors[0])
	}
	if got := *aggregator.cursors[1]; got != "cursor-1" {
		t.Errorf("second request cursor = %q, want cursor-1", got)
	}
	if got := repo.cursors[card.ID]; len(got) != 2 || got[0] != "cursor-1" || got[1] != "cursor-2" {
		t.Errorf("persisted cursors = %v", got)
	}
	if got := repo.deleted; len(got) != 1 || got[0] != "ext-0" {
		t.Errorf("deleted = %v", got)
	}
}

func TestSyncCard_NormalizesRefunds(t *testing.T) {
	repo := newFakeRepo()
	aggregator := &fakeAggregator{
		pages: []domain.SyncDelta{{
			Added: []domain.AggregatorTransaction{
				{TransactionID: "ext-ref", Amount: -15.00, MerchantName: "Amazon", Date: "2026-08-12"},
			},
			NextCursor: "c1",
		}},
	}
	engine := newTestEngine(repo, aggregator, &fakePush{})
	card, _ := seedCardAndOwner(repo)

	if _, err := engine.SyncCard(context.Background(), card); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
	txn := repo.inserted[0]
	if txn.Amount != 15.00 {
		t.Errorf("amount = %v, want positive magnitude 15", txn.Amount)
	}
	if !txn.IsRefund {
		t.Error("expected IsRefund set for negative upstream amount")
	}
	if txn.Category != "Refund" {
		t.Errorf("category = %q, want Refund", txn.Category)
	}
}

func TestSyncCard_DuplicateExternalIDDoesNotNotify(t *testing.T) {
	repo := newFakeRepo()
	repo.existingExternalIDs["ext-dup"] = true
	push := &fakePush{}
	aggregator := &fakeAggregator{
		pages: []domain.SyncDelta{{
			Added: []domain.AggregatorTransaction{
				{TransactionID: "ext-dup", Amount: 40.00, MerchantName: "DOORDASH*PIZZA", Date: "2026-08-13"},
			},
			NextCursor: "c1",
		}},
	}
	engine := newTestEngine(repo, aggregator, push)
	card, _ := seedCardAndOwner(repo)

	result, err := engine.SyncCard(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("duplicate must not create a row, inserted %d", len(repo.inserted))
	}
	if len(push.sends) != 0 {
		t.Fatalf("duplicate must not notify, sent %d pushes", len(push.sends))
	}
	if result.Notified != 0 {
		t.Errorf("notified = %d, want 0", result.Notified)
	}
}

func TestSyncCard_RejectsOverlappingSync(t *testing.T) {
	repo := newFakeRepo()
	aggregator := &fakeAggregator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := newTestEngine(repo, aggregator, &fakePush{})
	card, _ := seedCardAndOwner(repo)

	done := make(chan error, 1)
	go func() {
		_, err := engine.SyncCard(context.Background(), card)
		done <- err
	}()
	<-aggregator.entered

	_, err := engine.SyncCard(context.Background(), card)
	if !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("expected ErrSyncInFlight, got %v", err)
	}

	close(aggregator.release)
	if err := <-done; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// Once released, the card is syncable again.
	if _, err := engine.SyncCard(context.Background(), card); err != nil {
		t.Fatalf("resync after release failed: %v", err)
	}
}

// perTokenAggregator fails requests for one access token and serves an empty
// final page for everything else.
type perTokenAggregator struct {
	failToken string
}

func (a *perTokenAggregator) SyncTransactions(_ context.Context, accessToken string, _ *string) (*domain.SyncDelta, error) {
	if accessToken == a.failToken {
		return nil, errors.New("item login required")
	}
	return &domain.SyncDelta{NextCursor: "end"}, nil
}

func TestSyncAll_IsolatesFailingCards(t *testing.T) {
	repo := newFakeRepo()
	healthyOwner := &domain.Person{ID: uuid.New(), Name: "Maya", Role: domain.RoleChild}
	brokenOwner := &domain.Person{ID: uuid.New(), Name: "Jordan", Role: domain.RoleChild}
	repo.persons[healthyOwner.ID] = healthyOwner
	repo.persons[brokenOwner.ID] = brokenOwner
	repo.cards = []domain.LinkedCard{
		{ID: uuid.New(), PersonID: healthyOwner.ID, AccessToken: "good"},
		{ID: uuid.New(), PersonID: brokenOwner.ID, AccessToken: "bad"},
	}

	engine := newTestEngine(repo, &perTokenAggregator{failToken: "bad"}, &fakePush{})

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 succeeded and 1 failed", summary)
	}
}
