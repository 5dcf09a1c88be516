package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is a shared in-memory Repository for app-layer tests. Fields are
// seeded per test; mutating calls are recorded for assertions. All methods
// are mutex-guarded because SyncAll fans out across goroutines.
type fakeRepo struct {
	mu sync.Mutex

	persons      map[uuid.UUID]*domain.Person
	parents      []domain.ParentRecipient
	parentPhones []string
	tokens       map[uuid.UUID][]string
	parentTokens []string

	cards       []domain.LinkedCard
	cardsByLast map[string]*domain.LinkedCard
	relinks     []uuid.UUID
	cursors     map[uuid.UUID][]string

	existingExternalIDs map[string]bool
	inserted            []*domain.Transaction
	updated             []*domain.Transaction
	deleted             []string
	insertErr           error

	limit      *domain.SpendingLimit
	monthSpend float64
	limitErr   error

	ledger    map[string]bool
	ledgerErr error
	recorded  []string

	renewingSubs   []domain.SubscriptionWithOwner
	passedSubs     []domain.Subscription
	renewalUpdates map[uuid.UUID]time.Time
	createdSubs    []*domain.Subscription
	activeSubs     map[string]*domain.Subscription
	priorCharges   []domain.Transaction
	recurring      []domain.RecurringCharge

	spendRows  []domain.PersonSpend
	merchants  []domain.MerchantTotal
	categories []domain.CategoryTotal
	refreshed  int64

	listCardsErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		persons:             make(map[uuid.UUID]*domain.Person),
		tokens:              make(map[uuid.UUID][]string),
		cardsByLast:         make(map[string]*domain.LinkedCard),
		cursors:             make(map[uuid.UUID][]string),
		existingExternalIDs: make(map[string]bool),
		ledger:              make(map[string]bool),
		renewalUpdates:      make(map[uuid.UUID]time.Time),
		activeSubs:          make(map[string]*domain.Subscription),
	}
}

func ledgerKey(recipientID, referenceID uuid.UUID, kind string) string {
	return fmt.Sprintf("%s|%s|%s", recipientID, referenceID, kind)
}

func (f *fakeRepo) FindPersonByID(_ context.Context, personID uuid.UUID) (*domain.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.persons[personID]
	if !ok {
		return nil, fmt.Errorf("person %s not found", personID)
	}
	return p, nil
}

func (f *fakeRepo) ListParentRecipients(_ context.Context) ([]domain.ParentRecipient, error) {
	return f.parents, nil
}

func (f *fakeRepo) ListParentPhones(_ context.Context) ([]string, error) {
	return f.parentPhones, nil
}

func (f *fakeRepo) ListActiveDeviceTokens(_ context.Context, personID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[personID], nil
}

func (f *fakeRepo) ListParentDeviceTokens(_ context.Context) ([]string, error) {
	return f.parentTokens, nil
}

func (f *fakeRepo) ListSyncableCards(_ context.Context) ([]domain.LinkedCard, error) {
	if f.listCardsErr != nil {
		return nil, f.listCardsErr
	}
	return f.cards, nil
}

func (f *fakeRepo) ListCards(_ context.Context) ([]domain.LinkedCard, error) {
	return f.cards, nil
}

func (f *fakeRepo) FindCardByLastFour(_ context.Context, _ uuid.UUID, lastFour string) (*domain.LinkedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cardsByLast[lastFour], nil
}

func (f *fakeRepo) CreateCard(_ context.Context, card *domain.LinkedCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card.ID = uuid.New()
	f.cards = append(f.cards, *card)
	return nil
}

func (f *fakeRepo) RelinkCard(_ context.Context, cardID uuid.UUID, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relinks = append(f.relinks, cardID)
	return nil
}

func (f *fakeRepo) UpdateCardCursor(_ context.Context, cardID uuid.UUID, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[cardID] = append(f.cursors[cardID], cursor)
	return nil
}

func (f *fakeRepo) InsertTransaction(_ context.Context, txn *domain.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.existingExternalIDs[txn.ExternalID] {
		return false, nil
	}
	f.existingExternalIDs[txn.ExternalID] = true
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	f.inserted = append(f.inserted, txn)
	return true, nil
}

func (f *fakeRepo) UpdateTransactionByExternalID(_ context.Context, txn *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, txn)
	return nil
}

func (f *fakeRepo) DeleteTransactionByExternalID(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, externalID)
	return nil
}

func (f *fakeRepo) ListTransactionsByPerson(_ context.Context, _ uuid.UUID, _ int) ([]domain.Transaction, error) {
	return nil, nil
}

func (f *fakeRepo) ListPriorChargesByMerchant(_ context.Context, _ uuid.UUID, _ string, _ int) ([]domain.Transaction, error) {
	return f.priorCharges, nil
}

func (f *fakeRepo) MonthToDateSpend(_ context.Context, _ uuid.UUID) (float64, error) {
	return f.monthSpend, nil
}

func (f *fakeRepo) GetSpendingLimit(_ context.Context, _ uuid.UUID) (*domain.SpendingLimit, error) {
	if f.limitErr != nil {
		return nil, f.limitErr
	}
	return f.limit, nil
}

func (f *fakeRepo) RefreshCurrentSpendCaches(_ context.Context) (int64, error) {
	return f.refreshed, nil
}

func (f *fakeRepo) WasAlertSent(_ context.Context, recipientID, referenceID uuid.UUID, kind string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledgerErr != nil {
		return false, f.ledgerErr
	}
	return f.ledger[ledgerKey(recipientID, referenceID, kind)], nil
}

func (f *fakeRepo) RecordAlert(_ context.Context, recipientID, referenceID uuid.UUID, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(recipientID, referenceID, kind)
	f.ledger[key] = true
	f.recorded = append(f.recorded, key)
	return nil
}

func (f *fakeRepo) ListSubscriptionsRenewingOn(_ context.Context, _ time.Time) ([]domain.SubscriptionWithOwner, error) {
	return f.renewingSubs, nil
}

func (f *fakeRepo) ListPassedRenewals(_ context.Context, _ time.Time) ([]domain.Subscription, error) {
	return f.passedSubs, nil
}

func (f *fakeRepo) UpdateSubscriptionRenewal(_ context.Context, subscriptionID uuid.UUID, nextRenewal time.Time, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewalUpdates[subscriptionID] = nextRenewal
	return nil
}

func (f *fakeRepo) CreateSubscription(_ context.Context, sub *domain.Subscription) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%s", sub.PersonID, sub.MerchantName)
	if f.activeSubs[key] != nil {
		return false, nil
	}
	sub.ID = uuid.New()
	f.activeSubs[key] = sub
	f.createdSubs = append(f.createdSubs, sub)
	return true, nil
}

func (f *fakeRepo) FindActiveSubscriptionByMerchant(_ context.Context, personID uuid.UUID, merchantName string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeSubs[fmt.Sprintf("%s|%s", personID, merchantName)], nil
}

func (f *fakeRepo) ListRecurringCharges(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]domain.RecurringCharge, error) {
	return f.recurring, nil
}

func (f *fakeRepo) SpendByPerson(_ context.Context, _, _ time.Time) ([]domain.PersonSpend, error) {
	return f.spendRows, nil
}

func (f *fakeRepo) TopMerchants(_ context.Context, _, _ time.Time, _ int) ([]domain.MerchantTotal, error) {
	return f.merchants, nil
}

func (f *fakeRepo) TopCategories(_ context.Context, _, _ time.Time, _ int) ([]domain.CategoryTotal, error) {
	return f.categories, nil
}

// fakePush records every payload sent and to whom.
type fakePush struct {
	mu      sync.Mutex
	sends   []fakePushSend
	sendErr error
}

type fakePushSend struct {
	tokens  []string
	payload domain.PushPayload
}

func (f *fakePush) Send(_ context.Context, tokens []string, payload domain.PushPayload) (*domain.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sends = append(f.sends, fakePushSend{tokens: tokens, payload: payload})
	return &domain.PushResult{Sent: len(tokens)}, nil
}

func (f *fakePush) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sends))
	for i, s := range f.sends {
		out[i] = s.payload.Title
	}
	return out
}

// fakeSMS records digest sends.
type fakeSMS struct {
	messages []string
	to       [][]string
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	f.messages = append(f.messages, body)
	f.to = append(f.to, []string{to})
	return nil
}

func (f *fakeSMS) SendToMany(_ context.Context, recipients []string, body string) (*domain.SMSResult, error) {
	f.messages = append(f.messages, body)
	f.to = append(f.to, recipients)
	return &domain.SMSResult{Sent: len(recipients)}, nil
}

// fakeAggregator serves scripted delta pages in order and records the cursor
// presented with each request. An optional gate blocks inside the first call
// until released, for exercising the in-flight guard.
type fakeAggregator struct {
	mu      sync.Mutex
	pages   []domain.SyncDelta
	calls   int
	cursors []*string
	err     error

	entered chan struct{}
	release chan struct{}
}

func (f *fakeAggregator) SyncTransactions(_ context.Context, _ string, cursor *string) (*domain.SyncDelta, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.cursors = append(f.cursors, cursor)
	f.mu.Unlock()

	if call == 0 && f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if call >= len(f.pages) {
		return &domain.SyncDelta{NextCursor: "end"}, nil
	}
	page := f.pages[call]
	return &page, nil
}
