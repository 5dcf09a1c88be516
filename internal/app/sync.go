/**
 * @description
 * The sync engine drives the aggregator's cursor-based delta protocol for
 * each linked card: it requests delta pages, applies added/modified/removed
 * batches to storage idempotently, persists the advancing cursor, and hands
 * every genuinely-new transaction to the notifier.
 *
 * Cursor ordering: the cursor is written only after its page has been fully
 * applied, so a crash mid-page is safe to replay (inserts, updates, and
 * deletes are all keyed by the aggregator's external id). A crash after the
 * cursor write but before notification completes can under-notify; that is
 * the accepted tradeoff, with duplicate suppression left to the ledger.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/classify"
	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// AggregatorClient is the slice of the aggregator API the sync engine needs.
type AggregatorClient interface {
	SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*domain.SyncDelta, error)
}

// ErrSyncInFlight is returned when a sync is requested for a card whose
// previous sync has not finished. The caller should treat it as "try again
// next tick", not as a failure of the card.
var ErrSyncInFlight = errors.New("sync already in flight for card")

// SyncEngine orchestrates per-card delta syncs.
type SyncEngine struct {
	repo       store.Repository
	aggregator AggregatorClient
	notifier   *Notifier
	subs       *SubscriptionService
	logger     *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewSyncEngine creates a sync engine with injected storage, aggregator
// client, notifier, and subscription maintenance.
func NewSyncEngine(repo store.Repository, aggregator AggregatorClient, notifier *Notifier, subs *SubscriptionService, logger *slog.Logger) *SyncEngine {
	return &SyncEngine{
		repo:       repo,
		aggregator: aggregator,
		notifier:   notifier,
		subs:       subs,
		logger:     logger,
		inFlight:   make(map[uuid.UUID]struct{}),
	}
}

func (e *SyncEngine) acquire(cardID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[cardID]; busy {
		return false
	}
	e.inFlight[cardID] = struct{}{}
	return true
}

func (e *SyncEngine) release(cardID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, cardID)
}

// SyncCard drains the aggregator's delta feed for one card: it keeps
// requesting pages with the advancing cursor until HasMore is false, so a
// single invocation catches up a large backlog in one call chain.
// Overlapping invocations for the same card (a manual "sync now" racing the
// scheduled tick) are rejected with ErrSyncInFlight.
func (e *SyncEngine) SyncCard(ctx context.Context, card domain.LinkedCard) (*domain.CardSyncResult, error) {
	if !e.acquire(card.ID) {
		return nil, fmt.Errorf("card %s: %w", card.ID, ErrSyncInFlight)
	}
	defer e.release(card.ID)

	owner, err := e.repo.FindPersonByID(ctx, card.PersonID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card owner: %w", err)
	}

	result := &domain.CardSyncResult{}
	cursor := card.SyncCursor

	for {
		delta, err := e.aggregator.SyncTransactions(ctx, card.AccessToken, cursor)
		if err != nil {
			return result, fmt.Errorf("aggregator sync failed for card %s: %w", card.ID, err)
		}

		e.logger.Info("applying sync page", "card_id", card.ID,
			"added", len(delta.Added), "modified", len(delta.Modified), "removed", len(delta.Removed))

		for _, raw := range delta.Added {
			notified, err := e.applyAdded(ctx, card, owner, raw)
			if err != nil {
				return result, err
			}
			result.Added++
			result.Notified += notified
		}

		for _, raw := range delta.Modified {
			if err := e.applyModified(ctx, raw); err != nil {
				return result, err
			}
			result.Modified++
		}

		for _, raw := range delta.Removed {
			if err := e.repo.DeleteTransactionByExternalID(ctx, raw.TransactionID); err != nil {
				return result, fmt.Errorf("failed to delete transaction %s: %w", raw.TransactionID, err)
			}
			result.Removed++
		}

		// Persist the cursor only after the page has been fully applied.
		if err := e.repo.UpdateCardCursor(ctx, card.ID, delta.NextCursor); err != nil {
			return result, fmt.Errorf("failed to persist cursor for card %s: %w", card.ID, err)
		}
		next := delta.NextCursor
		cursor = &next

		if !delta.HasMore {
			return result, nil
		}
	}
}

// applyAdded classifies and stores one added transaction. The insert is
// keyed by external id with insert-or-ignore semantics; only an insert that
// actually created a row triggers notification and subscription upkeep.
func (e *SyncEngine) applyAdded(ctx context.Context, card domain.LinkedCard, owner *domain.Person, raw domain.AggregatorTransaction) (int, error) {
	txn := e.buildTransaction(card.ID, raw)

	created, err := e.repo.InsertTransaction(ctx, txn)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction %s: %w", raw.TransactionID, err)
	}
	if !created {
		// Re-delivery of a known external id; the idempotency guarantee.
		return 0, nil
	}

	e.subs.ObserveCharge(ctx, txn, owner.ID)

	notified, err := e.notifier.ProcessNewTransaction(ctx, txn, owner)
	if err != nil {
		// The transaction is already stored; alerting errors must not fail
		// the sync pass or stall the cursor.
		e.logger.Error("failed to process alerts for transaction", "transaction_id", txn.ID, "error", err)
		return notified, nil
	}
	return notified, nil
}

func (e *SyncEngine) applyModified(ctx context.Context, raw domain.AggregatorTransaction) error {
	txn := e.buildTransaction(uuid.Nil, raw)
	if err := e.repo.UpdateTransactionByExternalID(ctx, txn); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", raw.TransactionID, err)
	}
	return nil
}

// buildTransaction normalizes one aggregator record: the signed upstream
// amount becomes a positive magnitude plus an IsRefund flag, and the
// merchant is classified.
func (e *SyncEngine) buildTransaction(cardID uuid.UUID, raw domain.AggregatorTransaction) *domain.Transaction {
	merchant := raw.DisplayMerchant()
	classified := classify.Classify(merchant, raw.PrimaryCategory())

	isRefund := raw.Amount < 0
	category := classified.Category
	if isRefund {
		category = "Refund"
	}

	return &domain.Transaction{
		CardID:         cardID,
		ExternalID:     raw.TransactionID,
		Amount:         math.Abs(raw.Amount),
		MerchantName:   merchant,
		Category:       category,
		Date:           parseTransactionDate(raw.Date),
		IsRecurring:    raw.IsRecurringMarked(),
		IsFoodDelivery: classified.IsFoodDelivery,
		IsRefund:       isRefund,
	}
}

func parseTransactionDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return d
}

// SyncAll fans out a sync across every syncable card. Each card runs
// independently: a failing card is tallied and logged but never cancels its
// siblings. A card skipped because its previous sync is still running counts
// as neither success nor failure.
func (e *SyncEngine) SyncAll(ctx context.Context) (*domain.SyncSummary, error) {
	cards, err := e.repo.ListSyncableCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable cards: %w", err)
	}

	e.logger.Info("starting full sync", "cards", len(cards))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary domain.SyncSummary
	)
	for _, card := range cards {
		wg.Add(1)
		go func(card domain.LinkedCard) {
			defer wg.Done()
			res, err := e.SyncCard(ctx, card)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrSyncInFlight):
				e.logger.Info("skipping card, sync already running", "card_id", card.ID)
			case err != nil:
				e.logger.Error("card sync failed", "card_id", card.ID, "error", err)
				summary.Failed++
			default:
				e.logger.Info("card sync complete", "card_id", card.ID,
					"added", res.Added, "modified", res.Modified, "removed", res.Removed, "notified", res.Notified)
				summary.Succeeded++
			}
		}(card)
	}
	wg.Wait()

	e.logger.Info("full sync complete", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return &summary, nil
}
