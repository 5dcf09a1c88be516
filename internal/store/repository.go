/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access required by the sync/alert pipeline. The app layer depends only on
 * this interface, keeping the business logic testable against stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: primary key handling.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// People and notification targets
	FindPersonByID(ctx context.Context, personID uuid.UUID) (*domain.Person, error)
	ListParentRecipients(ctx context.Context) ([]domain.ParentRecipient, error)
	ListParentPhones(ctx context.Context) ([]string, error)
	ListActiveDeviceTokens(ctx context.Context, personID uuid.UUID) ([]string, error)
	ListParentDeviceTokens(ctx context.Context) ([]string, error)

	// Linked cards
	ListSyncableCards(ctx context.Context) ([]domain.LinkedCard, error)
	ListCards(ctx context.Context) ([]domain.LinkedCard, error)
	FindCardByLastFour(ctx context.Context, personID uuid.UUID, lastFour string) (*domain.LinkedCard, error)
	CreateCard(ctx context.Context, card *domain.LinkedCard) error
	// RelinkCard replaces the card's credential and clears its sync cursor in
	// one statement, so a re-linked physical card restarts from a full resync.
	RelinkCard(ctx context.Context, cardID uuid.UUID, accountID, accessToken, nickname string) error
	UpdateCardCursor(ctx context.Context, cardID uuid.UUID, cursor string) error

	// Transactions. InsertTransaction reports whether a new row was created;
	// a duplicate external id is absorbed silently and reported as false.
	InsertTransaction(ctx context.Context, txn *domain.Transaction) (bool, error)
	UpdateTransactionByExternalID(ctx context.Context, txn *domain.Transaction) error
	DeleteTransactionByExternalID(ctx context.Context, externalID string) error
	ListTransactionsByPerson(ctx context.Context, personID uuid.UUID, limit int) ([]domain.Transaction, error)
	ListPriorChargesByMerchant(ctx context.Context, personID uuid.UUID, merchantName string, limit int) ([]domain.Transaction, error)
	MonthToDateSpend(ctx context.Context, personID uuid.UUID) (float64, error)

	// Spending limits
	GetSpendingLimit(ctx context.Context, personID uuid.UUID) (*domain.SpendingLimit, error)
	RefreshCurrentSpendCaches(ctx context.Context) (int64, error)

	// Alert ledger
	WasAlertSent(ctx context.Context, recipientID, referenceID uuid.UUID, kind string) (bool, error)
	RecordAlert(ctx context.Context, recipientID, referenceID uuid.UUID, kind string) error

	// Subscriptions
	ListSubscriptionsRenewingOn(ctx context.Context, date time.Time) ([]domain.SubscriptionWithOwner, error)
	ListPassedRenewals(ctx context.Context, today time.Time) ([]domain.Subscription, error)
	UpdateSubscriptionRenewal(ctx context.Context, subscriptionID uuid.UUID, nextRenewal time.Time, amount float64) error
	CreateSubscription(ctx context.Context, sub *domain.Subscription) (bool, error)
	FindActiveSubscriptionByMerchant(ctx context.Context, personID uuid.UUID, merchantName string) (*domain.Subscription, error)
	ListRecurringCharges(ctx context.Context, personID uuid.UUID, since time.Time, minMonths int) ([]domain.RecurringCharge, error)

	// Summary windows
	SpendByPerson(ctx context.Context, start, end time.Time) ([]domain.PersonSpend, error)
	TopMerchants(ctx context.Context, start, end time.Time, limit int) ([]domain.MerchantTotal, error)
	TopCategories(ctx context.Context, start, end time.Time, limit int) ([]domain.CategoryTotal, error)
}
