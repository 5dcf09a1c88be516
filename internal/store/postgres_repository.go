/**
 * @description
 * PostgreSQL implementation of the Repository interface, backed by a pgx
 * connection pool. All idempotency in the ingestion path lives here:
 * transactions insert with ON CONFLICT on the aggregator's external id,
 * alert-ledger rows insert-or-ignore on their composite key, and
 * subscriptions are unique per (person, lower(merchant_name)).
 *
 * @dependencies
 * - github.com/jackc/pgx/v5 and pgxpool: database driver and pooling.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

// PostgresRepository handles database operations for the pipeline.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindPersonByID fetches one person.
func (r *PostgresRepository) FindPersonByID(ctx context.Context, personID uuid.UUID) (*domain.Person, error) {
	query := `
        SELECT id, name, role, phone_number, created_at
        FROM persons
        WHERE id = $1
    `
	var p domain.Person
	err := r.db.QueryRow(ctx, query, personID).Scan(&p.ID, &p.Name, &p.Role, &p.PhoneNumber, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("person %s not found", personID)
		}
		return nil, err
	}
	return &p, nil
}

// ListParentRecipients returns every parent with notification settings
// configured, for the per-purchase alert fan-out.
func (r *PostgresRepository) ListParentRecipients(ctx context.Context) ([]domain.ParentRecipient, error) {
	query := `
        SELECT p.id, p.name, p.phone_number, ns.alert_mode, ns.threshold_amount
        FROM persons p
        JOIN notification_settings ns ON ns.person_id = p.id
        WHERE p.role = 'parent'
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parents []domain.ParentRecipient
	for rows.Next() {
		var pr domain.ParentRecipient
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.PhoneNumber, &pr.AlertMode, &pr.ThresholdAmount); err != nil {
			return nil, err
		}
		parents = append(parents, pr)
	}
	return parents, rows.Err()
}

// ListParentPhones returns the SMS targets for parent digests.
func (r *PostgresRepository) ListParentPhones(ctx context.Context) ([]string, error) {
	query := `
        SELECT phone_number FROM persons
        WHERE role = 'parent' AND phone_number IS NOT NULL
    `
	return r.stringList(ctx, query)
}

// ListActiveDeviceTokens returns the push targets for one person.
func (r *PostgresRepository) ListActiveDeviceTokens(ctx context.Context, personID uuid.UUID) ([]string, error) {
	query := `
        SELECT device_token FROM device_tokens
        WHERE person_id = $1 AND is_active = TRUE
    `
	return r.stringList(ctx, query, personID)
}

// ListParentDeviceTokens returns the push targets across all parents.
func (r *PostgresRepository) ListParentDeviceTokens(ctx context.Context) ([]string, error) {
	query := `
        SELECT DISTINCT dt.device_token
        FROM device_tokens dt
        JOIN persons p ON p.id = dt.person_id
        WHERE p.role = 'parent' AND dt.is_active = TRUE
    `
	return r.stringList(ctx, query)
}

func (r *PostgresRepository) stringList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSyncableCards returns every card holding an aggregator credential.
func (r *PostgresRepository) ListSyncableCards(ctx context.Context) ([]domain.LinkedCard, error) {
	query := `
        SELECT id, person_id, aggregator_account_id, access_token, last_four, nickname, sync_cursor, created_at
        FROM linked_cards
        WHERE access_token IS NOT NULL AND access_token <> ''
    `
	return r.scanCards(ctx, query)
}

// ListCards returns every linked card.
func (r *PostgresRepository) ListCards(ctx context.Context) ([]domain.LinkedCard, error) {
	query := `
        SELECT id, person_id, aggregator_account_id, access_token, last_four, nickname, sync_cursor, created_at
        FROM linked_cards
        ORDER BY created_at
    `
	return r.scanCards(ctx, query)
}

func (r *PostgresRepository) scanCards(ctx context.Context, query string, args ...any) ([]domain.LinkedCard, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.LinkedCard
	for rows.Next() {
		var c domain.LinkedCard
		err := rows.Scan(&c.ID, &c.PersonID, &c.AggregatorAccountID, &c.AccessToken,
			&c.LastFour, &c.Nickname, &c.SyncCursor, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// FindCardByLastFour locates a person's card by display mask, used to detect
// a re-link of the same physical card.
func (r *PostgresRepository) FindCardByLastFour(ctx context.Context, personID uuid.UUID, lastFour string) (*domain.LinkedCard, error) {
	query := `
        SELECT id, person_id, aggregator_account_id, access_token, last_four, nickname, sync_cursor, created_at
        FROM linked_cards
        WHERE person_id = $1 AND last_four = $2
    `
	var c domain.LinkedCard
	err := r.db.QueryRow(ctx, query, personID, lastFour).Scan(&c.ID, &c.PersonID,
		&c.AggregatorAccountID, &c.AccessToken, &c.LastFour, &c.Nickname, &c.SyncCursor, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CreateCard stores a newly linked card.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.LinkedCard) error {
	query := `
        INSERT INTO linked_cards (id, person_id, aggregator_account_id, access_token, last_four, nickname)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, query, card.ID, card.PersonID, card.AggregatorAccountID,
		card.AccessToken, card.LastFour, card.Nickname)
	return err
}

// RelinkCard swaps in a fresh credential and clears the cursor so the next
// sync performs a full resync. Both reset together; otherwise the old cursor
// would be replayed against a credential whose transaction ids don't match.
func (r *PostgresRepository) RelinkCard(ctx context.Context, cardID uuid.UUID, accountID, accessToken, nickname string) error {
	query := `
        UPDATE linked_cards
        SET aggregator_account_id = $1,
            access_token = $2,
            nickname = $3,
            sync_cursor = NULL
        WHERE id = $4
    `
	_, err := r.db.Exec(ctx, query, accountID, accessToken, nickname, cardID)
	return err
}

// UpdateCardCursor persists the cursor after a sync page has been applied.
func (r *PostgresRepository) UpdateCardCursor(ctx context.Context, cardID uuid.UUID, cursor string) error {
	query := `UPDATE linked_cards SET sync_cursor = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, cursor, cardID)
	return err
}

// InsertTransaction inserts one ingested transaction keyed by the
// aggregator's external id. Re-delivery of an id the table already holds is
// absorbed by ON CONFLICT DO NOTHING and reported as created=false.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, txn *domain.Transaction) (bool, error) {
	query := `
        INSERT INTO transactions
            (id, card_id, external_id, amount, merchant_name, category, date,
             is_recurring, is_food_delivery, is_refund)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING id, created_at
    `
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query, txn.ID, txn.CardID, txn.ExternalID, txn.Amount,
		txn.MerchantName, txn.Category, txn.Date, txn.IsRecurring, txn.IsFoodDelivery,
		txn.IsRefund).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateTransactionByExternalID overwrites a modified transaction in place.
func (r *PostgresRepository) UpdateTransactionByExternalID(ctx context.Context, txn *domain.Transaction) error {
	query := `
        UPDATE transactions
        SET amount = $1,
            merchant_name = $2,
            category = $3,
            date = $4,
            is_food_delivery = $5,
            is_refund = $6
        WHERE external_id = $7
    `
	_, err := r.db.Exec(ctx, query, txn.Amount, txn.MerchantName, txn.Category,
		txn.Date, txn.IsFoodDelivery, txn.IsRefund, txn.ExternalID)
	return err
}

// DeleteTransactionByExternalID removes a transaction the aggregator retracted.
func (r *PostgresRepository) DeleteTransactionByExternalID(ctx context.Context, externalID string) error {
	query := `DELETE FROM transactions WHERE external_id = $1`
	_, err := r.db.Exec(ctx, query, externalID)
	return err
}

// ListTransactionsByPerson returns a person's most recent transactions.
func (r *PostgresRepository) ListTransactionsByPerson(ctx context.Context, personID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `
        SELECT t.id, t.card_id, t.external_id, t.amount, t.merchant_name, t.category,
               t.date, t.is_recurring, t.is_food_delivery, t.is_refund, t.created_at
        FROM transactions t
        JOIN linked_cards c ON t.card_id = c.id
        WHERE c.person_id = $1
        ORDER BY t.date DESC, t.created_at DESC
        LIMIT $2
    `
	return r.scanTransactions(ctx, query, personID, limit)
}

// ListPriorChargesByMerchant returns a person's historical charges at one
// merchant, newest first, for the recurring-charge heuristic.
func (r *PostgresRepository) ListPriorChargesByMerchant(ctx context.Context, personID uuid.UUID, merchantName string, limit int) ([]domain.Transaction, error) {
	query := `
        SELECT t.id, t.card_id, t.external_id, t.amount, t.merchant_name, t.category,
               t.date, t.is_recurring, t.is_food_delivery, t.is_refund, t.created_at
        FROM transactions t
        JOIN linked_cards c ON t.card_id = c.id
        WHERE c.person_id = $1
          AND LOWER(t.merchant_name) = LOWER($2)
          AND NOT t.is_refund
        ORDER BY t.date DESC
        LIMIT $3
    `
	return r.scanTransactions(ctx, query, personID, merchantName, limit)
}

func (r *PostgresRepository) scanTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(&t.ID, &t.CardID, &t.ExternalID, &t.Amount, &t.MerchantName,
			&t.Category, &t.Date, &t.IsRecurring, &t.IsFoodDelivery, &t.IsRefund, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// MonthToDateSpend sums a person's transactions dated on or after the first
// of the current calendar month.
func (r *PostgresRepository) MonthToDateSpend(ctx context.Context, personID uuid.UUID) (float64, error) {
	query := `
        SELECT COALESCE(SUM(t.amount), 0)
        FROM transactions t
        JOIN linked_cards c ON t.card_id = c.id
        WHERE c.person_id = $1
          AND t.date >= date_trunc('month', CURRENT_DATE)
    `
	var total float64
	if err := r.db.QueryRow(ctx, query, personID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetSpendingLimit fetches a person's limit row, or nil when none is
// configured.
func (r *PostgresRepository) GetSpendingLimit(ctx context.Context, personID uuid.UUID) (*domain.SpendingLimit, error) {
	query := `
        SELECT person_id, monthly_limit, reset_day, current_spend, updated_at
        FROM spending_limits
        WHERE person_id = $1
    `
	var sl domain.SpendingLimit
	err := r.db.QueryRow(ctx, query, personID).Scan(&sl.PersonID, &sl.MonthlyLimit,
		&sl.ResetDay, &sl.CurrentSpend, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sl, nil
}

// RefreshCurrentSpendCaches recomputes every person's cached current-month
// spend from their transactions. The cache is a denormalized convenience;
// the subselect here is the source of truth.
func (r *PostgresRepository) RefreshCurrentSpendCaches(ctx context.Context) (int64, error) {
	query := `
        UPDATE spending_limits sl
        SET current_spend = (
            SELECT COALESCE(SUM(t.amount), 0)
            FROM transactions t
            JOIN linked_cards c ON t.card_id = c.id
            WHERE c.person_id = sl.person_id
              AND t.date >= date_trunc('month', CURRENT_DATE)
        ),
        updated_at = NOW()
    `
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// WasAlertSent is the ledger existence check on the composite key.
func (r *PostgresRepository) WasAlertSent(ctx context.Context, recipientID, referenceID uuid.UUID, kind string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM alert_ledger
            WHERE recipient_id = $1 AND reference_id = $2 AND alert_kind = $3
        )
    `
	var sent bool
	if err := r.db.QueryRow(ctx, query, recipientID, referenceID, kind).Scan(&sent); err != nil {
		return false, err
	}
	return sent, nil
}

// RecordAlert inserts a ledger row. Concurrent duplicate inserts for the same
// triple must not error, so conflicts are ignored.
func (r *PostgresRepository) RecordAlert(ctx context.Context, recipientID, referenceID uuid.UUID, kind string) error {
	query := `
        INSERT INTO alert_ledger (recipient_id, reference_id, alert_kind)
        VALUES ($1, $2, $3)
        ON CONFLICT (recipient_id, reference_id, alert_kind) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, recipientID, referenceID, kind)
	return err
}

// ListSubscriptionsRenewingOn finds active subscriptions whose renewal date
// equals the given day exactly.
func (r *PostgresRepository) ListSubscriptionsRenewingOn(ctx context.Context, date time.Time) ([]domain.SubscriptionWithOwner, error) {
	query := `
        SELECT s.id, s.person_id, s.merchant_name, s.amount, s.billing_cycle,
               s.next_renewal_date, s.is_active, s.created_at, p.name
        FROM subscriptions s
        JOIN persons p ON s.person_id = p.id
        WHERE s.is_active = TRUE
          AND s.next_renewal_date = $1::date
    `
	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.SubscriptionWithOwner
	for rows.Next() {
		var s domain.SubscriptionWithOwner
		err := rows.Scan(&s.ID, &s.PersonID, &s.MerchantName, &s.Amount, &s.BillingCycle,
			&s.NextRenewalDate, &s.IsActive, &s.CreatedAt, &s.OwnerName)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListPassedRenewals finds active subscriptions whose renewal date is
// strictly before today.
func (r *PostgresRepository) ListPassedRenewals(ctx context.Context, today time.Time) ([]domain.Subscription, error) {
	query := `
        SELECT id, person_id, merchant_name, amount, billing_cycle,
               next_renewal_date, is_active, created_at
        FROM subscriptions
        WHERE is_active = TRUE
          AND next_renewal_date < $1::date
    `
	rows, err := r.db.Query(ctx, query, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		err := rows.Scan(&s.ID, &s.PersonID, &s.MerchantName, &s.Amount, &s.BillingCycle,
			&s.NextRenewalDate, &s.IsActive, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// UpdateSubscriptionRenewal advances a subscription's renewal date and
// refreshes its observed amount.
func (r *PostgresRepository) UpdateSubscriptionRenewal(ctx context.Context, subscriptionID uuid.UUID, nextRenewal time.Time, amount float64) error {
	query := `
        UPDATE subscriptions
        SET next_renewal_date = $1, amount = $2
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, nextRenewal, amount, subscriptionID)
	return err
}

// CreateSubscription inserts a tracked subscription. Uniqueness is enforced
// per (person, lower(merchant_name)) so concurrent auto-detection runs cannot
// seed duplicates; a conflicting insert is reported as created=false.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
        INSERT INTO subscriptions (id, person_id, merchant_name, amount, billing_cycle, next_renewal_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (person_id, lower(merchant_name)) DO NOTHING
        RETURNING id
    `
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query, sub.ID, sub.PersonID, sub.MerchantName, sub.Amount,
		sub.BillingCycle, sub.NextRenewalDate).Scan(&sub.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindActiveSubscriptionByMerchant does a case-insensitive merchant lookup.
func (r *PostgresRepository) FindActiveSubscriptionByMerchant(ctx context.Context, personID uuid.UUID, merchantName string) (*domain.Subscription, error) {
	query := `
        SELECT id, person_id, merchant_name, amount, billing_cycle,
               next_renewal_date, is_active, created_at
        FROM subscriptions
        WHERE person_id = $1
          AND is_active = TRUE
          AND LOWER(merchant_name) = LOWER($2)
    `
	var s domain.Subscription
	err := r.db.QueryRow(ctx, query, personID, merchantName).Scan(&s.ID, &s.PersonID,
		&s.MerchantName, &s.Amount, &s.BillingCycle, &s.NextRenewalDate, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListRecurringCharges finds merchants appearing in at least minMonths
// distinct months since the given date with a stable average amount.
func (r *PostgresRepository) ListRecurringCharges(ctx context.Context, personID uuid.UUID, since time.Time, minMonths int) ([]domain.RecurringCharge, error) {
	query := `
        WITH monthly_charges AS (
            SELECT t.merchant_name,
                   date_trunc('month', t.date) AS month,
                   AVG(t.amount) AS avg_amount
            FROM transactions t
            JOIN linked_cards c ON t.card_id = c.id
            WHERE c.person_id = $1
              AND t.date >= $2
              AND NOT t.is_refund
            GROUP BY t.merchant_name, date_trunc('month', t.date)
        )
        SELECT merchant_name,
               AVG(avg_amount) AS amount,
               COUNT(DISTINCT month) AS months_appeared
        FROM monthly_charges
        GROUP BY merchant_name
        HAVING COUNT(DISTINCT month) >= $3
        ORDER BY amount DESC
    `
	rows, err := r.db.Query(ctx, query, personID, since, minMonths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []domain.RecurringCharge
	for rows.Next() {
		var rc domain.RecurringCharge
		if err := rows.Scan(&rc.MerchantName, &rc.Amount, &rc.MonthsAppeared); err != nil {
			return nil, err
		}
		charges = append(charges, rc)
	}
	return charges, rows.Err()
}

// SpendByPerson returns each person's spend over [start, end] alongside
// their month-to-date total and configured limit.
func (r *PostgresRepository) SpendByPerson(ctx context.Context, start, end time.Time) ([]domain.PersonSpend, error) {
	query := `
        SELECT p.id,
               p.name,
               COALESCE(SUM(t.amount) FILTER (WHERE t.date >= $1 AND t.date <= $2), 0) AS window_total,
               COALESCE(SUM(t.amount) FILTER (WHERE t.date >= date_trunc('month', CURRENT_DATE)), 0) AS monthly_total,
               sl.monthly_limit
        FROM persons p
        LEFT JOIN linked_cards c ON c.person_id = p.id
        LEFT JOIN transactions t ON t.card_id = c.id
        LEFT JOIN spending_limits sl ON sl.person_id = p.id
        GROUP BY p.id, p.name, sl.monthly_limit
        ORDER BY p.created_at
    `
	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PersonSpend
	for rows.Next() {
		var ps domain.PersonSpend
		if err := rows.Scan(&ps.PersonID, &ps.Name, &ps.WindowTotal, &ps.MonthlyTotal, &ps.MonthlyLimit); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// TopMerchants returns the biggest merchants in a window.
func (r *PostgresRepository) TopMerchants(ctx context.Context, start, end time.Time, limit int) ([]domain.MerchantTotal, error) {
	query := `
        SELECT merchant_name, SUM(amount) AS total
        FROM transactions
        WHERE date >= $1 AND date <= $2 AND NOT is_refund
        GROUP BY merchant_name
        ORDER BY total DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MerchantTotal
	for rows.Next() {
		var mt domain.MerchantTotal
		if err := rows.Scan(&mt.MerchantName, &mt.Total); err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// TopCategories returns the biggest categories in a window.
func (r *PostgresRepository) TopCategories(ctx context.Context, start, end time.Time, limit int) ([]domain.CategoryTotal, error) {
	query := `
        SELECT category, SUM(amount) AS total
        FROM transactions
        WHERE date >= $1 AND date <= $2 AND NOT is_refund
        GROUP BY category
        ORDER BY total DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CategoryTotal
	for rows.Next() {
		var ct domain.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
