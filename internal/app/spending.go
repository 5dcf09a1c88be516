/**
 * @description
 * Spending status resolution: a person's month-to-date aggregate spend
 * measured against their configured monthly limit.
 */
package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
)

// SpendingStatusResolver computes limit status from live transaction sums,
// never from the cached current_spend figure.
type SpendingStatusResolver struct {
	repo store.Repository
}

// NewSpendingStatusResolver creates a resolver over the given repository.
func NewSpendingStatusResolver(repo store.Repository) *SpendingStatusResolver {
	return &SpendingStatusResolver{repo: repo}
}

// StatusFor returns the person's current spending status, or nil when no
// limit is configured. A zero or negative monthly limit is treated as "no
// limit configured" so percent-used is never a division by zero. PercentUsed
// is uncapped: 140% means 140.
func (r *SpendingStatusResolver) StatusFor(ctx context.Context, personID uuid.UUID) (*domain.SpendingStatus, error) {
	limit, err := r.repo.GetSpendingLimit(ctx, personID)
	if err != nil {
		return nil, err
	}
	if limit == nil || limit.MonthlyLimit <= 0 {
		return nil, nil
	}

	spend, err := r.repo.MonthToDateSpend(ctx, personID)
	if err != nil {
		return nil, err
	}

	return &domain.SpendingStatus{
		MonthlyLimit: limit.MonthlyLimit,
		CurrentSpend: spend,
		PercentUsed:  (spend / limit.MonthlyLimit) * 100,
		Remaining:    limit.MonthlyLimit - spend,
	}, nil
}
