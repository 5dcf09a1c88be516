package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

func TestStatusFor_NilWhenNoLimitConfigured(t *testing.T) {
	repo := newFakeRepo()
	resolver := NewSpendingStatusResolver(repo)

	status, err := resolver.StatusFor(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status without a limit, got %+v", status)
	}
}

func TestStatusFor_ZeroLimitTreatedAsUnconfigured(t *testing.T) {
	repo := newFakeRepo()
	repo.limit = &domain.SpendingLimit{PersonID: uuid.New(), MonthlyLimit: 0}
	repo.monthSpend = 250
	resolver := NewSpendingStatusResolver(repo)

	status, err := resolver.StatusFor(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != nil {
		t.Fatalf("zero limit must not produce a status, got %+v", status)
	}
}

func TestStatusFor_PercentIsUncapped(t *testing.T) {
	repo := newFakeRepo()
	repo.limit = &domain.SpendingLimit{PersonID: uuid.New(), MonthlyLimit: 500}
	repo.monthSpend = 700
	resolver := NewSpendingStatusResolver(repo)

	status, err := resolver.StatusFor(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.PercentUsed != 140 {
		t.Errorf("percent = %v, want 140", status.PercentUsed)
	}
	if status.Remaining != -200 {
		t.Errorf("remaining = %v, want -200", status.Remaining)
	}
}
