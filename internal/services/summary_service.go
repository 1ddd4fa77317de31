package services

import (
	"context"
	"fmt"

	"dotproduct/internal/core"
	"dotproduct/internal/log"
)

// FinancialSummary returns the user's income and expense totals and their
// difference. Totals are zero when the user has no transactions.
func (s *FinanceService) FinancialSummary(ctx context.Context, userID int64) (core.FinancialSummary, error) {
	totals, err := s.repo.SumByKind(ctx, userID)
	if err != nil {
		return core.FinancialSummary{}, fmt.Errorf("financial summary: %w", err)
	}
	return core.FinancialSummary{
		TotalIncome:   totals.Income,
		TotalExpenses: totals.Expense,
		Balance:       totals.Income.Sub(totals.Expense),
	}, nil
}

// CategorySummary returns per-category totals, largest first.
func (s *FinanceService) CategorySummary(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	totals, err := s.repo.CategoryTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	return totals, nil
}

// BudgetStatus compares each budget with what was spent in its category since
// the budget's start date. Remaining goes negative when overspent.
//
// The window is unbounded above and does not depend on the budget's period.
func (s *FinanceService) BudgetStatus(ctx context.Context, userID int64) ([]core.BudgetStatus, error) {
	usage, err := s.repo.BudgetUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}

	status := make([]core.BudgetStatus, 0, len(usage))
	for _, u := range usage {
		status = append(status, core.BudgetStatus{
			Category:       u.Budget.CategoryName,
			BudgetedAmount: u.Budget.Amount,
			ActualAmount:   u.Actual,
			Remaining:      u.Budget.Amount.Sub(u.Actual),
			Period:         u.Budget.Period.Label(),
		})
	}

	s.logger.DebugContext(ctx, "Budget status computed",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpSummarize,
		"budgets", len(status))
	return status, nil
}
