package core

// TransactionFilter restricts a transaction listing. Nil fields impose no constraint.
type TransactionFilter struct {
	Kind       *Kind
	CategoryID *int64
	StartDate  *Date
	EndDate    *Date
}

type CategoryFilter struct {
	Kind *Kind
}

// KindTotals holds the per-kind sums for one user.
type KindTotals struct {
	Income  Money
	Expense Money
}

type FinancialSummary struct {
	TotalIncome   Money `json:"total_income"`
	TotalExpenses Money `json:"total_expenses"`
	Balance       Money `json:"balance"`
}

// CategoryTotal is one (category name, category kind, transaction kind) group.
// Uncategorized transactions have nil category fields.
type CategoryTotal struct {
	CategoryName *string `json:"category__name"`
	CategoryKind *Kind   `json:"category__type"`
	Kind         Kind    `json:"type"`
	Total        Money   `json:"total"`
}

// BudgetUsage pairs a budget with the amount spent in its category since start_date.
type BudgetUsage struct {
	Budget Budget
	Actual Money
}

type BudgetStatus struct {
	Category       string `json:"category"`
	BudgetedAmount Money  `json:"budgeted_amount"`
	ActualAmount   Money  `json:"actual_amount"`
	Remaining      Money  `json:"remaining"`
	Period         string `json:"period"`
}
