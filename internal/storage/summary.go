package storage

import (
	"context"
	"database/sql"
	"fmt"

	"dotproduct/internal/core"
)

// SumByKind totals the user's income and expense amounts in one statement.
func (r *SQLiteRepository) SumByKind(ctx context.Context, userID int64) (core.KindTotals, error) {
	var totals core.KindTotals
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		 FROM transactions WHERE user_id = ?`, userID).
		Scan(&totals.Income.Cents, &totals.Expense.Cents)
	if err != nil {
		return core.KindTotals{}, fmt.Errorf("sum by kind: %w", err)
	}
	return totals, nil
}

// CategoryTotals groups the user's transactions by (category name, category
// type, transaction type). Ties on total order by name with the uncategorized
// group first, then category type, then transaction type.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, c.type, t.type, SUM(t.amount_cents) AS total
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ?
		 GROUP BY c.name, c.type, t.type
		 ORDER BY total DESC, c.name ASC, c.type ASC, t.type ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryTotal{}
	for rows.Next() {
		var (
			name, categoryKind sql.NullString
			kind               string
			ct                 core.CategoryTotal
		)
		if err := rows.Scan(&name, &categoryKind, &kind, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		if name.Valid {
			ct.CategoryName = &name.String
		}
		if categoryKind.Valid {
			k := core.Kind(categoryKind.String)
			ct.CategoryKind = &k
		}
		ct.Kind = core.Kind(kind)
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	return totals, nil
}

// BudgetUsage returns every budget of the user, in listing order, with the sum
// of the user's transactions in the budget's category dated on or after its
// start_date. The window has no upper bound and ignores the period.
func (r *SQLiteRepository) BudgetUsage(ctx context.Context, userID int64) ([]core.BudgetUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.category_id, c.name, c.type, b.amount_cents, b.period, b.start_date, b.created_at,
			COALESCE((
				SELECT SUM(t.amount_cents) FROM transactions t
				WHERE t.user_id = b.user_id AND t.category_id = b.category_id AND t.date >= b.start_date
			), 0)
		 FROM budgets b JOIN categories c ON c.id = b.category_id
		 WHERE b.user_id = ?
		 ORDER BY `+budgetOrder, userID)
	if err != nil {
		return nil, fmt.Errorf("budget usage: %w", err)
	}
	defer rows.Close()

	usage := []core.BudgetUsage{}
	for rows.Next() {
		var actual int64
		b, err := scanBudget(rows, &actual)
		if err != nil {
			return nil, fmt.Errorf("scan budget usage: %w", err)
		}
		usage = append(usage, core.BudgetUsage{Budget: b, Actual: core.Money{Cents: actual}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("budget usage: %w", err)
	}
	return usage, nil
}
