package storage

import (
	"context"
	"fmt"

	"dotproduct/internal/core"
)

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, c.name, c.type, b.amount_cents, b.period, b.start_date, b.created_at
	FROM budgets b JOIN categories c ON c.id = b.category_id`

const budgetOrder = "b.start_date DESC, b.created_at DESC, b.id DESC"

// CreateBudget inserts b with start_date set to today (UTC).
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	createdAt := r.now()
	if b.Period == "" {
		b.Period = core.PeriodMonthly
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, string(b.Period), core.DateOf(createdAt).String(), formatTimestamp(createdAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: last insert id: %w", err)
	}
	return r.GetBudget(ctx, b.UserID, id)
}

// GetBudget returns the budget only if it belongs to userID.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	query, args := newSelect(budgetSelect).
		Where("b.id = ?", id).
		Where("b.user_id = ?", userID).
		Build()
	b, err := scanBudget(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, notFound(err))
	}
	return b, nil
}

// ListBudgets returns the user's budgets, newest start_date first.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	query, args := newSelect(budgetSelect).
		Where("b.user_id = ?", userID).
		OrderBy(budgetOrder).
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// UpdateBudget overwrites category, amount and period. start_date and
// created_at are immutable.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, amount_cents = ?, period = ? WHERE id = ? AND user_id = ?`,
		b.CategoryID, b.Amount.Cents, string(b.Period), b.ID, b.UserID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return r.GetBudget(ctx, b.UserID, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return nil
}

func scanBudget(row rowScanner, extra ...any) (core.Budget, error) {
	var (
		b                    core.Budget
		categoryKind, period string
		startDate, createdAt string
	)
	dest := append([]any{&b.ID, &b.UserID, &b.CategoryID, &b.CategoryName, &categoryKind, &b.Amount.Cents, &period, &startDate, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Budget{}, err
	}
	b.CategoryKind = core.Kind(categoryKind)
	b.Period = core.Period(period)

	var err error
	if b.StartDate, err = parseDate(startDate); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}
