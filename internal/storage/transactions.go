package storage

import (
	"context"
	"database/sql"
	"fmt"

	"dotproduct/internal/core"
)

const transactionSelect = `SELECT t.id, t.user_id, t.category_id, c.name, t.amount_cents, t.description, t.date, t.type, t.created_at
	FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	createdAt := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, description, date, type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullableID(t.CategoryID), t.Amount.Cents, t.Description, t.Date.String(), string(t.Kind), formatTimestamp(createdAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: last insert id: %w", err)
	}
	return r.GetTransaction(ctx, t.UserID, id)
}

// GetTransaction returns the transaction only if it belongs to userID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	query, args := newSelect(transactionSelect).
		Where("t.id = ?", id).
		Where("t.user_id = ?", userID).
		Build()
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, notFound(err))
	}
	return t, nil
}

// ListTransactions returns the user's transactions matching every set field
// of f, newest date first, then newest created.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	q := newSelect(transactionSelect).Where("t.user_id = ?", userID)
	query, args := applyTransactionFilter(q, f).
		OrderBy("t.date DESC, t.created_at DESC, t.id DESC").
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, amount_cents = ?, description = ?, date = ?, type = ?
		 WHERE id = ? AND user_id = ?`,
		nullableID(t.CategoryID), t.Amount.Cents, t.Description, t.Date.String(), string(t.Kind), t.ID, t.UserID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return r.GetTransaction(ctx, t.UserID, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		categoryID   sql.NullInt64
		categoryName sql.NullString
		date, kind   string
		createdAt    string
	)
	if err := row.Scan(&t.ID, &t.UserID, &categoryID, &categoryName, &t.Amount.Cents, &t.Description, &date, &kind, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if categoryName.Valid {
		t.CategoryName = &categoryName.String
	}
	t.Kind = core.Kind(kind)

	var err error
	if t.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
