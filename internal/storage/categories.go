package storage

import (
	"context"
	"database/sql"
	"fmt"

	"dotproduct/internal/core"
)

const categoryColumns = `c.id, c.user_id, c.name, c.type, c.created_at`

// CreateCategory inserts c for c.UserID. A repeated (user, name, type) triple
// yields core.ErrDuplicate.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	createdAt := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Name, string(c.Kind), formatTimestamp(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("create category: %w", core.ErrDuplicate)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: last insert id: %w", err)
	}
	c.CreatedAt = parsedNow(createdAt)
	return c, nil
}

// GetCategory returns the category only if it belongs to userID.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.id = ? AND c.user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return c, nil
}

// ListCategories returns the user's categories, newest first.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, f core.CategoryFilter) ([]core.Category, error) {
	q := newSelect(`SELECT `+categoryColumns+` FROM categories c`).
		Where("c.user_id = ?", userID)
	if f.Kind != nil {
		q.Where("c.type = ?", string(*f.Kind))
	}
	query, args := q.OrderBy("c.created_at DESC, c.id DESC").Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory overwrites name and type. created_at is never touched.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Kind), c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, core.ErrDuplicate)
		}
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return r.GetCategory(ctx, c.UserID, c.ID)
}

// DeleteCategory removes the category. In the same transaction the
// transactions pointing at it lose their category and its budgets are deleted.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var owned bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`, id, userID).Scan(&owned); err != nil {
			return err
		}
		if !owned {
			return core.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET category_id = NULL WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("detach transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("delete budgets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		kind      string
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &kind, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = t
	return c, nil
}

// expectOneRow turns an UPDATE or DELETE that matched nothing into core.ErrNotFound.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
