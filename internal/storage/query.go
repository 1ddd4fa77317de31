package storage

import (
	"strings"

	"dotproduct/internal/core"
)

// selectQuery assembles a parameterized SELECT whose WHERE clause is the
// conjunction of every added condition. Values only ever travel as args.
type selectQuery struct {
	base    string
	where   []string
	args    []any
	orderBy string
}

func newSelect(base string) *selectQuery {
	return &selectQuery{base: base}
}

// Where adds a condition containing one ? placeholder per arg.
func (q *selectQuery) Where(cond string, args ...any) *selectQuery {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
	return q
}

func (q *selectQuery) OrderBy(clause string) *selectQuery {
	q.orderBy = clause
	return q
}

// Build returns the SQL text and its arguments.
func (q *selectQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString(q.base)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	return b.String(), q.args
}

// applyTransactionFilter narrows q, aliased t, by every set filter field.
func applyTransactionFilter(q *selectQuery, f core.TransactionFilter) *selectQuery {
	if f.Kind != nil {
		q.Where("t.type = ?", string(*f.Kind))
	}
	if f.CategoryID != nil {
		q.Where("t.category_id = ?", *f.CategoryID)
	}
	if f.StartDate != nil {
		q.Where("t.date >= ?", f.StartDate.String())
	}
	if f.EndDate != nil {
		q.Where("t.date <= ?", f.EndDate.String())
	}
	return q
}
