package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// whereClause accumulates AND-ed conditions. Each "?" in a condition is
// bound, in order, to the next argument and renumbered to $n.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// getOne scans a single row into dest. A missing row is returned as the
// bare sql.ErrNoRows so services can test for it.
func getOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, op, query string, args ...interface{}) error {
	if err := sqlx.GetContext(ctx, q, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// execExpectRow runs a single-row write and returns sql.ErrNoRows when
// nothing matched.
func execExpectRow(ctx context.Context, db sqlx.ExecerContext, op, query string, args ...interface{}) error {
	n, err := execCount(ctx, db, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func execCount(ctx context.Context, db sqlx.ExecerContext, op, query string, args ...interface{}) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows: %w", op, err)
	}
	return n, nil
}

// pageBounds clamps a page request to [1, max] rows and returns LIMIT/OFFSET.
func pageBounds(page, size, fallback, max int) (limit, offset int) {
	if size <= 0 || size > max {
		size = fallback
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
