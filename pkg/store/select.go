package store

import (
	"strconv"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
	"vbtree/pkg/cursor"
	"vbtree/pkg/monitor"
	"vbtree/pkg/sql"
)

// Result is the outcome of a SELECT. Rows is empty for aggregates.
type Result struct {
	Rows []common.Record
	// Value is the formatted aggregate, "NULL" when no row qualified.
	Value    string
	Counters monitor.QueryCounters
}

// Select runs stmt against the tree: the WHERE clause becomes a key range
// query, and the remaining predicate, limit and aggregate are cursor
// operators stacked on top of it.
func (s *Store) Select(stmt *sql.SelectStmt) (*Result, error) {
	res := &Result{}
	r := stmt.KeyRange(s.Tree.Domain())

	var rows cursor.Cursor[common.Record] = s.Tree.QueryCounted(r, &res.Counters)
	if stmt.Where != nil && stmt.Where.Op == "!=" {
		rows = cursor.Filter(rows, func(rec common.Record) bool { return stmt.MatchID(int64(rec.Key)) })
	}
	if stmt.Limit >= 0 {
		rows = cursor.Take(rows, stmt.Limit)
	}

	if stmt.Aggregate == "" {
		out, err := cursor.Collect(rows)
		res.Rows = out
		return res, err
	}

	ids := cursor.Map(rows, func(rec common.Record) (int64, error) { return int64(rec.Key), nil })

	var err error
	switch stmt.Aggregate {
	case "count":
		var n int64
		n, err = last(ids, cursor.CountFunc[int64]())
		if errors.Is(err, common.ErrNoSuchElement) {
			n, err = 0, nil
		}
		res.Value = strconv.FormatInt(n, 10)
	case "sum", "min", "max":
		fn := cursor.SumFunc[int64]()
		if stmt.Aggregate == "min" {
			fn = cursor.Min[int64]()
		} else if stmt.Aggregate == "max" {
			fn = cursor.Max[int64]()
		}
		var v int64
		if v, err = last(ids, fn); err == nil {
			res.Value = strconv.FormatInt(v, 10)
		}
	case "avg":
		var m cursor.Mean
		if m, err = last(ids, cursor.AverageFunc[int64]()); err == nil {
			res.Value = strconv.FormatFloat(m.Value(), 'f', -1, 64)
		}
	default:
		ids.Close()
		return nil, errors.Newf("unknown aggregate %q", stmt.Aggregate)
	}
	if errors.Is(err, common.ErrNoSuchElement) {
		res.Value, err = "NULL", nil
	}
	return res, err
}

// last folds in completely and closes it.
func last[A any](in cursor.Cursor[int64], fn cursor.AggregateFunc[int64, A]) (A, error) {
	agg := cursor.Aggregate(in, fn)
	v, err := agg.Last()
	if cerr := agg.Close(); err == nil {
		err = cerr
	}
	return v, err
}
