// Package sql parses the small SELECT dialect of the command line tool and
// maps its WHERE clause onto key ranges.
package sql

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/keys"
)

// SelectStmt represents a parsed SELECT statement.
type SelectStmt struct {
	Table     string
	Aggregate string // "", "count", "sum", "min", "max" or "avg"
	Where     *WhereClause
	Limit     int
}

type WhereClause struct {
	Field string
	Op    string
	Value int64
	// High is the upper bound of BETWEEN.
	High int64
}

var selectRe = regexp.MustCompile(`(?i)^SELECT\s+(\*|COUNT\(\*\)|(?:SUM|MIN|MAX|AVG)\(id\))\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)(?:\s+WHERE\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:(=|!=|>=|<=|>|<)\s*(-?\d+)|BETWEEN\s+(-?\d+)\s+AND\s+(-?\d+)))?(?:\s+LIMIT\s+(\d+))?\s*;?\s*$`)

// Parse parses simple SQL:
// "SELECT * FROM table"
// "SELECT * FROM table WHERE id >= 100"
// "SELECT * FROM table WHERE id BETWEEN 10 AND 20 LIMIT 5"
// "SELECT COUNT(*) FROM table WHERE id < 100"
// "SELECT SUM(id) FROM table" (also MIN, MAX, AVG)
// Table name must be a valid identifier (letters, digits, underscore).
func Parse(s string) (*SelectStmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}

	matches := selectRe.FindStringSubmatch(orig)
	if matches == nil {
		return nil, errors.New("syntax: expected SELECT *|COUNT(*)|SUM(id)|MIN(id)|MAX(id)|AVG(id) FROM <table> [WHERE id <op> <int> | WHERE id BETWEEN <int> AND <int>] [LIMIT <n>]")
	}

	stmt := &SelectStmt{
		Table: matches[2],
		Limit: -1,
	}
	if proj := strings.ToLower(matches[1]); proj != "*" {
		stmt.Aggregate = proj[:strings.Index(proj, "(")]
	}

	if matches[3] != "" {
		field := strings.ToLower(matches[3])
		if field != "id" {
			return nil, errors.New("only WHERE id is supported")
		}
		stmt.Where = &WhereClause{Field: field}
		if matches[4] != "" {
			v, err := strconv.ParseInt(matches[5], 10, 64)
			if err != nil {
				return nil, errors.Wrap(err, "invalid WHERE value")
			}
			stmt.Where.Op, stmt.Where.Value = matches[4], v
		} else {
			lo, err1 := strconv.ParseInt(matches[6], 10, 64)
			hi, err2 := strconv.ParseInt(matches[7], 10, 64)
			if err := errors.CombineErrors(err1, err2); err != nil {
				return nil, errors.Wrap(err, "invalid BETWEEN bounds")
			}
			if lo > hi {
				return nil, errors.Newf("empty BETWEEN range %d..%d", lo, hi)
			}
			stmt.Where.Op, stmt.Where.Value, stmt.Where.High = "between", lo, hi
		}
	}

	if matches[8] != "" {
		limitVal, err := strconv.Atoi(matches[8])
		if err != nil || limitVal < 0 {
			return nil, errors.New("invalid LIMIT value")
		}
		stmt.Limit = limitVal
	}

	return stmt, nil
}

// KeyRange returns the smallest key range holding every id the statement
// selects. MatchID must still be applied for "!=".
func (stmt *SelectStmt) KeyRange(d keys.Domain[int64]) keys.KeyRange[int64] {
	if stmt.Where == nil {
		return d.All()
	}
	v := stmt.Where.Value
	all := d.All()
	switch stmt.Where.Op {
	case "=":
		return d.Point(v)
	case ">":
		if v == math.MaxInt64 {
			r, _ := d.Range(v, v)
			return r
		}
		return d.From(v + 1)
	case ">=":
		return d.From(v)
	case "<":
		r, _ := d.SepRange(all.Min, d.Sep(v))
		return r
	case "<=":
		if v == math.MaxInt64 {
			return all
		}
		r, _ := d.SepRange(all.Min, d.Sep(v+1))
		return r
	case "between":
		r, _ := d.Closed(v, stmt.Where.High)
		return r
	}
	return all
}

func (stmt *SelectStmt) MatchID(id int64) bool {
	if stmt.Where == nil {
		return true
	}
	v := stmt.Where.Value
	switch stmt.Where.Op {
	case "=":
		return id == v
	case "!=":
		return id != v
	case ">":
		return id > v
	case "<":
		return id < v
	case ">=":
		return id >= v
	case "<=":
		return id <= v
	case "between":
		return id >= v && id <= stmt.Where.High
	default:
		return false
	}
}
