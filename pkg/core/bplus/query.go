package bplus

import (
	"slices"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/cursor"
	"vbtree/pkg/keys"
	"vbtree/pkg/monitor"
	"vbtree/pkg/storage/container"
)

// materialized is a node loaded by a query together with a private copy of
// its entries, whose cached fields memoise the children.
type materialized[K, V any] struct {
	node    *Node[K, V]
	entries []IndexEntry[K]
}

type frame[K, V any] struct {
	m   *materialized[K, V]
	pos int
}

// querySource walks the tree depth first, descending only into children
// that may hold keys of r. With level 0 it yields leaf values; otherwise it
// yields the index entries stored at that level.
type querySource[K, V any] struct {
	t        *Tree[K, V]
	r        keys.KeyRange[K]
	level    int
	counters *monitor.QueryCounters

	root  *materialized[K, V]
	stack []frame[K, V]

	leaf    *Node[K, V]
	leafPos int
	done    bool
}

func (q *querySource[K, V]) Open() error {
	if q.root == nil {
		n, err := q.t.Node(q.t.root)
		if err != nil {
			return err
		}
		q.root = q.materialize(n)
	}
	q.restart()
	return nil
}

func (q *querySource[K, V]) Reset() error {
	if q.root == nil {
		return q.Open()
	}
	q.restart()
	return nil
}

func (q *querySource[K, V]) restart() {
	q.stack = q.stack[:0]
	q.leaf, q.leafPos, q.done = nil, 0, false
	q.visit(q.root)
}

func (q *querySource[K, V]) materialize(n *Node[K, V]) *materialized[K, V] {
	return &materialized[K, V]{node: n, entries: slices.Clone(n.children)}
}

func (q *querySource[K, V]) visit(m *materialized[K, V]) {
	if m.node.IsLeaf() {
		q.counters.AddLeaf()
		q.leaf, q.leafPos = m.node, 0
		return
	}
	q.counters.AddIndexNode()
	if m.node.Level >= q.level {
		q.stack = append(q.stack, frame[K, V]{m: m})
	}
}

// child returns the materialised child of entry i of m, loading it on first use.
func (q *querySource[K, V]) child(m *materialized[K, V], i int) (*materialized[K, V], error) {
	e := &m.entries[i]
	if c, ok := e.cached.(*materialized[K, V]); ok {
		return c, nil
	}
	n, err := q.t.Node(e.ID)
	if err != nil {
		return nil, err
	}
	c := q.materialize(n)
	e.cached = c
	return c, nil
}

func (q *querySource[K, V]) Fetch() (V, bool, error) {
	var zero V
	d := q.t.l.dom
	for !q.done {
		if q.leaf != nil {
			for q.leafPos < len(q.leaf.values) {
				v := q.leaf.values[q.leafPos]
				q.leafPos++
				k := q.t.l.keyOf(v)
				if d.Below(q.r, k) {
					q.done = true
					return zero, false, nil
				}
				if d.Contains(q.r, k) {
					q.counters.AddEntry()
					return v, true, nil
				}
			}
			q.leaf = nil
			continue
		}
		if len(q.stack) == 0 {
			q.done = true
			break
		}
		top := &q.stack[len(q.stack)-1]
		i, ok := q.nextChild(top)
		if !ok {
			q.stack = q.stack[:len(q.stack)-1]
			continue
		}
		c, err := q.child(top.m, i)
		if err != nil {
			return zero, false, err
		}
		q.visit(c)
	}
	return zero, false, nil
}

// nextChild advances f to its next child overlapping the range.
func (q *querySource[K, V]) nextChild(f *frame[K, V]) (int, bool) {
	n := f.m.node
	for f.pos < len(f.m.entries) {
		i := f.pos
		f.pos++
		if n.childOverlaps(i, q.r) {
			return i, true
		}
		if i > 0 && !n.l.dom.BeforeEnd(n.children[i-1].Separator, q.r) {
			f.pos = len(f.m.entries)
		}
	}
	return 0, false
}

// levelSource adapts querySource to yield the entries of level-l nodes.
type levelSource[K, V any] struct {
	*querySource[K, V]
}

func (s levelSource[K, V]) Fetch() (IndexEntry[K], bool, error) {
	q := s.querySource
	for len(q.stack) > 0 {
		top := &q.stack[len(q.stack)-1]
		if top.m.node.Level == q.level {
			i, ok := q.nextChild(top)
			if !ok {
				q.stack = q.stack[:len(q.stack)-1]
				continue
			}
			e := top.m.entries[i]
			e.cached = nil
			q.counters.AddEntry()
			return e, true, nil
		}
		i, ok := q.nextChild(top)
		if !ok {
			q.stack = q.stack[:len(q.stack)-1]
			continue
		}
		c, err := q.child(top.m, i)
		if err != nil {
			return IndexEntry[K]{}, false, err
		}
		q.visit(c)
	}
	return IndexEntry[K]{}, false, nil
}

// Query lazily yields the values with keys in r in key order.
func (t *Tree[K, V]) Query(r keys.KeyRange[K]) *cursor.Base[V] {
	return t.QueryCounted(r, nil)
}

// QueryCounted is Query recording its work in counters, which may be nil.
func (t *Tree[K, V]) QueryCounted(r keys.KeyRange[K], counters *monitor.QueryCounters) *cursor.Base[V] {
	if err := t.ready(); err != nil {
		return failed[V](err)
	}
	return cursor.New[V](&querySource[K, V]{t: t, r: r, counters: counters})
}

// QueryLevel yields the index entries stored in nodes at the given level
// (1 is the level above the leaves) whose subtrees overlap r.
func (t *Tree[K, V]) QueryLevel(r keys.KeyRange[K], level int) *cursor.Base[IndexEntry[K]] {
	if err := t.ready(); err != nil {
		return failed[IndexEntry[K]](err)
	}
	if level < 1 {
		return failed[IndexEntry[K]](errors.Newf("bplus: query level %d, index levels start at 1", level))
	}
	if level > t.rootLevel {
		return cursor.Empty[IndexEntry[K]]()
	}
	return cursor.New[IndexEntry[K]](levelSource[K, V]{&querySource[K, V]{t: t, r: r, level: level}})
}

// Get returns the first value with key k.
func (t *Tree[K, V]) Get(k K) (V, bool, error) {
	var zero V
	c := t.RangeScan(t.l.dom.Point(k))
	defer c.Close()
	if !c.HasNext() {
		return zero, false, c.Err()
	}
	v, err := c.Next()
	return v, err == nil, err
}

// chainSource walks the leaf chain starting at the leaf that may hold the
// lower bound of r.
type chainSource[K, V any] struct {
	t    *Tree[K, V]
	r    keys.KeyRange[K]
	leaf *Node[K, V]
	pos  int
	done bool
}

func (s *chainSource[K, V]) Open() error {
	id := s.t.root
	for {
		n, err := s.t.Node(id)
		if err != nil {
			return err
		}
		if n.IsLeaf() {
			s.leaf, s.pos, s.done = n, 0, false
			return nil
		}
		id = n.children[n.descendSep(s.r.Min)].ID
	}
}

func (s *chainSource[K, V]) Reset() error { return s.Open() }

func (s *chainSource[K, V]) Fetch() (V, bool, error) {
	var zero V
	d := s.t.l.dom
	for !s.done && s.leaf != nil {
		if s.pos >= len(s.leaf.values) {
			if s.leaf.Next == container.NilID {
				s.done = true
				break
			}
			next, err := s.t.Node(s.leaf.Next)
			if err != nil {
				return zero, false, err
			}
			s.leaf, s.pos = next, 0
			continue
		}
		v := s.leaf.values[s.pos]
		s.pos++
		k := s.t.l.keyOf(v)
		if d.Below(s.r, k) {
			s.done = true
			break
		}
		if d.Contains(s.r, k) {
			return v, true, nil
		}
	}
	return zero, false, nil
}

// RangeScan yields the values with keys in r by following the leaf chain.
func (t *Tree[K, V]) RangeScan(r keys.KeyRange[K]) *cursor.Base[V] {
	if err := t.ready(); err != nil {
		return failed[V](err)
	}
	return cursor.New[V](&chainSource[K, V]{t: t, r: r})
}

// Leaves yields the leaf nodes from left to right along the leaf chain.
func (t *Tree[K, V]) Leaves() *cursor.Base[*Node[K, V]] {
	if err := t.ready(); err != nil {
		return failed[*Node[K, V]](err)
	}
	var next container.ID
	started := false
	return cursor.FromFunc(func() (*Node[K, V], bool, error) {
		if !started {
			started = true
			id := t.root
			for {
				n, err := t.Node(id)
				if err != nil {
					return nil, false, err
				}
				if n.IsLeaf() {
					next = n.Next
					return n, true, nil
				}
				id = n.children[0].ID
			}
		}
		if next == container.NilID {
			return nil, false, nil
		}
		n, err := t.Node(next)
		if err != nil {
			return nil, false, err
		}
		next = n.Next
		return n, true, nil
	})
}

// QueryBox yields the values of a Z-order keyed tree whose keys fall in box.
func QueryBox[V any](t *Tree[int64, V], box keys.Box) (*cursor.Base[V], error) {
	ranges, err := keys.BoxRanges(box)
	if err != nil {
		return nil, err
	}
	parts := make([]cursor.Cursor[V], 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, t.RangeScan(r))
	}
	return cursor.Concat(parts...), nil
}

func failed[T any](err error) *cursor.Base[T] {
	return cursor.FromFunc(func() (T, bool, error) {
		var zero T
		return zero, false, err
	})
}
