package cursor

import (
	"github.com/google/btree"
)

// SweepArea buffers elements of one input of a sort-based binary operator
// until elements of the other input can no longer match them.
type SweepArea[T any] interface {
	// Insert adds an element of input 0.
	Insert(x T)
	// Reorganize discards entries that cannot match any element that
	// follows current on the given input.
	Reorganize(current T, input int)
	// ProbeRemove removes and returns the first entry matching x.
	ProbeRemove(x T) (T, bool)
	Len() int
	Clear()
}

// ListSweepArea keeps entries in insertion order and probes linearly, so
// any match predicate works.
type ListSweepArea[T any] struct {
	compare func(a, b T) int
	match   func(entry, probe T) bool
	items   []T
}

// NewListSweepArea returns a sweep area that evicts entries ordered before
// the current element of input 1. A nil match means compare(entry, probe) == 0.
func NewListSweepArea[T any](compare func(a, b T) int, match func(entry, probe T) bool) *ListSweepArea[T] {
	if match == nil {
		match = func(e, p T) bool { return compare(e, p) == 0 }
	}
	return &ListSweepArea[T]{compare: compare, match: match}
}

func (s *ListSweepArea[T]) Insert(x T) { s.items = append(s.items, x) }

func (s *ListSweepArea[T]) Reorganize(current T, input int) {
	if input != 1 {
		return
	}
	kept := s.items[:0]
	for _, e := range s.items {
		if s.compare(e, current) >= 0 {
			kept = append(kept, e)
		}
	}
	clear(s.items[len(kept):])
	s.items = kept
}

func (s *ListSweepArea[T]) ProbeRemove(x T) (T, bool) {
	for i, e := range s.items {
		if s.match(e, x) {
			copy(s.items[i:], s.items[i+1:])
			var zero T
			s.items[len(s.items)-1] = zero
			s.items = s.items[:len(s.items)-1]
			return e, true
		}
	}
	var zero T
	return zero, false
}

func (s *ListSweepArea[T]) Len() int { return len(s.items) }

func (s *ListSweepArea[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}

type sweepItem[T any] struct {
	v   T
	seq uint64
}

// OrderedSweepArea keeps entries in a B-tree bag ordered by compare with
// insertion order among equal entries. Probes only look at entries equal
// to the probe under compare.
type OrderedSweepArea[T any] struct {
	compare func(a, b T) int
	match   func(entry, probe T) bool
	tree    *btree.BTreeG[sweepItem[T]]
	seq     uint64
}

// NewOrderedSweepArea returns an ordered sweep area. A nil match accepts
// every entry equal to the probe.
func NewOrderedSweepArea[T any](compare func(a, b T) int, match func(entry, probe T) bool) *OrderedSweepArea[T] {
	if match == nil {
		match = func(T, T) bool { return true }
	}
	less := func(a, b sweepItem[T]) bool {
		if c := compare(a.v, b.v); c != 0 {
			return c < 0
		}
		return a.seq < b.seq
	}
	return &OrderedSweepArea[T]{
		compare: compare,
		match:   match,
		tree:    btree.NewG(16, less),
		seq:     1,
	}
}

func (s *OrderedSweepArea[T]) Insert(x T) {
	s.tree.ReplaceOrInsert(sweepItem[T]{v: x, seq: s.seq})
	s.seq++
}

func (s *OrderedSweepArea[T]) Reorganize(current T, input int) {
	if input != 1 {
		return
	}
	for {
		lo, ok := s.tree.Min()
		if !ok || s.compare(lo.v, current) >= 0 {
			return
		}
		s.tree.DeleteMin()
	}
}

func (s *OrderedSweepArea[T]) ProbeRemove(x T) (T, bool) {
	var found sweepItem[T]
	ok := false
	// seq 0 sorts before every stored entry equal to x.
	s.tree.AscendGreaterOrEqual(sweepItem[T]{v: x}, func(it sweepItem[T]) bool {
		if s.compare(it.v, x) != 0 {
			return false
		}
		if s.match(it.v, x) {
			found, ok = it, true
			return false
		}
		return true
	})
	if !ok {
		var zero T
		return zero, false
	}
	s.tree.Delete(found)
	return found.v, true
}

func (s *OrderedSweepArea[T]) Len() int { return s.tree.Len() }

func (s *OrderedSweepArea[T]) Clear() { s.tree.Clear(false) }
