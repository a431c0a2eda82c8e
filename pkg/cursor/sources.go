package cursor

import (
	"slices"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
)

// sliceSource iterates over a private copy of a slice. Removals and updates
// change the copy and survive Reset.
type sliceSource[T any] struct {
	items []T
	pos   int
	last  int
}

// FromSlice returns a cursor over a copy of xs that supports remove, update and reset.
func FromSlice[T any](xs []T) *Base[T] {
	return New[T](&sliceSource[T]{items: slices.Clone(xs), last: -1})
}

// Of is FromSlice over its arguments.
func Of[T any](xs ...T) *Base[T] {
	return FromSlice(xs)
}

func (s *sliceSource[T]) Fetch() (T, bool, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, false, nil
	}
	s.last = s.pos
	s.pos++
	return s.items[s.last], true, nil
}

func (s *sliceSource[T]) Remove() error {
	if s.last < 0 {
		return common.ErrIllegalState
	}
	s.items = slices.Delete(s.items, s.last, s.last+1)
	if s.pos > s.last {
		s.pos--
	}
	s.last = -1
	return nil
}

func (s *sliceSource[T]) Update(v T) error {
	if s.last < 0 {
		return common.ErrIllegalState
	}
	s.items[s.last] = v
	return nil
}

func (s *sliceSource[T]) Reset() error {
	s.pos, s.last = 0, -1
	return nil
}

type emptySource[T any] struct{}

func (emptySource[T]) Fetch() (T, bool, error) {
	var zero T
	return zero, false, nil
}

func (emptySource[T]) Reset() error { return nil }

// Empty returns an exhausted cursor.
func Empty[T any]() *Base[T] {
	return New[T](emptySource[T]{})
}

// FuncSource adapts a fetch function to a Source.
type FuncSource[T any] func() (T, bool, error)

func (f FuncSource[T]) Fetch() (T, bool, error) { return f() }

// FromFunc returns a cursor whose elements are produced by fn.
func FromFunc[T any](fn func() (T, bool, error)) *Base[T] {
	return New[T](FuncSource[T](fn))
}

// Range returns the integers in [from, to).
func Range(from, to int64) *Base[int64] {
	r := &rangeSource{from: from, to: to, cur: from}
	return New[int64](r)
}

type rangeSource struct {
	from, to, cur int64
}

func (r *rangeSource) Fetch() (int64, bool, error) {
	if r.cur >= r.to {
		return 0, false, nil
	}
	r.cur++
	return r.cur - 1, true, nil
}

func (r *rangeSource) Reset() error {
	r.cur = r.from
	return nil
}

// inner is embedded by sources that wrap a single cursor and inherit its
// optional capabilities.
type inner[T any] struct {
	in Cursor[T]
}

func (i inner[T]) Open() error          { return i.in.Open() }
func (i inner[T]) Close() error         { return i.in.Close() }
func (i inner[T]) Reset() error         { return i.in.Reset() }
func (i inner[T]) SupportsReset() bool  { return i.in.SupportsReset() }
func (i inner[T]) Remove() error        { return i.in.Remove() }
func (i inner[T]) SupportsRemove() bool { return i.in.SupportsRemove() }
func (i inner[T]) SupportsUpdate() bool { return false }

// pull takes the next element of c; ok is false on exhaustion or failure.
func pull[T any](c Cursor[T]) (T, bool, error) {
	var zero T
	if !c.HasNext() {
		return zero, false, c.Err()
	}
	v, err := c.Next()
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// closeAll closes every cursor and combines the failures.
func closeAll[T any](cs []Cursor[T]) error {
	var err error
	for _, c := range cs {
		err = errors.CombineErrors(err, c.Close())
	}
	return err
}
