package cursor

import (
	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
)

// intersectionSource merges two sorted inputs. Elements of input 0 are
// buffered in the sweep area; each element of input 1 removes and emits at
// most one matching buffered element.
type intersectionSource[T any] struct {
	inputs  [2]Cursor[T]
	compare func(a, b T) int
	area    SweepArea[T]

	last    [2]T
	started [2]bool
}

// SortBasedIntersection yields the elements of a that find a partner in b.
// Both inputs must be sorted by compare; an out-of-order element fails the
// cursor with common.ErrUnsorted. Ties between the inputs are resolved in
// favour of a, so equal elements are buffered before they are probed.
//
// The cursor ends once both inputs are exhausted. After b runs out no
// further element can be emitted; the rest of a is read only to check its
// order.
func SortBasedIntersection[T any](a, b Cursor[T], compare func(a, b T) int, area SweepArea[T]) *Base[T] {
	if area == nil {
		area = NewListSweepArea(compare, nil)
	}
	return New[T](&intersectionSource[T]{
		inputs:  [2]Cursor[T]{a, b},
		compare: compare,
		area:    area,
	})
}

func (s *intersectionSource[T]) Open() error {
	for _, in := range s.inputs {
		if err := in.Open(); err != nil {
			return err
		}
	}
	return nil
}

func (s *intersectionSource[T]) Close() error {
	s.area.Clear()
	return closeAll(s.inputs[:])
}

func (s *intersectionSource[T]) Fetch() (T, bool, error) {
	var zero T
	for {
		has0, has1 := s.inputs[0].HasNext(), s.inputs[1].HasNext()
		for i := range s.inputs {
			if err := s.inputs[i].Err(); err != nil {
				return zero, false, err
			}
		}
		// Once input 1 is exhausted nothing buffered can be emitted, but the
		// rest of input 0 is still checked for order.
		if !has1 {
			s.area.Clear()
			return zero, false, s.checkRest(0)
		}
		j := 1
		if has0 {
			p0, err := s.inputs[0].Peek()
			if err != nil {
				return zero, false, err
			}
			p1, err := s.inputs[1].Peek()
			if err != nil {
				return zero, false, err
			}
			if s.compare(p0, p1) <= 0 {
				j = 0
			}
		}
		x, err := s.inputs[j].Next()
		if err != nil {
			return zero, false, err
		}
		if err := s.ordered(j, x); err != nil {
			return zero, false, err
		}

		s.area.Reorganize(x, j)
		if j == 0 {
			s.area.Insert(x)
			continue
		}
		if m, ok := s.area.ProbeRemove(x); ok {
			return m, true, nil
		}
	}
}

// ordered records x as the latest element of input j and fails if it sorts
// before its predecessor.
func (s *intersectionSource[T]) ordered(j int, x T) error {
	if s.started[j] && s.compare(s.last[j], x) > 0 {
		return errors.Wrapf(common.ErrUnsorted, "input %d", j)
	}
	s.last[j], s.started[j] = x, true
	return nil
}

// checkRest consumes the remainder of input j, verifying its order.
func (s *intersectionSource[T]) checkRest(j int) error {
	in := s.inputs[j]
	for in.HasNext() {
		x, err := in.Next()
		if err != nil {
			return err
		}
		if err := s.ordered(j, x); err != nil {
			return err
		}
	}
	return in.Err()
}

func (s *intersectionSource[T]) Reset() error {
	for _, in := range s.inputs {
		if err := in.Reset(); err != nil {
			return err
		}
	}
	s.area.Clear()
	s.started = [2]bool{}
	return nil
}

func (s *intersectionSource[T]) SupportsReset() bool {
	return s.inputs[0].SupportsReset() && s.inputs[1].SupportsReset()
}
