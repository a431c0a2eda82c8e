package cursor

import (
	"cmp"

	"golang.org/x/exp/constraints"

	"vbtree/pkg/common"
)

// AggregateFunc folds x into agg. initialized is false until the function
// first reports ok; elements for which ok is false are absorbed without
// producing an output.
type AggregateFunc[T, A any] func(agg A, initialized bool, x T) (next A, ok bool)

// Aggregator yields the running aggregate after each input element, once
// the aggregate is initialised.
type Aggregator[T, A any] struct {
	*Base[A]
	src *aggregatorSource[T, A]
}

type aggregatorSource[T, A any] struct {
	inner[T]
	fn          AggregateFunc[T, A]
	agg         A
	initialized bool
}

// Aggregate returns an Aggregator over in.
func Aggregate[T, A any](in Cursor[T], fn AggregateFunc[T, A]) *Aggregator[T, A] {
	src := &aggregatorSource[T, A]{inner: inner[T]{in}, fn: fn}
	return &Aggregator[T, A]{Base: New[A](src), src: src}
}

func (s *aggregatorSource[T, A]) Fetch() (A, bool, error) {
	for {
		x, ok, err := pull(s.in)
		if !ok {
			var zero A
			return zero, false, err
		}
		next, ok := s.fn(s.agg, s.initialized, x)
		if ok {
			s.agg, s.initialized = next, true
			return next, true, nil
		}
	}
}

func (s *aggregatorSource[T, A]) Reset() error {
	if err := s.in.Reset(); err != nil {
		return err
	}
	var zero A
	s.agg, s.initialized = zero, false
	return nil
}

// Removing an aggregate makes no sense.
func (s *aggregatorSource[T, A]) SupportsRemove() bool { return false }

// Last consumes the remaining input and returns the final aggregate.
// Calling it again returns the same value.
func (a *Aggregator[T, A]) Last() (A, error) {
	for a.HasNext() {
		if _, err := a.Next(); err != nil {
			var zero A
			return zero, err
		}
	}
	if err := a.Err(); err != nil {
		var zero A
		return zero, err
	}
	if !a.src.initialized {
		var zero A
		return zero, common.ErrNoSuchElement
	}
	return a.src.agg, nil
}

// Number is any integer or float type.
type Number interface {
	constraints.Integer | constraints.Float
}

// CountFunc counts elements.
func CountFunc[T any]() AggregateFunc[T, int64] {
	return func(agg int64, _ bool, _ T) (int64, bool) { return agg + 1, true }
}

// SumFunc sums elements.
func SumFunc[N Number]() AggregateFunc[N, N] {
	return func(agg N, _ bool, x N) (N, bool) { return agg + x, true }
}

// MinFunc keeps the smallest element under compare.
func MinFunc[T any](compare func(a, b T) int) AggregateFunc[T, T] {
	return func(agg T, initialized bool, x T) (T, bool) {
		if !initialized || compare(x, agg) < 0 {
			return x, true
		}
		return agg, true
	}
}

// MaxFunc keeps the largest element under compare.
func MaxFunc[T any](compare func(a, b T) int) AggregateFunc[T, T] {
	return func(agg T, initialized bool, x T) (T, bool) {
		if !initialized || compare(x, agg) > 0 {
			return x, true
		}
		return agg, true
	}
}

// Min is MinFunc with the natural order.
func Min[T cmp.Ordered]() AggregateFunc[T, T] { return MinFunc[T](cmp.Compare[T]) }

// Max is MaxFunc with the natural order.
func Max[T cmp.Ordered]() AggregateFunc[T, T] { return MaxFunc[T](cmp.Compare[T]) }

// Mean is the running state of AverageFunc.
type Mean struct {
	Sum   float64
	Count int64
}

func (m Mean) Value() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// AverageFunc tracks the arithmetic mean.
func AverageFunc[N Number]() AggregateFunc[N, Mean] {
	return func(agg Mean, _ bool, x N) (Mean, bool) {
		return Mean{Sum: agg.Sum + float64(x), Count: agg.Count + 1}, true
	}
}
