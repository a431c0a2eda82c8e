package cursor

import (
	"github.com/cockroachdb/errors"
)

type mapSource[T, U any] struct {
	inner[T]
	fn func(T) (U, error)
}

func (m *mapSource[T, U]) Fetch() (U, bool, error) {
	var zero U
	x, ok, err := pull(m.in)
	if !ok {
		return zero, false, err
	}
	u, err := m.fn(x)
	if err != nil {
		return zero, false, err
	}
	return u, true, nil
}

// Map applies fn to every element of in. Remove and reset pass through to in.
func Map[T, U any](in Cursor[T], fn func(T) (U, error)) *Base[U] {
	return New[U](&mapSource[T, U]{inner: inner[T]{in}, fn: fn})
}

type mapNSource[T, U any] struct {
	inputs []Cursor[T]
	fn     func([]T) (U, error)
}

// MapN zips its inputs and applies fn to one element of each. It ends when
// any input is exhausted.
func MapN[T, U any](fn func([]T) (U, error), inputs ...Cursor[T]) *Base[U] {
	return New[U](&mapNSource[T, U]{inputs: inputs, fn: fn})
}

func (m *mapNSource[T, U]) Open() error {
	for _, in := range m.inputs {
		if err := in.Open(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapNSource[T, U]) Close() error { return closeAll(m.inputs) }

func (m *mapNSource[T, U]) Fetch() (U, bool, error) {
	var zero U
	if len(m.inputs) == 0 {
		return zero, false, nil
	}
	args := make([]T, len(m.inputs))
	for _, in := range m.inputs {
		if !in.HasNext() {
			return zero, false, in.Err()
		}
	}
	for i, in := range m.inputs {
		v, err := in.Next()
		if err != nil {
			return zero, false, err
		}
		args[i] = v
	}
	u, err := m.fn(args)
	if err != nil {
		return zero, false, err
	}
	return u, true, nil
}

func (m *mapNSource[T, U]) Reset() error {
	for _, in := range m.inputs {
		if err := in.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapNSource[T, U]) SupportsReset() bool {
	for _, in := range m.inputs {
		if !in.SupportsReset() {
			return false
		}
	}
	return true
}

type filterSource[T any] struct {
	inner[T]
	pred func(T) bool
}

func (f *filterSource[T]) Fetch() (T, bool, error) {
	for {
		x, ok, err := pull(f.in)
		if !ok {
			return x, false, err
		}
		if f.pred(x) {
			return x, true, nil
		}
	}
}

func (f *filterSource[T]) Update(v T) error     { return f.in.Update(v) }
func (f *filterSource[T]) SupportsUpdate() bool { return f.in.SupportsUpdate() }

// Filter yields the elements of in that satisfy pred.
func Filter[T any](in Cursor[T], pred func(T) bool) *Base[T] {
	return New[T](&filterSource[T]{inner: inner[T]{in}, pred: pred})
}

type takeSource[T any] struct {
	inner[T]
	n, seen int
}

func (t *takeSource[T]) Fetch() (T, bool, error) {
	var zero T
	if t.seen >= t.n {
		return zero, false, nil
	}
	x, ok, err := pull(t.in)
	if ok {
		t.seen++
	}
	return x, ok, err
}

func (t *takeSource[T]) Reset() error {
	if err := t.in.Reset(); err != nil {
		return err
	}
	t.seen = 0
	return nil
}

// Take yields at most n elements of in.
func Take[T any](in Cursor[T], n int) *Base[T] {
	return New[T](&takeSource[T]{inner: inner[T]{in}, n: n})
}

type concatSource[T any] struct {
	inputs []Cursor[T]
	cur    int
	// from is the input that produced the element fetched last.
	from int
}

// Concat yields every element of each input in order.
func Concat[T any](inputs ...Cursor[T]) *Base[T] {
	return New[T](&concatSource[T]{inputs: inputs, from: -1})
}

func (c *concatSource[T]) Open() error {
	for _, in := range c.inputs {
		if err := in.Open(); err != nil {
			return err
		}
	}
	return nil
}

func (c *concatSource[T]) Close() error { return closeAll(c.inputs) }

func (c *concatSource[T]) Fetch() (T, bool, error) {
	var zero T
	for c.cur < len(c.inputs) {
		x, ok, err := pull(c.inputs[c.cur])
		if err != nil {
			return zero, false, err
		}
		if ok {
			c.from = c.cur
			return x, true, nil
		}
		c.cur++
	}
	return zero, false, nil
}

func (c *concatSource[T]) Remove() error {
	if c.from < 0 {
		return errors.New("concat: nothing fetched")
	}
	return c.inputs[c.from].Remove()
}

func (c *concatSource[T]) SupportsRemove() bool {
	for _, in := range c.inputs {
		if !in.SupportsRemove() {
			return false
		}
	}
	return true
}

func (c *concatSource[T]) Reset() error {
	for _, in := range c.inputs {
		if err := in.Reset(); err != nil {
			return err
		}
	}
	c.cur, c.from = 0, -1
	return nil
}

func (c *concatSource[T]) SupportsReset() bool {
	for _, in := range c.inputs {
		if !in.SupportsReset() {
			return false
		}
	}
	return true
}
