// Package cursor implements lazy, pull-based iteration and the operators
// composed over it.
//
// A Cursor moves through the states unopened, opened and closed. HasNext
// computes and caches the next element; Next hands it out and drops the
// cache, Peek hands it out and keeps it. Optional operations (Remove,
// Update, Reset) fail with common.ErrUnsupported when the cursor or the
// cursor it wraps cannot perform them, so the Supports* methods can be
// trusted. A cursor owns the cursors it wraps: closing it closes them.
package cursor

import (
	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
)

// Cursor is a single-pass lazy sequence of T with an open/close lifecycle.
type Cursor[T any] interface {
	Open() error
	Close() error

	// HasNext reports whether another element exists. It returns false on
	// exhaustion and on failure; Err tells the two apart.
	HasNext() bool
	Next() (T, error)
	Peek() (T, error)

	// Remove deletes the element most recently returned by Next or Peek
	// from the underlying structure.
	Remove() error
	// Update replaces the element most recently returned by Next or Peek.
	Update(v T) error
	// Reset restarts the traversal. Effects of earlier Remove/Update calls persist.
	Reset() error

	SupportsPeek() bool
	SupportsRemove() bool
	SupportsUpdate() bool
	SupportsReset() bool

	// Err returns the first error met while computing elements.
	Err() error
}

// Source produces the elements of a Base cursor.
type Source[T any] interface {
	// Fetch computes the next element. ok is false once the source is exhausted.
	Fetch() (v T, ok bool, err error)
}

// Optional source capabilities.
type (
	Opener interface{ Open() error }
	Closer interface{ Close() error }

	// Resetter restarts a source from its first element.
	Resetter interface{ Reset() error }

	// Remover deletes the element the source fetched last.
	Remover interface{ Remove() error }

	// Updater replaces the element the source fetched last.
	Updater[T any] interface{ Update(v T) error }
)

// Sources that wrap other cursors declare at runtime whether a capability
// is actually available.
type (
	resetSupporter  interface{ SupportsReset() bool }
	removeSupporter interface{ SupportsRemove() bool }
	updateSupporter interface{ SupportsUpdate() bool }
)

type state int

const (
	unopened state = iota
	opened
	closed
)

// Base implements the Cursor state machine on top of a Source.
type Base[T any] struct {
	src   Source[T]
	state state

	computed bool
	hasNext  bool
	next     T

	// valid is set by Next/Peek and cleared by Remove/Update and by
	// computing a new element.
	valid bool
	err   error
}

// New returns a cursor over src.
func New[T any](src Source[T]) *Base[T] {
	return &Base[T]{src: src}
}

func (b *Base[T]) Open() error {
	if b.state != unopened {
		return nil
	}
	b.state = opened
	if o, ok := b.src.(Opener); ok {
		if err := o.Open(); err != nil {
			b.err = err
			return err
		}
	}
	return nil
}

func (b *Base[T]) Close() error {
	if b.state == closed {
		return nil
	}
	b.state = closed
	b.computed, b.hasNext, b.valid = false, false, false
	var zero T
	b.next = zero
	if c, ok := b.src.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (b *Base[T]) HasNext() bool {
	if b.state == unopened {
		if err := b.Open(); err != nil {
			return false
		}
	}
	if b.state == closed || b.err != nil {
		return false
	}
	if !b.computed {
		v, ok, err := b.src.Fetch()
		if err != nil {
			b.err = err
			ok = false
		}
		b.next, b.hasNext = v, ok
		b.computed = true
		b.valid = false
	}
	return b.hasNext
}

func (b *Base[T]) Next() (T, error) {
	v, err := b.Peek()
	if err != nil {
		return v, err
	}
	var zero T
	b.next = zero
	b.computed = false
	return v, nil
}

func (b *Base[T]) Peek() (T, error) {
	var zero T
	if b.state == closed {
		return zero, common.ErrClosed
	}
	if !b.HasNext() {
		if b.err != nil {
			return zero, b.err
		}
		return zero, common.ErrNoSuchElement
	}
	b.valid = true
	return b.next, nil
}

func (b *Base[T]) Remove() error {
	r, ok := b.src.(Remover)
	if !ok || !b.SupportsRemove() {
		return errors.Wrap(common.ErrUnsupported, "remove")
	}
	if !b.valid {
		return errors.Wrap(common.ErrIllegalState, "remove without next or peek")
	}
	if err := r.Remove(); err != nil {
		return err
	}
	b.valid = false
	if b.computed {
		// The peeked element is gone.
		var zero T
		b.next = zero
		b.computed = false
	}
	return nil
}

func (b *Base[T]) Update(v T) error {
	u, ok := b.src.(Updater[T])
	if !ok || !b.SupportsUpdate() {
		return errors.Wrap(common.ErrUnsupported, "update")
	}
	if !b.valid {
		return errors.Wrap(common.ErrIllegalState, "update without next or peek")
	}
	if err := u.Update(v); err != nil {
		return err
	}
	b.valid = false
	if b.computed {
		b.next = v
	}
	return nil
}

func (b *Base[T]) Reset() error {
	r, ok := b.src.(Resetter)
	if !ok || !b.SupportsReset() {
		return errors.Wrap(common.ErrUnsupported, "reset")
	}
	if b.state == closed {
		return common.ErrClosed
	}
	if err := r.Reset(); err != nil {
		return err
	}
	var zero T
	b.state = opened
	b.next, b.computed, b.hasNext, b.valid, b.err = zero, false, false, false, nil
	return nil
}

func (b *Base[T]) SupportsPeek() bool { return true }

func (b *Base[T]) SupportsRemove() bool {
	if _, ok := b.src.(Remover); !ok {
		return false
	}
	if s, ok := b.src.(removeSupporter); ok {
		return s.SupportsRemove()
	}
	return true
}

func (b *Base[T]) SupportsUpdate() bool {
	if _, ok := b.src.(Updater[T]); !ok {
		return false
	}
	if s, ok := b.src.(updateSupporter); ok {
		return s.SupportsUpdate()
	}
	return true
}

func (b *Base[T]) SupportsReset() bool {
	if _, ok := b.src.(Resetter); !ok {
		return false
	}
	if s, ok := b.src.(resetSupporter); ok {
		return s.SupportsReset()
	}
	return true
}

func (b *Base[T]) Err() error { return b.err }

// Collect opens c, gathers all remaining elements and closes c.
func Collect[T any](c Cursor[T]) ([]T, error) {
	if err := c.Open(); err != nil {
		return nil, err
	}
	var out []T
	for c.HasNext() {
		v, err := c.Next()
		if err != nil {
			c.Close()
			return out, err
		}
		out = append(out, v)
	}
	err := c.Err()
	return out, errors.CombineErrors(err, c.Close())
}

// Count consumes c and returns the number of elements.
func Count[T any](c Cursor[T]) (int, error) {
	if err := c.Open(); err != nil {
		return 0, err
	}
	n := 0
	for c.HasNext() {
		if _, err := c.Next(); err != nil {
			c.Close()
			return n, err
		}
		n++
	}
	return n, errors.CombineErrors(c.Err(), c.Close())
}
