// Package keys provides the key-boundary model of the tree: separators,
// key ranges and the domains that build and compare them.
package keys

import "fmt"

type kind int8

const (
	lowest     kind = -1
	definite   kind = 0
	indefinite kind = 1
)

// Separator is a key boundary. Besides definite keys it has two sentinels:
// Indefinite sorts after every key and Lowest before every key.
type Separator[K any] struct {
	key  K
	kind kind
}

// NewSeparator returns a definite separator for k.
func NewSeparator[K any](k K) Separator[K] {
	return Separator[K]{key: k}
}

// Indefinite returns the +infinity separator.
func Indefinite[K any]() Separator[K] {
	return Separator[K]{kind: indefinite}
}

// Lowest returns the -infinity separator. It only appears as a range lower bound.
func Lowest[K any]() Separator[K] {
	return Separator[K]{kind: lowest}
}

// IsDefinite reports whether s carries a key.
func (s Separator[K]) IsDefinite() bool { return s.kind == definite }

// IsIndefinite reports whether s is +infinity.
func (s Separator[K]) IsIndefinite() bool { return s.kind == indefinite }

// IsLowest reports whether s is -infinity.
func (s Separator[K]) IsLowest() bool { return s.kind == lowest }

// Key returns the separator key. It is the zero value for sentinels.
func (s Separator[K]) Key() K { return s.key }

// Clone returns a copy of s. Keys are treated as immutable values.
func (s Separator[K]) Clone() Separator[K] { return s }

func (s Separator[K]) String() string {
	switch s.kind {
	case indefinite:
		return "+inf"
	case lowest:
		return "-inf"
	}
	return fmt.Sprint(s.key)
}

// compare orders two separators using cmp for definite keys.
func compare[K any](a, b Separator[K], cmp func(K, K) int) int {
	if a.kind != definite || b.kind != definite {
		switch {
		case a.kind < b.kind:
			return -1
		case a.kind > b.kind:
			return 1
		}
		return 0
	}
	return cmp(a.key, b.key)
}

// KeyRange is the interval [Min, Max) of separators. Ranges built by
// Domain.Point and Domain.Closed include Max.
type KeyRange[K any] struct {
	Min Separator[K]
	Max Separator[K]

	inclusive bool
}

// Inclusive reports whether Max belongs to the range.
func (r KeyRange[K]) Inclusive() bool { return r.inclusive }

func (r KeyRange[K]) String() string {
	if r.inclusive {
		return fmt.Sprintf("[%v, %v]", r.Min, r.Max)
	}
	return fmt.Sprintf("[%v, %v)", r.Min, r.Max)
}
