package keys

import (
	"cmp"
	"strings"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/codec"
)

// ErrInvalidRange is returned for ranges whose minimum exceeds their maximum.
var ErrInvalidRange = errors.New("keys: min bound greater than max bound")

// Domain bundles the ordering and encoding of a key type. It is the factory
// for separators and key ranges over that type.
type Domain[K any] struct {
	Name      string
	Compare   func(a, b K) int
	Converter codec.Converter[K]
}

// Int64Domain orders int64 keys numerically.
func Int64Domain() Domain[int64] {
	return Domain[int64]{Name: "int64", Compare: cmp.Compare[int64], Converter: codec.Int64{}}
}

// StringDomain orders string keys lexicographically.
func StringDomain() Domain[string] {
	return Domain[string]{Name: "string", Compare: strings.Compare, Converter: codec.String{}}
}

// Sep returns a definite separator for k.
func (d Domain[K]) Sep(k K) Separator[K] { return NewSeparator(k) }

// CompareSep orders two separators.
func (d Domain[K]) CompareSep(a, b Separator[K]) int { return compare(a, b, d.Compare) }

// CompareKey orders separator s against key k.
func (d Domain[K]) CompareKey(s Separator[K], k K) int {
	return compare(s, NewSeparator(k), d.Compare)
}

// SepSize returns the serialized size of s: one tag byte plus the key.
func (d Domain[K]) SepSize(s Separator[K]) int {
	if !s.IsDefinite() {
		return 1
	}
	return 1 + d.Converter.Size(s.key)
}

// Range returns [lo, hi).
func (d Domain[K]) Range(lo, hi K) (KeyRange[K], error) {
	return d.SepRange(NewSeparator(lo), NewSeparator(hi))
}

// SepRange returns [min, max) validating min <= max.
func (d Domain[K]) SepRange(min, max Separator[K]) (KeyRange[K], error) {
	if d.CompareSep(min, max) > 0 {
		return KeyRange[K]{}, errors.Wrapf(ErrInvalidRange, "[%v, %v)", min, max)
	}
	return KeyRange[K]{Min: min, Max: max}, nil
}

// From returns [lo, +inf).
func (d Domain[K]) From(lo K) KeyRange[K] {
	return KeyRange[K]{Min: NewSeparator(lo), Max: Indefinite[K]()}
}

// All returns the range covering every key.
func (d Domain[K]) All() KeyRange[K] {
	return KeyRange[K]{Min: Lowest[K](), Max: Indefinite[K]()}
}

// Point returns the range holding exactly k.
func (d Domain[K]) Point(k K) KeyRange[K] {
	return KeyRange[K]{Min: NewSeparator(k), Max: NewSeparator(k), inclusive: true}
}

// Closed returns [lo, hi].
func (d Domain[K]) Closed(lo, hi K) (KeyRange[K], error) {
	r, err := d.Range(lo, hi)
	r.inclusive = err == nil
	return r, err
}

// Contains reports whether k lies in r.
func (d Domain[K]) Contains(r KeyRange[K], k K) bool {
	return d.CompareKey(r.Min, k) <= 0 && !d.Below(r, k)
}

// Below reports whether k is at or past the upper end of r, so that no key
// greater or equal to k can lie in r.
func (d Domain[K]) Below(r KeyRange[K], k K) bool {
	c := d.CompareKey(r.Max, k)
	if r.inclusive {
		return c < 0
	}
	return c <= 0
}

// Overlaps reports whether the two ranges share at least one key.
func (d Domain[K]) Overlaps(a, b KeyRange[K]) bool {
	return d.BeforeEnd(a.Min, b) && d.BeforeEnd(b.Min, a)
}

// BeforeEnd reports whether lower bound s lies before the upper end of r.
func (d Domain[K]) BeforeEnd(s Separator[K], r KeyRange[K]) bool {
	c := d.CompareSep(s, r.Max)
	return c < 0 || (c == 0 && r.inclusive)
}

// Union returns the smallest range covering a and b.
func (d Domain[K]) Union(a, b KeyRange[K]) KeyRange[K] {
	out := a
	if d.CompareSep(b.Min, out.Min) < 0 {
		out.Min = b.Min
	}
	switch c := d.CompareSep(b.Max, out.Max); {
	case c > 0:
		out.Max, out.inclusive = b.Max, b.inclusive
	case c == 0:
		out.inclusive = a.inclusive || b.inclusive
	}
	return out
}
