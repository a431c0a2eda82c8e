package bplus

import (
	"fmt"
	"slices"

	"vbtree/pkg/codec"
	"vbtree/pkg/cursor"
	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// layout carries what a node needs to measure and order its entries.
type layout[K, V any] struct {
	dom      keys.Domain[K]
	keyOf    func(V) K
	conv     codec.Converter[V]
	overhead int
}

// Node is a tree page. Level 0 nodes are leaves holding values; higher
// levels hold index entries. Leaves are chained through Next in key order.
type Node[K, V any] struct {
	Level int
	Next  container.ID

	values   []V
	children []IndexEntry[K]
	load     int

	l *layout[K, V]
}

func newNode[K, V any](l *layout[K, V], level int) *Node[K, V] {
	return &Node[K, V]{Level: level, load: l.overhead, l: l}
}

func (n *Node[K, V]) IsLeaf() bool { return n.Level == 0 }

// Number returns the number of entries.
func (n *Node[K, V]) Number() int {
	if n.IsLeaf() {
		return len(n.values)
	}
	return len(n.children)
}

func (n *Node[K, V]) Value(i int) V { return n.values[i] }

func (n *Node[K, V]) Child(i int) IndexEntry[K] { return n.children[i] }

// NextNeighbor returns the id of the next leaf, or container.NilID.
func (n *Node[K, V]) NextNeighbor() container.ID { return n.Next }

// Load returns the tracked byte load including the node overhead.
func (n *Node[K, V]) Load() int { return n.load }

// ComputeActualLoad recomputes the byte load from the entries.
func (n *Node[K, V]) ComputeActualLoad() int {
	load := n.l.overhead
	for i := 0; i < n.Number(); i++ {
		load += n.EntryByteSize(i)
	}
	return load
}

// KeyByteSize returns the encoded size of a separator.
func (n *Node[K, V]) KeyByteSize(s keys.Separator[K]) int {
	return n.l.dom.SepSize(s)
}

// EntryByteSize returns the encoded size of entry i.
func (n *Node[K, V]) EntryByteSize(i int) int {
	if n.IsLeaf() {
		return n.l.conv.Size(n.values[i])
	}
	return n.indexEntrySize(n.children[i])
}

func (n *Node[K, V]) indexEntrySize(e IndexEntry[K]) int {
	return n.KeyByteSize(e.Separator) + childIDSize
}

// sepAt returns the separator entry i would be represented by in a parent.
func (n *Node[K, V]) sepAt(i int) keys.Separator[K] {
	if n.IsLeaf() {
		return keys.NewSeparator(n.l.keyOf(n.values[i]))
	}
	return n.children[i].Separator
}

// maxSep returns the separator of the last entry.
func (n *Node[K, V]) maxSep() keys.Separator[K] {
	return n.sepAt(n.Number() - 1)
}

func (n *Node[K, V]) recompute() {
	n.load = n.ComputeActualLoad()
}

// insertValue places v after every value with an equal key.
func (n *Node[K, V]) insertValue(v V) int {
	k := n.l.keyOf(v)
	i, _ := slices.BinarySearchFunc(n.values, k, func(e V, k K) int {
		if n.l.dom.Compare(n.l.keyOf(e), k) <= 0 {
			return -1
		}
		return 1
	})
	n.values = slices.Insert(n.values, i, v)
	n.load += n.l.conv.Size(v)
	return i
}

func (n *Node[K, V]) removeValue(i int) V {
	v := n.values[i]
	n.values = slices.Delete(n.values, i, i+1)
	n.load -= n.l.conv.Size(v)
	return v
}

func (n *Node[K, V]) insertChild(i int, e IndexEntry[K]) {
	n.children = slices.Insert(n.children, i, e)
	n.load += n.indexEntrySize(e)
}

func (n *Node[K, V]) removeChild(i int) {
	n.load -= n.indexEntrySize(n.children[i])
	n.children = slices.Delete(n.children, i, i+1)
}

func (n *Node[K, V]) setSeparator(i int, s keys.Separator[K]) {
	n.load -= n.indexEntrySize(n.children[i])
	n.children[i].Separator = s
	n.load += n.indexEntrySize(n.children[i])
}

// descend returns the first child whose separator is at least k.
func (n *Node[K, V]) descend(k K) int {
	i, _ := slices.BinarySearchFunc(n.children, k, func(e IndexEntry[K], k K) int {
		if n.l.dom.CompareKey(e.Separator, k) < 0 {
			return -1
		}
		return 1
	})
	return min(i, len(n.children)-1)
}

// descendSep is descend for a range lower bound.
func (n *Node[K, V]) descendSep(s keys.Separator[K]) int {
	i, _ := slices.BinarySearchFunc(n.children, s, func(e IndexEntry[K], s keys.Separator[K]) int {
		if n.l.dom.CompareSep(e.Separator, s) < 0 {
			return -1
		}
		return 1
	})
	return min(i, len(n.children)-1)
}

// childOverlaps reports whether child i may hold keys of r. Child i holds
// keys between the separators i-1 and i, both inclusive.
func (n *Node[K, V]) childOverlaps(i int, r keys.KeyRange[K]) bool {
	d := n.l.dom
	if d.CompareSep(n.children[i].Separator, r.Min) < 0 {
		return false
	}
	return i == 0 || d.BeforeEnd(n.children[i-1].Separator, r)
}

// splitPoint picks the entry index at which to split so that the left half
// lands as close to min+(max-min)/2 as possible while both halves stay in
// [min, max]. When no such point exists it falls back to the most even
// split that respects max.
func (n *Node[K, V]) splitPoint(minCap, maxCap int) (int, bool) {
	total := n.load - n.l.overhead
	target := minCap + (maxCap-minCap)/2
	best, bestDist := -1, 0
	fallback, fallbackDist := -1, 0

	left := n.l.overhead
	for p := 1; p < n.Number(); p++ {
		left += n.EntryByteSize(p - 1)
		right := n.l.overhead + total - (left - n.l.overhead)
		if left > maxCap || right > maxCap {
			continue
		}
		if left >= minCap && right >= minCap {
			if d := abs(left - target); best < 0 || d < bestDist {
				best, bestDist = p, d
			}
		}
		if d := abs(left - right); fallback < 0 || d < fallbackDist {
			fallback, fallbackDist = p, d
		}
	}
	if best >= 0 {
		return best, true
	}
	return fallback, fallback >= 0
}

// splitAt moves the entries from p onwards into a new node of the same level.
func (n *Node[K, V]) splitAt(p int) *Node[K, V] {
	right := newNode(n.l, n.Level)
	if n.IsLeaf() {
		right.values = slices.Clone(n.values[p:])
		clear(n.values[p:])
		n.values = n.values[:p]
	} else {
		right.children = slices.Clone(n.children[p:])
		clear(n.children[p:])
		n.children = n.children[:p]
	}
	n.recompute()
	right.recompute()
	return right
}

// moveLast moves the last t entries of n to the front of dst.
func (n *Node[K, V]) moveLast(dst *Node[K, V], t int) {
	at := n.Number() - t
	if n.IsLeaf() {
		dst.values = append(slices.Clone(n.values[at:]), dst.values...)
		clear(n.values[at:])
		n.values = n.values[:at]
	} else {
		dst.children = append(slices.Clone(n.children[at:]), dst.children...)
		clear(n.children[at:])
		n.children = n.children[:at]
	}
	n.recompute()
	dst.recompute()
}

// moveFirst moves the first t entries of n to the end of dst.
func (n *Node[K, V]) moveFirst(dst *Node[K, V], t int) {
	if n.IsLeaf() {
		dst.values = append(dst.values, n.values[:t]...)
		n.values = slices.Delete(n.values, 0, t)
	} else {
		dst.children = append(dst.children, n.children[:t]...)
		n.children = slices.Delete(n.children, 0, t)
	}
	n.recompute()
	dst.recompute()
}

// absorb appends every entry of right to n and takes over its leaf link.
func (n *Node[K, V]) absorb(right *Node[K, V]) {
	n.values = append(n.values, right.values...)
	n.children = append(n.children, right.children...)
	right.values, right.children = nil, nil
	if n.IsLeaf() {
		n.Next = right.Next
	}
	n.recompute()
	right.recompute()
}

// Values returns a resettable cursor over a snapshot of the leaf values.
func (n *Node[K, V]) Values() *cursor.Base[V] {
	return cursor.FromSlice(n.values)
}

// Children returns a resettable cursor over a snapshot of the index entries.
func (n *Node[K, V]) Children() *cursor.Base[IndexEntry[K]] {
	return cursor.FromSlice(n.children)
}

// QueryValues lazily yields the leaf values whose keys lie in r.
func (n *Node[K, V]) QueryValues(r keys.KeyRange[K]) *cursor.Base[V] {
	d := n.l.dom
	i := 0
	return cursor.FromFunc(func() (V, bool, error) {
		var zero V
		for i < len(n.values) {
			v := n.values[i]
			k := n.l.keyOf(v)
			if d.Below(r, k) {
				i = len(n.values)
				break
			}
			i++
			if d.Contains(r, k) {
				return v, true, nil
			}
		}
		return zero, false, nil
	})
}

// QueryChildren lazily yields the index entries whose subtrees may hold keys of r.
func (n *Node[K, V]) QueryChildren(r keys.KeyRange[K]) *cursor.Base[IndexEntry[K]] {
	i := 0
	return cursor.FromFunc(func() (IndexEntry[K], bool, error) {
		for i < len(n.children) {
			at := i
			i++
			if n.childOverlaps(at, r) {
				return n.children[at], true, nil
			}
			if at > 0 && !n.l.dom.BeforeEnd(n.children[at-1].Separator, r) {
				i = len(n.children)
			}
		}
		return IndexEntry[K]{}, false, nil
	})
}

func (n *Node[K, V]) String() string {
	if n.IsLeaf() {
		return fmt.Sprintf("leaf(n=%d load=%d next=%d)", len(n.values), n.load, n.Next)
	}
	return fmt.Sprintf("index(level=%d n=%d load=%d)", n.Level, len(n.children), n.load)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
