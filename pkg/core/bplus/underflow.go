package bplus

import (
	"vbtree/pkg/keys"
)

// UnderflowHandler decides how a node whose load dropped below min is
// repaired using one adjacent sibling. info arrives with the node, the
// sibling and their parent entries filled in; the handler performs the
// chosen action on the two nodes and records it in info.Kind. left is true
// when the sibling is the node's left neighbour.
type UnderflowHandler[K, V any] interface {
	RunUnderflowHandling(info *MergeInfo[K, V], minCap, average, maxCap int, left bool) *MergeInfo[K, V]
}

// StandardUnderflowHandler redistributes entries from a sibling holding more
// than the average load and merges otherwise.
//
// A redistribution moves a contiguous block from the sibling's boundary
// into the node. Among the block sizes that bring the node into
// [min, min+(average-min)/2] while keeping the sibling at or above min, it
// picks the one whose new separator is smallest in bytes. If no block
// reaches that window it accepts any block leaving both nodes within
// [min, max]; if none exists the merge is postponed.
//
// A merge whose result would exceed max is turned into an even split of the
// combined entries across both nodes.
type StandardUnderflowHandler[K, V any] struct{}

func (StandardUnderflowHandler[K, V]) RunUnderflowHandling(info *MergeInfo[K, V], minCap, average, maxCap int, left bool) *MergeInfo[K, V] {
	node, sibling := info.Node, info.Sibling
	if sibling.load > average {
		if t, sep, ok := redistributionPoint(node, sibling, minCap, average, maxCap, left); ok {
			if left {
				sibling.moveLast(node, t)
				info.Kind = DistributionLeft
			} else {
				sibling.moveFirst(node, t)
				info.Kind = DistributionRight
			}
			info.NewSeparator = sep
			return info
		}
		info.Kind = PostponedMerge
		return info
	}

	l, r := node, sibling
	if left {
		l, r = sibling, node
	}
	if l.load+r.load-l.l.overhead <= maxCap {
		l.absorb(r)
		info.Kind = Merge
		return info
	}
	if !rebalance(l, r, minCap, maxCap) {
		info.Kind = PostponedMerge
		return info
	}
	info.Kind = DistributionRight
	if left {
		info.Kind = DistributionLeft
	}
	info.NewSeparator = l.maxSep()
	return info
}

// redistributionPoint returns how many entries to move from sibling into
// node and the resulting separator of the left node of the pair.
func redistributionPoint[K, V any](node, sibling *Node[K, V], minCap, average, maxCap int, left bool) (int, keys.Separator[K], bool) {
	effective := minCap + (average-minCap)/2
	n := sibling.Number()

	best, widened := -1, -1
	var bestSep, widenedSep keys.Separator[K]
	bestSize, widenedSize := 0, 0

	moved := 0
	for t := 1; t < n; t++ {
		var at int
		if left {
			at = n - t
		} else {
			at = t - 1
		}
		moved += sibling.EntryByteSize(at)
		nodeLoad := node.load + moved
		siblingLoad := sibling.load - moved
		if siblingLoad < minCap || nodeLoad > maxCap {
			break
		}
		if nodeLoad < minCap {
			continue
		}

		// The separator of the left node after the move.
		var sep keys.Separator[K]
		if left {
			sep = sibling.sepAt(n - t - 1)
		} else {
			sep = sibling.sepAt(t - 1)
		}
		size := sibling.KeyByteSize(sep)

		if nodeLoad <= effective && (best < 0 || size < bestSize) {
			best, bestSep, bestSize = t, sep, size
		}
		if widened < 0 || size < widenedSize {
			widened, widenedSep, widenedSize = t, sep, size
		}
	}
	if best >= 0 {
		return best, bestSep, true
	}
	if widened >= 0 {
		return widened, widenedSep, true
	}
	return 0, bestSep, false
}

// rebalance spreads the entries of l and r evenly across both nodes. The
// leaf link between them is unchanged.
func rebalance[K, V any](l, r *Node[K, V], minCap, maxCap int) bool {
	nl := l.Number()
	r.moveFirst(l, r.Number())
	p, ok := l.splitPoint(minCap, maxCap)
	if !ok {
		l.moveLast(r, l.Number()-nl)
		return false
	}
	l.moveLast(r, l.Number()-p)
	return true
}
