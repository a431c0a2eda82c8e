package bplus

import (
	"fmt"

	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// childIDSize is the encoded size of a child reference.
const childIDSize = 8

// IndexEntry references a child node. Separator is the largest key of the
// child's subtree; the rightmost entry of every level holds the indefinite
// separator.
type IndexEntry[K any] struct {
	Separator keys.Separator[K]
	ID        container.ID

	// cached is the materialised child. Only query cursors set it, on
	// their private copies of the entries.
	cached any
}

func (e IndexEntry[K]) String() string {
	return fmt.Sprintf("%v->%d", e.Separator, e.ID)
}

// MergeKind is the outcome of an underflow resolution step.
type MergeKind int

const (
	// Merge folded the right node of the pair into the left one.
	Merge MergeKind = iota
	// DistributionLeft moved entries from the left sibling into the node.
	DistributionLeft
	// DistributionRight moved entries from the right sibling into the node.
	DistributionRight
	// PostponedMerge left both nodes untouched.
	PostponedMerge
)

func (k MergeKind) String() string {
	switch k {
	case Merge:
		return "MERGE"
	case DistributionLeft:
		return "DISTRIBUTION_LEFT"
	case DistributionRight:
		return "DISTRIBUTION_RIGHT"
	case PostponedMerge:
		return "POSTPONED_MERGE"
	}
	return fmt.Sprintf("MergeKind(%d)", int(k))
}

// MergeInfo describes one underflow resolution. Entry and SiblingEntry are
// the parent's references to Node and Sibling.
type MergeInfo[K, V any] struct {
	Kind MergeKind

	Entry        IndexEntry[K]
	Node         *Node[K, V]
	SiblingEntry IndexEntry[K]
	Sibling      *Node[K, V]

	// NewSeparator is the new separator of the left node of the pair after
	// a distribution.
	NewSeparator keys.Separator[K]
}
