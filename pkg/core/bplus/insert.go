package bplus

import (
	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// step is one node on a root-to-leaf path. idx is the position of the
// node's entry in the parent.
type step[K, V any] struct {
	id   container.ID
	node *Node[K, V]
	idx  int
}

// Insert adds v. Duplicate keys are kept in insertion order unless the tree
// is unique, in which case they fail with common.ErrDuplicateKey.
func (t *Tree[K, V]) Insert(v V) error {
	if err := t.ready(); err != nil {
		return err
	}
	if size := t.l.conv.Size(v) + t.l.overhead; size > t.opts.MaxCapacity/2 {
		return errors.Wrapf(common.ErrEntryTooLarge, "entry of %d bytes, max capacity %d", size, t.opts.MaxCapacity)
	}
	k := t.l.keyOf(v)
	if t.opts.Unique {
		if _, found, err := t.Get(k); err != nil {
			return err
		} else if found {
			return errors.Wrapf(common.ErrDuplicateKey, "%v", k)
		}
	}

	path, err := t.descendTo(k)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]
	leaf.node.insertValue(v)
	t.count++

	if err := t.splitUp(path); err != nil {
		return err
	}
	return nil
}

// descendTo follows the leftmost child whose separator covers k.
func (t *Tree[K, V]) descendTo(k K) ([]step[K, V], error) {
	path := make([]step[K, V], 0, t.rootLevel+1)
	id, idx := t.root, 0
	for {
		n, err := t.Node(id)
		if err != nil {
			return nil, err
		}
		path = append(path, step[K, V]{id: id, node: n, idx: idx})
		if n.IsLeaf() {
			return path, nil
		}
		idx = n.descend(k)
		id = n.children[idx].ID
	}
}

// splitUp stores the bottom node of path and splits overflowing nodes from
// there towards the root.
func (t *Tree[K, V]) splitUp(path []step[K, V]) error {
	for i := len(path) - 1; i >= 0; i-- {
		s := path[i]
		if s.node.load <= t.opts.MaxCapacity {
			if err := t.store(s.id, s.node); err != nil {
				return err
			}
			t.checkNode(s.id, s.node)
			return nil
		}

		leftSep, rightID, err := t.split(s.id, s.node)
		if err != nil {
			return err
		}
		if i == 0 {
			return t.growRoot(leftSep, rightID)
		}

		parent := path[i-1].node
		oldSep := parent.children[s.idx].Separator
		parent.setSeparator(s.idx, leftSep)
		parent.insertChild(s.idx+1, IndexEntry[K]{Separator: oldSep, ID: rightID})
	}
	return nil
}

// split moves the upper part of n into a new node and returns the new
// separator of n and the id of the new node.
func (t *Tree[K, V]) split(id container.ID, n *Node[K, V]) (keys.Separator[K], container.ID, error) {
	var none keys.Separator[K]
	p, ok := n.splitPoint(t.opts.MinCapacity, t.opts.MaxCapacity)
	if !ok {
		return none, container.NilID, errors.Wrapf(common.ErrInvalidCapacity, "node %d (%v) has no split point", id, n)
	}
	right := n.splitAt(p)
	rightID, err := t.c.Reserve(right)
	if err != nil {
		return none, container.NilID, errors.Wrap(err, "reserve split node")
	}
	if n.IsLeaf() {
		right.Next = n.Next
		n.Next = rightID
	}
	if err := t.store(id, n); err != nil {
		return none, container.NilID, err
	}
	if err := t.store(rightID, right); err != nil {
		return none, container.NilID, err
	}
	if n.load < t.opts.MinCapacity {
		// Only a fallback split point does this; the root may be about to
		// become a child.
		t.underfull[id] = struct{}{}
	}
	t.checkNode(id, n)
	t.checkNode(rightID, right)
	t.stats.Splits++
	t.log.Debugf("[BPlus] Split node %d at %d: loads %d / %d, new node %d", id, p, n.load, right.load, rightID)
	return n.maxSep(), rightID, nil
}

func (t *Tree[K, V]) growRoot(leftSep keys.Separator[K], rightID container.ID) error {
	root := newNode(t.l, t.rootLevel+1)
	root.insertChild(0, IndexEntry[K]{Separator: leftSep, ID: t.root})
	root.insertChild(1, IndexEntry[K]{Separator: keys.Indefinite[K](), ID: rightID})
	id, err := t.c.Reserve(root)
	if err != nil {
		return errors.Wrap(err, "reserve root")
	}
	t.root, t.rootLevel = id, root.Level
	t.stats.RootSplits++
	t.log.Debugf("[BPlus] Root split, new root %d at level %d", id, root.Level)
	return t.writeMeta()
}
