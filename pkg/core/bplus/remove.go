package bplus

import (
	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
	"vbtree/pkg/storage/container"
)

// Remove deletes one value with the key of v. With Options.Equal set, the
// value must also be equal to v. A missing value yields common.ErrNotFound
// and leaves the tree unchanged.
func (t *Tree[K, V]) Remove(v V) error {
	if err := t.ready(); err != nil {
		return err
	}
	k := t.l.keyOf(v)
	match := func(x V) bool {
		if t.l.dom.Compare(t.l.keyOf(x), k) != 0 {
			return false
		}
		return t.opts.Equal == nil || t.opts.Equal(x, v)
	}

	path, pos, err := t.locate(t.root, 0, k, match, nil)
	if err != nil {
		return err
	}
	if path == nil {
		return errors.Wrapf(common.ErrNotFound, "%v", k)
	}
	leaf := path[len(path)-1].node
	leaf.removeValue(pos)
	t.count--
	return t.repair(path)
}

// RemoveKey deletes one value with key k.
func (t *Tree[K, V]) RemoveKey(k K) (V, error) {
	var zero V
	v, found, err := t.Get(k)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, errors.Wrapf(common.ErrNotFound, "%v", k)
	}
	return v, t.Remove(v)
}

// locate searches every subtree that may hold k, in key order, for a value
// accepted by match. It returns nil when there is none.
func (t *Tree[K, V]) locate(id container.ID, idx int, k K, match func(V) bool, path []step[K, V]) ([]step[K, V], int, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, 0, err
	}
	path = append(path, step[K, V]{id: id, node: n, idx: idx})
	if n.IsLeaf() {
		for i, x := range n.values {
			if match(x) {
				return path, i, nil
			}
		}
		return nil, 0, nil
	}
	for i := n.descend(k); i < len(n.children); i++ {
		if i > 0 && t.l.dom.CompareKey(n.children[i-1].Separator, k) > 0 {
			break
		}
		found, pos, err := t.locate(n.children[i].ID, i, k, match, path)
		if err != nil || found != nil {
			return found, pos, err
		}
	}
	return nil, 0, nil
}

// repair stores the nodes of path after a removal, resolving underflows
// from the leaf upwards and shrinking the root when it has a single child.
func (t *Tree[K, V]) repair(path []step[K, V]) error {
	for i := len(path) - 1; i > 0; i-- {
		s := path[i]
		if s.node.load > t.opts.MaxCapacity {
			// A longer separator from a distribution below overflowed this node.
			return t.splitUp(path[:i+1])
		}
		if s.node.load >= t.opts.MinCapacity {
			if err := t.store(s.id, s.node); err != nil {
				return err
			}
			t.checkNode(s.id, s.node)
			return nil
		}
		resolved, err := t.underflow(path[i-1], s)
		if err != nil {
			return err
		}
		if !resolved {
			return nil
		}
	}

	root := path[0]
	if root.node.load > t.opts.MaxCapacity {
		return t.splitUp(path[:1])
	}
	if err := t.store(root.id, root.node); err != nil {
		return err
	}
	return t.collapseRoot()
}

// underflow resolves the underflow of s with the help of a sibling. It
// reports whether the parent changed and must be examined in turn.
func (t *Tree[K, V]) underflow(parent step[K, V], s step[K, V]) (bool, error) {
	p := parent.node
	candidates := make([]int, 0, 2)
	if s.idx > 0 {
		candidates = append(candidates, s.idx-1)
	}
	if s.idx+1 < len(p.children) {
		candidates = append(candidates, s.idx+1)
	}

	for _, sidx := range candidates {
		sibling, err := t.Node(p.children[sidx].ID)
		if err != nil {
			return false, err
		}
		left := sidx < s.idx
		info := &MergeInfo[K, V]{
			Entry:        p.children[s.idx],
			Node:         s.node,
			SiblingEntry: p.children[sidx],
			Sibling:      sibling,
		}
		info = t.handler.RunUnderflowHandling(info, t.opts.MinCapacity, t.average(), t.opts.MaxCapacity, left)
		if info.Kind == PostponedMerge {
			continue
		}
		return true, t.apply(p, s.idx, sidx, info)
	}

	// No sibling could take part. Merge anyway if the result fits.
	for _, sidx := range candidates {
		sibling, err := t.Node(p.children[sidx].ID)
		if err != nil {
			return false, err
		}
		l, r := s.node, sibling
		if sidx < s.idx {
			l, r = sibling, s.node
		}
		if l.load+r.load-t.l.overhead > t.opts.MaxCapacity {
			continue
		}
		l.absorb(r)
		info := &MergeInfo[K, V]{Kind: Merge, Node: s.node, Sibling: sibling}
		return true, t.apply(p, s.idx, sidx, info)
	}

	t.stats.Postponed++
	t.log.Debugf("[BPlus] Postponed underflow of node %d (load %d, min %d)", s.id, s.node.load, t.opts.MinCapacity)
	return false, t.store(s.id, s.node)
}

// apply updates parent p after the pair (idx, sidx) was resolved.
func (t *Tree[K, V]) apply(p *Node[K, V], idx, sidx int, info *MergeInfo[K, V]) error {
	li, ri := min(idx, sidx), max(idx, sidx)
	lid, rid := p.children[li].ID, p.children[ri].ID
	l, r := info.Node, info.Sibling
	if sidx < idx {
		l, r = info.Sibling, info.Node
	}

	switch info.Kind {
	case Merge:
		p.setSeparator(li, p.children[ri].Separator)
		p.removeChild(ri)
		if err := t.store(lid, l); err != nil {
			return err
		}
		if err := t.c.Remove(rid); err != nil {
			return errors.Wrapf(err, "free node %d", rid)
		}
		delete(t.underfull, rid)
		t.checkNode(lid, l)
		t.stats.Merges++
		t.log.Debugf("[BPlus] Merged node %d into %d (load %d)", rid, lid, l.load)
	case DistributionLeft, DistributionRight:
		p.setSeparator(li, info.NewSeparator)
		if err := t.store(lid, l); err != nil {
			return err
		}
		if err := t.store(rid, r); err != nil {
			return err
		}
		t.checkNode(lid, l)
		t.checkNode(rid, r)
		t.stats.Redistributions++
		t.log.Debugf("[BPlus] %v between %d and %d: loads %d / %d", info.Kind, lid, rid, l.load, r.load)
	default:
		return errors.AssertionFailedf("unexpected merge kind %v", info.Kind)
	}
	return nil
}

// collapseRoot replaces an index root that has a single child by the child.
func (t *Tree[K, V]) collapseRoot() error {
	changed := false
	for t.rootLevel > 0 {
		root, err := t.Node(t.root)
		if err != nil {
			return err
		}
		if root.Number() != 1 {
			break
		}
		old := t.root
		t.root = root.children[0].ID
		t.rootLevel--
		if err := t.c.Remove(old); err != nil {
			return errors.Wrapf(err, "free root %d", old)
		}
		delete(t.underfull, t.root)
		t.stats.RootCollapses++
		changed = true
		t.log.Debugf("[BPlus] Root collapsed to %d at level %d", t.root, t.rootLevel)
	}
	if changed {
		return t.writeMeta()
	}
	return nil
}
