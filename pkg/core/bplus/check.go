package bplus

import (
	"github.com/cockroachdb/errors"

	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// Check walks the whole tree and verifies its structure: node budgets and
// levels, entry order, separators bounding their subtrees, the leaf chain
// and the value count. Nodes left below min by a postponed merge are
// tolerated.
func (t *Tree[K, V]) Check() error {
	if err := t.ready(); err != nil {
		return err
	}
	c := &checker[K, V]{t: t}
	if err := c.walk(t.root, t.rootLevel, keys.Lowest[K](), keys.Indefinite[K]()); err != nil {
		return err
	}
	if c.values != t.count {
		return errors.Newf("tree holds %d values, count says %d", c.values, t.count)
	}
	return c.checkChain()
}

type checker[K, V any] struct {
	t      *Tree[K, V]
	leaves []container.ID
	values int64
}

func (c *checker[K, V]) walk(id container.ID, level int, lo, hi keys.Separator[K]) error {
	t := c.t
	d := t.l.dom
	n, err := t.Node(id)
	if err != nil {
		return err
	}
	if n.Level != level {
		return errors.Newf("node %d: level %d, expected %d", id, n.Level, level)
	}
	if actual := n.ComputeActualLoad(); actual != n.load {
		return errors.Newf("node %d: load %d, actual %d", id, n.load, actual)
	}
	if n.load > t.opts.MaxCapacity {
		return errors.Newf("node %d: load %d above max %d", id, n.load, t.opts.MaxCapacity)
	}
	if _, ok := t.underfull[id]; !ok && id != t.root && n.load < t.opts.MinCapacity {
		return errors.Newf("node %d: load %d below min %d", id, n.load, t.opts.MinCapacity)
	}

	for i := 0; i < n.Number(); i++ {
		s := n.sepAt(i)
		if d.CompareSep(s, lo) < 0 || d.CompareSep(s, hi) > 0 {
			return errors.Newf("node %d: entry %d (%v) outside [%v, %v]", id, i, s, lo, hi)
		}
		if i > 0 {
			order := d.CompareSep(n.sepAt(i-1), s)
			if order > 0 || (order == 0 && t.opts.Unique && n.IsLeaf()) {
				return errors.Newf("node %d: entries %d and %d out of order", id, i-1, i)
			}
		}
	}

	if n.IsLeaf() {
		c.leaves = append(c.leaves, id)
		c.values += int64(len(n.values))
		return nil
	}
	if n.Number() == 0 {
		return errors.Newf("index node %d is empty", id)
	}
	if last := n.children[n.Number()-1].Separator; d.CompareSep(last, hi) != 0 {
		return errors.Newf("node %d: last separator %v, parent separator %v", id, last, hi)
	}
	for i, e := range n.children {
		childLo := lo
		if i > 0 {
			childLo = n.children[i-1].Separator
		}
		if err := c.walk(e.ID, level-1, childLo, e.Separator); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker[K, V]) checkChain() error {
	if len(c.leaves) == 0 {
		return errors.New("tree has no leaves")
	}
	id := c.leaves[0]
	for i := range c.leaves {
		if id != c.leaves[i] {
			return errors.Newf("leaf chain reaches %d at position %d, expected %d", id, i, c.leaves[i])
		}
		n, err := c.t.Node(id)
		if err != nil {
			return err
		}
		id = n.Next
	}
	if id != container.NilID {
		return errors.Newf("leaf chain continues past the last leaf to %d", id)
	}
	return nil
}
