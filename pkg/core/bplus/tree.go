// Package bplus implements a B+Tree whose node capacity is a byte budget
// rather than an entry count, so keys and values may vary in size.
//
// Nodes live in a container.Container and reference each other by id. A
// separator is the largest key of its subtree; the rightmost path of the
// tree carries the indefinite separator. Duplicate keys are allowed unless
// Options.Unique is set.
//
// The tree is not safe for concurrent use.
package bplus

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"vbtree/pkg/codec"
	"vbtree/pkg/common"
	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// MetaName is the metadata slot holding the root descriptor.
const MetaName = "bplus.root"

// Options configures a tree.
type Options[K, V any] struct {
	Domain keys.Domain[K]
	// KeyOf extracts the key of a value.
	KeyOf func(V) K
	// Converter measures and encodes values.
	Converter codec.Converter[V]
	// Equal selects the value Remove deletes among those with the same
	// key. Nil removes the first value with the key.
	Equal func(a, b V) bool

	MinCapacity  int
	MaxCapacity  int
	NodeOverhead int

	Unique      bool
	DebugChecks bool

	// Handler resolves underflows; nil means StandardUnderflowHandler.
	Handler UnderflowHandler[K, V]
	Logger  *log.Entry
}

func (o *Options[K, V]) validate() error {
	if o.KeyOf == nil || o.Converter == nil || o.Domain.Compare == nil || o.Domain.Converter == nil {
		return errors.New("bplus: domain, key function and converter are required")
	}
	if o.MinCapacity <= 0 || o.MaxCapacity <= 0 || o.NodeOverhead < 0 {
		return errors.Wrapf(common.ErrInvalidCapacity, "min=%d max=%d overhead=%d", o.MinCapacity, o.MaxCapacity, o.NodeOverhead)
	}
	if o.MaxCapacity < 2*o.MinCapacity {
		return errors.Wrapf(common.ErrInvalidCapacity, "max %d must be at least twice min %d", o.MaxCapacity, o.MinCapacity)
	}
	return nil
}

// TreeStats counts structural events since the tree was created.
type TreeStats struct {
	Height          int
	Values          int64
	Splits          int64
	Merges          int64
	Redistributions int64
	Postponed       int64
	RootSplits      int64
	RootCollapses   int64
}

// Tree is a variable-length B+Tree.
type Tree[K, V any] struct {
	opts    Options[K, V]
	l       *layout[K, V]
	handler UnderflowHandler[K, V]
	log     *log.Entry

	c         container.Container[*Node[K, V]]
	root      container.ID
	rootLevel int
	count     int64

	// underfull holds nodes left below min by a postponed merge.
	underfull map[container.ID]struct{}
	stats     TreeStats
}

// New returns an uninitialised tree.
func New[K, V any](opts Options[K, V]) (*Tree[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	handler := opts.Handler
	if handler == nil {
		handler = StandardUnderflowHandler[K, V]{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Tree[K, V]{
		opts:      opts,
		l:         newLayout(opts),
		handler:   handler,
		log:       logger,
		underfull: make(map[container.ID]struct{}),
	}, nil
}

func newLayout[K, V any](opts Options[K, V]) *layout[K, V] {
	return &layout[K, V]{
		dom:      opts.Domain,
		keyOf:    opts.KeyOf,
		conv:     opts.Converter,
		overhead: opts.NodeOverhead,
	}
}

// Initialize makes c the node store of an empty tree.
func (t *Tree[K, V]) Initialize(c container.Container[*Node[K, V]]) error {
	root := newNode(t.l, 0)
	id, err := c.Reserve(root)
	if err != nil {
		return errors.Wrap(err, "reserve root")
	}
	t.c, t.root, t.rootLevel, t.count = c, id, 0, 0
	t.log.Debugf("[BPlus] Initialized empty tree, root %d", id)
	return t.writeMeta()
}

// Open attaches the tree to c, restoring the root descriptor stored in c's
// metadata. A container without a descriptor gets an empty tree.
func (t *Tree[K, V]) Open(c container.Container[*Node[K, V]]) error {
	ms, ok := c.(container.MetaStore)
	if !ok {
		return t.Initialize(c)
	}
	data, found, err := ms.GetMeta(MetaName)
	if err != nil {
		return errors.Wrap(err, "read root descriptor")
	}
	if !found {
		return t.Initialize(c)
	}
	var m rootMeta
	if err := bson.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "decode root descriptor")
	}
	if m.MinCapacity != t.opts.MinCapacity || m.MaxCapacity != t.opts.MaxCapacity {
		t.log.Warnf("[BPlus] Reopening tree built with capacity [%d, %d] as [%d, %d]",
			m.MinCapacity, m.MaxCapacity, t.opts.MinCapacity, t.opts.MaxCapacity)
	}
	t.c, t.root, t.rootLevel, t.count = c, container.ID(m.Root), m.Level, m.Count
	t.log.Infof("[BPlus] Opened tree: root %d, height %d, %d values", t.root, t.Height(), t.count)
	return nil
}

type rootMeta struct {
	Root        int64 `bson:"root"`
	Level       int   `bson:"level"`
	Count       int64 `bson:"count"`
	MinCapacity int   `bson:"min_capacity"`
	MaxCapacity int   `bson:"max_capacity"`
}

func (t *Tree[K, V]) writeMeta() error {
	ms, ok := t.c.(container.MetaStore)
	if !ok {
		return nil
	}
	data, err := bson.Marshal(rootMeta{
		Root:        int64(t.root),
		Level:       t.rootLevel,
		Count:       t.count,
		MinCapacity: t.opts.MinCapacity,
		MaxCapacity: t.opts.MaxCapacity,
	})
	if err != nil {
		return err
	}
	return ms.PutMeta(MetaName, data)
}

// Sync stores the root descriptor and flushes a buffering container.
func (t *Tree[K, V]) Sync() error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.writeMeta(); err != nil {
		return err
	}
	if f, ok := t.c.(container.Flusher); ok {
		return f.Flush()
	}
	return nil
}

func (t *Tree[K, V]) ready() error {
	if t.c == nil {
		return common.ErrNotInitialized
	}
	return nil
}

// Root returns the root entry.
func (t *Tree[K, V]) Root() IndexEntry[K] {
	return IndexEntry[K]{Separator: keys.Indefinite[K](), ID: t.root}
}

// Height returns the number of levels; 0 before initialisation.
func (t *Tree[K, V]) Height() int {
	if t.c == nil {
		return 0
	}
	return t.rootLevel + 1
}

// Len returns the number of stored values.
func (t *Tree[K, V]) Len() int64 { return t.count }

func (t *Tree[K, V]) Domain() keys.Domain[K] { return t.opts.Domain }

func (t *Tree[K, V]) Container() container.Container[*Node[K, V]] { return t.c }

func (t *Tree[K, V]) Stats() TreeStats {
	s := t.stats
	s.Height = t.Height()
	s.Values = t.count
	return s
}

// Node loads the node stored under id.
func (t *Tree[K, V]) Node(id container.ID) (*Node[K, V], error) {
	n, err := t.c.Get(id)
	if err != nil {
		return nil, errors.Wrapf(err, "load node %d", id)
	}
	// Nodes decoded by a foreign codec carry its layout.
	n.l = t.l
	return n, nil
}

// store writes n back and tracks whether it was left below min.
func (t *Tree[K, V]) store(id container.ID, n *Node[K, V]) error {
	if id != t.root && n.load < t.opts.MinCapacity {
		t.underfull[id] = struct{}{}
	} else {
		delete(t.underfull, id)
	}
	if err := t.c.Update(id, n); err != nil {
		return errors.Wrapf(err, "store node %d", id)
	}
	return nil
}

func (t *Tree[K, V]) average() int {
	return (t.opts.MinCapacity + t.opts.MaxCapacity) / 2
}

// assert panics when a debug check fails.
func (t *Tree[K, V]) assert(ok bool, format string, args ...interface{}) {
	if !ok {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// checkNode validates the budget and order of a node touched by a
// structural operation when debug checks are on.
func (t *Tree[K, V]) checkNode(id container.ID, n *Node[K, V]) {
	if !t.opts.DebugChecks {
		return
	}
	t.assert(n.load == n.ComputeActualLoad(), "node %d: load %d, actual %d", id, n.load, n.ComputeActualLoad())
	t.assert(n.load <= t.opts.MaxCapacity, "node %d: load %d above max %d", id, n.load, t.opts.MaxCapacity)
	if _, ok := t.underfull[id]; !ok && id != t.root {
		t.assert(n.load >= t.opts.MinCapacity, "node %d: load %d below min %d", id, n.load, t.opts.MinCapacity)
	}
	for i := 1; i < n.Number(); i++ {
		t.assert(t.l.dom.CompareSep(n.sepAt(i-1), n.sepAt(i)) <= 0, "node %d: entries %d and %d out of order", id, i-1, i)
	}
}
