package container

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

type item[T any] struct {
	id  ID
	val T
}

func lessItem[T any](a, b item[T]) bool {
	return a.id < b.id
}

// Memory keeps objects in an in-memory ordered map.
type Memory[T any] struct {
	tree   *btree.BTreeG[item[T]]
	meta   map[string][]byte
	lock   sync.RWMutex
	next   ID
	closed bool
}

func NewMemory[T any](degree int) *Memory[T] {
	return &Memory[T]{
		tree: btree.NewG[item[T]](degree, lessItem[T]),
		meta: make(map[string][]byte),
		next: 1,
	}
}

func (m *Memory[T]) Reserve(init T) (ID, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return NilID, ErrClosed
	}

	id := m.next
	m.next++
	m.tree.ReplaceOrInsert(item[T]{id: id, val: init})
	return id, nil
}

func (m *Memory[T]) Get(id ID) (T, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	res, ok := m.tree.Get(item[T]{id: id})
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrNoSuchID, "get %d", id)
	}
	return res.val, nil
}

func (m *Memory[T]) Update(id ID, v T) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.tree.Has(item[T]{id: id}) {
		return errors.Wrapf(ErrNoSuchID, "update %d", id)
	}
	m.tree.ReplaceOrInsert(item[T]{id: id, val: v})
	return nil
}

func (m *Memory[T]) Remove(id ID) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.tree.Delete(item[T]{id: id}); !ok {
		return errors.Wrapf(ErrNoSuchID, "remove %d", id)
	}
	return nil
}

// Len returns the number of live objects.
func (m *Memory[T]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.tree.Len()
}

// Iterator visits the objects in id order until fn returns false.
func (m *Memory[T]) Iterator(fn func(id ID, v T) bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	m.tree.Ascend(func(it item[T]) bool {
		return fn(it.id, it.val)
	})
}

func (m *Memory[T]) GetMeta(name string) ([]byte, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	data, ok := m.meta[name]
	return data, ok, nil
}

func (m *Memory[T]) PutMeta(name string, data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.meta[name] = append([]byte(nil), data...)
	return nil
}

func (m *Memory[T]) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return nil
}
