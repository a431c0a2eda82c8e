package container

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"vbtree/pkg/monitor"
)

type slot[T any] struct {
	val   T
	dirty bool
}

// Buffer is a write-back cache of a fixed number of slots in front of
// another container. Eviction order is decided by a Policy.
type Buffer[T any] struct {
	under    Container[T]
	slots    map[ID]*slot[T]
	capacity int
	policy   Policy
	stats    *monitor.ContainerStats
}

// NewBuffer wraps under with capacity slots. A nil policy means LRU.
func NewBuffer[T any](under Container[T], capacity int, policy Policy) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	if policy == nil {
		policy = NewLRU()
	}
	return &Buffer[T]{
		under:    under,
		slots:    make(map[ID]*slot[T], capacity),
		capacity: capacity,
		policy:   policy,
		stats:    monitor.NewContainerStats(),
	}
}

// Stats returns the hit/evict counters of the buffer.
func (b *Buffer[T]) Stats() *monitor.ContainerStats {
	return b.stats
}

func (b *Buffer[T]) Reserve(init T) (ID, error) {
	b.stats.RecordReserve()
	id, err := b.under.Reserve(init)
	if err != nil {
		return NilID, err
	}
	if err := b.put(id, init, false); err != nil {
		return NilID, err
	}
	return id, nil
}

func (b *Buffer[T]) Get(id ID) (T, error) {
	b.stats.RecordGet()
	if s, ok := b.slots[id]; ok {
		b.stats.RecordHit()
		b.policy.Access(id)
		return s.val, nil
	}
	v, err := b.under.Get(id)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := b.put(id, v, false); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (b *Buffer[T]) Update(id ID, v T) error {
	b.stats.RecordUpdate()
	if s, ok := b.slots[id]; ok {
		s.val, s.dirty = v, true
		b.policy.Access(id)
		return nil
	}
	return b.put(id, v, true)
}

func (b *Buffer[T]) Remove(id ID) error {
	b.stats.RecordRemove()
	delete(b.slots, id)
	b.policy.Remove(id)
	return b.under.Remove(id)
}

func (b *Buffer[T]) put(id ID, v T, dirty bool) error {
	for len(b.slots) >= b.capacity {
		if err := b.evict(); err != nil {
			return err
		}
	}
	b.slots[id] = &slot[T]{val: v, dirty: dirty}
	b.policy.Access(id)
	return nil
}

func (b *Buffer[T]) evict() error {
	victim, ok := b.policy.Victim()
	if !ok {
		return errors.AssertionFailedf("buffer full with empty policy (%d slots)", len(b.slots))
	}
	s := b.slots[victim]
	b.policy.Remove(victim)
	delete(b.slots, victim)
	b.stats.RecordEvict()
	if s != nil && s.dirty {
		log.WithField("id", victim).Trace("[Buffer] write back")
		return b.under.Update(victim, s.val)
	}
	return nil
}

// Flush writes every dirty slot back to the underlying container.
func (b *Buffer[T]) Flush() error {
	dirty := make(map[ID]T)
	for id, s := range b.slots {
		if s.dirty {
			dirty[id] = s.val
		}
	}
	if bu, ok := b.under.(interface{ BatchUpdate(map[ID]T) error }); ok {
		if err := bu.BatchUpdate(dirty); err != nil {
			return err
		}
	} else {
		for id, v := range dirty {
			if err := b.under.Update(id, v); err != nil {
				return err
			}
		}
	}
	for id := range dirty {
		b.slots[id].dirty = false
	}
	if f, ok := b.under.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func (b *Buffer[T]) GetMeta(name string) ([]byte, bool, error) {
	if ms, ok := b.under.(MetaStore); ok {
		return ms.GetMeta(name)
	}
	return nil, false, nil
}

func (b *Buffer[T]) PutMeta(name string, data []byte) error {
	if ms, ok := b.under.(MetaStore); ok {
		return ms.PutMeta(name, data)
	}
	return nil
}

// Close flushes and closes the underlying container.
func (b *Buffer[T]) Close() error {
	ferr := b.Flush()
	cerr := b.under.Close()
	return errors.CombineErrors(ferr, cerr)
}
