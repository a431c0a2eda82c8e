package container

import "vbtree/pkg/monitor"

// Counting forwards to another container and counts every operation.
type Counting[T any] struct {
	Container[T]
	stats *monitor.ContainerStats
}

func NewCounting[T any](c Container[T]) *Counting[T] {
	return &Counting[T]{Container: c, stats: monitor.NewContainerStats()}
}

func (c *Counting[T]) Stats() *monitor.ContainerStats { return c.stats }

func (c *Counting[T]) Reserve(init T) (ID, error) {
	c.stats.RecordReserve()
	return c.Container.Reserve(init)
}

func (c *Counting[T]) Get(id ID) (T, error) {
	c.stats.RecordGet()
	return c.Container.Get(id)
}

func (c *Counting[T]) Update(id ID, v T) error {
	c.stats.RecordUpdate()
	return c.Container.Update(id, v)
}

func (c *Counting[T]) Remove(id ID) error {
	c.stats.RecordRemove()
	return c.Container.Remove(id)
}

func (c *Counting[T]) GetMeta(name string) ([]byte, bool, error) {
	if ms, ok := c.Container.(MetaStore); ok {
		return ms.GetMeta(name)
	}
	return nil, false, nil
}

func (c *Counting[T]) PutMeta(name string, data []byte) error {
	if ms, ok := c.Container.(MetaStore); ok {
		return ms.PutMeta(name, data)
	}
	return nil
}
