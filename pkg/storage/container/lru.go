package container

import "container/list"

// Policy chooses which buffered object to evict.
type Policy interface {
	// Access records a use of id, adding it if unknown.
	Access(id ID)
	Remove(id ID)
	// Victim returns the next eviction candidate.
	Victim() (ID, bool)
	Len() int
}

// LRU evicts the least recently used object.
type LRU struct {
	list    *list.List
	entries map[ID]*list.Element
}

func NewLRU() *LRU {
	return &LRU{
		list:    list.New(),
		entries: make(map[ID]*list.Element),
	}
}

func (c *LRU) Access(id ID) {
	if elem, exists := c.entries[id]; exists {
		c.list.MoveToFront(elem)
		return
	}
	c.entries[id] = c.list.PushFront(id)
}

func (c *LRU) Remove(id ID) {
	if elem, exists := c.entries[id]; exists {
		c.list.Remove(elem)
		delete(c.entries, id)
	}
}

func (c *LRU) Victim() (ID, bool) {
	elem := c.list.Back()
	if elem == nil {
		return NilID, false
	}
	return elem.Value.(ID), true
}

func (c *LRU) Len() int {
	return c.list.Len()
}

// FIFO evicts objects in the order they entered the buffer.
type FIFO struct {
	LRU
}

func NewFIFO() *FIFO {
	return &FIFO{LRU: *NewLRU()}
}

// Access only adds unknown ids; reuse does not refresh the position.
func (c *FIFO) Access(id ID) {
	if _, exists := c.entries[id]; exists {
		return
	}
	c.LRU.Access(id)
}
