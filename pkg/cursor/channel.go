package cursor

import (
	"sync"
)

type message[T any] struct {
	v   T
	end bool
	err error
}

// Channel connects a producer goroutine to a consuming cursor through a
// bounded queue. The producer ends the stream with Done; the consumer sees
// the producer's error through Err.
type Channel[T any] struct {
	*Base[T]
	src *channelSource[T]
}

type channelSource[T any] struct {
	ch       chan message[T]
	finished bool
	doneOnce sync.Once
}

// NewChannel returns a channel cursor whose queue holds capacity elements.
func NewChannel[T any](capacity int) *Channel[T] {
	src := &channelSource[T]{ch: make(chan message[T], capacity)}
	return &Channel[T]{Base: New[T](src), src: src}
}

// Go starts fn in a goroutine feeding the channel and returns the channel.
// The stream ends when fn returns; its error becomes the cursor's error.
func Go[T any](capacity int, fn func(put func(T)) error) *Channel[T] {
	c := NewChannel[T](capacity)
	go func() {
		c.Done(fn(c.Put))
	}()
	return c
}

// Put enqueues v, blocking while the queue is full.
func (c *Channel[T]) Put(v T) {
	c.src.ch <- message[T]{v: v}
}

// Done enqueues the end-of-stream marker. Later calls are ignored.
func (c *Channel[T]) Done(err error) {
	c.src.doneOnce.Do(func() {
		c.src.ch <- message[T]{end: true, err: err}
	})
}

// Drain discards queued elements until the producer's end marker arrives
// and returns how many elements were discarded. It unblocks a producer
// waiting on a full queue.
func (c *Channel[T]) Drain() int {
	return c.src.drain()
}

// Close drains the queue before closing so the producer can finish.
func (c *Channel[T]) Close() error {
	c.src.drain()
	return c.Base.Close()
}

func (s *channelSource[T]) Fetch() (T, bool, error) {
	var zero T
	if s.finished {
		return zero, false, nil
	}
	m := <-s.ch
	if m.end {
		s.finished = true
		return zero, false, m.err
	}
	return m.v, true, nil
}

func (s *channelSource[T]) drain() int {
	n := 0
	for !s.finished {
		m := <-s.ch
		if m.end {
			s.finished = true
			break
		}
		n++
	}
	return n
}
