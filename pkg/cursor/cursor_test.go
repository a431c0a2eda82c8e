package cursor

import (
	"cmp"
	"runtime"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/common"
)

func mustCollect[T any](t *testing.T, c Cursor[T]) []T {
	t.Helper()
	out, err := Collect(c)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	return out
}

func TestBaseLifecycle(t *testing.T) {
	c := Of(1, 2, 3)
	if err := c.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	v, err := c.Peek()
	if err != nil || v != 1 {
		t.Fatalf("expected peek 1, got %d (%v)", v, err)
	}
	v, _ = c.Next()
	if v != 1 {
		t.Fatalf("expected next 1 after peek, got %d", v)
	}
	c.Next()
	c.Next()
	if c.HasNext() {
		t.Fatal("expected exhaustion")
	}
	if _, err := c.Next(); !errors.Is(err, common.ErrNoSuchElement) {
		t.Fatalf("expected ErrNoSuchElement, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if c.HasNext() {
		t.Fatal("closed cursor must not have elements")
	}
}

func TestRemoveRules(t *testing.T) {
	c := Of(1, 2, 3, 4)
	c.Open()

	if err := c.Remove(); !errors.Is(err, common.ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState before next, got %v", err)
	}
	c.Next()
	if err := c.Remove(); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := c.Remove(); !errors.Is(err, common.ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState on second remove, got %v", err)
	}

	// HasNext computes a new element, so the last one can no longer be removed.
	c.Next()
	c.HasNext()
	if err := c.Remove(); !errors.Is(err, common.ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState after hasNext, got %v", err)
	}

	// Peek then remove drops the peeked element.
	c.Peek()
	if err := c.Remove(); err != nil {
		t.Fatalf("remove after peek failed: %v", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	got := mustCollect[int](t, c)
	if !slices.Equal(got, []int{2, 4}) {
		t.Fatalf("expected removals to persist across reset, got %v", got)
	}
}

func TestUpdate(t *testing.T) {
	c := Of("a", "b")
	c.Next()
	if err := c.Update("A"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	c.Reset()
	got := mustCollect[string](t, c)
	if !slices.Equal(got, []string{"A", "b"}) {
		t.Fatalf("expected [A b], got %v", got)
	}
}

func TestUnsupported(t *testing.T) {
	src := 0
	c := FromFunc(func() (int, bool, error) {
		src++
		return src, src <= 2, nil
	})
	if c.SupportsRemove() || c.SupportsReset() || c.SupportsUpdate() {
		t.Fatal("function cursor should not support optional operations")
	}
	c.Next()
	if err := c.Remove(); !errors.Is(err, common.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if err := c.Reset(); !errors.Is(err, common.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestSourceError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	c := FromFunc(func() (int, bool, error) {
		n++
		if n == 3 {
			return 0, false, boom
		}
		return n, true, nil
	})
	got, err := Collect[int](c)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 elements before failure, got %v", got)
	}
}

func TestMapFilterTake(t *testing.T) {
	sq := Map[int64, int64](Range(0, 10), func(x int64) (int64, error) { return x * x, nil })
	even := Filter[int64](sq, func(x int64) bool { return x%2 == 0 })
	first := Take[int64](even, 3)
	got := mustCollect[int64](t, first)
	if !slices.Equal(got, []int64{0, 4, 16}) {
		t.Fatalf("expected [0 4 16], got %v", got)
	}
}

func TestMapPassesRemoveThrough(t *testing.T) {
	base := Of(1, 2, 3)
	m := Map[int, int](base, func(x int) (int, error) { return x * 10, nil })
	if !m.SupportsRemove() || !m.SupportsReset() {
		t.Fatal("map over a slice cursor should support remove and reset")
	}
	m.Next()
	if err := m.Remove(); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	m.Reset()
	got := mustCollect[int](t, m)
	if !slices.Equal(got, []int{20, 30}) {
		t.Fatalf("expected [20 30], got %v", got)
	}

	opaque := Map[int, int](FromFunc(func() (int, bool, error) { return 0, false, nil }), func(x int) (int, error) { return x, nil })
	if opaque.SupportsRemove() || opaque.SupportsReset() {
		t.Fatal("capabilities must follow the wrapped cursor")
	}
}

func TestMapN(t *testing.T) {
	sum := MapN(func(xs []int64) (int64, error) { return xs[0] + xs[1], nil }, Range(0, 5), Range(10, 13))
	got := mustCollect[int64](t, sum)
	if !slices.Equal(got, []int64{10, 12, 14}) {
		t.Fatalf("expected [10 12 14], got %v", got)
	}
}

func TestConcat(t *testing.T) {
	c := Concat[int](Of(1, 2), Empty[int](), Of(3))
	got := mustCollect[int](t, c)
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("expected [1 2 3], got %v", got)
	}
}

func TestAggregator(t *testing.T) {
	agg := Aggregate[int64, int64](Range(1, 5), SumFunc[int64]())
	v, _ := agg.Next()
	if v != 1 {
		t.Fatalf("expected first aggregate 1, got %d", v)
	}
	last, err := agg.Last()
	if err != nil || last != 10 {
		t.Fatalf("expected 10, got %d (%v)", last, err)
	}
	again, _ := agg.Last()
	if again != last {
		t.Fatalf("expected Last to be idempotent, got %d then %d", last, again)
	}

	running := mustCollect[int64](t, Aggregate[int64, int64](Range(1, 5), Max[int64]()))
	if !slices.Equal(running, []int64{1, 2, 3, 4}) {
		t.Fatalf("expected running max [1 2 3 4], got %v", running)
	}

	empty := Aggregate[int64, int64](Empty[int64](), CountFunc[int64]())
	if _, err := empty.Last(); !errors.Is(err, common.ErrNoSuchElement) {
		t.Fatalf("expected ErrNoSuchElement, got %v", err)
	}

	mean, _ := Aggregate[int, Mean](Of(2, 4, 9), AverageFunc[int]()).Last()
	if mean.Value() != 5 {
		t.Fatalf("expected mean 5, got %v", mean.Value())
	}
}

func TestAggregatorLastMatchesFullConsumption(t *testing.T) {
	running := mustCollect[int64](t, Aggregate[int64, int64](Range(1, 5), SumFunc[int64]()))
	if len(running) == 0 {
		t.Fatal("expected running sums")
	}
	last, err := Aggregate[int64, int64](Range(1, 5), SumFunc[int64]()).Last()
	if err != nil {
		t.Fatalf("Last failed: %v", err)
	}
	if got := running[len(running)-1]; got != last {
		t.Fatalf("expected final running sum %d to equal Last %d", got, last)
	}
	if last != 10 {
		t.Fatalf("expected 10, got %d", last)
	}
}

func TestIntersectionDuplicates(t *testing.T) {
	for name, area := range map[string]SweepArea[int]{
		"list":    NewListSweepArea(cmp.Compare[int], nil),
		"ordered": NewOrderedSweepArea(cmp.Compare[int], nil),
	} {
		t.Run(name, func(t *testing.T) {
			c := SortBasedIntersection[int](Of(1, 2, 2), Of(2, 2, 2), cmp.Compare[int], area)
			got := mustCollect[int](t, c)
			if !slices.Equal(got, []int{2, 2}) {
				t.Fatalf("expected [2 2], got %v", got)
			}
		})
	}
}

func TestIntersection(t *testing.T) {
	tests := []struct {
		a, b, want []int
	}{
		{[]int{1, 3, 5, 7}, []int{2, 3, 4, 7, 9}, []int{3, 7}},
		{[]int{}, []int{1, 2}, nil},
		{[]int{1, 2}, []int{}, nil},
		{[]int{5, 5}, []int{5}, []int{5}},
		{[]int{1, 1, 1}, []int{1, 1, 1}, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		c := SortBasedIntersection[int](FromSlice(tt.a), FromSlice(tt.b), cmp.Compare[int], nil)
		got := mustCollect[int](t, c)
		if !slices.Equal(got, tt.want) {
			t.Fatalf("%v ∩ %v: expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestIntersectionUnsorted(t *testing.T) {
	c := SortBasedIntersection[int](Of(1, 3, 2), Of(1, 2, 3), cmp.Compare[int], nil)
	_, err := Collect[int](c)
	if !errors.Is(err, common.ErrUnsorted) {
		t.Fatalf("expected ErrUnsorted, got %v", err)
	}
}

func TestIntersectionUnsortedTailOfFirstInput(t *testing.T) {
	c := SortBasedIntersection[int](Of(1, 2, 5, 3), Of(1, 2), cmp.Compare[int], nil)
	got, err := Collect[int](c)
	if !errors.Is(err, common.ErrUnsorted) {
		t.Fatalf("expected ErrUnsorted, got %v", err)
	}
	if !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("expected [1 2] before the failure, got %v", got)
	}
}

func TestMerge(t *testing.T) {
	c := Merge(cmp.Compare[int], Of(1, 4, 7), Of(2, 4), Empty[int](), Of(0, 9))
	got := mustCollect[int](t, c)
	if !slices.Equal(got, []int{0, 1, 2, 4, 4, 7, 9}) {
		t.Fatalf("unexpected merge result %v", got)
	}
}

func TestChannel(t *testing.T) {
	ch := Go(2, func(put func(int)) error {
		for i := 0; i < 5; i++ {
			put(i)
		}
		return nil
	})
	got := mustCollect[int](t, ch)
	if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected [0..4], got %v", got)
	}
}

func TestChannelProducerError(t *testing.T) {
	boom := errors.New("producer failed")
	ch := Go(1, func(put func(int)) error {
		put(1)
		return boom
	})
	_, err := Collect[int](ch)
	if !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestChannelCloseDrains(t *testing.T) {
	finished := make(chan struct{})
	ch := Go(1, func(put func(int)) error {
		defer close(finished)
		for i := 0; i < 100; i++ {
			put(i)
		}
		return nil
	})
	ch.Next()
	if err := ch.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	<-finished
}

// waitFull spins until the producer has filled the queue of ch.
func waitFull[T any](ch *Channel[T]) {
	for len(ch.src.ch) < cap(ch.src.ch) {
		runtime.Gosched()
	}
}

func TestChannelDrain(t *testing.T) {
	finished := make(chan struct{})
	ch := Go(2, func(put func(int)) error {
		defer close(finished)
		for i := 0; i < 10; i++ {
			put(i)
		}
		return nil
	})
	waitFull(ch)

	if n := ch.Drain(); n != 10 {
		t.Fatalf("expected 10 discarded elements, got %d", n)
	}
	<-finished
	if ch.HasNext() {
		t.Fatal("expected no elements after drain")
	}
	if err := ch.Err(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := ch.Drain(); n != 0 {
		t.Fatalf("expected second drain to discard nothing, got %d", n)
	}
}

func TestChannelDrainAfterConsuming(t *testing.T) {
	ch := Go(1, func(put func(int)) error {
		for i := 0; i < 5; i++ {
			put(i)
		}
		return nil
	})
	if v, err := ch.Next(); err != nil || v != 0 {
		t.Fatalf("expected 0, got %d (%v)", v, err)
	}
	waitFull(ch)
	if n := ch.Drain(); n != 4 {
		t.Fatalf("expected 4 discarded elements, got %d", n)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
