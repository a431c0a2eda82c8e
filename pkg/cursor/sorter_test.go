package cursor

import (
	"cmp"
	"math/rand"
	"os"
	"slices"
	"testing"

	"vbtree/pkg/codec"
)

func TestMergeSorterInMemory(t *testing.T) {
	in := Of[int64](5, 3, 9, 1)
	s := MergeSorter[int64](in, cmp.Compare[int64], codec.Int64{}, SortOptions{TempDir: t.TempDir()})
	got := mustCollect[int64](t, s)
	if !slices.Equal(got, []int64{1, 3, 5, 9}) {
		t.Fatalf("expected [1 3 5 9], got %v", got)
	}
}

func TestMergeSorterSpills(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))
	input := make([]int64, 5000)
	for i := range input {
		input[i] = rng.Int63n(1000)
	}

	// 64 bytes hold 8 values, so this spills hundreds of runs and needs
	// several merge passes with a fan-in of 4.
	s := MergeSorter[int64](FromSlice(input), cmp.Compare[int64], codec.Int64{}, SortOptions{
		MemoryBudget: 64,
		FanIn:        4,
		TempDir:      dir,
	})
	got := mustCollect[int64](t, s)

	want := slices.Clone(input)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("sorted output differs from expected (len %d vs %d)", len(got), len(want))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected run files to be removed on close, found %d", len(entries))
	}
}

func TestMergeSorterStable(t *testing.T) {
	type pair struct{ k, seq int64 }
	var input []pair
	for i := int64(0); i < 200; i++ {
		input = append(input, pair{k: i % 3, seq: i})
	}
	keyed := Map[pair, int64](FromSlice(input), func(p pair) (int64, error) { return p.k*1000 + p.seq, nil })
	byKey := func(a, b int64) int { return cmp.Compare(a/1000, b/1000) }
	s := MergeSorter[int64](keyed, byKey, codec.Int64{}, SortOptions{MemoryBudget: 80, FanIn: 3, TempDir: t.TempDir()})
	got := mustCollect[int64](t, s)
	for i := 1; i < len(got); i++ {
		if got[i-1]/1000 == got[i]/1000 && got[i-1]%1000 > got[i]%1000 {
			t.Fatalf("equal keys reordered at %d: %d before %d", i, got[i-1], got[i])
		}
	}
}
