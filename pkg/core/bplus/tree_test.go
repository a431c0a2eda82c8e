package bplus

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"vbtree/pkg/codec"
	"vbtree/pkg/common"
	"vbtree/pkg/cursor"
	"vbtree/pkg/keys"
	"vbtree/pkg/monitor"
	"vbtree/pkg/storage/container"
)

// record returns a record whose encoded size is size bytes.
func record(key int64, size int) common.Record {
	payload := size - 8 - 1
	return common.Record{Key: common.KeyType(key), Value: bytes.Repeat([]byte{'a'}, payload)}
}

func recordOptions(minCap, maxCap int) Options[int64, common.Record] {
	return Options[int64, common.Record]{
		Domain:      keys.Int64Domain(),
		KeyOf:       common.RecordKey,
		Converter:   codec.Record{},
		Equal:       func(a, b common.Record) bool { return a.Key == b.Key && bytes.Equal(a.Value, b.Value) },
		MinCapacity: minCap,
		MaxCapacity: maxCap,
		DebugChecks: true,
	}
}

func newTestTree(t *testing.T, minCap, maxCap int) *Tree[int64, common.Record] {
	t.Helper()
	tree, err := New(recordOptions(minCap, maxCap))
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	if err := tree.Initialize(container.NewMemory[*Node[int64, common.Record]](8)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return tree
}

func mustCheck(t *testing.T, tree *Tree[int64, common.Record]) {
	t.Helper()
	if err := tree.Check(); err != nil {
		t.Fatalf("check failed: %v", err)
	}
}

func keysOf(t *testing.T, c cursor.Cursor[common.Record]) []int64 {
	t.Helper()
	recs, err := cursor.Collect(c)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = int64(r.Key)
	}
	return out
}

func TestNotInitialized(t *testing.T) {
	tree, err := New(recordOptions(80, 200))
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	if err := tree.Insert(record(1, 40)); !errors.Is(err, common.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := tree.Remove(record(1, 40)); !errors.Is(err, common.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := cursor.Collect[common.Record](tree.Query(keys.Int64Domain().All())); !errors.Is(err, common.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from query, got %v", err)
	}
}

func TestInvalidCapacity(t *testing.T) {
	for _, tt := range []struct{ min, max int }{{0, 100}, {80, 100}, {-1, 10}} {
		if _, err := New(recordOptions(tt.min, tt.max)); !errors.Is(err, common.ErrInvalidCapacity) {
			t.Fatalf("min=%d max=%d: expected ErrInvalidCapacity, got %v", tt.min, tt.max, err)
		}
	}
}

// Entries of 40 bytes in nodes of [80, 200] bytes hold 2 to 5 entries.
func TestSplitAndMergeScenario(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	for k := int64(1); k <= 11; k++ {
		if err := tree.Insert(record(k, 40)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		mustCheck(t, tree)
	}
	if tree.Stats().Splits < 1 {
		t.Fatal("expected at least one split")
	}
	if tree.Height() < 2 {
		t.Fatalf("expected height >= 2, got %d", tree.Height())
	}

	for k := int64(1); k <= 9; k++ {
		if err := tree.Remove(record(k, 40)); err != nil {
			t.Fatalf("remove %d: %v", k, err)
		}
		mustCheck(t, tree)
	}
	st := tree.Stats()
	if st.Merges+st.Redistributions < 1 {
		t.Fatalf("expected a merge or redistribution, got %+v", st)
	}

	got := keysOf(t, tree.Query(keys.Int64Domain().All()))
	if !slices.Equal(got, []int64{10, 11}) {
		t.Fatalf("expected [10 11], got %v", got)
	}
	if tree.Len() != 2 {
		t.Fatalf("expected 2 values, got %d", tree.Len())
	}
}

func TestRemoveNotFound(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	for k := int64(0); k < 20; k++ {
		tree.Insert(record(k*2, 40))
	}
	before := tree.Stats()
	if err := tree.Remove(record(7, 40)); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Same key, different payload.
	if err := tree.Remove(record(8, 30)); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a different value, got %v", err)
	}
	if tree.Len() != 20 || tree.Stats() != before {
		t.Fatal("failed remove must not change the tree")
	}
	mustCheck(t, tree)
}

func TestDuplicates(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	for i := 0; i < 30; i++ {
		if err := tree.Insert(record(5, 40)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	tree.Insert(record(4, 40))
	tree.Insert(record(6, 40))
	mustCheck(t, tree)

	n, _ := cursor.Count[common.Record](tree.Query(keys.Int64Domain().Point(5)))
	if n != 30 {
		t.Fatalf("expected 30 duplicates, got %d", n)
	}
	n, _ = cursor.Count[common.Record](tree.RangeScan(keys.Int64Domain().Point(5)))
	if n != 30 {
		t.Fatalf("expected 30 duplicates from range scan, got %d", n)
	}

	for i := 0; i < 30; i++ {
		if err := tree.Remove(record(5, 40)); err != nil {
			t.Fatalf("remove duplicate %d: %v", i, err)
		}
		mustCheck(t, tree)
	}
	got := keysOf(t, tree.Query(keys.Int64Domain().All()))
	if !slices.Equal(got, []int64{4, 6}) {
		t.Fatalf("expected [4 6], got %v", got)
	}
}

func TestUnique(t *testing.T) {
	opts := recordOptions(80, 200)
	opts.Unique = true
	tree, _ := New(opts)
	tree.Initialize(container.NewMemory[*Node[int64, common.Record]](8))
	if err := tree.Insert(record(1, 40)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Insert(record(1, 20)); !errors.Is(err, common.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEntryTooLarge(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	if err := tree.Insert(record(1, 150)); !errors.Is(err, common.ErrEntryTooLarge) {
		t.Fatalf("expected ErrEntryTooLarge, got %v", err)
	}
}

// TestRandomWorkload runs variable-sized inserts and removes against a
// sorted reference slice.
func TestRandomWorkload(t *testing.T) {
	tree := newTestTree(t, 64, 256)
	rng := rand.New(rand.NewSource(42))
	var ref []common.Record

	cmpRec := func(a, b common.Record) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	}

	for i := 0; i < 3000; i++ {
		if len(ref) > 0 && rng.Intn(3) == 0 {
			victim := ref[rng.Intn(len(ref))]
			if err := tree.Remove(victim); err != nil {
				t.Fatalf("op %d: remove %d: %v", i, victim.Key, err)
			}
			at := slices.IndexFunc(ref, func(r common.Record) bool {
				return r.Key == victim.Key && bytes.Equal(r.Value, victim.Value)
			})
			ref = slices.Delete(ref, at, at+1)
		} else {
			r := record(rng.Int63n(500), 10+rng.Intn(100))
			if err := tree.Insert(r); err != nil {
				t.Fatalf("op %d: insert %d: %v", i, r.Key, err)
			}
			ref = append(ref, r)
		}
		if i%100 == 0 {
			mustCheck(t, tree)
		}
	}
	mustCheck(t, tree)

	slices.SortStableFunc(ref, cmpRec)
	want := make([]int64, len(ref))
	for i, r := range ref {
		want[i] = int64(r.Key)
	}
	if got := keysOf(t, tree.Query(keys.Int64Domain().All())); !slices.Equal(got, want) {
		t.Fatalf("query keys differ from reference (%d vs %d)", len(got), len(want))
	}
	if got := keysOf(t, tree.RangeScan(keys.Int64Domain().All())); !slices.Equal(got, want) {
		t.Fatal("range scan keys differ from reference")
	}

	// Drain everything; the root must shrink back to a leaf.
	for _, r := range ref {
		if err := tree.Remove(r); err != nil {
			t.Fatalf("drain %d: %v", r.Key, err)
		}
	}
	mustCheck(t, tree)
	if tree.Height() != 1 || tree.Len() != 0 {
		t.Fatalf("expected empty single-leaf tree, got height %d len %d", tree.Height(), tree.Len())
	}
}

func TestQueryRanges(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	d := keys.Int64Domain()
	for k := int64(0); k < 200; k++ {
		tree.Insert(record(k, 40))
	}

	r, _ := d.Range(50, 60)
	var qc monitor.QueryCounters
	got := keysOf(t, tree.QueryCounted(r, &qc))
	want := make([]int64, 0, 10)
	for k := int64(50); k < 60; k++ {
		want = append(want, k)
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if qc.EntriesReturned != 10 {
		t.Fatalf("expected 10 entries counted, got %d", qc.EntriesReturned)
	}
	if qc.LeavesTouched > 6 {
		t.Fatalf("range of 10 keys touched %d leaves", qc.LeavesTouched)
	}

	closed, _ := d.Closed(50, 60)
	if n, _ := cursor.Count[common.Record](tree.Query(closed)); n != 11 {
		t.Fatalf("expected 11 keys in closed range, got %d", n)
	}
	if n, _ := cursor.Count[common.Record](tree.RangeScan(d.From(190))); n != 10 {
		t.Fatalf("expected 10 keys from 190, got %d", n)
	}
	empty, _ := d.Range(500, 600)
	if n, _ := cursor.Count[common.Record](tree.Query(empty)); n != 0 {
		t.Fatalf("expected no keys, got %d", n)
	}

	v, ok, err := tree.Get(123)
	if err != nil || !ok || v.Key != 123 {
		t.Fatalf("expected key 123, got %v %v %v", v.Key, ok, err)
	}
	if _, ok, _ := tree.Get(1000); ok {
		t.Fatal("expected miss for key 1000")
	}
}

func TestQueryReset(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	for k := int64(0); k < 50; k++ {
		tree.Insert(record(k, 40))
	}
	r, _ := keys.Int64Domain().Range(10, 40)
	c := tree.Query(r)
	var first []int64
	for c.HasNext() {
		v, _ := c.Next()
		first = append(first, int64(v.Key))
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	second := keysOf(t, c)
	if !slices.Equal(first, second) || len(first) != 30 {
		t.Fatalf("reset changed the result: %v vs %v", first, second)
	}
}

func TestQueryLevelAndLeaves(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	for k := int64(0); k < 100; k++ {
		tree.Insert(record(k, 40))
	}
	leaves, err := cursor.Collect[*Node[int64, common.Record]](tree.Leaves())
	if err != nil {
		t.Fatalf("leaves: %v", err)
	}
	total := 0
	for _, l := range leaves {
		total += l.Number()
	}
	if total != 100 {
		t.Fatalf("expected 100 values over the leaf chain, got %d", total)
	}

	entries, err := cursor.Collect[IndexEntry[int64]](tree.QueryLevel(keys.Int64Domain().All(), 1))
	if err != nil {
		t.Fatalf("query level: %v", err)
	}
	if len(entries) != len(leaves) {
		t.Fatalf("expected %d level-1 entries, got %d", len(leaves), len(entries))
	}
	if !entries[len(entries)-1].Separator.IsIndefinite() {
		t.Fatal("expected the last level-1 entry to carry the indefinite separator")
	}
	if _, err := cursor.Collect[IndexEntry[int64]](tree.QueryLevel(keys.Int64Domain().All(), 0)); err == nil {
		t.Fatal("expected an error for level 0")
	}
}

func TestQueryBox(t *testing.T) {
	tree := newTestTree(t, 80, 200)
	var inside int
	box := keys.Box{MinX: 2, MinY: 2, MinZ: 2, MaxX: 4, MaxY: 5, MaxZ: 3}
	for x := uint32(0); x < 8; x++ {
		for y := uint32(0); y < 8; y++ {
			for z := uint32(0); z < 4; z++ {
				code, _ := keys.Encode3D(x, y, z)
				tree.Insert(record(code, 24))
				if box.Contains(code) {
					inside++
				}
			}
		}
	}
	c, err := QueryBox(tree, box)
	if err != nil {
		t.Fatalf("query box: %v", err)
	}
	recs, err := cursor.Collect[common.Record](c)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(recs) != inside {
		t.Fatalf("expected %d records in box, got %d", inside, len(recs))
	}
	for _, r := range recs {
		if !box.Contains(int64(r.Key)) {
			t.Fatalf("record %d outside box", r.Key)
		}
	}
}

func TestSQLitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	opts := recordOptions(80, 200)

	open := func() (*Tree[int64, common.Record], *container.SQLite[*Node[int64, common.Record]]) {
		store, err := container.OpenSQLite[*Node[int64, common.Record]](path, "records", NewNodeCodec(opts))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		tree, err := New(opts)
		if err != nil {
			t.Fatalf("new tree: %v", err)
		}
		if err := tree.Open(container.NewBuffer[*Node[int64, common.Record]](store, 4, nil)); err != nil {
			t.Fatalf("open tree: %v", err)
		}
		return tree, store
	}

	tree, _ := open()
	for k := int64(0); k < 300; k++ {
		if err := tree.Insert(record(k, 40)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	for k := int64(0); k < 300; k += 3 {
		if err := tree.Remove(record(k, 40)); err != nil {
			t.Fatalf("remove %d: %v", k, err)
		}
	}
	mustCheck(t, tree)
	if err := tree.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := tree.Container().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, _ := open()
	defer reopened.Container().Close()
	if reopened.Len() != 200 {
		t.Fatalf("expected 200 values after reopen, got %d", reopened.Len())
	}
	mustCheck(t, reopened)
	got := keysOf(t, reopened.Query(keys.Int64Domain().All()))
	if len(got) != 200 || got[0] != 1 || got[len(got)-1] != 299 {
		t.Fatalf("unexpected keys after reopen: len %d", len(got))
	}
}
