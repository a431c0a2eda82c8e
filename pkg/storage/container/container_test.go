package container

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

type stringCodec struct{}

func (stringCodec) Marshal(v string) ([]byte, error)      { return []byte(v), nil }
func (stringCodec) Unmarshal(data []byte) (string, error) { return string(data), nil }

// exerciseContainer runs the Reserve/Get/Update/Remove contract against c.
func exerciseContainer(t *testing.T, c Container[string]) {
	t.Helper()

	a, err := c.Reserve("a")
	if err != nil {
		t.Fatalf("reserve a: %v", err)
	}
	b, err := c.Reserve("b")
	if err != nil {
		t.Fatalf("reserve b: %v", err)
	}
	if a == b || a == NilID || b == NilID {
		t.Fatalf("expected distinct non-nil ids, got %d and %d", a, b)
	}

	if v, err := c.Get(a); err != nil || v != "a" {
		t.Fatalf("get a: got %q, %v", v, err)
	}
	if err := c.Update(a, "a2"); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if v, err := c.Get(a); err != nil || v != "a2" {
		t.Fatalf("get a after update: got %q, %v", v, err)
	}

	if err := c.Remove(b); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	if _, err := c.Get(b); !errors.Is(err, ErrNoSuchID) {
		t.Fatalf("expected ErrNoSuchID for removed id, got %v", err)
	}
	if err := c.Remove(b); !errors.Is(err, ErrNoSuchID) {
		t.Fatalf("expected ErrNoSuchID for double remove, got %v", err)
	}
}

func TestMemoryContainer(t *testing.T) {
	m := NewMemory[string](8)
	exerciseContainer(t, m)
	if m.Len() != 1 {
		t.Fatalf("expected 1 live object, got %d", m.Len())
	}

	var ids []ID
	m.Iterator(func(id ID, v string) bool {
		ids = append(ids, id)
		return true
	})
	if len(ids) != 1 {
		t.Fatalf("expected iterator to visit 1 object, got %d", len(ids))
	}

	if err := m.PutMeta("root", []byte{1, 2}); err != nil {
		t.Fatalf("put meta: %v", err)
	}
	if data, ok, _ := m.GetMeta("root"); !ok || len(data) != 2 {
		t.Fatalf("get meta: ok=%v data=%v", ok, data)
	}
	m.Close()
	if _, err := m.Reserve("x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSQLiteContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := OpenSQLite[string](path, "test", stringCodec{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	exerciseContainer(t, s)

	if err := s.PutMeta("root", []byte("r")); err != nil {
		t.Fatalf("put meta: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: ids keep increasing and pages survive.
	s2, err := OpenSQLite[string](path, "test", stringCodec{})
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer s2.Close()

	n, err := s2.Len()
	if err != nil || n != 1 {
		t.Fatalf("expected 1 page after reopen, got %d (%v)", n, err)
	}
	if data, ok, err := s2.GetMeta("root"); err != nil || !ok || string(data) != "r" {
		t.Fatalf("meta after reopen: ok=%v data=%q err=%v", ok, data, err)
	}
	id, err := s2.Reserve("c")
	if err != nil {
		t.Fatalf("reserve after reopen: %v", err)
	}
	if id <= 2 {
		t.Fatalf("expected fresh id after reopen, got %d", id)
	}

	other, err := OpenSQLite[string](path, "", stringCodec{})
	if err != nil {
		t.Fatalf("open second namespace: %v", err)
	}
	defer other.Close()
	if other.Namespace() == "" || other.Namespace() == "test" {
		t.Fatalf("expected generated namespace, got %q", other.Namespace())
	}
	if n, _ := other.Len(); n != 0 {
		t.Fatalf("expected empty namespace, got %d pages", n)
	}
}

func TestSQLiteIDsSurviveRemovalOfNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := OpenSQLite[string](path, "ids", stringCodec{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	var newest ID
	for _, v := range []string{"a", "b", "c"} {
		if newest, err = s.Reserve(v); err != nil {
			t.Fatalf("reserve %s: %v", v, err)
		}
	}
	if err := s.Remove(newest); err != nil {
		t.Fatalf("remove %d: %v", newest, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite[string](path, "ids", stringCodec{})
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer s.Close()
	id, err := s.Reserve("d")
	if err != nil {
		t.Fatalf("reserve after reopen: %v", err)
	}
	if id <= newest {
		t.Fatalf("expected id above %d after reopen, got %d", newest, id)
	}
}

func TestSQLiteTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := OpenSQLite[string](path, "trunc", stringCodec{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	first, _ := s.Reserve("a")
	s.Reserve("b")
	if err := s.PutMeta("root", []byte("r")); err != nil {
		t.Fatalf("put meta: %v", err)
	}
	if err := s.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if n, err := s.Len(); err != nil || n != 0 {
		t.Fatalf("expected no pages after truncate, got %d (%v)", n, err)
	}
	if _, ok, err := s.GetMeta("root"); err != nil || ok {
		t.Fatalf("expected meta to be gone, ok=%v err=%v", ok, err)
	}
	if _, err := s.Get(first); !errors.Is(err, ErrNoSuchID) {
		t.Fatalf("expected ErrNoSuchID, got %v", err)
	}
	id, err := s.Reserve("c")
	if err != nil || id <= first+1 {
		t.Fatalf("expected ids to keep increasing, got %d (%v)", id, err)
	}

	s.Close()
	if err := s.Truncate(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSQLiteBatchUpdate(t *testing.T) {
	s, err := OpenSQLite[string](":memory:", "batch", stringCodec{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	a, _ := s.Reserve("a")
	b, _ := s.Reserve("b")
	if err := s.BatchUpdate(map[ID]string{a: "A", b: "B"}); err != nil {
		t.Fatalf("batch update: %v", err)
	}
	if v, _ := s.Get(b); v != "B" {
		t.Fatalf("expected B, got %q", v)
	}
}

func TestBufferWriteBack(t *testing.T) {
	under := NewCounting[string](NewMemory[string](8))
	buf := NewBuffer[string](under, 2, nil)

	a, _ := buf.Reserve("a")
	b, _ := buf.Reserve("b")
	if err := buf.Update(a, "a2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := under.Stats().UpdateCount; got != 0 {
		t.Fatalf("expected update to stay buffered, got %d underlying updates", got)
	}

	// b is now least recently used; reserving c evicts it (clean).
	c, _ := buf.Reserve("c")
	if got := buf.Stats().EvictCount; got != 1 {
		t.Fatalf("expected 1 eviction, got %d", got)
	}
	// Reading b again evicts a, which is dirty and must be written back.
	if v, err := buf.Get(b); err != nil || v != "b" {
		t.Fatalf("get b: %q %v", v, err)
	}
	if v, _ := under.Get(a); v != "a2" {
		t.Fatalf("expected dirty a written back on eviction, got %q", v)
	}

	if err := buf.Update(c, "c2"); err != nil {
		t.Fatalf("update c: %v", err)
	}
	if err := buf.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if v, _ := under.Get(c); v != "c2" {
		t.Fatalf("expected flush to write c2, got %q", v)
	}
	if _, err := buf.Get(b); err != nil {
		t.Fatalf("get b again: %v", err)
	}
	if buf.Stats().HitCount == 0 {
		t.Fatalf("expected at least one buffer hit")
	}
}

func TestFIFOIgnoresReuse(t *testing.T) {
	p := NewFIFO()
	p.Access(1)
	p.Access(2)
	p.Access(1)
	if v, _ := p.Victim(); v != 1 {
		t.Fatalf("expected FIFO victim 1, got %d", v)
	}
	l := NewLRU()
	l.Access(1)
	l.Access(2)
	l.Access(1)
	if v, _ := l.Victim(); v != 2 {
		t.Fatalf("expected LRU victim 2, got %d", v)
	}
}
