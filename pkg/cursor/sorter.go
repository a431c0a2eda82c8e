package cursor

import (
	"io"
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"vbtree/pkg/codec"
	"vbtree/pkg/storage/run"
)

const (
	DefaultMemoryBudget = 4 << 20
	DefaultFanIn        = 16
)

// SortOptions configures MergeSorter.
type SortOptions struct {
	// MemoryBudget bounds the encoded size of the elements held in memory.
	MemoryBudget int
	// FanIn is the number of runs merged at once.
	FanIn int
	// TempDir holds the run files; empty means os.TempDir().
	TempDir string
}

func (o *SortOptions) applyDefaults() {
	if o.MemoryBudget <= 0 {
		o.MemoryBudget = DefaultMemoryBudget
	}
	if o.FanIn < 2 {
		o.FanIn = DefaultFanIn
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
}

type sorterSource[T any] struct {
	in      Cursor[T]
	compare func(a, b T) int
	conv    codec.Converter[T]
	opts    SortOptions

	runs []string
	out  Cursor[T]
}

// MergeSorter returns a cursor yielding in sorted by compare. Sorting is
// stable. Input is buffered up to the memory budget, sorted, and spilled to
// run files that are merged at most FanIn at a time. The input is consumed
// when the cursor is opened; closing it deletes the run files.
func MergeSorter[T any](in Cursor[T], compare func(a, b T) int, conv codec.Converter[T], opts SortOptions) *Base[T] {
	opts.applyDefaults()
	return New[T](&sorterSource[T]{in: in, compare: compare, conv: conv, opts: opts})
}

func (s *sorterSource[T]) Open() error {
	if err := s.in.Open(); err != nil {
		return err
	}
	var buf []T
	used := 0
	for s.in.HasNext() {
		v, err := s.in.Next()
		if err != nil {
			return err
		}
		buf = append(buf, v)
		used += s.conv.Size(v)
		if used >= s.opts.MemoryBudget {
			if err := s.spill(buf); err != nil {
				return err
			}
			buf, used = nil, 0
		}
	}
	if err := s.in.Err(); err != nil {
		return err
	}
	slices.SortStableFunc(buf, s.compare)
	if len(s.runs) == 0 {
		s.out = FromSlice(buf)
		return nil
	}

	for len(s.runs) >= s.opts.FanIn {
		if err := s.mergePass(); err != nil {
			return err
		}
	}
	inputs := make([]Cursor[T], 0, len(s.runs)+1)
	for _, path := range s.runs {
		c, err := FromRun(path, s.conv)
		if err != nil {
			closeAll(inputs)
			return err
		}
		inputs = append(inputs, c)
	}
	inputs = append(inputs, FromSlice(buf))
	s.out = Merge(s.compare, inputs...)
	return s.out.Open()
}

func (s *sorterSource[T]) spill(buf []T) error {
	slices.SortStableFunc(buf, s.compare)
	w, err := run.Create(s.opts.TempDir, s.conv)
	if err != nil {
		return errors.Wrap(err, "create run")
	}
	s.runs = append(s.runs, w.Name())
	for _, v := range buf {
		if err := w.Append(v); err != nil {
			w.Close()
			return err
		}
	}
	log.Debugf("[Sort] Spilled run %s (%d entries)", w.Name(), len(buf))
	return w.Close()
}

// mergePass merges consecutive groups of FanIn runs into single runs.
func (s *sorterSource[T]) mergePass() error {
	var next []string
	for start := 0; start < len(s.runs); start += s.opts.FanIn {
		end := min(start+s.opts.FanIn, len(s.runs))
		group := s.runs[start:end]
		if len(group) == 1 {
			next = append(next, group[0])
			continue
		}
		path, err := s.mergeGroup(group)
		if err != nil {
			return err
		}
		next = append(next, path)
		for _, p := range group {
			os.Remove(p)
		}
	}
	log.Debugf("[Sort] Merge pass: %d runs -> %d runs", len(s.runs), len(next))
	s.runs = next
	return nil
}

func (s *sorterSource[T]) mergeGroup(group []string) (string, error) {
	inputs := make([]Cursor[T], 0, len(group))
	for _, path := range group {
		c, err := FromRun(path, s.conv)
		if err != nil {
			closeAll(inputs)
			return "", err
		}
		inputs = append(inputs, c)
	}
	merged := Merge(s.compare, inputs...)
	defer merged.Close()

	w, err := run.Create(s.opts.TempDir, s.conv)
	if err != nil {
		return "", err
	}
	for merged.HasNext() {
		v, err := merged.Next()
		if err != nil {
			w.Close()
			return "", err
		}
		if err := w.Append(v); err != nil {
			w.Close()
			return "", err
		}
	}
	if err := merged.Err(); err != nil {
		w.Close()
		os.Remove(w.Name())
		return "", err
	}
	return w.Name(), w.Close()
}

func (s *sorterSource[T]) Fetch() (T, bool, error) {
	if s.out == nil {
		var zero T
		return zero, false, nil
	}
	return pull(s.out)
}

func (s *sorterSource[T]) Close() error {
	var err error
	if s.out != nil {
		err = s.out.Close()
	}
	for _, p := range s.runs {
		if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) {
			err = errors.CombineErrors(err, rerr)
		}
	}
	s.runs = nil
	return errors.CombineErrors(err, s.in.Close())
}

type runSource[T any] struct {
	r *run.Reader[T]
}

// FromRun returns a cursor over the values of a run file.
func FromRun[T any](path string, conv codec.Converter[T]) (*Base[T], error) {
	r, err := run.Open(path, conv)
	if err != nil {
		return nil, err
	}
	return New[T](&runSource[T]{r: r}), nil
}

func (s *runSource[T]) Fetch() (T, bool, error) {
	v, err := s.r.Next()
	if err == io.EOF {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (s *runSource[T]) Close() error { return s.r.Close() }
