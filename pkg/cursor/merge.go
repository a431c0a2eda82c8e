package cursor

// mergeSource performs a k-way merge of sorted inputs. Ties go to the
// lower input index, so the merge is stable.
type mergeSource[T any] struct {
	inputs  []Cursor[T]
	compare func(a, b T) int
}

// Merge yields the sorted union (with duplicates) of sorted inputs.
func Merge[T any](compare func(a, b T) int, inputs ...Cursor[T]) *Base[T] {
	return New[T](&mergeSource[T]{inputs: inputs, compare: compare})
}

func (m *mergeSource[T]) Open() error {
	for _, in := range m.inputs {
		if err := in.Open(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergeSource[T]) Close() error { return closeAll(m.inputs) }

func (m *mergeSource[T]) Fetch() (T, bool, error) {
	var zero, best T
	at := -1
	for i, in := range m.inputs {
		if !in.HasNext() {
			if err := in.Err(); err != nil {
				return zero, false, err
			}
			continue
		}
		v, err := in.Peek()
		if err != nil {
			return zero, false, err
		}
		if at < 0 || m.compare(v, best) < 0 {
			best, at = v, i
		}
	}
	if at < 0 {
		return zero, false, nil
	}
	if _, err := m.inputs[at].Next(); err != nil {
		return zero, false, err
	}
	return best, true, nil
}

func (m *mergeSource[T]) Reset() error {
	for _, in := range m.inputs {
		if err := in.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergeSource[T]) SupportsReset() bool {
	for _, in := range m.inputs {
		if !in.SupportsReset() {
			return false
		}
	}
	return true
}
