package state

// Journal records undo actions for every state write made during a
// transaction. Reverting to a snapshot replays the undo actions newest first,
// restoring the state observed when the snapshot was taken.
type Journal struct {
	entries []func()
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 || id > len(j.entries) {
		return
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:id]
}

// Reset drops all undo entries, making every write so far permanent.
func (j *Journal) Reset() {
	j.entries = j.entries[:0]
}

func (j *Journal) Length() int {
	return len(j.entries)
}

// Map is a map whose writes are recorded in a journal. Values must be
// replaced, not mutated in place, for a revert to restore them.
type Map[K comparable, V any] struct {
	journal *Journal
	data    map[K]V
}

func NewMap[K comparable, V any](journal *Journal) *Map[K, V] {
	return &Map[K, V]{
		journal: journal,
		data:    make(map[K]V),
	}
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *Map[K, V]) Set(key K, value V) {
	prev, existed := m.data[key]
	m.journal.Append(func() {
		if existed {
			m.data[key] = prev
		} else {
			delete(m.data, key)
		}
	})
	m.data[key] = value
}

func (m *Map[K, V]) Len() int {
	return len(m.data)
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for k, v := range m.data {
		if !fn(k, v) {
			return
		}
	}
}

// Var is a single journaled value.
type Var[T any] struct {
	journal *Journal
	value   T
}

func NewVar[T any](journal *Journal, initial T) *Var[T] {
	return &Var[T]{journal: journal, value: initial}
}

func (v *Var[T]) Get() T {
	return v.value
}

func (v *Var[T]) Set(value T) {
	prev := v.value
	v.journal.Append(func() {
		v.value = prev
	})
	v.value = value
}
