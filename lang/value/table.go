package value

// entry is one bucket of a Table. An empty bucket has key=Nil, value=Nil; a
// tombstone has key=Nil, value=Bool(true).
type entry struct {
	key   Value
	value Value
}

func (e entry) isEmpty() bool     { return e.key.IsNil() && e.value.IsNil() }
func (e entry) isTombstone() bool { return e.key.IsNil() && e.value.IsBool() && e.value.AsBool() }

// Table is an open-addressed, linearly-probed hash map from Value to Value.
// It rehashes once the load factor (including tombstones) would exceed
// 0.75. Nil must never be used as a key.
type Table struct {
	entries []entry
	count   int // active entries + tombstones
}

const maxLoad = 0.75

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	if t.entries == nil {
		return 0
	}
	n := 0
	for _, e := range t.entries {
		if !e.isEmpty() && !e.isTombstone() {
			n++
		}
	}
	return n
}

// Get looks up key and reports whether it was present.
func (t *Table) Get(key Value) (Value, bool) {
	if t.entries == nil {
		return Nil, false
	}
	e := t.find(key)
	if e.key.IsNil() {
		// Either a genuinely empty bucket or a tombstone standing in for
		// one: findIndex returns a key=Nil bucket in both cases exactly
		// when key is absent.
		return Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key with value, returning true if key is new to
// the table.
func (t *Table) Set(key, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	idx := t.findIndex(key)
	e := &t.entries[idx]
	isNew := e.key.IsNil()
	if isNew && e.value.IsNil() {
		// A genuinely empty slot, not a reused tombstone: only this case
		// grows count, since tombstones are already counted.
		t.count++
	}
	e.key = key
	e.value = value
	return isNew
}

// Delete removes key, leaving a tombstone so later probe sequences through
// this bucket stay intact. Reports whether key was present.
func (t *Table) Delete(key Value) bool {
	if t.entries == nil {
		return false
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	if e.key.IsNil() {
		return false
	}
	e.key = Nil
	e.value = Bool(true)
	return true
}

// AddAll copies every live entry of t into dst.
func (t *Table) AddAll(dst *Table) {
	for _, e := range t.entries {
		if !e.isEmpty() && !e.isTombstone() {
			dst.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by raw content without allocating
// a Value or Object first, so the interner can check for an existing string
// before deciding to allocate one.
func (t *Table) FindString(chars string, hash uint32) Object {
	if t.entries == nil {
		return nil
	}
	capacity := len(t.entries)
	idx := int(hash) & (capacity - 1)
	for {
		e := &t.entries[idx]
		switch {
		case e.isEmpty():
			return nil
		case !e.isTombstone():
			if s, ok := e.key.AsObject().(interface {
				Object
				Content() string
			}); ok {
				if s.Hash() == hash && s.Content() == chars {
					return s
				}
			}
		}
		idx = (idx + 1) & (capacity - 1)
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

func (t *Table) grow(capacity int) {
	fresh := make([]entry, capacity)
	old := t.entries
	t.entries = fresh
	t.count = 0
	for _, e := range old {
		if e.isEmpty() || e.isTombstone() {
			continue
		}
		idx := t.findIndex(e.key)
		t.entries[idx] = e
		t.count++
	}
}

// findIndex runs the linear probe and returns the bucket index key belongs
// in: an existing entry with an equal key, or the first empty/tombstone
// bucket found along the probe sequence (tombstones are reused so repeated
// insert/delete doesn't grow probe chains without bound).
func (t *Table) findIndex(key Value) int {
	capacity := len(t.entries)
	idx := int(hash(key)) & (capacity - 1)
	var tombstone = -1
	for {
		e := &t.entries[idx]
		switch {
		case e.isEmpty():
			if tombstone != -1 {
				return tombstone
			}
			return idx
		case e.isTombstone():
			if tombstone == -1 {
				tombstone = idx
			}
		case e.key.Equal(key):
			return idx
		}
		idx = (idx + 1) & (capacity - 1)
	}
}

// find returns a copy of the bucket findIndex selects for key. Get treats
// any key=Nil bucket it returns (empty or tombstone) as "absent".
func (t *Table) find(key Value) entry {
	idx := t.findIndex(key)
	return t.entries[idx]
}
