package value

// Table is a growable, mutable open-addressed hash map with tombstones
// (§3). Unlike StructVal it is never interned: identity, not content,
// determines equality and hash.
type Table struct {
	Count   int64 // live entries
	Deleted int64 // tombstones
	slots   []tableSlot
}

type slotState uint8

const (
	slotEmpty slotState = iota
	slotTombstone
	slotOccupied
)

type tableSlot struct {
	key, val Value
	state    slotState
}

func NewTable(hint int64) *Table {
	cap := int64(8)
	for cap < hint*2 {
		cap *= 2
	}
	return &Table{slots: make([]tableSlot, cap)}
}

func (t *Table) cap() int64 { return int64(len(t.slots)) }

// Get looks up key, returning (nil, false) if absent.
func (t *Table) Get(key Value) (Value, bool) {
	if t.cap() == 0 {
		return NilValue, false
	}
	idx := int64(HashOf(key) % uint64(t.cap()))
	for i := int64(0); i < t.cap(); i++ {
		s := &t.slots[idx]
		switch s.state {
		case slotEmpty:
			return NilValue, false
		case slotOccupied:
			if Equal(s.key, key) {
				return s.val, true
			}
		}
		idx = (idx + 1) % t.cap()
	}
	return NilValue, false
}

// Put inserts or overwrites key -> val. A nil val deletes the key,
// matching the embedding convention used by the `get`/`put` syscalls
// (§4.4).
func (t *Table) Put(key, val Value) {
	if val.IsNil() {
		t.Delete(key)
		return
	}
	if (t.Count+t.Deleted+1)*2 > t.cap() {
		t.rehash()
	}
	idx := int64(HashOf(key) % uint64(t.cap()))
	firstTomb := int64(-1)
	for i := int64(0); i < t.cap(); i++ {
		s := &t.slots[idx]
		switch s.state {
		case slotEmpty:
			at := idx
			if firstTomb >= 0 {
				at = firstTomb
			}
			t.slots[at] = tableSlot{key: key, val: val, state: slotOccupied}
			t.Count++
			return
		case slotTombstone:
			if firstTomb < 0 {
				firstTomb = idx
			}
		case slotOccupied:
			if Equal(s.key, key) {
				s.val = val
				return
			}
		}
		idx = (idx + 1) % t.cap()
	}
	// Table was full of tombstones; rehash and retry once.
	t.rehash()
	t.Put(key, val)
}

// Delete removes key if present, leaving a tombstone behind so that
// later probes for other keys sharing the bucket still succeed.
func (t *Table) Delete(key Value) bool {
	if t.cap() == 0 {
		return false
	}
	idx := int64(HashOf(key) % uint64(t.cap()))
	for i := int64(0); i < t.cap(); i++ {
		s := &t.slots[idx]
		switch s.state {
		case slotEmpty:
			return false
		case slotOccupied:
			if Equal(s.key, key) {
				s.state = slotTombstone
				s.key, s.val = NilValue, NilValue
				t.Count--
				t.Deleted++
				return true
			}
		}
		idx = (idx + 1) % t.cap()
	}
	return false
}

func (t *Table) rehash() {
	newCap := t.cap() * 2
	if newCap < 8 {
		newCap = 8
	}
	old := t.slots
	t.slots = make([]tableSlot, newCap)
	t.Count, t.Deleted = 0, 0
	for _, s := range old {
		if s.state == slotOccupied {
			t.Put(s.key, s.val)
		}
	}
}

func (t *Table) Tag() Tag { return TagTable }

// Each calls fn for every live entry, in slot order.
func (t *Table) Each(fn func(key, val Value)) {
	for _, s := range t.slots {
		if s.state == slotOccupied {
			fn(s.key, s.val)
		}
	}
}
