// Package intern implements the process-wide, open-addressed intern
// cache that canonicalizes immutable aggregates (string, symbol,
// tuple, struct) by content, per §4.2.
package intern

import "github.com/sexpvm/sexpvm/internal/value"

type slotState uint8

const (
	slotEmpty slotState = iota
	slotTombstone
	slotOccupied
)

type slot struct {
	state slotState
	obj   value.Obj
}

// Cache is a single process-wide hash table keyed by the structural
// identity (type-tag, length, content-hash) of an immutable aggregate,
// with full content verification on collision.
type Cache struct {
	slots      []slot
	occupied   int64
	tombstones int64
}

// New returns an empty cache with a small initial capacity.
func New() *Cache {
	return &Cache{slots: make([]slot, 8)}
}

func (c *Cache) cap() int64 { return int64(len(c.slots)) }

func keyIndex(tag value.Tag, length int64, hash uint64, cap int64) int64 {
	h := hash ^ uint64(tag)<<56 ^ uint64(length)*0x9E3779B97F4A7C15
	return int64(h % uint64(cap))
}

func headerOf(o value.Obj) (length int64, hash uint64) {
	switch v := o.(type) {
	case *value.String:
		return v.Length, v.Hash
	case *value.Symbol:
		return v.Length, v.Hash
	case *value.Tuple:
		return v.Length, v.Hash
	case *value.StructVal:
		return v.Length, v.Hash
	}
	panic("intern: not an immutable aggregate")
}

func contentEqual(a, b value.Obj) bool {
	switch x := a.(type) {
	case *value.String:
		y, ok := b.(*value.String)
		return ok && x.EqualBytes(y.Bytes)
	case *value.Symbol:
		y, ok := b.(*value.Symbol)
		return ok && x.EqualBytes(y.Bytes)
	case *value.Tuple:
		y, ok := b.(*value.Tuple)
		return ok && x.EqualElems(y.Elems)
	case *value.StructVal:
		y, ok := b.(*value.StructVal)
		return ok && x.EqualPairs(y.Pairs())
	}
	return false
}

// Add installs o — an immutable aggregate whose hash has already been
// finalized — or, if content-equal aggregate is already cached,
// discards o and returns the existing canonical reference. This is
// the sole creation path for string/symbol/tuple/struct values; the
// scratch copy passed in becomes garbage (left for the GC) whenever
// installed is false.
func (c *Cache) Add(o value.Obj) (canonical value.Obj, installed bool) {
	if (c.occupied+c.tombstones)*2 > c.cap() {
		c.grow()
	}
	tag := o.Tag()
	length, hash := headerOf(o)
	idx := keyIndex(tag, length, hash, c.cap())
	firstTomb := int64(-1)
	for i := int64(0); i < c.cap(); i++ {
		s := &c.slots[idx]
		switch s.state {
		case slotEmpty:
			at := idx
			if firstTomb >= 0 {
				at = firstTomb
				c.tombstones--
			}
			c.slots[at] = slot{state: slotOccupied, obj: o}
			c.occupied++
			return o, true
		case slotTombstone:
			if firstTomb < 0 {
				firstTomb = idx
			}
		case slotOccupied:
			sl, sh := headerOf(s.obj)
			if s.obj.Tag() == tag && sl == length && sh == hash && contentEqual(s.obj, o) {
				return s.obj, false
			}
		}
		idx = probeNext(idx, c.cap())
	}
	// Cache was saturated with tombstones; grow and retry.
	c.grow()
	return c.Add(o)
}

// Lookup finds an already-cached aggregate by precomputed key without
// allocating a scratch aggregate, for callers that already know
// tag/length/hash (e.g. a parser checking whether a literal's bytes
// are already interned).
func (c *Cache) Lookup(tag value.Tag, length int64, hash uint64, equal func(value.Obj) bool) (value.Obj, bool) {
	if c.cap() == 0 {
		return nil, false
	}
	idx := keyIndex(tag, length, hash, c.cap())
	for i := int64(0); i < c.cap(); i++ {
		s := &c.slots[idx]
		switch s.state {
		case slotEmpty:
			return nil, false
		case slotOccupied:
			sl, sh := headerOf(s.obj)
			if s.obj.Tag() == tag && sl == length && sh == hash && equal(s.obj) {
				return s.obj, true
			}
		}
		idx = probeNext(idx, c.cap())
	}
	return nil, false
}

// LookupBytes is the specialized string/symbol fast path described in
// §4.2: it hashes raw bytes and compares against cached entries
// without ever constructing a scratch *String.
func (c *Cache) LookupBytes(tag value.Tag, b []byte) (value.Obj, bool) {
	hash := djb2(b)
	return c.Lookup(tag, int64(len(b)), hash, func(o value.Obj) bool {
		switch v := o.(type) {
		case *value.String:
			return v.EqualBytes(b)
		case *value.Symbol:
			return v.EqualBytes(b)
		}
		return false
	})
}

func djb2(b []byte) uint64 {
	h := uint64(5381)
	for _, c := range b {
		h = h*33 + uint64(c)
	}
	return h
}

// Remove is called only by the garbage collector, when the canonical
// copy of an immutable aggregate has become unreachable (§4.1 sweep,
// §4.2 "Invalidation").
func (c *Cache) Remove(o value.Obj) {
	if c.cap() == 0 {
		return
	}
	tag := o.Tag()
	length, hash := headerOf(o)
	idx := keyIndex(tag, length, hash, c.cap())
	for i := int64(0); i < c.cap(); i++ {
		s := &c.slots[idx]
		switch s.state {
		case slotEmpty:
			return
		case slotOccupied:
			if s.obj == o {
				s.state = slotTombstone
				s.obj = nil
				c.occupied--
				c.tombstones++
				return
			}
		}
		idx = probeNext(idx, c.cap())
	}
}

func probeNext(idx, cap int64) int64 { return (idx + 1) % cap }

// grow reallocates to capacity 4×occupied (minimum 8) and reinserts
// every live entry, dropping tombstones — this is also how a cache
// recovers after a long run of deletes under pathological collisions.
func (c *Cache) grow() {
	newCap := c.occupied * 4
	if newCap < 8 {
		newCap = 8
	}
	old := c.slots
	c.slots = make([]slot, newCap)
	c.occupied, c.tombstones = 0, 0
	for _, s := range old {
		if s.state == slotOccupied {
			c.Add(s.obj)
		}
	}
}

// Len reports the number of live (non-tombstone) entries.
func (c *Cache) Len() int64 { return c.occupied }
