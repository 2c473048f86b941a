package value

// StructVal is an immutable, open-addressed hash table built with
// Robin Hood insertion, keyed and valued by Value, capacity = 4×Length
// (§3). Nil keys and nil values are never stored: an insert request
// with either absent is silently dropped, matching the "struct keys/
// values equal to nil are absent" edge case (§8).
type StructVal struct {
	Header
	keys []Value
	vals []Value
	used []bool
	psl  []int32 // probe sequence length at each slot, for Robin Hood bookkeeping
	cap  int64
}

func (s *StructVal) Tag() Tag { return TagStruct }

// KV is one key/value pair supplied to NewStruct.
type KV struct {
	Key, Val Value
}

// NewStruct builds a scratch (not-yet-interned) struct from a list of
// pairs using Robin Hood open addressing. Pairs with a nil key or nil
// value are dropped. Later pairs win over earlier ones for duplicate
// keys, matching ordinary dictionary-literal semantics.
func NewStruct(pairs []KV) *StructVal {
	n := int64(0)
	for _, p := range pairs {
		if !p.Key.IsNil() && !p.Val.IsNil() {
			n++
		}
	}
	cap := n * 4
	if cap < 8 {
		cap = 8
	}
	s := &StructVal{
		keys: make([]Value, cap),
		vals: make([]Value, cap),
		used: make([]bool, cap),
		psl:  make([]int32, cap),
		cap:  cap,
	}
	for _, p := range pairs {
		if p.Key.IsNil() || p.Val.IsNil() {
			continue
		}
		s.insert(p.Key, p.Val)
	}
	s.FinalizeHash()
	return s
}

func (s *StructVal) insert(key, val Value) {
	idx := int64(HashOf(key) % uint64(s.cap))
	k, v, psl := key, val, int32(0)
	for {
		if !s.used[idx] {
			s.keys[idx], s.vals[idx], s.used[idx], s.psl[idx] = k, v, true, psl
			s.Length++
			return
		}
		if Equal(s.keys[idx], k) {
			s.vals[idx] = v // duplicate key: last write wins
			return
		}
		if s.psl[idx] < psl {
			// Robin Hood: the richer (shorter-probed) entry yields its slot.
			k, s.keys[idx] = s.keys[idx], k
			v, s.vals[idx] = s.vals[idx], v
			psl, s.psl[idx] = s.psl[idx], psl
		}
		idx = (idx + 1) % s.cap
		psl++
	}
}

// FinalizeHash combines every (key, value) pair's hashes with an
// order-independent operator (addition) before a final DJB2 mix, so
// that structurally equal structs hash equal regardless of the
// insertion order used to build them.
func (s *StructVal) FinalizeHash() {
	var acc uint64
	for i := int64(0); i < s.cap; i++ {
		if !s.used[i] {
			continue
		}
		acc += (HashOf(s.keys[i]) * 1000003) ^ HashOf(s.vals[i])
	}
	s.Hash = djb2Fold(djb2Seed, acc)
	s.Finalized = true
}

// Get performs the open-addressed lookup described in §3.
func (s *StructVal) Get(key Value) (Value, bool) {
	if s.cap == 0 {
		return NilValue, false
	}
	idx := int64(HashOf(key) % uint64(s.cap))
	psl := int32(0)
	for {
		if !s.used[idx] {
			return NilValue, false
		}
		if s.psl[idx] < psl {
			// Robin Hood invariant: entries are ordered by psl along the
			// probe sequence, so a shorter psl here means key is absent.
			return NilValue, false
		}
		if Equal(s.keys[idx], key) {
			return s.vals[idx], true
		}
		idx = (idx + 1) % s.cap
		psl++
	}
}

// Pairs returns every stored (key, value) pair, in slot order.
func (s *StructVal) Pairs() []KV {
	out := make([]KV, 0, s.Length)
	for i := int64(0); i < s.cap; i++ {
		if s.used[i] {
			out = append(out, KV{s.keys[i], s.vals[i]})
		}
	}
	return out
}

func (s *StructVal) EqualPairs(pairs []KV) bool {
	if int64(len(pairs)) != s.Length {
		return false
	}
	for _, p := range pairs {
		v, ok := s.Get(p.Key)
		if !ok || !Equal(v, p.Val) {
			return false
		}
	}
	return true
}
