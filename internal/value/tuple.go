package value

// Tuple is a fixed-length, immutable, ordered sequence. Like strings,
// tuples are canonicalized by content through the intern cache.
type Tuple struct {
	Header
	Elems []Value
}

func (t *Tuple) Tag() Tag { return TagTuple }

func NewTuple(elems []Value) *Tuple {
	t := &Tuple{Elems: elems}
	t.FinalizeHash()
	return t
}

// FinalizeHash folds the DJB2 hash over each element's own hash, per
// §3: "DJB2 over element hashes for tuples/structs."
func (t *Tuple) FinalizeHash() {
	h := djb2Seed
	for _, e := range t.Elems {
		h = djb2Fold(h, HashOf(e))
	}
	t.Hash = h
	t.Length = int64(len(t.Elems))
	t.Finalized = true
}

func (t *Tuple) EqualElems(elems []Value) bool {
	if len(t.Elems) != len(elems) {
		return false
	}
	for i := range elems {
		if !Equal(t.Elems[i], elems[i]) {
			return false
		}
	}
	return true
}
