package value

// String is an immutable byte sequence. Two strings with equal content
// are guaranteed, once both have passed through the intern cache, to be
// the same *String (the intern law, §8 property 1).
type String struct {
	Header
	Bytes []byte
}

func (s *String) Tag() Tag { return TagString }

// NewString builds a scratch (not-yet-interned) string. Callers must
// run it through the intern cache before exposing it as a Value.
func NewString(b []byte) *String {
	s := &String{Bytes: b}
	s.FinalizeHash()
	return s
}

// FinalizeHash computes the DJB2 content hash, as required before the
// string can be looked up in or installed into the intern cache.
func (s *String) FinalizeHash() {
	s.Hash = djb2Bytes(s.Bytes)
	s.Length = int64(len(s.Bytes))
	s.Finalized = true
}

func (s *String) EqualBytes(b []byte) bool {
	if len(s.Bytes) != len(b) {
		return false
	}
	for i := range b {
		if s.Bytes[i] != b[i] {
			return false
		}
	}
	return true
}

// Symbol differs from String only by tag: a separately interned,
// content-addressed byte sequence used for identifiers and keywords.
type Symbol struct {
	Header
	Bytes []byte
}

func (s *Symbol) Tag() Tag { return TagSymbol }

func NewSymbol(b []byte) *Symbol {
	s := &Symbol{Bytes: b}
	s.FinalizeHash()
	return s
}

func (s *Symbol) FinalizeHash() {
	s.Hash = djb2Bytes(s.Bytes)
	s.Length = int64(len(s.Bytes))
	s.Finalized = true
}

func (s *Symbol) EqualBytes(b []byte) bool {
	if len(s.Bytes) != len(b) {
		return false
	}
	for i := range b {
		if s.Bytes[i] != b[i] {
			return false
		}
	}
	return true
}
