package intern

import "github.com/sexpvm/sexpvm/internal/value"

// gensymAlphabet is the 64-ary digit alphabet used to render the
// six-position counter suffix (64^6 distinct suffixes per prefix).
const gensymAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+-"

// Gensym generates a symbol named prefix followed by a six-character
// suffix drawn from a 64-ary counter, retrying until the cache reports
// the candidate name is not already present, then installs and
// returns the canonical symbol (§4.2 "Unique-symbol generation").
// counter is advanced by the caller's VM state across calls so that
// gensym remains the only source of cross-run nondeterminism, per §8
// property 7.
func (c *Cache) Gensym(prefix string, counter *uint64) *value.Symbol {
	for {
		suffix := encodeCounter(*counter)
		*counter++
		name := append([]byte(prefix), suffix...)
		if _, found := c.LookupBytes(value.TagSymbol, name); found {
			continue
		}
		sym := value.NewSymbol(name)
		canonical, _ := c.Add(sym)
		return canonical.(*value.Symbol)
	}
}

func encodeCounter(n uint64) []byte {
	out := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		out[i] = gensymAlphabet[n&63]
		n >>= 6
	}
	return out
}
