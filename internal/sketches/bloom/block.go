package bloom

// Block is one 512-bit (64-byte) cache line of a filter layer's bitset.
type Block [8]uint64

// Add sets the k=8 bits derived from hash within this block. hash is
// expected to already be the decorrelated (mixed) value, not the raw item
// hash. Returns true if any bit flipped 0->1.
//
// The k bit positions are g_i(x) = (h1 + i*h2) mod 512, the Kirsch-
// Mitzenmacher double-hashing scheme, with h1/h2 the two 32-bit halves of
// hash. The loop is unrolled for i=0..7 to let the compiler keep everything
// in registers for the single cache line this method touches.
func (b *Block) Add(hash uint64) bool {
	h1 := uint32(hash)
	h2 := uint32(hash >> 32)

	changed := false
	set := func(pos uint32) {
		wordIdx := pos >> 6
		mask := uint64(1) << (pos & 63)
		if b[wordIdx]&mask == 0 {
			b[wordIdx] |= mask
			changed = true
		}
	}

	set(h1 & 511)
	set((h1 + h2) & 511)
	set((h1 + (h2 << 1)) & 511)
	set((h1 + h2*3) & 511)
	set((h1 + (h2 << 2)) & 511)
	set((h1 + h2*5) & 511)
	set((h1 + h2*6) & 511)
	set((h1 + h2*7) & 511)

	return changed
}

// Check reports whether all k=8 bits for hash are set: a probable match.
// Returns at the first unset bit, so a definite non-match is typically
// cheaper than a match.
func (b *Block) Check(hash uint64) bool {
	h1 := uint32(hash)
	h2 := uint32(hash >> 32)

	test := func(pos uint32) bool {
		wordIdx := pos >> 6
		mask := uint64(1) << (pos & 63)
		return b[wordIdx]&mask != 0
	}

	return test(h1&511) &&
		test((h1+h2)&511) &&
		test((h1+(h2<<1))&511) &&
		test((h1+h2*3)&511) &&
		test((h1+(h2<<2))&511) &&
		test((h1+h2*5)&511) &&
		test((h1+h2*6)&511) &&
		test((h1+h2*7)&511)
}
