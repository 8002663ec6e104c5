// Package mmh3 provides the single hash primitive the counter depends on:
// 32-bit MurmurHash3 with a fixed seed, backed by the third-party murmur3
// module rather than a hand-rolled port.
package mmh3

import "github.com/spaolacci/murmur3"

// Seed is the fixed MurmurHash3 seed used throughout the counter.
const Seed uint32 = 42

// Sum32 hashes data with the fixed seed.
func Sum32(data []byte) uint32 {
	return murmur3.Sum32WithSeed(data, Seed)
}
