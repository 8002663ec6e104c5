// Package cms implements a Count-Min Sketch with Conservative Update: a
// frequency-estimation sketch that, unlike a Counter, never evicts a key
// but also never returns an exact count — estimates are always >= the true
// frequency, in exchange for fixed, input-independent memory.
//
// Conservative Update differs from a textbook CMS by only raising the
// counters that would otherwise become the new minimum for an item, rather
// than incrementing all of them unconditionally. This roughly halves the
// over-counting a plain CMS suffers under skewed (Zipfian) key
// distributions, since a heavy hitter's collisions stop inflating the
// counters other keys share with it.
//
// The sketch is a contiguous byte slice, not a Go struct with a slice
// field: a 20-byte header (magic, width, depth, total count) followed by
// width*depth uint32 counters stored row-major. All reads and writes go
// straight through the backing slice, so a Sketch can be memory-mapped or
// persisted without a marshal step.
package cms

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	// Magic identifies a CMS sketch on the wire ("CMS1" little-endian).
	Magic = 0x31534D43

	// HeaderSize is magic(4) + width(4) + depth(4) + count(8).
	HeaderSize = 20
)

var (
	ErrInvalidData  = errors.New("cms: data too short")
	ErrInvalidMagic = errors.New("cms: invalid magic identifier")
)

// Sketch is a Count-Min Sketch backed directly by a byte slice.
type Sketch struct {
	backing []byte
}

// New allocates a sketch with width columns and depth rows. Memory usage is
// HeaderSize + width*depth*4 bytes.
func New(width, depth uint32) *Sketch {
	size := uint64(HeaderSize) + uint64(width)*uint64(depth)*4
	data := make([]byte, size)

	binary.LittleEndian.PutUint32(data[0:4], Magic)
	binary.LittleEndian.PutUint32(data[4:8], width)
	binary.LittleEndian.PutUint32(data[8:12], depth)
	binary.LittleEndian.PutUint64(data[12:20], 0)

	return &Sketch{backing: data}
}

// NewFromBytes wraps an existing encoded sketch with no copy; the caller
// must not mutate data externally afterward.
func NewFromBytes(data []byte) (*Sketch, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidData
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}

	width := binary.LittleEndian.Uint32(data[4:8])
	depth := binary.LittleEndian.Uint32(data[8:12])
	expected := uint64(HeaderSize) + uint64(width)*uint64(depth)*4
	if uint64(len(data)) < expected {
		return nil, ErrInvalidData
	}

	return &Sketch{backing: data}, nil
}

// HasValidMagic reports whether data begins with the CMS magic, without
// otherwise parsing it.
func HasValidMagic(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == Magic
}

func (s *Sketch) Width() uint32 { return binary.LittleEndian.Uint32(s.backing[4:8]) }
func (s *Sketch) Depth() uint32 { return binary.LittleEndian.Uint32(s.backing[8:12]) }
func (s *Sketch) Count() uint64 { return binary.LittleEndian.Uint64(s.backing[12:20]) }

// Bytes returns the sketch's backing storage, for persistence.
func (s *Sketch) Bytes() []byte { return s.backing }

// rowOffsets fills dst with the byte offset of item's counter in each row,
// deriving depth column indices from a single xxHash64 via the standard
// double-hashing trick h1 + row*h2 (h2 a SplitMix64 scramble of h1, so the
// two hashes are cheaply decorrelated from one pass over item). dst must
// have length s.Depth(); computing every row's offset once up front lets
// both the Conservative Update scan and the raise pass in Incr walk the
// same cells without re-deriving them.
func (s *Sketch) rowOffsets(item []byte, dst []uint64) {
	width := uint64(s.Width())

	h1 := xxhash.Sum64(item)
	h2 := h1
	h2 ^= h2 >> 30
	h2 *= 0xbf58476d1ce4e5b9
	h2 ^= h2 >> 27
	h2 *= 0x94d049bb133111eb
	h2 ^= h2 >> 31

	for row := range dst {
		col := (h1 + uint64(row)*h2) % width
		dst[row] = HeaderSize + (uint64(row)*width+col)*4
	}
}

// Incr applies a Conservative Update increment of delta to item: it raises
// only the counters that are currently below what the item's new minimum
// would be, so a heavy hitter's collisions stop inflating counters shared
// with lighter keys. It returns true if any counter actually changed.
func (s *Sketch) Incr(item []byte, delta uint32) bool {
	if delta == 0 {
		return false
	}

	offsets := make([]uint64, s.Depth())
	s.rowOffsets(item, offsets)

	minVal := uint32(math.MaxUint32)
	for _, offset := range offsets {
		if val := binary.LittleEndian.Uint32(s.backing[offset:]); val < minVal {
			minVal = val
		}
	}

	target := minVal
	if uint64(minVal)+uint64(delta) > math.MaxUint32 {
		target = math.MaxUint32
	} else {
		target += delta
	}

	changed := false
	for _, offset := range offsets {
		if current := binary.LittleEndian.Uint32(s.backing[offset:]); current < target {
			binary.LittleEndian.PutUint32(s.backing[offset:], target)
			changed = true
		}
	}

	if changed {
		binary.LittleEndian.PutUint64(s.backing[12:20], s.Count()+uint64(delta))
	}
	return changed
}

// Query returns the estimated frequency of item: the minimum counter across
// all rows, which is always >= the true count.
func (s *Sketch) Query(item []byte) uint32 {
	offsets := make([]uint64, s.Depth())
	s.rowOffsets(item, offsets)

	minVal := uint32(math.MaxUint32)
	for _, offset := range offsets {
		if val := binary.LittleEndian.Uint32(s.backing[offset:]); val < minVal {
			minVal = val
		}
	}
	return minVal
}
