// Package bounter implements an approximate frequency counter over a
// fixed-size, open-addressed hash table with linear probing. When the table
// fills past 3/4 load, it self-prunes by discarding its least-frequent
// entries in place; a HyperLogLog sketch fed in parallel keeps cardinality
// estimates accurate even after pruning destroys exact set membership.
//
// The design and algorithms are ported from RaRe Technologies' bounter
// C extension (see original_source/cbounter/ht_common.c in the project's
// reference material): an open-addressed table with linear probing, a
// 256-bucket logarithmic histogram driving prune-boundary selection, and a
// backward-shift compacting prune that never allocates a second table.
package bounter

import (
	"github.com/bounterhq/bounter/internal/bounter/hyperloglog"
	"github.com/bounterhq/bounter/internal/bounter/mmh3"
)

// cell is one table slot. key == nil means the slot is empty; any non-nil
// slice (including a zero-length one) means the slot is occupied and owns
// those key bytes for as long as it remains in the table.
type cell struct {
	key   []byte
	count int64
}

func (c *cell) occupied() bool { return c.key != nil }

// Counter is the approximate frequency counter described in package docs.
// It is not thread-safe and not reentrant: all operations must be
// externally synchronized by the caller if shared across goroutines.
type Counter struct {
	cells    []cell
	mask     uint32
	histo    [256]uint32
	total    int64
	size     uint32 // occupied cells, including count-0 zombies
	strAlloc uint64
	maxPrune int64
	sketch   *hyperloglog.Sketch

	maxMemory uint64 // 0 means unbounded
}

const minBuckets = 4
const maxBuckets = 1 << 32

// New creates a Counter with capacity rounded down to the nearest power of
// two. buckets must be in [4, 2^32]; values outside that range return an
// InvalidArgument error.
func New(buckets uint64) (*Counter, error) {
	return NewWithMaxMemory(buckets, 0)
}

// NewWithMaxMemory is like New but fails with an OutOfMemory error instead
// of constructing a Counter whose table alone would exceed maxMemory bytes.
// maxMemory == 0 means unbounded. A Go process cannot recover from a real
// allocator panic, so this ceiling is how out-of-memory construction failure
// is made observable as an ordinary error return instead (see DESIGN.md).
func NewWithMaxMemory(buckets uint64, maxMemory uint64) (*Counter, error) {
	if buckets < minBuckets || buckets > maxBuckets {
		return nil, invalidArgument("buckets must be in [%d, %d], got %d", minBuckets, maxBuckets, buckets)
	}

	rounded := roundDownPow2(buckets)

	tableBytes := rounded * uint64(cellSize)
	if maxMemory != 0 && tableBytes > maxMemory {
		return nil, outOfMemory("table of %d buckets would need %d bytes, exceeding the %d byte ceiling", rounded, tableBytes, maxMemory)
	}

	return &Counter{
		cells:     make([]cell, rounded),
		mask:      uint32(rounded - 1),
		sketch:    hyperloglog.New(),
		maxMemory: maxMemory,
	}, nil
}

// cellSize is the fixed per-cell byte count used by Mem and by the
// NewWithMaxMemory ceiling, independent of key length (which is tracked
// separately via strAlloc).
const cellSize = 24

func roundDownPow2(n uint64) uint64 {
	p := uint64(1)
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Buckets returns the actual table capacity (a power of two).
func (c *Counter) Buckets() uint64 { return uint64(len(c.cells)) }

// Total returns the sum of the counts held in the table: counts removed by
// explicit deletion or discarded by a prune are subtracted from it.
func (c *Counter) Total() int64 { return c.total }

// Mem returns the bytes currently owned on the heap: the cell array, key
// storage, and the 256-entry histogram.
func (c *Counter) Mem() uint64 {
	return uint64(len(c.cells))*cellSize + c.strAlloc + 256*4
}

// sizeLive is the number of occupied cells with a strictly positive count.
func (c *Counter) sizeLive() uint32 {
	return c.size - c.histo[0]
}

// Cardinality returns the approximate number of distinct keys ever
// inserted. Before any prune it is exact (sizeLive); afterwards it is
// served by the HyperLogLog sketch, since pruning has destroyed exact set
// membership.
func (c *Counter) Cardinality() uint64 {
	if c.maxPrune == 0 {
		return uint64(c.sizeLive())
	}
	return c.sketch.Estimate()
}

// Quality is the ratio of the current size measure to the prune threshold
// (3/4 of buckets). A value approaching 1 predicts an imminent prune.
func (c *Counter) Quality() float64 {
	limit := float64((len(c.cells) >> 2) * 3)
	var size float64
	if c.maxPrune != 0 {
		size = float64(c.sketch.Estimate())
	} else {
		size = float64(c.sizeLive())
	}
	return size / limit
}

// bucket computes the ideal table bucket for a key and, when feedSketch is
// true, feeds the pre-mask 32-bit hash to the HyperLogLog sketch. The
// sketch must only be fed when the caller is about to attempt a new
// insertion: plain lookups never feed it.
func (c *Counter) bucket(key []byte, feedSketch bool) uint32 {
	h := mmh3.Sum32(key)
	if feedSketch {
		c.sketch.Add(h)
	}
	return h & c.mask
}

// findCell walks the probe chain starting at the key's ideal bucket,
// stopping at the first empty slot or exact key match. It never mutates
// the table and never feeds the sketch with feedSketch=false.
func (c *Counter) findCell(key []byte, feedSketch bool) *cell {
	idx := c.bucket(key, feedSketch)
	for {
		cell := &c.cells[idx]
		if !cell.occupied() || bytesEqual(cell.key, key) {
			return cell
		}
		idx = (idx + 1) & c.mask
	}
}

// allocateCell finds or creates the cell for key, pruning first if the
// table has crossed the 3/4 load threshold.
func (c *Counter) allocateCell(key []byte) *cell {
	cell := c.findCell(key, false)

	if !cell.occupied() {
		// First-time insertion: feed the sketch once, before any prune.
		c.bucket(key, true)

		if uint64(c.size) >= (uint64(len(c.cells))>>2)*3 {
			c.pruneInternal(c.pruneBoundary())
			// Pruning may have opened an earlier slot in the chain; the
			// sketch must not be fed again for this same key.
			cell = c.findCell(key, false)
		}

		owned := make([]byte, len(key))
		copy(owned, key)
		cell.key = owned
		cell.count = 0

		c.size++
		c.strAlloc += uint64(len(key)) + 1 // +1 mirrors the original's null terminator accounting
		c.histo[0]++
	}

	return cell
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkKey(key []byte) error {
	for _, b := range key {
		if b == 0 {
			return invalidArgument("key contains an embedded null byte")
		}
	}
	return nil
}
