package bounter

import (
	"encoding/binary"

	"github.com/bounterhq/bounter/internal/bounter/hyperloglog"
)

// wireMagic identifies a bounter snapshot on the wire.
const wireMagic = "BNTR"

// cellWireSize is the per-slot encoding: a 1-byte occupied flag followed by
// an 8-byte little-endian count. Key pointers are meaningless on the wire;
// the occupied flag stands in for "recorded key pointer non-null".
const cellWireSize = 9

// Snapshot encodes the full counter state as an opaque byte slice: the
// fixed scalar header (total, str_allocated, size, max_prune), the
// constructor argument (buckets), and four length-prefixed blobs in order
// — cells, keys, histogram, HLL registers.
func (c *Counter) Snapshot() []byte {
	cellsBlob := c.encodeCells()
	keysBlob := c.encodeKeys()
	histoBlob := c.encodeHisto()
	hllBlob := c.sketch.Serialize()

	size := len(wireMagic) + 8 /*buckets*/ + 8 /*total*/ + 8 /*strAlloc*/ + 4 /*size*/ + 8 /*maxPrune*/
	size += 4 + len(cellsBlob)
	size += 4 + len(keysBlob)
	size += 4 + len(histoBlob)
	size += 4 + len(hllBlob)

	out := make([]byte, size)
	o := 0
	o += copy(out[o:], wireMagic)
	binary.LittleEndian.PutUint64(out[o:], uint64(len(c.cells)))
	o += 8
	binary.LittleEndian.PutUint64(out[o:], uint64(c.total))
	o += 8
	binary.LittleEndian.PutUint64(out[o:], c.strAlloc)
	o += 8
	binary.LittleEndian.PutUint32(out[o:], c.size)
	o += 4
	binary.LittleEndian.PutUint64(out[o:], uint64(c.maxPrune))
	o += 8

	o += putBlob(out[o:], cellsBlob)
	o += putBlob(out[o:], keysBlob)
	o += putBlob(out[o:], histoBlob)
	putBlob(out[o:], hllBlob)

	return out
}

func putBlob(dst []byte, blob []byte) int {
	binary.LittleEndian.PutUint32(dst, uint32(len(blob)))
	n := copy(dst[4:], blob)
	return 4 + n
}

func (c *Counter) encodeCells() []byte {
	out := make([]byte, len(c.cells)*cellWireSize)
	for i, cell := range c.cells {
		o := i * cellWireSize
		if cell.occupied() {
			out[o] = 1
		}
		binary.LittleEndian.PutUint64(out[o+1:], uint64(cell.count))
	}
	return out
}

func (c *Counter) encodeKeys() []byte {
	out := make([]byte, 0, c.strAlloc)
	for _, cell := range c.cells {
		if cell.occupied() {
			out = append(out, cell.key...)
			out = append(out, 0)
		}
	}
	return out
}

func (c *Counter) encodeHisto() []byte {
	out := make([]byte, 256*4)
	for i, v := range c.histo {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// Restore reconstructs a Counter from a Snapshot. A keys blob that runs out
// before every recorded occupied slot has been filled is a CorruptSnapshot
// error.
func Restore(data []byte) (*Counter, error) {
	if len(data) < len(wireMagic)+36 {
		return nil, corruptSnapshot("snapshot too short for header")
	}
	if string(data[0:4]) != wireMagic {
		return nil, corruptSnapshot("bad magic")
	}
	o := 4

	buckets := binary.LittleEndian.Uint64(data[o:])
	o += 8
	total := int64(binary.LittleEndian.Uint64(data[o:]))
	o += 8
	strAlloc := binary.LittleEndian.Uint64(data[o:])
	o += 8
	size := binary.LittleEndian.Uint32(data[o:])
	o += 4
	maxPrune := int64(binary.LittleEndian.Uint64(data[o:]))
	o += 8

	cellsBlob, o, err := readBlob(data, o)
	if err != nil {
		return nil, err
	}
	keysBlob, o, err := readBlob(data, o)
	if err != nil {
		return nil, err
	}
	histoBlob, o, err := readBlob(data, o)
	if err != nil {
		return nil, err
	}
	hllBlob, _, err := readBlob(data, o)
	if err != nil {
		return nil, err
	}

	if buckets == 0 || buckets&(buckets-1) != 0 {
		return nil, corruptSnapshot("recorded bucket count %d is not a power of two", buckets)
	}
	if uint64(len(cellsBlob)) != buckets*cellWireSize {
		return nil, corruptSnapshot("cells blob size mismatch: got %d, want %d", len(cellsBlob), buckets*cellWireSize)
	}
	if len(histoBlob) != 256*4 {
		return nil, corruptSnapshot("histogram blob size mismatch: got %d, want %d", len(histoBlob), 256*4)
	}

	c := &Counter{
		cells:    make([]cell, buckets),
		mask:     uint32(buckets - 1),
		total:    total,
		strAlloc: strAlloc,
		size:     size,
		maxPrune: maxPrune,
	}

	keyOffset := 0
	for i := range c.cells {
		co := i * cellWireSize
		occupied := cellsBlob[co] != 0
		count := int64(binary.LittleEndian.Uint64(cellsBlob[co+1:]))
		if !occupied {
			continue
		}

		end := keyOffset
		for {
			if end >= len(keysBlob) {
				return nil, corruptSnapshot("keys buffer exhausted before all slots were filled")
			}
			if keysBlob[end] == 0 {
				break
			}
			end++
		}

		key := make([]byte, end-keyOffset)
		copy(key, keysBlob[keyOffset:end])
		c.cells[i].key = key
		c.cells[i].count = count
		keyOffset = end + 1
	}

	for i := 0; i < 256; i++ {
		c.histo[i] = binary.LittleEndian.Uint32(histoBlob[i*4:])
	}

	sketch, err := hyperloglog.Deserialize(hllBlob)
	if err != nil {
		return nil, corruptSnapshot("hll registers: %v", err)
	}
	c.sketch = sketch

	return c, nil
}

func readBlob(data []byte, o int) ([]byte, int, error) {
	if o+4 > len(data) {
		return nil, 0, corruptSnapshot("truncated blob length prefix")
	}
	n := int(binary.LittleEndian.Uint32(data[o:]))
	o += 4
	if o+n > len(data) {
		return nil, 0, corruptSnapshot("truncated blob body")
	}
	return data[o : o+n], o + n, nil
}
