package bloom

import (
	"encoding/binary"
	"math"
)

// Metadata is a view over the first 24 bytes of the backing slice: magic
// signature, total items across all layers, and number of active layers.
type Metadata []byte

// FilterHeader is a view over one layer's 32-byte header.
type FilterHeader []byte

const (
	// Magic is the filter's safety signature, "BLOOM001" read as a big hex literal.
	Magic = 0x424C4F4F4D303031

	MetadataSize    = 24
	LayerHeaderSize = 32
)

func (m Metadata) Magic() uint64        { return binary.LittleEndian.Uint64(m[0:8]) }
func (m Metadata) SetMagic(v uint64)    { binary.LittleEndian.PutUint64(m[0:8], v) }
func (m Metadata) TotalItems() uint64   { return binary.LittleEndian.Uint64(m[8:16]) }
func (m Metadata) SetTotalItems(v uint64) {
	binary.LittleEndian.PutUint64(m[8:16], v)
}
func (m Metadata) NumLayers() uint64 { return binary.LittleEndian.Uint64(m[16:24]) }
func (m Metadata) SetNumLayers(v uint64) {
	binary.LittleEndian.PutUint64(m[16:24], v)
}

func (h FilterHeader) Size() uint64     { return binary.LittleEndian.Uint64(h[0:8]) }
func (h FilterHeader) SetSize(v uint64) { binary.LittleEndian.PutUint64(h[0:8], v) }

func (h FilterHeader) Capacity() uint64 { return binary.LittleEndian.Uint64(h[8:16]) }
func (h FilterHeader) SetCapacity(v uint64) {
	binary.LittleEndian.PutUint64(h[8:16], v)
}

func (h FilterHeader) Count() uint64 { return binary.LittleEndian.Uint64(h[16:24]) }
func (h FilterHeader) SetCount(v uint64) {
	binary.LittleEndian.PutUint64(h[16:24], v)
}

func (h FilterHeader) ErrorRate() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(h[24:32]))
}
func (h FilterHeader) SetErrorRate(v float64) {
	binary.LittleEndian.PutUint64(h[24:32], math.Float64bits(v))
}
