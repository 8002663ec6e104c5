package bloom

import (
	"errors"
	"unsafe"
)

// layerOffset indexes one layer's header and Block array within the
// filter's backing slice.
type layerOffset struct {
	header FilterHeader
	data   []Block
}

// reloadLayers rescans the backing slice and rebuilds the layer index. It
// must run after construction and after any growth that may have
// reallocated backing (invalidating prior unsafe pointers into it).
func (sf *Filter) reloadLayers() error {
	rawCount := sf.Metadata().NumLayers()
	if rawCount > MaxLayers {
		return errors.New("bloom: too many layers (possible corruption)")
	}
	numLayers := int(rawCount)

	layers := *sf.layers
	if cap(layers) >= numLayers {
		layers = layers[:0]
	} else {
		layers = make([]layerOffset, 0, numLayers)
	}

	offset := MetadataSize
	dataLen := len(sf.backing)

	for i := 0; i < numLayers; i++ {
		if offset+LayerHeaderSize > dataLen {
			return errors.New("bloom: buffer too short for layer header")
		}
		hdr := FilterHeader(sf.backing[offset : offset+LayerHeaderSize])
		offset += LayerHeaderSize

		dataSize := int(hdr.Size())
		if offset+dataSize > dataLen {
			return errors.New("bloom: buffer too short for layer data")
		}
		if dataSize%64 != 0 {
			return errors.New("bloom: layer size not aligned to 64 bytes")
		}

		numBlocks := dataSize / 64
		ptr := unsafe.Pointer(&sf.backing[offset])
		blocks := unsafe.Slice((*Block)(ptr), numBlocks)

		layers = append(layers, layerOffset{header: hdr, data: blocks})
		offset += dataSize
	}

	*sf.layers = layers
	return nil
}

// addLayer appends a new layer sized for cap items at errRate, then
// reindexes since backing may have moved.
func (sf *Filter) addLayer(cap uint64, errRate float64) error {
	size, _ := EstimateParameters(cap, errRate)

	hdrBytes := make([]byte, LayerHeaderSize)
	hdr := FilterHeader(hdrBytes)
	hdr.SetSize(size)
	hdr.SetCapacity(cap)
	hdr.SetCount(0)
	hdr.SetErrorRate(errRate)

	dataBytes := make([]byte, size)
	sf.backing = append(sf.backing, hdrBytes...)
	sf.backing = append(sf.backing, dataBytes...)

	sf.Metadata().SetNumLayers(sf.Metadata().NumLayers() + 1)

	return sf.reloadLayers()
}
