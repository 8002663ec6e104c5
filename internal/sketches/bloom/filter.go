// Package bloom implements a Scalable Blocked Bloom Filter: a set-membership
// sketch that never returns a false negative and bounds its false-positive
// rate by growing, rather than degrading, once a layer saturates.
//
// Two ideas are combined:
//
//  1. Blocked Bloom Filters for cache efficiency. A standard Bloom filter
//     scatters k hash bits across the whole bitset, costing k cache misses
//     per operation on a large filter. Here the bitset is partitioned into
//     64-byte Blocks (one CPU cache line); an item hashes to a single block
//     and all k bits are set within it, so one fetch serves the whole
//     operation.
//  2. Scalable Bloom Filters for unbounded growth. Instead of a fixed
//     capacity whose error rate rises once exceeded, this filter is a chain
//     of layers: when the active layer saturates, a new layer is appended
//     with double the capacity and half the error rate of the one before it,
//     keeping the chain's combined error rate bounded as it grows.
//
// Hashing strategy: the item is hashed once with xxHash64. The raw hash
// picks the block (cache line) within the active layer; a SplitMix64 mix of
// that hash derives a second, decorrelated value used to set k=8 bits inside
// the block via the Kirsch-Mitzenmacher double-hashing scheme.
//
// Memory model: the filter mounts a single backing []byte rather than
// deserializing into Go fields. A Global Metadata header (24 bytes) is
// followed by a variable number of Layers, each a fixed header plus its
// Block array; accessors read and write the backing slice directly in
// little-endian.
package bloom

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultCapacity  = 1000
	DefaultErrorRate = 0.01
	GrowthFactor     = 2
	TighteningRatio  = 0.5

	// MaxLayers bounds how far a filter can grow; capacity doubles per
	// layer, so this comfortably covers any real key stream.
	MaxLayers = 1024
)

// Config bootstraps a filter's first layer. Existing filters ignore Config
// and use their own stored layer parameters.
type Config struct {
	InitialCapacity uint64
	ErrorRate       float64
}

func DefaultConfig() Config {
	return Config{InitialCapacity: DefaultCapacity, ErrorRate: DefaultErrorRate}
}

// Filter is a lightweight view over a backing byte slice holding a chain of
// blocked Bloom filter layers. It carries no data of its own beyond that
// slice and a pooled index of layer offsets.
type Filter struct {
	backing []byte
	layers  *[]layerOffset
	config  Config
}

// Metadata returns a view over the filter's 24-byte global header.
func (sf *Filter) Metadata() Metadata {
	return Metadata(sf.backing[:MetadataSize])
}

// New mounts a Scalable Bloom Filter over raw bytes. Pass data == nil to
// bootstrap an empty filter (no layers allocated until the first Add); pass
// an existing snapshot to load and index it in O(layers) time.
//
// The caller must call Release when done with the filter, to return its
// pooled layer index.
func New(data []byte, cfg Config) (*Filter, error) {
	if cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = DefaultCapacity
	}
	if cfg.ErrorRate <= 0 || cfg.ErrorRate >= 1 {
		cfg.ErrorRate = DefaultErrorRate
	}

	layers := getLayers()

	if data == nil {
		data = make([]byte, MetadataSize)
		sf := &Filter{backing: data, layers: layers, config: cfg}
		meta := sf.Metadata()
		meta.SetMagic(Magic)
		meta.SetTotalItems(0)
		meta.SetNumLayers(0)
		return sf, nil
	}

	if len(data) < MetadataSize {
		putLayers(layers)
		return nil, errors.New("bloom: data too short to be a filter")
	}

	sf := &Filter{backing: data, layers: layers, config: cfg}
	if sf.Metadata().Magic() != Magic {
		putLayers(layers)
		return nil, errors.New("bloom: invalid magic number")
	}
	if err := sf.reloadLayers(); err != nil {
		putLayers(layers)
		return nil, err
	}
	return sf, nil
}

// Release returns the filter's pooled layer index. Safe to call more than
// once; later calls are no-ops.
func (sf *Filter) Release() {
	if sf.layers != nil {
		putLayers(sf.layers)
		sf.layers = nil
	}
	sf.backing = nil
}

// Check reports whether item is probably in the set (true) or definitely
// not (false).
func (sf *Filter) Check(item []byte) bool {
	return sf.checkWithHash(xxhash.Sum64(item))
}

func (sf *Filter) checkWithHash(itemHash uint64) bool {
	layers := *sf.layers
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		numBlocks := uint64(len(layer.data))
		if numBlocks == 0 {
			continue
		}
		blockIdx := itemHash % numBlocks
		internalHash := mix(itemHash)
		if layer.data[blockIdx].Check(internalHash) {
			return true
		}
	}
	return false
}

// Add inserts item into the filter chain, growing a new layer if the active
// one has saturated. It reports whether item was not already present.
func (sf *Filter) Add(item []byte) (bool, error) {
	itemHash := xxhash.Sum64(item)

	if sf.checkWithHash(itemHash) {
		return false, nil
	}

	meta := sf.Metadata()
	numLayers := int(meta.NumLayers())

	if numLayers == 0 {
		if err := sf.addLayer(sf.config.InitialCapacity, sf.config.ErrorRate); err != nil {
			return false, err
		}
		numLayers++
	} else {
		layers := *sf.layers
		last := layers[numLayers-1]
		if last.header.Count() >= last.header.Capacity() {
			if numLayers >= MaxLayers {
				return false, errors.New("bloom: max layers reached")
			}
			newCap := last.header.Capacity() * GrowthFactor
			newErr := last.header.ErrorRate() * TighteningRatio
			if err := sf.addLayer(newCap, newErr); err != nil {
				return false, err
			}
			numLayers++
		}
	}

	layers := *sf.layers
	last := layers[numLayers-1]
	numBlocks := uint64(len(last.data))
	if numBlocks == 0 {
		return false, errors.New("bloom: active layer has zero size")
	}

	blockIdx := itemHash % numBlocks
	internalHash := mix(itemHash)

	if last.data[blockIdx].Add(internalHash) {
		last.header.SetCount(last.header.Count() + 1)
		// addLayer may have reallocated backing; take a fresh view.
		meta = sf.Metadata()
		meta.SetTotalItems(meta.TotalItems() + 1)
		return true, nil
	}
	return false, nil
}

// Bytes returns the filter's backing storage, for persistence.
func (sf *Filter) Bytes() []byte { return sf.backing }
