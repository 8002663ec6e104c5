// Package topk implements HeavyKeeper, a probabilistic top-K heavy-hitter
// tracker: a bucket array in the style of a Count-Min Sketch, paired with
// probabilistic decay so that low-frequency keys can't accumulate enough
// count to push a genuine heavy hitter out of the tracked set.
//
// Unlike a Counter, which keeps every surviving key until it is pruned,
// a Tracker only ever reports the current K heaviest keys it has seen — it
// is the right tool when a caller wants "what are the hot keys right now"
// rather than "what is this key's count".
//
// Most keys in a real stream are "mice": low-frequency keys that will never
// enter the top-K set. For these, Tracker avoids touching its min-heap
// entirely by scanning the encoded heap bytes directly and comparing
// against the heap's minimum count; only a key that might actually change
// the heap gets it parsed into Go structs ("hydrated").
//
// Binary layout: a 28-byte header (magic, k, width, depth, decay, heap
// entry count) followed by width*depth 16-byte buckets (fingerprint +
// count), followed by the heap entries (key length, key bytes, count,
// fingerprint).
package topk

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	Magic uint32 = 0x4B504F54 // "TOPK" little-endian

	// HeaderSize is magic(4) + k(4) + width(4) + depth(4) + decay(8) + heapCount(4).
	HeaderSize = 28

	decayLookupSize = 256
)

var (
	ErrInvalidData  = errors.New("topk: invalid data")
	ErrInvalidMagic = errors.New("topk: invalid magic")

	rngSeed uint64 = 1

	defaultDecayThresholds [decayLookupSize]uint64
	decayTableCache        sync.Map
)

func init() {
	for i := 0; i < decayLookupSize; i++ {
		prob := math.Pow(0.9, float64(i))
		if prob >= 1.0 {
			defaultDecayThresholds[i] = math.MaxUint64
		} else {
			defaultDecayThresholds[i] = uint64(prob * float64(math.MaxUint64))
		}
	}
}

// Eviction describes what happened when Add pushed a key through the
// tracker: either nothing (the key settled into or stayed in the top-K set)
// or a key (possibly the one just added) fell out of it.
type Eviction struct {
	Happened bool
	Key      string
	Count    uint64
}

// Config sets a Tracker's dimensions.
type Config struct {
	K     int
	Width int
	Depth int
	Decay float64
}

func DefaultConfig() Config {
	return Config{K: 50, Width: 2048, Depth: 5, Decay: 0.9}
}

// Tracker implements HeavyKeeper over a zero-copy backing buffer, with a
// lazily-hydrated min-heap of the current top-K keys.
type Tracker struct {
	backing []byte

	k     int
	width int
	depth int
	decay float64

	widthMask uint64 // width-1 if width is a power of two, else math.MaxUint64

	heap         minHeap
	heapHydrated bool
	heapDirty    bool

	decayThresholds *[decayLookupSize]uint64
	rngState        uint64
}

// New creates an empty Tracker.
func New(cfg Config) *Tracker {
	if cfg.K <= 0 {
		cfg.K = 50
	}
	if cfg.Width <= 0 {
		cfg.Width = 2048
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 5
	}
	if cfg.Decay <= 0 || cfg.Decay >= 1 {
		cfg.Decay = 0.9
	}

	bucketsSize := cfg.Width * cfg.Depth * 16
	backing := make([]byte, HeaderSize+bucketsSize)

	binary.LittleEndian.PutUint32(backing[0:4], Magic)
	binary.LittleEndian.PutUint32(backing[4:8], uint32(cfg.K))
	binary.LittleEndian.PutUint32(backing[8:12], uint32(cfg.Width))
	binary.LittleEndian.PutUint32(backing[12:16], uint32(cfg.Depth))
	binary.LittleEndian.PutUint64(backing[16:24], math.Float64bits(cfg.Decay))
	binary.LittleEndian.PutUint32(backing[24:28], 0)

	tk := &Tracker{
		backing:      backing,
		k:            cfg.K,
		width:        cfg.Width,
		depth:        cfg.Depth,
		decay:        cfg.Decay,
		heap:         make(minHeap, 0, cfg.K),
		heapHydrated: true,
		rngState:     atomic.AddUint64(&rngSeed, 1),
	}
	tk.initWidthMask()
	tk.initDecayThresholds()
	return tk
}

// NewFromBytes wraps an encoded Tracker without parsing its heap until
// needed.
func NewFromBytes(data []byte) (*Tracker, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidData
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}

	k := int(binary.LittleEndian.Uint32(data[4:8]))
	width := int(binary.LittleEndian.Uint32(data[8:12]))
	depth := int(binary.LittleEndian.Uint32(data[12:16]))
	decay := math.Float64frombits(binary.LittleEndian.Uint64(data[16:24]))
	if k <= 0 || width <= 0 || depth <= 0 {
		return nil, ErrInvalidData
	}

	heapStart := HeaderSize + width*depth*16
	if len(data) < heapStart {
		return nil, ErrInvalidData
	}

	tk := &Tracker{
		backing:      data,
		k:            k,
		width:        width,
		depth:        depth,
		decay:        decay,
		heapHydrated: false,
		rngState:     atomic.AddUint64(&rngSeed, 1),
	}
	tk.initWidthMask()
	tk.initDecayThresholds()
	return tk, nil
}

// HasValidMagic reports whether data begins with the tracker's magic.
func HasValidMagic(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == Magic
}

func (tk *Tracker) initWidthMask() {
	if tk.width&(tk.width-1) == 0 {
		tk.widthMask = uint64(tk.width - 1)
	} else {
		tk.widthMask = math.MaxUint64
	}
}

func (tk *Tracker) initDecayThresholds() {
	if tk.decay == 0.9 {
		tk.decayThresholds = &defaultDecayThresholds
		return
	}
	bits := math.Float64bits(tk.decay)
	if cached, ok := decayTableCache.Load(bits); ok {
		tk.decayThresholds = cached.(*[decayLookupSize]uint64)
		return
	}
	table := &[decayLookupSize]uint64{}
	for i := 0; i < decayLookupSize; i++ {
		prob := math.Pow(tk.decay, float64(i))
		if prob >= 1.0 {
			table[i] = math.MaxUint64
		} else {
			table[i] = uint64(prob * float64(math.MaxUint64))
		}
	}
	decayTableCache.Store(bits, table)
	tk.decayThresholds = table
}

// decays reports, with probability decay^count, whether a colliding
// bucket's count should be knocked down by one.
func (tk *Tracker) decays(count uint64) bool {
	x := tk.rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	tk.rngState = x

	if count < decayLookupSize {
		return x < tk.decayThresholds[count]
	}
	threshold := uint64(math.Pow(tk.decay, float64(count)) * float64(math.MaxUint64))
	return x < threshold
}

func (tk *Tracker) bucketsEnd() int { return HeaderSize + tk.width*tk.depth*16 }

func (tk *Tracker) hydrateHeap() {
	if tk.heapHydrated {
		return
	}
	offset := tk.bucketsEnd()
	heapN := int(binary.LittleEndian.Uint32(tk.backing[24:28]))
	tk.heap = make(minHeap, 0, tk.k)

	for i := 0; i < heapN; i++ {
		kLen := int(binary.LittleEndian.Uint32(tk.backing[offset:]))
		offset += 4
		key := string(tk.backing[offset : offset+kLen])
		offset += kLen
		count := binary.LittleEndian.Uint64(tk.backing[offset:])
		offset += 8
		fp := binary.LittleEndian.Uint64(tk.backing[offset:])
		offset += 8
		tk.heap = append(tk.heap, heapItem{Key: key, Count: count, Fingerprint: fp})
	}
	tk.heapHydrated = true
}

// rawHeapSearch scans the encoded heap for key without hydrating it.
func (tk *Tracker) rawHeapSearch(key string) (bool, uint64) {
	offset := tk.bucketsEnd()
	heapN := int(binary.LittleEndian.Uint32(tk.backing[24:28]))
	targetLen := len(key)

	for i := 0; i < heapN; i++ {
		kLen := int(binary.LittleEndian.Uint32(tk.backing[offset:]))
		offset += 4
		if kLen == targetLen && string(tk.backing[offset:offset+kLen]) == key {
			offset += kLen
			return true, binary.LittleEndian.Uint64(tk.backing[offset:])
		}
		offset += kLen + 16
	}
	return false, 0
}

func (tk *Tracker) minHeapCount() uint64 {
	offset := tk.bucketsEnd()
	kLen := int(binary.LittleEndian.Uint32(tk.backing[offset:]))
	offset += 4 + kLen
	return binary.LittleEndian.Uint64(tk.backing[offset:])
}

// Add feeds each key one increment through the HeavyKeeper buckets and top-K
// heap, reporting per-key what (if anything) got evicted as a result.
func (tk *Tracker) Add(keys []string) []Eviction {
	evictions := make([]Eviction, len(keys))

	heapN := int(binary.LittleEndian.Uint32(tk.backing[24:28]))
	var minCount uint64
	canSkipHeap := !tk.heapHydrated && heapN == tk.k
	if canSkipHeap {
		minCount = tk.minHeapCount()
	}

	depth := uint64(tk.depth)
	width := uint64(tk.width)
	widthMask := tk.widthMask
	bucketsEnd := tk.bucketsEnd()
	_ = tk.backing[bucketsEnd-1]

	for i, key := range keys {
		h64 := xxhash.Sum64String(key)
		fingerprint := h64
		var maxCount uint64

		for d := uint64(0); d < depth; d++ {
			hashed := mix(h64 ^ d)
			var idx uint64
			if widthMask != math.MaxUint64 {
				idx = hashed & widthMask
			} else {
				idx = hashed % width
			}
			off := HeaderSize + int((d*width+idx)<<4)

			fp := binary.LittleEndian.Uint64(tk.backing[off:])
			cnt := binary.LittleEndian.Uint64(tk.backing[off+8:])

			switch {
			case cnt == 0:
				binary.LittleEndian.PutUint64(tk.backing[off:], fingerprint)
				binary.LittleEndian.PutUint64(tk.backing[off+8:], 1)
				if maxCount < 1 {
					maxCount = 1
				}
			case fp == fingerprint:
				cnt++
				binary.LittleEndian.PutUint64(tk.backing[off+8:], cnt)
				if cnt > maxCount {
					maxCount = cnt
				}
			case tk.decays(cnt):
				cnt--
				if cnt == 0 {
					binary.LittleEndian.PutUint64(tk.backing[off:], fingerprint)
					binary.LittleEndian.PutUint64(tk.backing[off+8:], 1)
					if maxCount < 1 {
						maxCount = 1
					}
				} else {
					binary.LittleEndian.PutUint64(tk.backing[off+8:], cnt)
				}
			}
		}

		if canSkipHeap && maxCount < minCount {
			evictions[i] = Eviction{Happened: true, Key: key, Count: maxCount}
			continue
		}

		if tk.heapHydrated {
			evictions[i] = tk.addToHeap(key, maxCount, fingerprint)
			if len(tk.heap) == tk.k {
				minCount = tk.heap[0].Count
			}
			continue
		}

		inHeap, currentCount := tk.rawHeapSearch(key)
		switch {
		case inHeap:
			if maxCount > currentCount {
				tk.hydrateHeap()
				evictions[i] = tk.addToHeap(key, maxCount, fingerprint)
				canSkipHeap = false
			}
		case heapN < tk.k:
			tk.hydrateHeap()
			evictions[i] = tk.addToHeap(key, maxCount, fingerprint)
			heapN = len(tk.heap)
			canSkipHeap = false
		default:
			tk.hydrateHeap()
			evictions[i] = tk.addToHeap(key, maxCount, fingerprint)
			minCount = tk.heap[0].Count
			canSkipHeap = false
		}
	}

	return evictions
}

func (tk *Tracker) addToHeap(key string, count, fp uint64) Eviction {
	idx, found := tk.heap.linearSearch(key)
	if found {
		if count > tk.heap[idx].Count {
			tk.heap[idx].Count = count
			tk.heap.fix(idx)
			tk.heapDirty = true
		}
		return Eviction{}
	}

	if len(tk.heap) < tk.k {
		tk.heap.push(heapItem{Key: key, Count: count, Fingerprint: fp})
		tk.heapDirty = true
		return Eviction{}
	}

	min := tk.heap[0]
	if count > min.Count {
		tk.heap[0] = heapItem{Key: key, Count: count, Fingerprint: fp}
		tk.heap.fix(0)
		tk.heapDirty = true
		return Eviction{Happened: true, Key: min.Key, Count: min.Count}
	}
	return Eviction{Happened: true, Key: key, Count: count}
}

// Query reports whether key is currently in the top-K set and, if so, its
// tracked count.
func (tk *Tracker) Query(key string) (bool, uint64) {
	if tk.heapHydrated {
		if idx, found := tk.heap.linearSearch(key); found {
			return true, tk.heap[idx].Count
		}
		return false, 0
	}
	return tk.rawHeapSearch(key)
}

// List returns the current top-K keys, sorted by count descending.
func (tk *Tracker) List() []Item {
	tk.hydrateHeap()
	out := make([]Item, len(tk.heap))
	for i, it := range tk.heap {
		out[i] = Item{Key: it.Key, Count: it.Count}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Item is one entry of List's result.
type Item struct {
	Key   string
	Count uint64
}

func (tk *Tracker) K() int         { return tk.k }
func (tk *Tracker) Width() int     { return tk.width }
func (tk *Tracker) Depth() int     { return tk.depth }
func (tk *Tracker) Decay() float64 { return tk.decay }

// Bytes returns the encoded Tracker, rebuilding the heap section first if
// it has been modified since the last call.
func (tk *Tracker) Bytes() []byte {
	if !tk.heapDirty {
		return tk.backing
	}

	bucketsEnd := tk.bucketsEnd()
	heapSize := 0
	for _, item := range tk.heap {
		heapSize += 4 + len(item.Key) + 16
	}
	total := bucketsEnd + heapSize

	if cap(tk.backing) < total {
		newBacking := make([]byte, total)
		copy(newBacking, tk.backing[:bucketsEnd])
		tk.backing = newBacking
	} else {
		tk.backing = tk.backing[:total]
	}

	binary.LittleEndian.PutUint32(tk.backing[24:28], uint32(len(tk.heap)))

	offset := bucketsEnd
	for _, item := range tk.heap {
		binary.LittleEndian.PutUint32(tk.backing[offset:], uint32(len(item.Key)))
		offset += 4
		copy(tk.backing[offset:], item.Key)
		offset += len(item.Key)
		binary.LittleEndian.PutUint64(tk.backing[offset:], item.Count)
		offset += 8
		binary.LittleEndian.PutUint64(tk.backing[offset:], item.Fingerprint)
		offset += 8
	}

	tk.heapDirty = false
	return tk.backing
}

// mix applies SplitMix64 to decorrelate bucket indices derived from the
// same base hash.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
