package topk

// heapItem is one tracked key inside the min-heap.
type heapItem struct {
	Key         string
	Count       uint64
	Fingerprint uint64
}

// minHeap is a manual binary min-heap over heapItem, ordered by Count with
// Fingerprint as a deterministic tiebreaker. container/heap is avoided here
// to skip the interface{} boxing it would impose on every push/pop.
type minHeap []heapItem

// linearSearch scans backward for key. For the small K values a Tracker
// uses (tens, not thousands), this beats a hash-table lookup: the slice
// stays resident in cache and the scan is branch-predictable.
func (h minHeap) linearSearch(key string) (int, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Key == key {
			return i, true
		}
	}
	return -1, false
}

func (h minHeap) less(i, j int) bool {
	if h[i].Count != h[j].Count {
		return h[i].Count < h[j].Count
	}
	return h[i].Fingerprint < h[j].Fingerprint
}

func (h minHeap) swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) push(x heapItem) {
	*h = append(*h, x)
	h.up(len(*h) - 1)
}

func (h minHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h minHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
	return i > i0
}

// fix restores the heap invariant after element i's count has changed.
func (h *minHeap) fix(i int) {
	if !h.down(i, len(*h)) {
		h.up(i)
	}
}
