package bounter

// pruneBoundary finds the maximum count that will be evicted by the next
// automatic prune: the smallest histogram bin k such that the cumulative
// count of bins 0..k reaches size - buckets/2 (so evicting them leaves at
// most half the table occupied), converted back to a count value as the
// upper edge of bin k (the lower edge of bin k+1, minus one).
func (c *Counter) pruneBoundary() int64 {
	required := uint64(c.size) - uint64(len(c.cells))>>1

	index := 0
	var removing uint64
	for removing < required && index < 255 {
		removing += uint64(c.histo[index])
		index++
	}

	return histoBinLowerBound(index) - 1
}

// Prune evicts every cell whose count is <= boundary and compacts the
// table in place, preserving linear-probing chain invariants for every
// surviving cell. It is exposed publicly so callers can
// force a prune at a caller-chosen boundary in addition to the automatic
// prune triggered by allocateCell.
func (c *Counter) Prune(boundary int64) {
	c.pruneInternal(boundary)
}

func (c *Counter) pruneInternal(boundary int64) {
	if boundary > c.maxPrune {
		c.maxPrune = boundary
	}

	for i := range c.histo {
		c.histo[i] = 0
	}

	mask := c.mask

	// Find any empty slot. One must exist: size stays strictly below
	// buckets in steady state, so at least one slot is never occupied.
	// Starting the walk from an empty slot guarantees every probe chain
	// crossing it has already been, or will be, processed exactly once as
	// we sweep forward.
	var start uint32
	for c.cells[start&mask].occupied() {
		start++
	}
	start &= mask

	var size uint32
	i := start
	lastFree := start
	for {
		i = (i + 1) & mask
		if i == start {
			break
		}

		cell := &c.cells[i]
		if !cell.occupied() {
			lastFree = i
			continue
		}

		if cell.count > boundary {
			// Survivor: decide whether it can move backward to reclaim
			// space freed by earlier evictions.
			ideal := c.bucket(cell.key, false)

			target := ideal
			if cyclicDist(i, lastFree, mask) > cyclicDist(i, ideal, mask) {
				target = i
			}
			for target != i && c.cells[target].occupied() {
				target = (target + 1) & mask
			}

			if target != i {
				c.cells[target].key = cell.key
				c.cells[target].count = cell.count
				cell.key = nil
				cell.count = 0
				lastFree = i
			}

			c.histo[histoBin(c.cells[target].count)]++
			size++
		} else {
			// Victim.
			c.total -= cell.count
			c.strAlloc -= uint64(len(cell.key)) + 1
			cell.key = nil
			cell.count = 0
			lastFree = i
		}
	}

	c.size = size
}

// cyclicDist is (i-from) & mask, the forward distance used to compare how
// far a key has drifted from its ideal bucket against how far it has
// drifted from the most recent empty slot.
func cyclicDist(i, from, mask uint32) uint32 {
	return (i - from) & mask
}
