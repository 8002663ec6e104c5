package bounter

import "math"

// Increment adds delta to key's count, allocating the key if it does not
// already exist. delta must be non-negative; delta == 0 is a no-op that
// still validates the key.
//
// If the addition would overflow a 64-bit signed counter, Increment returns
// an Overflow error and leaves the cell allocated at its prior count — a
// "zombie" if that prior count was 0 — which prune reclaims later.
func (c *Counter) Increment(key []byte, delta int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if delta < 0 {
		return invalidArgument("delta must be non-negative, got %d", delta)
	}
	if delta == 0 {
		return nil
	}

	cell := c.allocateCell(key)

	if cell.count > math.MaxInt64-delta {
		return overflow("count for key would exceed the 64-bit signed maximum")
	}

	c.histo[histoBin(cell.count)]--
	cell.count += delta
	c.histo[histoBin(cell.count)]++
	c.total += delta
	return nil
}

// Set assigns value as key's count. value must be non-negative. Setting a
// non-existent key to 0 is a no-op.
func (c *Counter) Set(key []byte, value int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if value < 0 {
		return invalidArgument("value must be non-negative, got %d", value)
	}

	var cell *cell
	if value > 0 {
		cell = c.allocateCell(key)
	} else {
		cell = c.findCell(key, false)
		if !cell.occupied() {
			return nil
		}
	}

	c.histo[histoBin(cell.count)]--
	c.histo[histoBin(value)]++
	c.total += value - cell.count
	cell.count = value
	return nil
}

// Delete zeroes key's count without reclaiming its slot, leaving a count-0
// zombie cell that preserves the probe chain until the next prune reclaims it.
// Deleting an absent key is a no-op.
func (c *Counter) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cell := c.findCell(key, false)
	if !cell.occupied() {
		return nil
	}

	c.histo[histoBin(cell.count)]--
	c.histo[0]++
	c.total -= cell.count
	cell.count = 0
	return nil
}

// Get returns key's current count, or 0 if the key has never been
// inserted (or was deleted/pruned away).
func (c *Counter) Get(key []byte) (int64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	cell := c.findCell(key, false)
	if !cell.occupied() {
		return 0, nil
	}
	return cell.count, nil
}
