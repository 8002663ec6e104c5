package bounter

import (
	"fmt"
	"math"
	"sort"
	"testing"
)

func TestNewRoundsCapacityDown(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New(10): %v", err)
	}
	if got := c.Buckets(); got != 8 {
		t.Errorf("Buckets() = %d, want 8", got)
	}
}

func TestNewRejectsTooFewBuckets(t *testing.T) {
	_, err := New(3)
	if err == nil {
		t.Fatal("expected error for buckets=3")
	}
	var berr *Error
	if !asError(err, &berr) || berr.Kind != InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestScenario1CountIdentity(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	must(t, c.Increment([]byte("a"), 1))
	must(t, c.Increment([]byte("a"), 3))
	must(t, c.Increment([]byte("b"), 1))

	if got, _ := c.Get([]byte("a")); got != 4 {
		t.Errorf("get(a) = %d, want 4", got)
	}
	if got, _ := c.Get([]byte("b")); got != 1 {
		t.Errorf("get(b) = %d, want 1", got)
	}
	if c.Total() != 5 {
		t.Errorf("total() = %d, want 5", c.Total())
	}
	if got := c.sizeLive(); got != 2 {
		t.Errorf("size_live = %d, want 2", got)
	}
}

func TestScenario2AutomaticPrune(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 12; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("k%d", i)), 1))
	}

	if c.maxPrune == 0 {
		t.Fatal("expected at least one prune to have occurred")
	}
	if got := c.sizeLive(); got > 4 {
		t.Errorf("size_live = %d, want <= 4", got)
	}
	if c.Total() > 12 {
		t.Errorf("total() = %d, want <= 12", c.Total())
	}

	card := c.Cardinality()
	if card < 10 || card > 14 {
		t.Errorf("cardinality() = %d, want in [10, 14]", card)
	}

	// Surviving keys must be a subset of the inputs.
	seen := map[string]bool{}
	for i := 0; i < 12; i++ {
		seen[fmt.Sprintf("k%d", i)] = true
	}
	it := c.Keys()
	for it.Next() {
		if !seen[string(it.Key())] {
			t.Errorf("surviving key %q was never inserted", it.Key())
		}
	}
}

func TestScenario3DeleteLeavesZombie(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	must(t, c.Set([]byte("x"), 100))
	must(t, c.Delete([]byte("x")))

	if got, _ := c.Get([]byte("x")); got != 0 {
		t.Errorf("get(x) = %d, want 0", got)
	}
	if c.Total() != 0 {
		t.Errorf("total() = %d, want 0", c.Total())
	}
	if got := c.sizeLive(); got != 0 {
		t.Errorf("size_live = %d, want 0", got)
	}
	if c.size != 1 {
		t.Errorf("size = %d, want 1 (zombie cell retained until prune)", c.size)
	}
}

func TestScenario4Overflow(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	const half = int64(1) << 62

	must(t, c.Increment([]byte("a"), half))
	if err := c.Increment([]byte("a"), half); err == nil {
		t.Fatal("expected overflow error")
	} else {
		var berr *Error
		if !asError(err, &berr) || berr.Kind != Overflow {
			t.Errorf("expected Overflow, got %v", err)
		}
	}
	if got, _ := c.Get([]byte("a")); got != half {
		t.Errorf("get(a) = %d, want %d", got, half)
	}
}

func TestScenario5UpdateFromMap(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	must(t, c.Update(map[string]int64{"a": 2, "b": 3}))
	if c.Total() != 5 {
		t.Errorf("total() = %d, want 5", c.Total())
	}
}

func TestScenario6SnapshotRoundTrip(t *testing.T) {
	c, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("item-%d", i%337))
		must(t, c.Increment(key, int64(1+i%5)))
	}

	restored, err := Restore(c.Snapshot())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	for i := 0; i < 337; i++ {
		key := []byte(fmt.Sprintf("item-%d", i))
		want, _ := c.Get(key)
		got, _ := restored.Get(key)
		if want != got {
			t.Errorf("get(%s) = %d, want %d", key, got, want)
		}
	}
	if c.Cardinality() != restored.Cardinality() {
		t.Errorf("cardinality mismatch: %d vs %d", restored.Cardinality(), c.Cardinality())
	}
	if c.Total() != restored.Total() {
		t.Errorf("total mismatch: %d vs %d", restored.Total(), c.Total())
	}
}

func TestHistogramInvariant(t *testing.T) {
	c, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("k%d", i%100)), int64(i%7)))
	}

	var sum uint32
	for _, v := range c.histo {
		sum += v
	}
	if sum != c.size {
		t.Errorf("sum(histo) = %d, want size = %d", sum, c.size)
	}

	counted := make([]uint32, 256)
	for _, cell := range c.cells {
		if cell.occupied() {
			counted[histoBin(cell.count)]++
		}
	}
	for i := range counted {
		if counted[i] != c.histo[i] {
			t.Fatalf("bin %d: histo says %d, actual cells say %d", i, c.histo[i], counted[i])
		}
	}
}

func TestProbeChainInvariant(t *testing.T) {
	c, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("probe-%d", i)), 1))
	}

	mask := c.mask
	for i, cell := range c.cells {
		if !cell.occupied() {
			continue
		}
		ideal := c.bucket(cell.key, false)
		// No empty slot may appear in [ideal, i) cyclically, including the
		// home bucket itself: a cell sitting at its own ideal bucket still
		// needs that bucket to be occupied by this check, or an emptied
		// home bucket would silently pass as "no gap found".
		for j := ideal; j != uint32(i); j = (j + 1) & mask {
			if !c.cells[j].occupied() {
				t.Fatalf("empty slot at %d breaks probe chain for cell %d (ideal %d)", j, i, ideal)
			}
		}
	}
}

// TestReachableAfterAutomaticPrune forces an automatic prune via enough
// distinct keys to fill past the 3/4 threshold, then checks that Get can
// still find every key the iterator reports as a survivor with its correct
// count. A prune that fails to compact correctly strands survivors behind
// an emptied home bucket: they stay in the table (the iterator still finds
// them) but findCell can no longer reach them, so Get would report them
// missing and a later re-insert of the same key would double-count it.
func TestReachableAfterAutomaticPrune(t *testing.T) {
	c, err := New(64)
	if err != nil {
		t.Fatal(err)
	}

	const n = 400
	want := make(map[string]int64, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("reach-%d", i)
		delta := int64(1 + i%5)
		must(t, c.Increment([]byte(key), delta))
		want[key] += delta
	}

	if c.maxPrune == 0 {
		t.Fatal("expected at least one prune to have occurred")
	}

	var survivors int
	it := c.Keys()
	for it.Next() {
		key := string(it.Key())
		expected, inserted := want[key]
		if !inserted {
			t.Fatalf("surviving key %q was never inserted", key)
		}

		got, err := c.Get([]byte(key))
		must(t, err)
		if got != expected {
			t.Errorf("Get(%q) = %d, want %d (key unreachable or double-counted after prune)", key, got, expected)
		}
		survivors++
	}

	if survivors == 0 {
		t.Fatal("no keys survived the prune")
	}

	// Re-inserting a survivor must land on its existing cell, not allocate a
	// second one for the same key.
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("reach-%d", i)
		current, err := c.Get([]byte(key))
		if err != nil || current == 0 {
			continue
		}
		must(t, c.Increment([]byte(key), 1))
		got, err := c.Get([]byte(key))
		must(t, err)
		if got != current+1 {
			t.Errorf("re-insert of survivor %q = %d, want %d", key, got, current+1)
		}
	}
}

func TestPruneMonotonicity(t *testing.T) {
	c, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("k%d", i)), int64(i)))
	}

	totalBefore := c.Total()
	sizeBefore := c.size

	var discarded int64
	for _, cell := range c.cells {
		if cell.occupied() && cell.count <= 3 {
			discarded += cell.count
		}
	}

	c.Prune(3)

	for _, cell := range c.cells {
		if cell.occupied() {
			if cell.count <= 3 {
				t.Errorf("surviving cell has count %d, want > 3", cell.count)
			}
		}
	}
	if c.size > sizeBefore {
		t.Errorf("size grew after prune: %d > %d", c.size, sizeBefore)
	}
	if c.Total() != totalBefore-discarded {
		t.Errorf("total() = %d, want %d", c.Total(), totalBefore-discarded)
	}
}

func TestPruneHalving(t *testing.T) {
	c, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("h%d", i)), 1))
	}
	if c.size > uint32(len(c.cells))/2 {
		t.Errorf("size after automatic prunes = %d, want <= %d", c.size, len(c.cells)/2)
	}
}

func TestQualityApproachesOneBeforePrune(t *testing.T) {
	c, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	// Fill to just under the 3/4 threshold without triggering a prune.
	threshold := (len(c.cells) >> 2) * 3
	for i := 0; i < threshold-1; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("q%d", i)), 1))
	}
	if c.maxPrune != 0 {
		t.Fatal("unexpected prune before reaching threshold")
	}
	if q := c.Quality(); q < 0.9 || q > 1.0 {
		t.Errorf("quality = %v, want close to 1", q)
	}
}

func TestItemsIteratorSkipsZombies(t *testing.T) {
	c, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	must(t, c.Set([]byte("live"), 5))
	must(t, c.Set([]byte("dead"), 7))
	must(t, c.Delete([]byte("dead")))

	var keys []string
	it := c.Items()
	for it.Next() {
		v, err := it.Value()
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, fmt.Sprintf("%s=%d", it.Key(), v))
	}
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "live=5" {
		t.Errorf("Items() = %v, want [live=5]", keys)
	}
}

func TestKeysIteratorRejectsValue(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	must(t, c.Set([]byte("a"), 1))
	it := c.Keys()
	it.Next()
	if _, err := it.Value(); err == nil {
		t.Fatal("expected Internal error calling Value() on a keys iterator")
	}
}

func TestRejectsEmbeddedNullByte(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Increment([]byte("a\x00b"), 1); err == nil {
		t.Fatal("expected error for embedded null byte")
	}
}

func TestCardinalityWithinErrorAfterPrune(t *testing.T) {
	c, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	const n = 20000
	for i := 0; i < n; i++ {
		must(t, c.Increment([]byte(fmt.Sprintf("card-%d", i)), 1))
	}
	if c.maxPrune == 0 {
		t.Fatal("expected prunes to have occurred")
	}
	card := float64(c.Cardinality())
	errRate := math.Abs(card-float64(n)) / float64(n)
	if errRate > 0.05 {
		t.Errorf("cardinality error rate = %.4f, want <= 0.05 (n=%d, estimate=%v)", errRate, n, card)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func asError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
