package bounter

// HistoBin is one row of the histo() debug dump: the inclusive count range
// a bin covers and how many occupied cells currently fall in it (bin 0
// holds the count-0 zombie cells).
type HistoBin struct {
	Min   int64
	Max   int64
	Count uint32
}

// Histo returns the 256-bin histogram as bin ranges plus counts, for
// debugging and for cmd/bounterctl's `histo` subcommand.
func (c *Counter) Histo() []HistoBin {
	bins := make([]HistoBin, 256)
	for i := range bins {
		bins[i] = HistoBin{
			Min:   histoBinLowerBound(i),
			Max:   histoBinUpperBound(i),
			Count: c.histo[i],
		}
	}
	return bins
}
