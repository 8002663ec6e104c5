package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/bounterhq/bounter/internal/bounter"
	"github.com/bounterhq/bounter/internal/sketches/cms"
)

func runCMS(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("cms", flag.ExitOnError)
	buckets := fs.Uint64("buckets", 1<<20, "counter table capacity")
	in := fs.String("in", "-", "input key stream path, or - for stdin")
	width := fs.Uint("width", 2048, "sketch width")
	depth := fs.Uint("depth", 5, "sketch depth")
	n := fs.Int("n", 20, "number of keys to compare")
	if err := fs.Parse(args); err != nil {
		return err
	}

	counter, err := bounter.New(*buckets)
	if err != nil {
		return err
	}
	sketch := cms.New(uint32(*width), uint32(*depth))

	f, err := openInput(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	keys, err := readKeyStream(f)
	if err != nil {
		return err
	}
	for _, kc := range keys {
		if err := counter.Increment([]byte(kc.key), kc.delta); err != nil {
			logger.Warn("increment failed", "key", kc.key, "error", err)
			continue
		}
		sketch.Incr([]byte(kc.key), uint32(kc.delta))
	}

	seen := make(map[string]bool, len(keys))
	shown := 0
	fmt.Printf("%-24s %12s %12s\n", "key", "exact", "cms")
	for _, kc := range keys {
		if seen[kc.key] || shown >= *n {
			continue
		}
		seen[kc.key] = true
		shown++

		exact, err := counter.Get([]byte(kc.key))
		if err != nil {
			return err
		}
		fmt.Printf("%-24s %12d %12d\n", kc.key, exact, sketch.Query([]byte(kc.key)))
	}
	return nil
}
