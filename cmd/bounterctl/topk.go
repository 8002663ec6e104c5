package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/bounterhq/bounter/internal/bounter"
	"github.com/bounterhq/bounter/internal/sketches/topk"
)

func runTopK(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("topk", flag.ExitOnError)
	buckets := fs.Uint64("buckets", 1<<20, "counter table capacity")
	in := fs.String("in", "-", "input key stream path, or - for stdin")
	k := fs.Int("k", 20, "tracked key count")
	width := fs.Int("width", 2048, "sketch width")
	depth := fs.Int("depth", 5, "sketch depth")
	decay := fs.Float64("decay", 0.9, "collision decay factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	counter, err := bounter.New(*buckets)
	if err != nil {
		return err
	}
	tracker := topk.New(topk.Config{K: *k, Width: *width, Depth: *depth, Decay: *decay})

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
		tracker.Add([]string{kc.key})
	}

	fmt.Printf("%-24s %12s %12s\n", "key", "tracked", "exact")
	for _, item := range tracker.List() {
		exact, err := counter.Get([]byte(item.Key))
		if err != nil {
			return err
		}
		fmt.Printf("%-24s %12d %12d\n", item.Key, item.Count, exact)
	}
	return nil
}
