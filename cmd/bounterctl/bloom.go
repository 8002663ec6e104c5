package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/bounterhq/bounter/internal/bounter"
	"github.com/bounterhq/bounter/internal/sketches/bloom"
)

func runBloom(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("bloom", flag.ExitOnError)
	buckets := fs.Uint64("buckets", 1<<20, "counter table capacity")
	in := fs.String("in", "-", "input key stream path, or - for stdin")
	capacity := fs.Uint64("capacity", bloom.DefaultCapacity, "initial filter capacity")
	errorRate := fs.Float64("error-rate", bloom.DefaultErrorRate, "target false-positive rate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	counter, err := bounter.New(*buckets)
	if err != nil {
		return err
	}
	filter, err := bloom.New(nil, bloom.Config{InitialCapacity: *capacity, ErrorRate: *errorRate})
	if err != nil {
		return err
	}
	defer filter.Release()

	f, err := openInput(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	keys, err := readKeyStream(f)
	if err != nil {
		return err
	}

	var newKeys uint64
	for _, kc := range keys {
		if err := counter.Increment([]byte(kc.key), kc.delta); err != nil {
			logger.Warn("increment failed", "key", kc.key, "error", err)
			continue
		}
		isNew, err := filter.Add([]byte(kc.key))
		if err != nil {
			return err
		}
		if isNew {
			newKeys++
		}
	}

	meta := filter.Metadata()
	fmt.Printf("lines seen:        %d\n", len(keys))
	fmt.Printf("filter new keys:   %d\n", newKeys)
	fmt.Printf("filter layers:     %d\n", meta.NumLayers())
	fmt.Printf("filter total items:%d\n", meta.TotalItems())
	fmt.Printf("counter cardinality: %d\n", counter.Cardinality())
	return nil
}
