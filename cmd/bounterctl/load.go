package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bounterhq/bounter/internal/bounter"
)

func runLoad(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	buckets := fs.Uint64("buckets", 1<<20, "table capacity (rounded down to a power of two)")
	in := fs.String("in", "-", "input key stream path, or - for stdin")
	out := fs.String("out", "", "snapshot output path; empty prints stats only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	counter, err := bounter.New(*buckets)
	if err != nil {
		return err
	}

	f, err := openInput(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	keys, err := readKeyStream(f)
	if err != nil {
		return err
	}

	if err := counter.Update(aggregate(keys)); err != nil {
		logger.Warn("update failed", "error", err)
	}

	fmt.Printf("loaded %d lines\n", len(keys))
	fmt.Printf("total=%d cardinality=%d quality=%.3f buckets=%d mem=%d\n",
		counter.Total(), counter.Cardinality(), counter.Quality(), counter.Buckets(), counter.Mem())

	if *out != "" {
		return os.WriteFile(*out, counter.Snapshot(), 0o644)
	}
	return nil
}
