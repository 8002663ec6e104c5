package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bounterhq/bounter/internal/bounter"
)

func runSnapshot(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	buckets := fs.Uint64("buckets", 1<<20, "table capacity (rounded down to a power of two)")
	in := fs.String("in", "-", "input key stream path, or - for stdin")
	out := fs.String("out", "", "snapshot output path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("snapshot: -out is required")
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

	return os.WriteFile(*out, counter.Snapshot(), 0o644)
}

func runRestore(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	in := fs.String("in", "", "snapshot path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("restore: -in is required")
	}

	counter, err := loadSnapshot(*in)
	if err != nil {
		return err
	}

	fmt.Printf("restored: buckets=%d total=%d cardinality=%d\n",
		counter.Buckets(), counter.Total(), counter.Cardinality())
	return nil
}
