package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bounterhq/bounter/internal/bounter"
)

func loadSnapshot(path string) (*bounter.Counter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bounter.Restore(data)
}

func runStats(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	in := fs.String("in", "", "snapshot path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("stats: -in is required")
	}

	counter, err := loadSnapshot(*in)
	if err != nil {
		return err
	}

	fmt.Printf("buckets:     %d\n", counter.Buckets())
	fmt.Printf("total:       %d\n", counter.Total())
	fmt.Printf("cardinality: %d\n", counter.Cardinality())
	fmt.Printf("quality:     %.4f\n", counter.Quality())
	fmt.Printf("mem:         %d bytes\n", counter.Mem())
	return nil
}
