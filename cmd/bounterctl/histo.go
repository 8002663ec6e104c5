package main

import (
	"flag"
	"fmt"
	"log/slog"
)

func runHisto(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("histo", flag.ExitOnError)
	in := fs.String("in", "", "snapshot path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("histo: -in is required")
	}

	counter, err := loadSnapshot(*in)
	if err != nil {
		return err
	}

	for i, bin := range counter.Histo() {
		if bin.Count == 0 {
			continue
		}
		fmt.Printf("bin %3d  [%d, %d]  count=%d\n", i, bin.Min, bin.Max, bin.Count)
	}
	return nil
}
