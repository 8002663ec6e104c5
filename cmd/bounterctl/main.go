// bounterctl drives an internal/bounter Counter from the command line: feed
// it a key stream, inspect its state, and round-trip it through the wire
// snapshot format. It also runs the companion sketches (Count-Min, top-K,
// Bloom) over the same stream, so their different approximation strategies
// can be compared side by side against the counter's own answers.
//
// Usage
// =====
//
//	bounterctl load -buckets 1048576 -in keys.txt -out counter.snap
//	bounterctl stats -in counter.snap
//	bounterctl histo -in counter.snap
//	bounterctl top -in counter.snap -n 20
//	bounterctl snapshot -buckets 1048576 -in keys.txt -out counter.snap
//	bounterctl restore -in counter.snap
//	bounterctl cms -in keys.txt -width 2048 -depth 5
//	bounterctl topk -in keys.txt -k 20
//	bounterctl bloom -in keys.txt -capacity 10000 -error-rate 0.01
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "load":
		err = runLoad(logger, args)
	case "stats":
		err = runStats(logger, args)
	case "histo":
		err = runHisto(logger, args)
	case "top":
		err = runTop(logger, args)
	case "snapshot":
		err = runSnapshot(logger, args)
	case "restore":
		err = runRestore(logger, args)
	case "cms":
		err = runCMS(logger, args)
	case "topk":
		err = runTopK(logger, args)
	case "bloom":
		err = runBloom(logger, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bounterctl <load|stats|histo|top|snapshot|restore|cms|topk|bloom> [flags]")
}
