package main

import (
	"flag"
	"fmt"
	"log/slog"
	"sort"
)

type keyValue struct {
	key   string
	value int64
}

func runTop(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	in := fs.String("in", "", "snapshot path (required)")
	n := fs.Int("n", 20, "number of keys to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("top: -in is required")
	}

	counter, err := loadSnapshot(*in)
	if err != nil {
		return err
	}

	var rows []keyValue
	it := counter.Items()
	for it.Next() {
		value, err := it.Value()
		if err != nil {
			return err
		}
		rows = append(rows, keyValue{key: string(it.Key()), value: value})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].value > rows[j].value })

	if *n < len(rows) {
		rows = rows[:*n]
	}
	for _, row := range rows {
		fmt.Printf("%d\t%s\n", row.value, row.key)
	}
	return nil
}
