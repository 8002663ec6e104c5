package main

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// keyCount is one line of a key stream: a key and the delta it contributes
// (1 for a bare key, or the tab-separated count if supplied).
type keyCount struct {
	key   string
	delta int64
}

// openInput opens path for reading, or returns stdin when path is "" or "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readKeyStream reads newline-delimited keys, each optionally followed by a
// tab and an integer count (defaulting to 1 when absent). Blank lines are
// skipped.
func readKeyStream(r io.Reader) ([]keyCount, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var out []keyCount
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		key := line
		delta := int64(1)
		if idx := strings.IndexByte(line, '\t'); idx >= 0 {
			key = line[:idx]
			parsed, err := strconv.ParseInt(line[idx+1:], 10, 64)
			if err != nil {
				return nil, err
			}
			delta = parsed
		}
		out = append(out, keyCount{key: key, delta: delta})
	}
	return out, scanner.Err()
}

// aggregate merges a key stream into the map[string]int64 shape
// Counter.Update accepts, summing the delta of repeated keys so the whole
// stream can be applied in a single Update call.
func aggregate(keys []keyCount) map[string]int64 {
	totals := make(map[string]int64, len(keys))
	for _, kc := range keys {
		totals[kc.key] += kc.delta
	}
	return totals
}
