// Package chunkrange compresses a sorted set of chunk indices into a
// compact run-length notation ("1-3,5,7-9") for log lines, adapted from
// the teacher's control-stream range compressor and reused here to report
// the chunk range of the upload a worker stream binds to without spamming
// one log line per chunk.
package chunkrange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Compress renders a set of chunk indices (order-independent input) as
// comma-separated runs, e.g. [1,2,3,5,7,8,9] -> "1-3,5,7-9".
func Compress(indices []int64) string {
	if len(indices) == 0 {
		return ""
	}
	sorted := append([]int64(nil), indices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var parts []string
	runStart := sorted[0]
	runEnd := sorted[0]
	flush := func() {
		if runStart == runEnd {
			parts = append(parts, strconv.FormatInt(runStart, 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", runStart, runEnd))
		}
	}
	for _, v := range sorted[1:] {
		if v == runEnd+1 {
			runEnd = v
			continue
		}
		if v == runEnd {
			continue // duplicate
		}
		flush()
		runStart, runEnd = v, v
	}
	flush()
	return strings.Join(parts, ",")
}

// Decompress parses the notation produced by Compress back into a sorted
// slice of indices.
func Decompress(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		if dash := strings.IndexByte(part, '-'); dash > 0 {
			lo, err := strconv.ParseInt(part[:dash], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("chunkrange: %q: %w", part, err)
			}
			hi, err := strconv.ParseInt(part[dash+1:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("chunkrange: %q: %w", part, err)
			}
			for v := lo; v <= hi; v++ {
				out = append(out, v)
			}
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chunkrange: %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
