package progress

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
	tb = 1 << 40
)

// FormatBytes formats a byte count as a human-readable string using binary
// divisors, at most two decimal places, with trailing zeros trimmed:
// 0 -> "0 B", 1536 -> "1.5 KB", 1048576 -> "1 MB".
func FormatBytes(b int64) string {
	switch {
	case b >= tb:
		return trimmed(float64(b)/tb) + " TB"
	case b >= gb:
		return trimmed(float64(b)/gb) + " GB"
	case b >= mb:
		return trimmed(float64(b)/mb) + " MB"
	case b >= kb:
		return trimmed(float64(b)/kb) + " KB"
	default:
		return strconv.FormatInt(b, 10) + " B"
	}
}

func trimmed(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// ParseBytes parses a human-readable byte string (e.g. "64KB", "1.5MB")
// using the same binary divisors as FormatBytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "TB"):
		multiplier = tb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = gb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = mb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = kb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	var value float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &value); err != nil {
		return 0, fmt.Errorf("progress: invalid byte string %q", s)
	}

	return int64(value * float64(multiplier)), nil
}
