// Package formatting provides parsing helpers for human-readable byte sizes
// and for JSON embedded in model output.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{
	"B", "KB", "MB",
	"GB", "TB", "PB",
}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// Size is a byte count that reads and writes as a human-readable string
// such as "20MB".
type Size int64

// ParseSize parses a size string using base-1024 units. A bare number is
// bytes. Units are case-insensitive and may follow a space.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := bytesPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(matches[2])
	if unit == "" {
		return Size(value), nil
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	return Size(value * math.Pow(1024, float64(idx))), nil
}

// Bytes returns the size as an int64.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String formats the size with the largest unit that keeps the value at or
// above one, using one decimal place when needed.
func (s Size) String() string {
	if s <= 0 {
		return "0B"
	}

	f := float64(s)
	i := int(math.Floor(math.Log(f) / math.Log(1024)))
	i = min(i, len(units)-1)

	v := f / math.Pow(1024, float64(i))
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64) + units[i]
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + units[i]
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
