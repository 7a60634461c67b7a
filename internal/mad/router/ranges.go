package router

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive class range.
type Range struct {
	Lo uint8
	Hi uint8
}

// RangeSet is a list of inclusive ranges.
type RangeSet []Range

// Contains reports whether class falls in any range.
func (rs RangeSet) Contains(class uint8) bool {
	for _, r := range rs {
		if class >= r.Lo && class <= r.Hi {
			return true
		}
	}
	return false
}

// String renders the set in the same syntax ParseRangeSet accepts.
func (rs RangeSet) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Lo == r.Hi {
			parts = append(parts, fmt.Sprintf("0x%02X", r.Lo))
			continue
		}
		parts = append(parts, fmt.Sprintf("0x%02X-0x%02X", r.Lo, r.Hi))
	}
	return strings.Join(parts, ",")
}

// ParseRangeSet parses "1,3-4,0x32,0x50-0x80". Values may be decimal or
// 0x-prefixed hex. An empty string is an empty set.
func ParseRangeSet(s string) (RangeSet, error) {
	var rs RangeSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		loStr, hiStr, isRange := strings.Cut(part, "-")
		lo, err := parseClass(loStr)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", part, err)
		}
		hi := lo
		if isRange {
			if hi, err = parseClass(hiStr); err != nil {
				return nil, fmt.Errorf("range %q: %w", part, err)
			}
		}
		if hi < lo {
			return nil, fmt.Errorf("range %q: upper bound below lower bound", part)
		}
		rs = append(rs, Range{Lo: lo, Hi: hi})
	}
	return rs, nil
}

func parseClass(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid class value %q", s)
	}
	return uint8(v), nil
}

// MustParseRangeSet is ParseRangeSet for constant inputs.
func MustParseRangeSet(s string) RangeSet {
	rs, err := ParseRangeSet(s)
	if err != nil {
		panic(err)
	}
	return rs
}
