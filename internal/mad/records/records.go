// Package records walks fixed-stride record tables carried in
// administration responses.
package records

import "github.com/tturner/madscope/internal/mad"

// Record is one table entry.
type Record struct {
	Index  int
	Offset int
	Data   []byte
}

// Remainder is trailing data shorter than one stride.
type Remainder struct {
	Offset int
	Length int
}

// StrideFromOffset converts an attribute offset (8-byte units) to bytes.
func StrideFromOffset(attrOffset uint16) int {
	return int(attrOffset) * 8
}

// Walk calls fn for each whole stride-sized record in data. base is the
// offset of data within the datagram. A zero stride yields no records. The
// walk stops early when fn returns false.
func Walk(data []byte, base, stride int, fn func(Record) bool) (int, Remainder) {
	if stride <= 0 {
		return 0, Remainder{}
	}
	n := len(data) / stride
	for i := 0; i < n; i++ {
		start := i * stride
		if !fn(Record{Index: i, Offset: base + start, Data: data[start : start+stride]}) {
			return i + 1, Remainder{}
		}
	}
	rem := len(data) - n*stride
	if rem == 0 {
		return n, Remainder{}
	}
	return n, Remainder{Offset: base + n*stride, Length: rem}
}

// Count returns how many whole records fit in length bytes.
func Count(length, stride int) int {
	if stride <= 0 || length <= 0 {
		return 0
	}
	return length / stride
}

// IsTable reports whether an administration response carries a record table.
func IsTable(method uint8) bool {
	return mad.IsTableMethod(method)
}
