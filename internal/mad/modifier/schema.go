// Package modifier interprets the 32-bit attribute modifier. Each bit layout
// is data (a Schema) driven through one generic extractor.
package modifier

import (
	"fmt"
	"sort"

	"github.com/tturner/madscope/internal/mad/codec"
)

// Field is one named bit range of the modifier word. Offset counts from the
// least significant bit.
type Field struct {
	Name     string
	Width    uint
	Offset   uint
	Reserved bool
	// Names optionally labels specific values.
	Names map[uint64]string
}

// Schema is a named modifier layout. Fields are listed most significant first.
type Schema struct {
	Name   string
	Fields []Field
}

// Value is one extracted field.
type Value struct {
	Name     string
	Width    uint
	Offset   uint
	Reserved bool
	Value    uint64
	Label    string
}

func (v Value) String() string {
	if v.Label != "" {
		return fmt.Sprintf("%s=%d (%s)", v.Name, v.Value, v.Label)
	}
	return fmt.Sprintf("%s=%d", v.Name, v.Value)
}

// Mask returns the field's bits within the 32-bit word.
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return ^uint32(0) << f.Offset
	}
	return uint32(1<<f.Width-1) << f.Offset
}

// Decode extracts every field of s from word, in schema order.
func Decode(s Schema, word uint32) []Value {
	values := make([]Value, 0, len(s.Fields))
	for _, f := range s.Fields {
		v := codec.Bits(uint64(word), f.Offset, f.Width)
		values = append(values, Value{
			Name:     f.Name,
			Width:    f.Width,
			Offset:   f.Offset,
			Reserved: f.Reserved,
			Value:    v,
			Label:    f.Names[v],
		})
	}
	return values
}

// Encode packs named field values into a modifier word. Unknown names are
// ignored; values are truncated to the field width.
func Encode(s Schema, values map[string]uint64) uint32 {
	var word uint32
	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		word |= uint32(codec.Bits(v, 0, f.Width)) << f.Offset & f.Mask()
	}
	return word
}

// Lookup returns the value of the named field.
func Lookup(values []Value, name string) (uint64, bool) {
	for _, v := range values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// Validate checks that fields fit in 32 bits and do not overlap.
func (s Schema) Validate() error {
	var used uint32
	fields := append([]Field(nil), s.Fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Offset < fields[j].Offset })
	for _, f := range fields {
		if f.Width == 0 || f.Offset+f.Width > 32 {
			return fmt.Errorf("schema %s: field %s out of range (offset %d width %d)", s.Name, f.Name, f.Offset, f.Width)
		}
		if used&f.Mask() != 0 {
			return fmt.Errorf("schema %s: field %s overlaps another field", s.Name, f.Name)
		}
		used |= f.Mask()
	}
	return nil
}
