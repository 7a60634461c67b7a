package modifier

import (
	"fmt"
	"sync"

	"github.com/tturner/madscope/internal/mad"
)

type schemaKey struct {
	class uint8
	attr  uint16
}

// Table maps (class, attribute) to a modifier schema. It is filled once and
// read-only afterwards.
type Table struct {
	schemas map[schemaKey]Schema
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{schemas: make(map[schemaKey]Schema)}
}

// Register binds a schema to an attribute of a class. Subnet management
// registrations cover both addressing variants.
func (t *Table) Register(class uint8, attr uint16, s Schema) {
	t.schemas[schemaKey{class: mad.ClassFamily(class), attr: attr}] = s
}

// SchemaFor returns the schema registered for (class, attr).
func (t *Table) SchemaFor(class uint8, attr uint16) (Schema, bool) {
	s, ok := t.schemas[schemaKey{class: mad.ClassFamily(class), attr: attr}]
	return s, ok
}

// Len returns the number of registered (class, attribute) pairs.
func (t *Table) Len() int {
	return len(t.schemas)
}

// Mismatch is a modifier bit pattern that should be zero but is not.
type Mismatch struct {
	Field   string
	Mask    uint32
	Value   uint64
	Message string
}

// Result is the interpretation of one modifier word.
type Result struct {
	Schema     string
	Values     []Value
	Mismatches []Mismatch
}

// Check decodes word against the schema for (class, attr). With no schema
// registered the whole word is expected to be zero.
func (t *Table) Check(class uint8, attr uint16, word uint32) Result {
	s, ok := t.SchemaFor(class, attr)
	if !ok {
		if word == 0 {
			return Result{}
		}
		return Result{Mismatches: []Mismatch{{
			Field:   "AttributeModifier",
			Mask:    ^uint32(0),
			Value:   uint64(word),
			Message: fmt.Sprintf("modifier expected to be zero but is not (0x%08X)", word),
		}}}
	}
	res := Result{Schema: s.Name, Values: Decode(s, word)}
	for _, v := range res.Values {
		if v.Reserved && v.Value != 0 {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Field:   v.Name,
				Mask:    Field{Width: v.Width, Offset: v.Offset}.Mask(),
				Value:   v.Value,
				Message: fmt.Sprintf("%s bits [%d:%d] expected to be zero but are 0x%X", v.Name, v.Offset+v.Width-1, v.Offset, v.Value),
			})
		}
	}
	return res
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the shared schema table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t := NewTable()
		registerDefaults(t)
		defaultTable = t
	})
	return defaultTable
}
