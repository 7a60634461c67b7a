// Package attr maps (class, attribute) to payload decoders.
//
// Leaf structures are described as data (Layout) and rendered by one
// interpreter. The table is built once and read-only afterwards.
package attr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/modifier"
	"github.com/tturner/madscope/internal/mad/tree"
)

// DecodeFunc renders the structure at buf[off:] under parent and returns the
// offset just past what it consumed. buf may end before the structure does;
// decoders return a *mad.TruncatedError in that case and keep whatever they
// already added to the tree.
type DecodeFunc func(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error)

// Entry is one dispatch target.
type Entry struct {
	Name   string
	Decode DecodeFunc
	// Size is the fixed structure size, or 0 when variable.
	Size int
}

// Context carries per-attribute state into decoders.
type Context struct {
	Class     uint8
	Method    uint8
	Attribute uint16
	Modifier  uint32
	// Values are the decoded modifier fields when a schema is registered.
	Values []modifier.Value
	// Base is the datagram offset of buf[0]; tree offsets add it.
	Base int

	Table   *Table
	Schemas *modifier.Table
	Sink    *tree.Sink
}

// NewContext builds a context with the default tables and decodes the
// modifier against its schema.
func NewContext(class, method uint8, attribute uint16, mod uint32, sink *tree.Sink) *Context {
	ctx := &Context{
		Class:     class,
		Method:    method,
		Attribute: attribute,
		Modifier:  mod,
		Table:     DefaultTable(),
		Schemas:   modifier.DefaultTable(),
		Sink:      sink,
	}
	ctx.Values = ctx.Schemas.Check(class, attribute, mod).Values
	return ctx
}

// Member returns a copy of ctx for a nested attribute with its own modifier.
func (c *Context) Member(attribute uint16, mod uint32) *Context {
	m := *c
	m.Attribute = attribute
	m.Modifier = mod
	m.Values = c.Schemas.Check(c.Class, attribute, mod).Values
	return &m
}

// Abs converts a buffer offset to a datagram offset.
func (c *Context) Abs(off int) int {
	return c.Base + off
}

// Field returns a decoded modifier field.
func (c *Context) Field(name string) (uint64, bool) {
	return modifier.Lookup(c.Values, name)
}

// Response reports whether the method is a response.
func (c *Context) Response() bool {
	return c.Method&mad.MethodResponseBit != 0
}

type entryKey struct {
	family uint8
	attr   uint16
}

// Table maps (class family, attribute id) to an Entry.
type Table struct {
	entries map[entryKey]Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[entryKey]Entry)}
}

// Register binds e to (class, attr).
func (t *Table) Register(class uint8, attr uint16, e Entry) {
	t.entries[entryKey{family: mad.ClassFamily(class), attr: attr}] = e
}

// Lookup returns the entry for (class, attr).
func (t *Table) Lookup(class uint8, attr uint16) (Entry, bool) {
	e, ok := t.entries[entryKey{family: mad.ClassFamily(class), attr: attr}]
	return e, ok
}

// Len returns the number of registered entries.
func (t *Table) Len() int {
	return len(t.entries)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the shared dispatch table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t := NewTable()
		registerSubnet(t)
		registerAdmin(t)
		registerPerf(t)
		registerPerfAdmin(t)
		defaultTable = t
	})
	return defaultTable
}

// Decode dispatches buf[off:] to the decoder for ctx's attribute. An
// unregistered attribute is annotated and rendered opaquely. It returns the
// offset after the decoded structure.
func Decode(ctx *Context, buf []byte, off int, parent *tree.Node) int {
	e, ok := ctx.Table.Lookup(ctx.Class, ctx.Attribute)
	if !ok {
		ctx.Sink.Annotate(tree.KindUnrecognizedAttribute, tree.SeverityWarn, ctx.Abs(off), len(buf)-off,
			"no decoder for attribute %s (0x%04X) in class 0x%02X",
			mad.AttributeName(ctx.Class, ctx.Attribute), ctx.Attribute, ctx.Class)
		return Opaque(ctx, buf, off, parent, "Data")
	}
	return DecodeEntry(ctx, e, buf, off, parent)
}

// DecodeEntry runs e under a new node named after it.
func DecodeEntry(ctx *Context, e Entry, buf []byte, off int, parent *tree.Node) int {
	node := parent.Add(e.Name, ctx.Abs(off), 0)
	end, err := e.Decode(ctx, buf, off, node)
	if err != nil {
		reportError(ctx, err, off, buf)
	}
	if end < off {
		end = off
	}
	node.SetEnd(ctx.Abs(end))
	return end
}

func reportError(ctx *Context, err error, off int, buf []byte) {
	var te *mad.TruncatedError
	if errors.As(err, &te) {
		ctx.Sink.Annotate(tree.KindTruncatedBuffer, tree.SeverityError, te.Offset, te.Have,
			"%s needs %d bytes, %d available", te.What, te.Need, te.Have)
		return
	}
	ctx.Sink.Annotate(tree.KindUndecoded, tree.SeverityError, ctx.Abs(off), len(buf)-off, "%v", err)
}

// Opaque renders the rest of buf as one raw node.
func Opaque(ctx *Context, buf []byte, off int, parent *tree.Node, name string) int {
	if off >= len(buf) {
		return off
	}
	parent.AddValue(name, ctx.Abs(off), len(buf)-off, hexBytes(buf[off:]))
	return len(buf)
}

// truncated builds the error for a structure that runs past buf.
func truncated(ctx *Context, what string, buf []byte, off, need int) error {
	have := len(buf) - off
	if have < 0 {
		have = 0
	}
	return &mad.TruncatedError{What: what, Offset: ctx.Abs(off), Need: need, Have: have}
}

const maxHexBytes = 64

func hexBytes(b []byte) string {
	if len(b) > maxHexBytes {
		return fmt.Sprintf("%X... (%d bytes)", b[:maxHexBytes], len(b))
	}
	return fmt.Sprintf("%X", b)
}
