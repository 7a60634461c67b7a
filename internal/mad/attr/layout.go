package attr

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/tturner/madscope/internal/mad/codec"
	"github.com/tturner/madscope/internal/mad/tree"
)

// Display selects how a field value is rendered.
type Display uint8

const (
	DisplayDec Display = iota
	DisplayHex
	DisplayFlag
	DisplayText
	DisplayRaw
	DisplayGID
)

// Field is one leaf of a Layout. Numeric fields read a Size-byte big-endian
// container at Offset; a non-zero Width selects bits [Bit, Bit+Width) of it.
type Field struct {
	Name    string
	Offset  int
	Size    int
	Bit     uint
	Width   uint
	Display Display
	Names   map[uint64]string
}

// Sub embeds another layout at a fixed offset.
type Sub struct {
	Name   string
	Offset int
	Layout *Layout
}

// Layout describes a fixed-size structure.
type Layout struct {
	Name   string
	Size   int
	Fields []Field
	Subs   []Sub
	// Stride is the repetition step when it differs from Size.
	Stride int
}

func (l *Layout) step() int {
	if l.Stride > 0 {
		return l.Stride
	}
	return l.Size
}

// Entry returns a dispatch entry decoding one instance of l.
func (l *Layout) Entry() Entry {
	return Entry{Name: l.Name, Size: l.Size, Decode: l.Decode}
}

// Decode renders one instance of l at buf[off:] under parent.
func (l *Layout) Decode(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error) {
	for _, f := range l.Fields {
		at := off + f.Offset
		if at+f.Size > len(buf) {
			return at, truncated(ctx, l.Name+"."+f.Name, buf, at, f.Size)
		}
		parent.AddValue(f.Name, ctx.Abs(at), f.Size, f.format(buf[at:at+f.Size]))
	}
	for _, s := range l.Subs {
		at := off + s.Offset
		child := parent.Add(s.Name, ctx.Abs(at), s.Layout.Size)
		end, err := s.Layout.Decode(ctx, buf, at, child)
		if err != nil {
			child.SetEnd(ctx.Abs(end))
			return end, err
		}
	}
	end := off + l.Size
	if end > len(buf) {
		end = len(buf)
	}
	return end, nil
}

func (f Field) format(b []byte) string {
	switch f.Display {
	case DisplayText:
		return strings.TrimRight(string(b), "\x00")
	case DisplayRaw:
		return hexBytes(b)
	case DisplayGID:
		if len(b) == 16 {
			return netip.AddrFrom16([16]byte(b)).String()
		}
		return hexBytes(b)
	}

	v := readUint(b)
	digits := len(b) * 2
	if f.Width > 0 {
		v = codec.Bits(v, f.Bit, f.Width)
		digits = int(f.Width+3) / 4
	}
	var s string
	switch f.Display {
	case DisplayHex:
		s = fmt.Sprintf("0x%0*X", digits, v)
	case DisplayFlag:
		s = fmt.Sprintf("%t", v != 0)
	default:
		s = fmt.Sprintf("%d", v)
	}
	if label, ok := f.Names[v]; ok {
		s += " (" + label + ")"
	}
	return s
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Repeated decodes l once per port or block named by the modifier. countField
// and startField are modifier field names; label prefixes each instance.
func Repeated(l *Layout, countField, startField, label string) Entry {
	return Entry{Name: l.Name, Decode: func(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error) {
		n, _ := ctx.Field(countField)
		if n == 0 {
			n = 1
		}
		start, _ := ctx.Field(startField)
		for i := uint64(0); i < n; i++ {
			child := parent.Add(fmt.Sprintf("%s %d", label, start+i), ctx.Abs(off), l.step())
			end, err := l.Decode(ctx, buf, off, child)
			if err != nil {
				child.SetEnd(ctx.Abs(end))
				return end, err
			}
			off += l.step()
		}
		if off > len(buf) {
			off = len(buf)
		}
		return off, nil
	}}
}

// WithPorts decodes head and then, for responses, one port record per port
// selected by the NumPorts modifier field.
func WithPorts(name string, head, port *Layout) Entry {
	return Entry{Name: name, Decode: func(ctx *Context, buf []byte, off int, parent *tree.Node) (int, error) {
		end, err := head.Decode(ctx, buf, off, parent)
		if err != nil || !ctx.Response() {
			return end, err
		}
		off += head.Size
		n, _ := ctx.Field("NumPorts")
		for i := uint64(0); i < n; i++ {
			child := parent.Add(fmt.Sprintf("Port[%d]", i), ctx.Abs(off), port.step())
			end, err := port.Decode(ctx, buf, off, child)
			if err != nil {
				child.SetEnd(ctx.Abs(end))
				return end, err
			}
			off += port.step()
		}
		if off > len(buf) {
			off = len(buf)
		}
		return off, nil
	}}
}

func u8(name string, off int) Field  { return Field{Name: name, Offset: off, Size: 1} }
func u16(name string, off int) Field { return Field{Name: name, Offset: off, Size: 2} }
func u32(name string, off int) Field { return Field{Name: name, Offset: off, Size: 4} }
func u64(name string, off int) Field { return Field{Name: name, Offset: off, Size: 8} }

func hex(name string, off, size int) Field {
	return Field{Name: name, Offset: off, Size: size, Display: DisplayHex}
}

func bits(name string, off, size int, bit, width uint) Field {
	return Field{Name: name, Offset: off, Size: size, Bit: bit, Width: width}
}

func flag(name string, off, size int, bit uint) Field {
	return Field{Name: name, Offset: off, Size: size, Bit: bit, Width: 1, Display: DisplayFlag}
}

func enum(name string, off, size int, bit, width uint, names map[uint64]string) Field {
	return Field{Name: name, Offset: off, Size: size, Bit: bit, Width: width, Names: names}
}

func text(name string, off, n int) Field {
	return Field{Name: name, Offset: off, Size: n, Display: DisplayText}
}

func raw(name string, off, n int) Field {
	return Field{Name: name, Offset: off, Size: n, Display: DisplayRaw}
}

func gid(name string, off int) Field {
	return Field{Name: name, Offset: off, Size: 16, Display: DisplayGID}
}

// array lays out count same-size numeric elements named name[i].
func array(name string, off, size, count int, display Display) []Field {
	fields := make([]Field, count)
	for i := range fields {
		fields[i] = Field{Name: indexed(name, i), Offset: off + i*size, Size: size, Display: display}
	}
	return fields
}

// seq64 lays out consecutive 64-bit counters.
func seq64(off int, names ...string) []Field {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = u64(n, off+i*8)
	}
	return fields
}

func join(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func indexed(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}
