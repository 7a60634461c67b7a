// Package tree is the decoded output model: a field tree plus diagnostic
// annotations pinned to byte ranges.
package tree

import "fmt"

// Severity grades an annotation.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarn:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText renders the severity name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind classifies an annotation.
type Kind string

const (
	KindTruncatedBuffer           Kind = "truncated_buffer"
	KindStatusIndicatesError      Kind = "status_indicates_error"
	KindUnrecognizedAttribute     Kind = "unrecognized_attribute"
	KindSchemaModifierMismatch    Kind = "schema_modifier_mismatch"
	KindAggregateBoundaryMismatch Kind = "aggregate_boundary_mismatch"
	KindReassemblyStalled         Kind = "reassembly_stalled"
	KindUndecoded                 Kind = "undecoded"
	KindReassembly                Kind = "reassembly"
)

// Annotation is a diagnostic attached to a byte range of the datagram.
type Annotation struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Offset   int      `json:"offset"`
	Length   int      `json:"length"`
	Message  string   `json:"message"`
}

// Node is one decoded field or group of fields.
type Node struct {
	Name     string  `json:"name"`
	Offset   int     `json:"offset"`
	Length   int     `json:"length"`
	Value    string  `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// New returns a group node.
func New(name string, offset, length int) *Node {
	return &Node{Name: name, Offset: offset, Length: length}
}

// Add appends a child group and returns it.
func (n *Node) Add(name string, offset, length int) *Node {
	c := New(name, offset, length)
	n.Children = append(n.Children, c)
	return c
}

// AddValue appends a leaf with a preformatted value.
func (n *Node) AddValue(name string, offset, length int, value string) *Node {
	c := &Node{Name: name, Offset: offset, Length: length, Value: value}
	n.Children = append(n.Children, c)
	return c
}

// AddUint appends a decimal leaf.
func (n *Node) AddUint(name string, offset, length int, v uint64) *Node {
	return n.AddValue(name, offset, length, fmt.Sprintf("%d", v))
}

// AddHex appends a hexadecimal leaf padded to the field width.
func (n *Node) AddHex(name string, offset, length int, v uint64) *Node {
	return n.AddValue(name, offset, length, fmt.Sprintf("0x%0*X", length*2, v))
}

// AddBool appends a flag leaf.
func (n *Node) AddBool(name string, offset, length int, v bool) *Node {
	return n.AddValue(name, offset, length, fmt.Sprintf("%t", v))
}

// Find returns the first descendant with the given name, depth first.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// SetEnd adjusts Length so the node spans up to end.
func (n *Node) SetEnd(end int) {
	if end >= n.Offset {
		n.Length = end - n.Offset
	}
}

// Sink collects annotations during a decode.
type Sink struct {
	Annotations []Annotation
}

// Annotate records an annotation.
func (s *Sink) Annotate(kind Kind, sev Severity, offset, length int, format string, args ...any) {
	s.Annotations = append(s.Annotations, Annotation{
		Kind:     kind,
		Severity: sev,
		Offset:   offset,
		Length:   length,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Count returns how many annotations of kind were recorded.
func (s *Sink) Count(kind Kind) int {
	n := 0
	for _, a := range s.Annotations {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
