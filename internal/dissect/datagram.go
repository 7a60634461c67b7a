package dissect

import (
	"fmt"
	"time"

	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/modifier"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/mad/router"
	"github.com/tturner/madscope/internal/mad/tree"
)

// Datagram is the decoded form of one management datagram.
type Datagram struct {
	Frame        int                     `json:"frame,omitempty"`
	Timestamp    time.Time               `json:"timestamp,omitempty"`
	Conversation reassembly.Conversation `json:"conversation"`
	Length       int                     `json:"length"`

	Envelope  mad.Envelope        `json:"envelope"`
	Handler   router.Handler      `json:"handler"`
	Transfer  *mad.TransferHeader `json:"transfer,omitempty"`
	Admin     *mad.AdminHeader    `json:"admin,omitempty"`
	SMP       *mad.SMPHeader      `json:"-"`
	Modifier  []modifier.Value    `json:"modifier,omitempty"`
	Transfers *TransferInfo       `json:"reassembly,omitempty"`
	// Records is the number of table records walked, -1 when the payload
	// was not a table.
	Records int `json:"records"`

	Root        *tree.Node        `json:"tree"`
	Annotations []tree.Annotation `json:"annotations,omitempty"`
	// Reassembled holds a completed multi-segment payload. Offsets in the
	// "Reassembled" subtree are relative to it.
	Reassembled []byte `json:"-"`
	Raw         []byte `json:"-"`
	// Truncated is set when the envelope itself could not be decoded.
	Truncated bool `json:"truncated,omitempty"`
}

// TransferInfo reports what the reassembler did with a segment.
type TransferInfo struct {
	Outcome reassembly.Outcome `json:"outcome"`
	Segment uint32             `json:"segment,omitempty"`
	Stored  int                `json:"stored,omitempty"`
	Missing []uint32           `json:"missing,omitempty"`
	// Absent is the full count of missing segments; Missing is truncated.
	Absent    int  `json:"missing_count,omitempty"`
	Discarded bool `json:"discarded,omitempty"`
	Payload   int  `json:"payload_length"`
}

// ClassName returns the management class name.
func (d *Datagram) ClassName() string {
	if d.Truncated {
		return "?"
	}
	return mad.ClassName(d.Envelope.MgmtClass)
}

// MethodName returns the method name.
func (d *Datagram) MethodName() string {
	if d.Truncated {
		return "?"
	}
	return mad.MethodName(d.Envelope.Method)
}

// AttributeName returns the attribute name within the datagram's class.
func (d *Datagram) AttributeName() string {
	if d.Truncated {
		return "?"
	}
	return mad.AttributeName(d.Envelope.MgmtClass, d.Envelope.AttributeID)
}

// Summary is a one-line description.
func (d *Datagram) Summary() string {
	if d.Truncated {
		return fmt.Sprintf("truncated datagram (%d bytes)", d.Length)
	}
	s := fmt.Sprintf("%s %s %s tid=0x%016X", d.ClassName(), d.MethodName(), d.AttributeName(), d.Envelope.TransactionID)
	if d.Transfers != nil && d.Transfers.Outcome != reassembly.OutcomeNoTransfer {
		s += fmt.Sprintf(" [%s", d.Transfers.Outcome)
		if d.Transfers.Segment > 0 {
			s += fmt.Sprintf(" seg %d", d.Transfers.Segment)
		}
		s += "]"
	}
	if d.Records >= 0 {
		s += fmt.Sprintf(" records=%d", d.Records)
	}
	if d.Envelope.StatusError() {
		s += fmt.Sprintf(" status=0x%04X", d.Envelope.StatusCode())
	}
	return s
}

// Count returns how many annotations of kind the datagram carries.
func (d *Datagram) Count(kind tree.Kind) int {
	n := 0
	for _, a := range d.Annotations {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Worst returns the highest annotation severity, or -1 when there are none.
func (d *Datagram) Worst() tree.Severity {
	worst := tree.Severity(-1)
	for _, a := range d.Annotations {
		if a.Severity > worst {
			worst = a.Severity
		}
	}
	return worst
}
