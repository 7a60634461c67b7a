package mad

import (
	"encoding/binary"

	"github.com/tturner/madscope/internal/mad/codec"
)

// EnvelopeSize is the length of the common MAD header.
const EnvelopeSize = 24

const (
	statusDirectionBit = 0x8000
	statusCodeMask     = 0x7FFF
)

// Envelope is the common header shared by every management class.
type Envelope struct {
	BaseVersion  uint8
	MgmtClass    uint8
	ClassVersion uint8
	Method       uint8
	// Status is the raw 16-bit word. For directed-route SMPs bit 15 is the
	// direction flag.
	Status uint16
	// HopPointer and HopCount are only meaningful for directed-route SMPs;
	// other classes carry Reserved1 in the same two bytes.
	HopPointer        uint8
	HopCount          uint8
	Reserved1         uint16
	TransactionID     uint64
	AttributeID       uint16
	Reserved2         uint16
	AttributeModifier uint32
}

// StatusFields is the LID-routed status bit-field.
type StatusFields struct {
	ClassSpecific uint8
	Reserved      uint8
	InvalidField  uint8
	Redirect      bool
	Busy          bool
}

// DecodeEnvelope parses the common header at off and returns the offset
// following it.
func DecodeEnvelope(buf []byte, off int) (Envelope, int, error) {
	var e Envelope
	if err := checkLen(buf, off, EnvelopeSize, "common header"); err != nil {
		return e, off, err
	}
	b := buf[off : off+EnvelopeSize]
	e.BaseVersion = b[0]
	e.MgmtClass = b[1]
	e.ClassVersion = b[2]
	e.Method = b[3]
	e.Status = binary.BigEndian.Uint16(b[4:6])
	if e.MgmtClass == ClassSubnDirected {
		e.HopPointer = b[6]
		e.HopCount = b[7]
	} else {
		e.Reserved1 = binary.BigEndian.Uint16(b[6:8])
	}
	e.TransactionID = binary.BigEndian.Uint64(b[8:16])
	e.AttributeID = binary.BigEndian.Uint16(b[16:18])
	e.Reserved2 = binary.BigEndian.Uint16(b[18:20])
	e.AttributeModifier = binary.BigEndian.Uint32(b[20:24])
	return e, off + EnvelopeSize, nil
}

// AppendEnvelope encodes e onto dst.
func AppendEnvelope(dst []byte, e Envelope) []byte {
	dst = append(dst, e.BaseVersion, e.MgmtClass, e.ClassVersion, e.Method)
	dst = codec.AppendUint16(binary.BigEndian, dst, e.Status)
	if e.MgmtClass == ClassSubnDirected {
		dst = append(dst, e.HopPointer, e.HopCount)
	} else {
		dst = codec.AppendUint16(binary.BigEndian, dst, e.Reserved1)
	}
	dst = codec.AppendUint64(binary.BigEndian, dst, e.TransactionID)
	dst = codec.AppendUint16(binary.BigEndian, dst, e.AttributeID)
	dst = codec.AppendUint16(binary.BigEndian, dst, e.Reserved2)
	return codec.AppendUint32(binary.BigEndian, dst, e.AttributeModifier)
}

// DirectedRoute reports whether the envelope uses the directed-route layout.
func (e Envelope) DirectedRoute() bool {
	return e.MgmtClass == ClassSubnDirected
}

// Direction returns the directed-route D bit (true = returning path).
func (e Envelope) Direction() bool {
	return e.DirectedRoute() && e.Status&statusDirectionBit != 0
}

// StatusCode returns the status with the directed-route direction bit removed.
func (e Envelope) StatusCode() uint16 {
	if e.DirectedRoute() {
		return e.Status & statusCodeMask
	}
	return e.Status
}

// StatusError reports whether the status indicates a failure. Both addressing
// modes test the low 15 bits.
func (e Envelope) StatusError() bool {
	return e.Status&statusCodeMask != 0
}

// Fields splits a LID-routed status word into its bit-field.
func (e Envelope) Fields() StatusFields {
	s := uint64(e.Status)
	return StatusFields{
		ClassSpecific: uint8(codec.Bits(s, 8, 8)),
		Reserved:      uint8(codec.Bits(s, 5, 3)),
		InvalidField:  uint8(codec.Bits(s, 2, 3)),
		Redirect:      codec.Bits(s, 1, 1) == 1,
		Busy:          codec.Bits(s, 0, 1) == 1,
	}
}

// IsResponse reports whether the method's response bit is set.
func (e Envelope) IsResponse() bool {
	return e.Method&MethodResponseBit != 0
}
