package mad

import (
	"encoding/binary"
	"fmt"

	"github.com/tturner/madscope/internal/mad/codec"
)

// TransferHeaderSize is the length of the RMPP header.
const TransferHeaderSize = 12

// TransferType is the RMPP segment type.
type TransferType uint8

const (
	TransferIllegal TransferType = 0
	TransferData    TransferType = 1
	TransferAck     TransferType = 2
	TransferStop    TransferType = 3
	TransferAbort   TransferType = 4
)

func (t TransferType) String() string {
	switch t {
	case TransferIllegal:
		return "ILLEGAL"
	case TransferData:
		return "DATA"
	case TransferAck:
		return "ACK"
	case TransferStop:
		return "STOP"
	case TransferAbort:
		return "ABORT"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

const (
	transferFlagActive = 0x01
	transferFlagFirst  = 0x02
	transferFlagLast   = 0x04
)

// TransferHeader is the reliable multi-packet transfer header.
type TransferHeader struct {
	Version      uint8
	Type         TransferType
	ResponseTime uint8
	Last         bool
	First        bool
	Active       bool
	Status       uint8

	// DATA and ACK segments.
	SegmentNumber uint32
	// DATA segments.
	PayloadLength uint32
	// ACK segments.
	NewWindowLast uint32
	// STOP, ABORT and ILLEGAL segments.
	Reserved1 uint32
	Reserved2 uint32
}

// DecodeTransferHeader parses an RMPP header at off.
func DecodeTransferHeader(buf []byte, off int) (TransferHeader, int, error) {
	var h TransferHeader
	if err := checkLen(buf, off, TransferHeaderSize, "transfer header"); err != nil {
		return h, off, err
	}
	b := buf[off : off+TransferHeaderSize]
	h.Version = b[0]
	h.Type = TransferType(b[1])
	flags := uint64(b[2])
	h.ResponseTime = uint8(codec.Bits(flags, 3, 5))
	h.Last = b[2]&transferFlagLast != 0
	h.First = b[2]&transferFlagFirst != 0
	h.Active = b[2]&transferFlagActive != 0
	h.Status = b[3]
	w1 := binary.BigEndian.Uint32(b[4:8])
	w2 := binary.BigEndian.Uint32(b[8:12])
	switch h.Type {
	case TransferData:
		h.SegmentNumber = w1
		h.PayloadLength = w2
	case TransferAck:
		h.SegmentNumber = w1
		h.NewWindowLast = w2
	default:
		h.Reserved1 = w1
		h.Reserved2 = w2
	}
	return h, off + TransferHeaderSize, nil
}

// AppendTransferHeader encodes h onto dst.
func AppendTransferHeader(dst []byte, h TransferHeader) []byte {
	flags := (h.ResponseTime & 0x1F) << 3
	if h.Last {
		flags |= transferFlagLast
	}
	if h.First {
		flags |= transferFlagFirst
	}
	if h.Active {
		flags |= transferFlagActive
	}
	dst = append(dst, h.Version, uint8(h.Type), flags, h.Status)
	var w1, w2 uint32
	switch h.Type {
	case TransferData:
		w1, w2 = h.SegmentNumber, h.PayloadLength
	case TransferAck:
		w1, w2 = h.SegmentNumber, h.NewWindowLast
	default:
		w1, w2 = h.Reserved1, h.Reserved2
	}
	dst = codec.AppendUint32(binary.BigEndian, dst, w1)
	return codec.AppendUint32(binary.BigEndian, dst, w2)
}

// InEffect is false for the well-formed "no transfer" sentinel
// (active=0, type=ILLEGAL) and for any inactive header.
func (h TransferHeader) InEffect() bool {
	return h.Active
}

// Sentinel reports whether h is the inactive ILLEGAL header.
func (h TransferHeader) Sentinel() bool {
	return !h.Active && h.Type == TransferIllegal
}

// SingleSegment reports whether h is a complete one-segment DATA transfer.
func (h TransferHeader) SingleSegment() bool {
	return h.Type == TransferData && h.First && h.Last
}

// Terminates reports whether the segment ends interest in its transaction.
func (h TransferHeader) Terminates() bool {
	switch h.Type {
	case TransferAck, TransferStop, TransferAbort:
		return true
	}
	return false
}
