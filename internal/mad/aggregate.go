package mad

import (
	"encoding/binary"

	"github.com/tturner/madscope/internal/mad/codec"
)

// AggregateHeaderSize is the per-member header inside an Aggregate payload.
const AggregateHeaderSize = 8

const (
	aggregateErrorBit   = 0x8000
	aggregateLengthMask = 0x007F
)

// AggregateHeader introduces one member attribute of an Aggregate.
type AggregateHeader struct {
	AttributeID uint16
	Error       bool
	// RequestLength is the member body length in units of 8 bytes.
	RequestLength uint8
	Reserved      uint16
	Modifier      uint32
}

// DecodeAggregateHeader parses a member header at off.
func DecodeAggregateHeader(buf []byte, off int) (AggregateHeader, int, error) {
	var h AggregateHeader
	if err := checkLen(buf, off, AggregateHeaderSize, "aggregate member header"); err != nil {
		return h, off, err
	}
	h.AttributeID = binary.BigEndian.Uint16(buf[off:])
	word := binary.BigEndian.Uint16(buf[off+2:])
	h.Error = word&aggregateErrorBit != 0
	h.RequestLength = uint8(word & aggregateLengthMask)
	h.Reserved = uint16(codec.Bits(uint64(word), 7, 8))
	h.Modifier = binary.BigEndian.Uint32(buf[off+4:])
	return h, off + AggregateHeaderSize, nil
}

// AppendAggregateHeader encodes h onto dst.
func AppendAggregateHeader(dst []byte, h AggregateHeader) []byte {
	word := uint16(h.RequestLength)&aggregateLengthMask | (h.Reserved&0xFF)<<7
	if h.Error {
		word |= aggregateErrorBit
	}
	dst = codec.AppendUint16(binary.BigEndian, dst, h.AttributeID)
	dst = codec.AppendUint16(binary.BigEndian, dst, word)
	return codec.AppendUint32(binary.BigEndian, dst, h.Modifier)
}

// BodyLength returns the declared member body size in bytes.
func (h AggregateHeader) BodyLength() int {
	return int(h.RequestLength) * 8
}
