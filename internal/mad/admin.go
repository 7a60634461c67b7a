package mad

import (
	"encoding/binary"

	"github.com/tturner/madscope/internal/mad/codec"
)

// AdminHeaderSize is the length of the SA/PA class header.
const AdminHeaderSize = 20

// AdminHeader is the subnet-administration and performance-administration
// class header that follows the transfer header.
type AdminHeader struct {
	Key uint64
	// AttributeOffset is the record stride in units of 8 bytes.
	AttributeOffset uint16
	Reserved        uint16
	ComponentMask   uint64
}

// DecodeAdminHeader parses an SA/PA header at off.
func DecodeAdminHeader(buf []byte, off int) (AdminHeader, int, error) {
	var h AdminHeader
	if err := checkLen(buf, off, AdminHeaderSize, "administration header"); err != nil {
		return h, off, err
	}
	b := buf[off : off+AdminHeaderSize]
	h.Key = binary.BigEndian.Uint64(b[0:8])
	h.AttributeOffset = binary.BigEndian.Uint16(b[8:10])
	h.Reserved = binary.BigEndian.Uint16(b[10:12])
	h.ComponentMask = binary.BigEndian.Uint64(b[12:20])
	return h, off + AdminHeaderSize, nil
}

// AppendAdminHeader encodes h onto dst.
func AppendAdminHeader(dst []byte, h AdminHeader) []byte {
	dst = codec.AppendUint64(binary.BigEndian, dst, h.Key)
	dst = codec.AppendUint16(binary.BigEndian, dst, h.AttributeOffset)
	dst = codec.AppendUint16(binary.BigEndian, dst, h.Reserved)
	return codec.AppendUint64(binary.BigEndian, dst, h.ComponentMask)
}

// Stride returns the record size in bytes.
func (h AdminHeader) Stride() int {
	return int(h.AttributeOffset) * 8
}
