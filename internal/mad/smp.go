package mad

import (
	"encoding/binary"

	"github.com/tturner/madscope/internal/mad/codec"
)

const (
	// SMPLIDHeaderSize is the M_Key preceding LID-routed SMP data.
	SMPLIDHeaderSize = 8
	// SMPDirectedHeaderSize covers M_Key, DrSLID, DrDLID, both paths and the
	// trailing reserved bytes of a directed-route SMP.
	SMPDirectedHeaderSize = 8 + 4 + 4 + 64 + 64 + 8

	pathSize = 64
)

// SMPHeader is the subnet-management header between the envelope and the
// attribute data.
type SMPHeader struct {
	MKey     uint64
	Directed bool
	DrSLID   uint32
	DrDLID   uint32
	InitPath [pathSize]byte
	RetPath  [pathSize]byte
	Reserved [8]byte
}

// DecodeSMPHeader parses the SMP header at off.
func DecodeSMPHeader(buf []byte, off int, directed bool) (SMPHeader, int, error) {
	h := SMPHeader{Directed: directed}
	size := SMPLIDHeaderSize
	if directed {
		size = SMPDirectedHeaderSize
	}
	if err := checkLen(buf, off, size, "subnet management header"); err != nil {
		return h, off, err
	}
	r := codec.NewReader(buf, off)
	h.MKey, _ = r.Uint64("m_key")
	if !directed {
		return h, r.Offset(), nil
	}
	h.DrSLID, _ = r.Uint32("dr_slid")
	h.DrDLID, _ = r.Uint32("dr_dlid")
	ip, _ := r.Bytes(pathSize, "initial_path")
	copy(h.InitPath[:], ip)
	rp, _ := r.Bytes(pathSize, "return_path")
	copy(h.RetPath[:], rp)
	rs, _ := r.Bytes(len(h.Reserved), "reserved")
	copy(h.Reserved[:], rs)
	return h, r.Offset(), nil
}

// AppendSMPHeader encodes h onto dst.
func AppendSMPHeader(dst []byte, h SMPHeader) []byte {
	dst = codec.AppendUint64(binary.BigEndian, dst, h.MKey)
	if !h.Directed {
		return dst
	}
	dst = codec.AppendUint32(binary.BigEndian, dst, h.DrSLID)
	dst = codec.AppendUint32(binary.BigEndian, dst, h.DrDLID)
	dst = append(dst, h.InitPath[:]...)
	dst = append(dst, h.RetPath[:]...)
	return append(dst, h.Reserved[:]...)
}

// InitialHops returns the used part of the initial path for a hop count.
func (h SMPHeader) InitialHops(count uint8) []byte {
	return usedPath(h.InitPath[:], count)
}

// ReturnHops returns the used part of the return path for a hop count.
func (h SMPHeader) ReturnHops(count uint8) []byte {
	return usedPath(h.RetPath[:], count)
}

// Entry 0 of a path is unused; hops occupy entries 1..count.
func usedPath(path []byte, count uint8) []byte {
	n := int(count) + 1
	if n > len(path) {
		n = len(path)
	}
	return path[1:n]
}
