package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a read needs more bytes than remain.
var ErrShortBuffer = errors.New("short buffer")

// PutUint16 writes a uint16 to dst using the provided byte order.
func PutUint16(order binary.ByteOrder, dst []byte, value uint16) {
	order.PutUint16(dst, value)
}

// PutUint32 writes a uint32 to dst using the provided byte order.
func PutUint32(order binary.ByteOrder, dst []byte, value uint32) {
	order.PutUint32(dst, value)
}

// PutUint64 writes a uint64 to dst using the provided byte order.
func PutUint64(order binary.ByteOrder, dst []byte, value uint64) {
	order.PutUint64(dst, value)
}

// AppendUint16 appends a uint16 to dst using the provided byte order.
func AppendUint16(order binary.ByteOrder, dst []byte, value uint16) []byte {
	var buf [2]byte
	order.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a uint32 to dst using the provided byte order.
func AppendUint32(order binary.ByteOrder, dst []byte, value uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint64 appends a uint64 to dst using the provided byte order.
func AppendUint64(order binary.ByteOrder, dst []byte, value uint64) []byte {
	var buf [8]byte
	order.PutUint64(buf[:], value)
	return append(dst, buf[:]...)
}

// Bits extracts width bits of word starting at bit offset (0 = least significant).
func Bits(word uint64, offset, width uint) uint64 {
	if width == 0 {
		return 0
	}
	if width >= 64 {
		return word >> offset
	}
	return (word >> offset) & (1<<width - 1)
}

// Reader walks a big-endian buffer from a starting offset.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a reader positioned at off.
func NewReader(buf []byte, off int) *Reader {
	return &Reader{buf: buf, off: off}
}

// Offset returns the current position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.off >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *Reader) need(n int, what string) error {
	if r.Remaining() < n {
		return fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrShortBuffer, what, n, r.off, r.Remaining())
	}
	return nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Uint64 reads a big-endian uint64.
func (r *Reader) Uint64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int, what string) error {
	if err := r.need(n, what); err != nil {
		return err
	}
	r.off += n
	return nil
}
