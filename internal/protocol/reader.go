package protocol

import (
	"encoding/binary"
	"math"
)

// Reader reads command fields from a decoded command buffer.
// Byte 0 is always the command type. All multi-byte reads are big-endian.
// Short reads fall back to zero values; the registry validates lengths up
// front, so a short read here means a malformed command, which handlers
// surface as a decode error rather than a crash.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip command type byte
}

func (r *Reader) CommandType() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadByte reads 1 unsigned byte.
func (r *Reader) ReadByte() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *Reader) ReadBool() bool {
	return r.ReadByte() != 0
}

// ReadUint16 reads 2 bytes big-endian.
func (r *Reader) ReadUint16() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadInt32 reads 4 bytes big-endian.
func (r *Reader) ReadInt32() int32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadInt64 reads 8 bytes big-endian.
func (r *Reader) ReadInt64() int64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := int64(binary.BigEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

// ReadFloat64 reads 8 bytes big-endian as an IEEE 754 double.
func (r *Reader) ReadFloat64() float64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

// ReadString reads a uint16-length-prefixed UTF-8 string.
func (r *Reader) ReadString() string {
	n := int(r.ReadUint16())
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return string(remaining)
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
