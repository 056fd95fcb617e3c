// Package codec provides the big-endian byte-level primitives shared by the
// container, chunk, seek-index, and ratchet formats: fixed-width integer
// framing, length-prefixed strings, CRC-32, and SHA-256, all over a bounded
// cursor that never indexes past the end of its buffer.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"

	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// Reader is a bounds-checked cursor over a byte slice. Every method returns
// a Truncated error instead of panicking when the buffer runs out.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential bounded reads.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// need checks that n more bytes are available, returning a Truncated error
// tagged with op if not.
func (r *Reader) need(op string, n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return h4errors.NewTruncated(op, nil)
	}
	return nil
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(op string, n int) ([]byte, error) {
	if err := r.need(op, n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// U8 reads a single byte.
func (r *Reader) U8(op string) (byte, error) {
	b, err := r.Bytes(op, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16(op string) (uint16, error) {
	b, err := r.Bytes(op, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32(op string) (uint32, error) {
	b, err := r.Bytes(op, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64(op string) (uint64, error) {
	b, err := r.Bytes(op, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Hash32 reads a fixed 32-byte hash (SHA-256 digest width).
func (r *Reader) Hash32(op string) ([32]byte, error) {
	var out [32]byte
	b, err := r.Bytes(op, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// StringU8 reads a u8-length-prefixed UTF-8 string (used for suite
// identifiers).
func (r *Reader) StringU8(op string) (string, error) {
	n, err := r.U8(op)
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(op, int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringU16 reads a u16-length-prefixed UTF-8 string (used for track
// identifiers).
func (r *Reader) StringU16(op string) (string, error) {
	n, err := r.U16(op)
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(op, int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer accumulates encoded bytes.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutBytes appends raw bytes.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutU8 appends a single byte.
func (w *Writer) PutU8(v byte) { w.buf = append(w.buf, v) }

// PutU16 appends a big-endian uint16.
func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU32 appends a big-endian uint32.
func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU64 appends a big-endian uint64.
func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutStringU8 appends a u8-length-prefixed string. Returns BadInput if the
// string exceeds 255 bytes.
func (w *Writer) PutStringU8(op, s string) error {
	if len(s) > 0xff {
		return h4errors.NewBadInput(op, nil)
	}
	w.PutU8(byte(len(s)))
	w.PutBytes([]byte(s))
	return nil
}

// PutStringU16 appends a u16-length-prefixed string. Returns BadInput if the
// string exceeds 65535 bytes.
func (w *Writer) PutStringU16(op, s string) error {
	if len(s) > 0xffff {
		return h4errors.NewBadInput(op, nil)
	}
	w.PutU16(uint16(len(s)))
	w.PutBytes([]byte(s))
	return nil
}

// CRC32 computes the IEEE CRC-32 of buf.
func CRC32(buf []byte) uint32 { return crc32.ChecksumIEEE(buf) }

// SHA256 computes the SHA-256 digest of buf.
func SHA256(buf []byte) [32]byte { return sha256.Sum256(buf) }
