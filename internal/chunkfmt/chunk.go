// Package chunkfmt implements the tagged, length-prefixed, CRC-protected
// chunk records that make up an H4MK container body.
package chunkfmt

import (
	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// TagLen is the fixed width of a chunk tag.
const TagLen = 4

// Known chunk tags, in canonical container order.
const (
	TagCore = "CORE"
	TagSeek = "SEEK"
	TagMeta = "META"
	TagSafe = "SAFE"
	TagVeri = "VERI"
)

// Chunk is a single tagged, CRC-protected record.
type Chunk struct {
	Tag     string
	Payload []byte
}

// New builds a Chunk, validating the tag width.
func New(tag string, payload []byte) (Chunk, error) {
	if len(tag) != TagLen {
		return Chunk{}, h4errors.NewBadInput("chunk.new", nil)
	}
	return Chunk{Tag: tag, Payload: payload}, nil
}

// Encode serializes the chunk as tag(4) ‖ length(u32 BE) ‖ crc32(u32 BE) ‖
// payload.
func (c Chunk) Encode() []byte {
	w := codec.NewWriter()
	w.PutBytes([]byte(c.Tag))
	w.PutU32(uint32(len(c.Payload)))
	w.PutU32(codec.CRC32(c.Payload))
	w.PutBytes(c.Payload)
	return w.Bytes()
}

// Decode reads one chunk from r, verifying its CRC.
func Decode(r *codec.Reader) (Chunk, error) {
	tagBytes, err := r.Bytes("chunk.tag", TagLen)
	if err != nil {
		return Chunk{}, err
	}
	length, err := r.U32("chunk.length")
	if err != nil {
		return Chunk{}, err
	}
	crc, err := r.U32("chunk.crc")
	if err != nil {
		return Chunk{}, err
	}
	payload, err := r.Bytes("chunk.payload", int(length))
	if err != nil {
		return Chunk{}, err
	}
	if got := codec.CRC32(payload); got != crc {
		return Chunk{}, h4errors.NewCrcMismatch("chunk.verify", nil)
	}
	return Chunk{Tag: string(tagBytes), Payload: payload}, nil
}

// DecodeAll streams chunks from buf until it is exhausted. A buffer that
// ends mid-chunk is a Truncated error.
func DecodeAll(buf []byte) ([]Chunk, error) {
	r := codec.NewReader(buf)
	var out []Chunk
	for r.Remaining() > 0 {
		c, err := Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
