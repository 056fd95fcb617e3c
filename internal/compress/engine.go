// Package compress implements the H4MK compression engine contract: a
// deterministic, engine-identified byte-to-byte transform whose identity is
// folded into container metadata before the integrity hash is computed.
package compress

import (
	"fmt"

	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// Info describes a loaded engine's public identity. None of its fields
// reveal algorithm internals; it is safe to embed in container metadata.
type Info struct {
	Engine        string `json:"engine"`
	EngineID      string `json:"engine_id"`
	Fingerprint   string `json:"fingerprint"`
	Deterministic bool   `json:"deterministic"`
	IdentitySafe  bool   `json:"identity_safe"`
	Sealed        bool   `json:"sealed"`
}

// Engine is the compressor contract every implementation satisfies.
type Engine interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Info() Info
}

// referenceEngineID is the public identifier of the mandatory, fully
// auditable reference engine.
const referenceEngineID = "h4ref-rle-v1"

// ReferenceEngine is the mandatory deterministic run-length engine. It is
// always available and never requires a pinned fingerprint match; CI and
// open distribution must never exercise a code path that requires a
// proprietary core.
type ReferenceEngine struct{}

// NewReferenceEngine constructs the reference RLE engine.
func NewReferenceEngine() *ReferenceEngine { return &ReferenceEngine{} }

// Compress encodes data as a sequence of (value, count) pairs, each count
// bounded by 255. Compress is pure: identical input always produces
// identical output, in this or any other process.
func (ReferenceEngine) Compress(data []byte) ([]byte, error) {
	w := codec.NewWriter()
	i := 0
	for i < len(data) {
		v := data[i]
		run := 1
		for i+run < len(data) && data[i+run] == v && run < 255 {
			run++
		}
		w.PutU8(v)
		w.PutU8(byte(run))
		i += run
	}
	return w.Bytes(), nil
}

// Decompress reverses Compress. Input of odd length (not a whole number of
// (value, count) pairs) fails the engine's alignment precondition.
func (ReferenceEngine) Decompress(data []byte) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, h4errors.NewBadInput("compress.reference.decompress",
			fmt.Errorf("input length %d is odd", len(data)))
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i += 2 {
		v, count := data[i], data[i+1]
		if count == 0 {
			return nil, h4errors.NewBadInput("compress.reference.decompress", nil)
		}
		for n := byte(0); n < count; n++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// Info reports the reference engine's public identity. Its fingerprint is
// the SHA-256 of the engine's own public identifier, a stand-in for "hash
// of the engine binary" that every process can recompute identically
// without shipping a binary artifact.
func (ReferenceEngine) Info() Info {
	fp := codec.SHA256([]byte(referenceEngineID))
	return Info{
		Engine:        "reference",
		EngineID:      referenceEngineID,
		Fingerprint:   hexString(fp[:]),
		Deterministic: true,
		IdentitySafe:  true,
		Sealed:        false,
	}
}

const hexDigits = "0123456789abcdef"

func hexString(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
