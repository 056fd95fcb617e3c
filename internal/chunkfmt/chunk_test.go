package chunkfmt

import (
	"testing"

	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c, err := New(TagCore, []byte("hello block"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	encoded := c.Encode()

	r := codec.NewReader(encoded)
	decoded, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Tag != TagCore {
		t.Fatalf("tag mismatch: %s", decoded.Tag)
	}
	if string(decoded.Payload) != "hello block" {
		t.Fatalf("payload mismatch: %s", decoded.Payload)
	}
}

func TestDecodeAllSequence(t *testing.T) {
	c1, _ := New(TagCore, []byte("A"))
	c2, _ := New(TagCore, []byte("B"))
	c3, _ := New(TagMeta, []byte(`{"k":1}`))

	var buf []byte
	buf = append(buf, c1.Encode()...)
	buf = append(buf, c2.Encode()...)
	buf = append(buf, c3.Encode()...)

	chunks, err := DecodeAll(buf)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].Tag != TagMeta {
		t.Fatalf("expected third chunk META, got %s", chunks[2].Tag)
	}
}

func TestCrcMismatchRejected(t *testing.T) {
	c, _ := New(TagCore, []byte("payload"))
	encoded := c.Encode()
	// Flip a payload byte after the CRC was computed.
	encoded[len(encoded)-1] ^= 0xff

	r := codec.NewReader(encoded)
	if _, err := Decode(r); h4errors.Kind(err) != h4errors.KindCrcMismatch {
		t.Fatalf("expected KindCrcMismatch, got %v", err)
	}
}

func TestTruncatedChunkRejected(t *testing.T) {
	c, _ := New(TagCore, []byte("payload"))
	encoded := c.Encode()
	truncated := encoded[:len(encoded)-2]

	r := codec.NewReader(truncated)
	if _, err := Decode(r); h4errors.Kind(err) != h4errors.KindTruncated {
		t.Fatalf("expected KindTruncated, got %v", err)
	}
}

func TestNewRejectsBadTagWidth(t *testing.T) {
	if _, err := New("TOO_LONG", []byte("x")); h4errors.Kind(err) != h4errors.KindBadInput {
		t.Fatalf("expected KindBadInput, got %v", err)
	}
}
