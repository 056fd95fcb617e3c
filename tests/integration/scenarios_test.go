// Package integration exercises the concrete end-to-end scenarios against
// the public container, decodechain, and ratchet APIs, driven entirely
// through exported entry points rather than internal package state.
package integration

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/FractalFuryan/h4mk/internal/adapter"
	"github.com/FractalFuryan/h4mk/internal/compress"
	"github.com/FractalFuryan/h4mk/internal/container"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/ratchet"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

// Scenario 1: round-trip, single track, three blocks.
func TestScenarioRoundTripSingleTrackThreeBlocks(t *testing.T) {
	engine := compress.NewReferenceEngine()
	blocks := []container.Block{
		{TrackID: "v", PTSUs: 0, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("A")},
		{TrackID: "v", PTSUs: 33_333, Kind: seekindex.KindP, Payload: []byte("B")},
		{TrackID: "v", PTSUs: 66_666, Kind: seekindex.KindP, Payload: []byte("C")},
	}

	res, err := container.Build(blocks, nil, nil, engine, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	c, err := container.Parse(res.Bytes, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	chain, err := c.DecodeChain("v", 50_000, nil)
	if err != nil {
		t.Fatalf("DecodeChain: %v", err)
	}
	if len(chain.CoreIndices) != 2 || chain.CoreIndices[0] != 0 || chain.CoreIndices[1] != 1 {
		t.Fatalf("decode chain = %v, want [0 1]", chain.CoreIndices)
	}

	out, err := c.Render(adapter.NullAdapter{}, engine, nil, "v", 50_000, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(out, []byte("AB")) {
		t.Fatalf("rendered payload = %q, want %q", out, "AB")
	}
}

// Scenario 2: GOP boundary — a query inside the first GOP never reaches
// into the first block of the next one.
func TestScenarioGOPBoundary(t *testing.T) {
	engine := compress.NewReferenceEngine()
	blocks := []container.Block{
		{TrackID: "v", PTSUs: 0, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("i0")},
		{TrackID: "v", PTSUs: 100, Kind: seekindex.KindP, Payload: []byte("p100")},
		{TrackID: "v", PTSUs: 200, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("i200")},
		{TrackID: "v", PTSUs: 300, Kind: seekindex.KindP, Payload: []byte("p300")},
	}

	res, err := container.Build(blocks, nil, nil, engine, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, err := container.Parse(res.Bytes, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	chain, err := c.DecodeChain("v", 150, nil)
	if err != nil {
		t.Fatalf("DecodeChain: %v", err)
	}
	if len(chain.CoreIndices) != 2 {
		t.Fatalf("chain = %v, want exactly 2 entries", chain.CoreIndices)
	}
	last := chain.CoreIndices[len(chain.CoreIndices)-1]
	entry, ok := trakEntry(c, last)
	if !ok || entry.PTSUs != 100 {
		t.Fatalf("chain ends at core_index %d (pts=%d), want pts=100", last, entry.PTSUs)
	}
	for _, idx := range chain.CoreIndices {
		if e, ok := trakEntry(c, idx); ok && e.PTSUs == 200 {
			t.Fatalf("chain crossed GOP boundary into block at pts=200: %v", chain.CoreIndices)
		}
	}
}

func trakEntry(c *container.Container, coreIndex uint32) (seekindex.Entry, bool) {
	for _, e := range c.Trak {
		if e.CoreIndex == coreIndex {
			return e, true
		}
	}
	return seekindex.Entry{}, false
}

// Scenario 3: keyframe binary search across a fixed keyframe ladder.
func TestScenarioKeyframeBinarySearch(t *testing.T) {
	engine := compress.NewReferenceEngine()
	var blocks []container.Block
	for i, pts := range []int64{0, 100, 200, 300} {
		blocks = append(blocks, container.Block{
			TrackID: "v", PTSUs: pts, Kind: seekindex.KindI, Keyframe: true,
			Payload: []byte{byte('a' + i)},
		})
	}
	res, err := container.Build(blocks, nil, nil, engine, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, err := container.Parse(res.Bytes, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cases := map[int64]int64{0: 0, 50: 0, 99: 0, 100: 100, 250: 200, 400: 300}
	for query, wantPTS := range cases {
		idx, ok := c.Seekm.SeekKeyframe("v", query)
		if !ok {
			t.Fatalf("SeekKeyframe(%d): no match", query)
		}
		entry, ok := trakEntry(c, idx)
		if !ok || entry.PTSUs != wantPTS {
			t.Fatalf("SeekKeyframe(%d) resolved to pts=%d, want %d", query, entry.PTSUs, wantPTS)
		}
	}
}

// Scenario 4: encrypt/decrypt round-trip between a state and its mirror.
func TestScenarioEncryptDecryptRoundTrip(t *testing.T) {
	secret := sha256.Sum256([]byte("s"))
	sender, err := ratchet.InitFromSharedSecret(secret[:], ratchet.Options{})
	if err != nil {
		t.Fatalf("InitFromSharedSecret: %v", err)
	}
	receiver := sender.Mirror()

	header, ciphertext, err := sender.Encrypt([]byte("hello"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plain, err := receiver.Decrypt(header, ciphertext, nil)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(plain, []byte("hello")) {
		t.Fatalf("decrypted = %q, want %q", plain, "hello")
	}
}

// Scenario 5: an encrypted CORE block copied to another (pts_us,
// chunk_index) slot fails AEAD verification.
func TestScenarioTransplantDetection(t *testing.T) {
	secret := sha256.Sum256([]byte("s"))
	sender, err := ratchet.InitFromSharedSecret(secret[:], ratchet.Options{})
	if err != nil {
		t.Fatalf("InitFromSharedSecret: %v", err)
	}
	receiver := sender.Mirror()

	origCtx := ratchet.CoreContext{EngineID: "ref", EngineFP: "fp", ContainerVeriHex: "veri", TrackID: "v", PTSUs: 0, ChunkIndex: 0}
	header, ciphertext, err := ratchet.EncryptCoreBlock(sender, []byte("payload"), origCtx)
	if err != nil {
		t.Fatalf("EncryptCoreBlock: %v", err)
	}

	transplantedCtx := origCtx
	transplantedCtx.PTSUs = 1000
	_, err = ratchet.DecryptCoreBlock(receiver, header, ciphertext, transplantedCtx)
	if h4errors.Kind(err) != h4errors.KindAuth {
		t.Fatalf("DecryptCoreBlock under transplanted context: got %v, want kind=Auth", err)
	}
}
