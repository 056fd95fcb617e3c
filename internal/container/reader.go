package container

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/FractalFuryan/h4mk/internal/bufpool"
	"github.com/FractalFuryan/h4mk/internal/chunkfmt"
	"github.com/FractalFuryan/h4mk/internal/codec"
	"github.com/FractalFuryan/h4mk/internal/compress"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/ratchet"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

const headerLen = 8

// Container is a fully parsed, integrity-verified H4MK file: its chunk
// sequence plus the META/SAFE/SEEKM/TRAK structures decoded from it.
type Container struct {
	Chunks      []chunkfmt.Chunk
	CoreIndex   []int // index into Chunks for each CORE chunk, in on-wire order
	Meta        map[string]any
	Safe        map[string]any
	Seekm       seekindex.Table
	Trak        []seekindex.Entry
	VeriHex     string
	BuildID     string
	Compression compress.Info
	Encrypted   bool
}

// Parse validates the 8-byte header, decodes the chunk sequence (each
// chunk's own CRC is checked by chunkfmt.Decode, and a CRC mismatch is
// returned as an IntegrityFailure wrapping it), recomputes VERI over
// every preceding chunk's on-the-wire bytes, and decodes META/SAFE/SEEKM/
// TRAK.
//
// metrics may be nil; when set, Parse records the attempt's outcome,
// keyed by h4errors.Kind on failure.
func Parse(data []byte, metrics *telemetry.Metrics) (c *Container, err error) {
	defer func() {
		if err != nil {
			metrics.RecordParse(h4errors.Kind(err))
			return
		}
		metrics.RecordParse("")
	}()

	if len(data) < headerLen {
		return nil, h4errors.NewTruncated("container.parse.header", nil)
	}
	if string(data[:4]) != string(Magic) {
		return nil, h4errors.NewBadMagic("container.parse.header", nil)
	}
	r := codec.NewReader(data[4:headerLen])
	version, err := r.U16("container.parse.version")
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, h4errors.NewBadVersion("container.parse.version", nil)
	}

	chunks, err := chunkfmt.DecodeAll(data[headerLen:])
	if err != nil {
		if h4errors.Kind(err) == h4errors.KindCrcMismatch {
			return nil, h4errors.NewIntegrityFailure("container.parse.crc", err)
		}
		return nil, err
	}
	if len(chunks) == 0 || chunks[len(chunks)-1].Tag != chunkfmt.TagVeri {
		return nil, h4errors.NewIntegrityFailure("container.parse.veri", nil)
	}

	encoded := make([][]byte, len(chunks)-1)
	var totalLen int
	for i, ch := range chunks[:len(chunks)-1] {
		b := ch.Encode()
		encoded[i] = b
		totalLen += len(b)
	}
	preVeri := bufpool.Get(totalLen)
	offset := 0
	for _, b := range encoded {
		offset += copy(preVeri[offset:], b)
	}
	want := codec.SHA256(preVeri)
	bufpool.Put(preVeri)
	got := chunks[len(chunks)-1].Payload
	if !bytes.Equal(got, want[:]) {
		return nil, h4errors.NewIntegrityFailure("container.parse.veri", nil)
	}

	c = &Container{Chunks: chunks, VeriHex: hexString(want[:])}

	var metaChunk, safeChunk *chunkfmt.Chunk
	for i, ch := range chunks {
		switch ch.Tag {
		case chunkfmt.TagCore:
			c.CoreIndex = append(c.CoreIndex, i)
		case chunkfmt.TagMeta:
			cp := chunks[i]
			metaChunk = &cp
		case chunkfmt.TagSafe:
			cp := chunks[i]
			safeChunk = &cp
		}
	}
	if metaChunk == nil {
		return nil, h4errors.NewBadInput("container.parse.meta", nil)
	}

	meta := map[string]any{}
	if err := json.Unmarshal(metaChunk.Payload, &meta); err != nil {
		return nil, h4errors.NewBadInput("container.parse.meta", err)
	}
	c.Meta = meta

	if safeChunk != nil {
		safe := map[string]any{}
		if err := json.Unmarshal(safeChunk.Payload, &safe); err != nil {
			return nil, h4errors.NewBadInput("container.parse.safe", err)
		}
		c.Safe = safe
	}

	if buildID, ok := meta["build_id"].(string); ok {
		c.BuildID = buildID
	}
	if seekmB64, ok := meta["seekm_b64"].(string); ok {
		raw, err := base64.StdEncoding.DecodeString(seekmB64)
		if err != nil {
			return nil, h4errors.NewBadInput("container.parse.seekm", err)
		}
		table, err := seekindex.UnpackSEEKM(raw)
		if err != nil {
			return nil, err
		}
		c.Seekm = table
	}
	if trakB64, ok := meta["trak_b64"].(string); ok {
		raw, err := base64.StdEncoding.DecodeString(trakB64)
		if err != nil {
			return nil, h4errors.NewBadInput("container.parse.trak", err)
		}
		entries, err := seekindex.UnpackTrak(raw)
		if err != nil {
			return nil, err
		}
		c.Trak = entries
	}
	if comp, ok := meta["compression"].(map[string]any); ok {
		c.Compression = compress.Info{
			Engine:        stringField(comp, "engine"),
			EngineID:      stringField(comp, "engine_id"),
			Fingerprint:   stringField(comp, "fingerprint"),
			Deterministic: boolField(comp, "deterministic"),
			IdentitySafe:  boolField(comp, "identity_safe"),
			Sealed:        boolField(comp, "sealed"),
		}
	}
	if _, ok := meta["encryption"]; ok {
		c.Encrypted = true
	}

	return c, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// trakByCoreIndex finds the TRAK descriptor for a given CORE chunk index,
// or ok=false if TRAK carries no entry for it.
func (c *Container) trakByCoreIndex(coreIndex int) (seekindex.Entry, bool) {
	for _, e := range c.Trak {
		if int(e.CoreIndex) == coreIndex {
			return e, true
		}
	}
	return seekindex.Entry{}, false
}

// IterCoreBlocks returns every CORE block's plaintext payload, in on-wire
// order. If cipher is non-nil, each block is first decrypted under the AAD
// derived from its TRAK slot (track, pts_us, chunk index) and the
// container's engine identity and build_id; engine.Decompress is then
// applied when decompress is true. metrics may be nil; when set, every
// decrypt rejection is recorded by its h4errors.Kind.
func (c *Container) IterCoreBlocks(engine compress.Engine, cipher *ratchet.State, decompress bool, metrics *telemetry.Metrics) ([][]byte, error) {
	out := make([][]byte, 0, len(c.CoreIndex))
	for pos, chunkIdx := range c.CoreIndex {
		payload := c.Chunks[chunkIdx].Payload

		if cipher != nil {
			entry, ok := c.trakByCoreIndex(pos)
			if !ok {
				return nil, h4errors.NewBadInput("container.iter_core_blocks.trak", nil)
			}
			hlen, err := ratchet.HeaderLen(payload)
			if err != nil {
				return nil, err
			}
			if hlen > len(payload) {
				return nil, h4errors.NewTruncated("container.iter_core_blocks.header", nil)
			}
			header, ciphertext := payload[:hlen], payload[hlen:]
			ctx := ratchet.CoreContext{
				EngineID:         c.Compression.EngineID,
				EngineFP:         c.Compression.Fingerprint,
				ContainerVeriHex: c.BuildID,
				TrackID:          entry.TrackID,
				PTSUs:            entry.PTSUs,
				ChunkIndex:       pos,
			}
			plain, err := ratchet.DecryptCoreBlock(cipher, header, ciphertext, ctx)
			if err != nil {
				metrics.RecordCipherRejection(h4errors.Kind(err))
				return nil, err
			}
			payload = plain
		}

		if decompress {
			if engine == nil {
				return nil, h4errors.NewBadInput("container.iter_core_blocks.engine", nil)
			}
			plain, err := engine.Decompress(payload)
			if err != nil {
				return nil, err
			}
			payload = plain
		}

		out = append(out, payload)
	}
	return out, nil
}
