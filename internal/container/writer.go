// Package container implements the H4MK container writer and reader: an
// 8-byte header followed by a canonically ordered chunk sequence
// (CORE*, SEEK, META, SAFE, VERI), with integrity bound end to end by a
// SHA-256 digest over every preceding chunk's on-the-wire bytes.
package container

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FractalFuryan/h4mk/internal/bufpool"
	"github.com/FractalFuryan/h4mk/internal/chunkfmt"
	"github.com/FractalFuryan/h4mk/internal/codec"
	"github.com/FractalFuryan/h4mk/internal/compress"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/ratchet"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

// Magic is the fixed 4-byte container identifier.
var Magic = []byte("H4MK")

// Version is the only container version this package writes or accepts.
const Version = 1

// Block is one producer-supplied, already-tokenized unit ready for the
// writer pipeline: an opaque payload plus its track, timestamp, and GOP
// role.
type Block struct {
	TrackID  string
	PTSUs    int64
	Kind     seekindex.Kind
	Keyframe bool
	Payload  []byte
}

// BuildResult carries the serialized container alongside derived values a
// caller (such as the CLI) may want without re-parsing.
type BuildResult struct {
	Bytes   []byte
	BuildID string
	VeriHex string
}

// Build assembles a complete H4MK container from blocks, in
// (pts_us ascending, track_id ascending) order, per the container-writer
// pipeline: compress each block, optionally encrypt it under a
// context-bound AAD, emit CORE; then SEEK, META (with the compression
// seal, SEEKM, and TRAK embedded), SAFE, and finally VERI.
//
// Because VERI folds over every preceding chunk's bytes, it cannot itself
// be known while CORE blocks are being encrypted. In its place, the AAD's
// container-identity field carries a fresh per-container build_id (stored
// in META), giving each container an unforgeable identity that is fixed
// before any block is encrypted; see DESIGN.md for the rationale.
//
// metrics may be nil; when set, Build records the attempt's outcome and
// wall-clock duration.
func Build(blocks []Block, meta, safe map[string]any, engine compress.Engine, cipher *ratchet.State, metrics *telemetry.Metrics) (res BuildResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordBuild(err, time.Since(start)) }()

	if engine == nil {
		return BuildResult{}, h4errors.NewBadInput("container.build", nil)
	}

	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PTSUs != sorted[j].PTSUs {
			return sorted[i].PTSUs < sorted[j].PTSUs
		}
		return sorted[i].TrackID < sorted[j].TrackID
	})

	buildID := uuid.NewString()
	info := engine.Info()

	trakEntries := make([]seekindex.Entry, 0, len(sorted))
	chunks := make([]chunkfmt.Chunk, 0, len(sorted)+4)
	trackSet := map[string]struct{}{}

	// Encrypted CORE payloads are assembled in pool-backed buffers, sized
	// by class against the header+ciphertext length. Each buffer stays
	// live until the chunk sequence is encoded below (chunkfmt.Chunk
	// stores Payload by reference), then goes back to the pool.
	var pooledPayloads [][]byte

	for i, b := range sorted {
		compressed, err := engine.Compress(b.Payload)
		if err != nil {
			return BuildResult{}, err
		}

		payload := compressed
		if cipher != nil {
			ctx := ratchet.CoreContext{
				EngineID:         info.EngineID,
				EngineFP:         info.Fingerprint,
				ContainerVeriHex: buildID,
				TrackID:          b.TrackID,
				PTSUs:            b.PTSUs,
				ChunkIndex:       i,
			}
			header, ct, err := ratchet.EncryptCoreBlock(cipher, compressed, ctx)
			if err != nil {
				return BuildResult{}, err
			}
			payload = bufpool.Concat(header, ct)
			pooledPayloads = append(pooledPayloads, payload)
		}

		chunk, err := chunkfmt.New(chunkfmt.TagCore, payload)
		if err != nil {
			return BuildResult{}, err
		}
		chunks = append(chunks, chunk)
		trackSet[b.TrackID] = struct{}{}
		trakEntries = append(trakEntries, seekindex.Entry{
			TrackID:   b.TrackID,
			PTSUs:     b.PTSUs,
			Kind:      b.Kind,
			Keyframe:  b.Keyframe,
			CoreIndex: uint32(i),
		})
	}

	seekChunk, err := chunkfmt.New(chunkfmt.TagSeek, packFlatSeek(nil))
	if err != nil {
		return BuildResult{}, err
	}
	chunks = append(chunks, seekChunk)

	seekmTable := seekindex.BuildFromTrak(trakEntries)
	seekmBytes, err := seekindex.PackSEEKM(seekmTable)
	if err != nil {
		return BuildResult{}, err
	}
	trakBytes, err := seekindex.PackTrak(trakEntries)
	if err != nil {
		return BuildResult{}, err
	}

	tracks := make([]string, 0, len(trackSet))
	for t := range trackSet {
		tracks = append(tracks, t)
	}
	sort.Strings(tracks)

	metaOut := map[string]any{}
	for k, v := range meta {
		metaOut[k] = v
	}
	metaOut["domain"] = "h4mk-transport"
	metaOut["build_id"] = buildID
	metaOut["tracks"] = tracks
	metaOut["seekm_b64"] = base64.StdEncoding.EncodeToString(seekmBytes)
	metaOut["trak_b64"] = base64.StdEncoding.EncodeToString(trakBytes)
	metaOut["compression"] = map[string]any{
		"engine":        info.Engine,
		"engine_id":     info.EngineID,
		"fingerprint":   info.Fingerprint,
		"deterministic": info.Deterministic,
		"identity_safe": info.IdentitySafe,
		"sealed":        info.Sealed,
	}
	if cipher != nil {
		metaOut["encryption"] = map[string]any{"suite": ratchet.Suite}
	}

	metaBytes, err := json.Marshal(metaOut)
	if err != nil {
		return BuildResult{}, h4errors.NewBadInput("container.build.meta", err)
	}
	metaChunk, err := chunkfmt.New(chunkfmt.TagMeta, metaBytes)
	if err != nil {
		return BuildResult{}, err
	}
	chunks = append(chunks, metaChunk)

	safeBytes, err := json.Marshal(safe)
	if err != nil {
		return BuildResult{}, h4errors.NewBadInput("container.build.safe", err)
	}
	safeChunk, err := chunkfmt.New(chunkfmt.TagSafe, safeBytes)
	if err != nil {
		return BuildResult{}, err
	}
	chunks = append(chunks, safeChunk)

	encoded := make([][]byte, len(chunks))
	var totalLen int
	for i, c := range chunks {
		b := c.Encode()
		encoded[i] = b
		totalLen += len(b)
	}

	preVeri := bufpool.Get(totalLen)
	offset := 0
	for _, b := range encoded {
		offset += copy(preVeri[offset:], b)
	}
	veriDigest := codec.SHA256(preVeri)
	bufpool.Put(preVeri)
	for _, buf := range pooledPayloads {
		bufpool.Put(buf)
	}

	veriChunk, err := chunkfmt.New(chunkfmt.TagVeri, veriDigest[:])
	if err != nil {
		return BuildResult{}, err
	}
	veriEncoded := veriChunk.Encode()

	w := codec.NewWriter()
	w.PutBytes(Magic)
	w.PutU16(Version)
	w.PutU16(0)
	for _, b := range encoded {
		w.PutBytes(b)
	}
	w.PutBytes(veriEncoded)

	return BuildResult{Bytes: w.Bytes(), BuildID: buildID, VeriHex: hexString(veriDigest[:])}, nil
}

// packFlatSeek serializes the legacy flat SEEK chunk: count(u32) followed
// by one 16-byte entry per keyframe (pts_us u64, core_index u32, zero u32).
// Build always passes no entries, since the keyframe index lives in META's
// SEEKM, so the SEEK chunk it writes holds only a zero count.
func packFlatSeek(entries []seekindex.KeyframeEntry) []byte {
	w := codec.NewWriter()
	w.PutU32(uint32(len(entries)))
	for _, e := range entries {
		w.PutU64(uint64(e.PTSUs))
		w.PutU32(e.CoreIndex)
		w.PutU32(0) // pad to match the 8-byte offset field width
	}
	return w.Bytes()
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
