package tokenize

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

func TestKindForSchedulesKeyframes(t *testing.T) {
	cfg := GOPConfig{Size: 3}
	cases := map[int]seekindex.Kind{0: seekindex.KindI, 1: seekindex.KindP, 2: seekindex.KindP, 3: seekindex.KindI}
	for idx, want := range cases {
		if got := KindFor(idx, cfg); got != want {
			t.Fatalf("KindFor(%d) = %v, want %v", idx, got, want)
		}
	}
}

func TestKindForAllowsB(t *testing.T) {
	cfg := GOPConfig{Size: 4, AllowB: true}
	if got := KindFor(1, cfg); got != seekindex.KindB {
		t.Fatalf("KindFor(1) = %v, want B", got)
	}
	if got := KindFor(2, cfg); got != seekindex.KindP {
		t.Fatalf("KindFor(2) = %v, want P", got)
	}
}

func TestVideoTokenizerAssignsPTSAndKeyframes(t *testing.T) {
	vt := NewVideoTokenizer("v", 30, GOPConfig{Size: 2})
	frames := [][]byte{[]byte("f0"), []byte("f1"), []byte("f2")}
	blocks := vt.Tokenize(frames)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[0].PTSUs != 0 || !blocks[0].Keyframe {
		t.Fatalf("block 0 = %+v, want pts=0 keyframe=true", blocks[0])
	}
	wantFrameUs := int64(1_000_000 / 30)
	if blocks[1].PTSUs != wantFrameUs || blocks[1].Keyframe {
		t.Fatalf("block 1 = %+v, want pts=%d keyframe=false", blocks[1], wantFrameUs)
	}
}

func TestControlTokenizerPreservesExplicitPTS(t *testing.T) {
	ct := NewControlTokenizer("c", GOPConfig{Size: 1})
	events := []ControlEvent{{PTSUs: 500, Payload: []byte("p0")}, {PTSUs: 1500, Payload: []byte("p1")}}
	blocks := ct.Tokenize(events)
	if blocks[0].PTSUs != 500 || blocks[1].PTSUs != 1500 {
		t.Fatalf("unexpected PTS assignment: %+v", blocks)
	}
	if !blocks[0].Keyframe || !blocks[1].Keyframe {
		t.Fatalf("expected every block keyframe with GOP size 1: %+v", blocks)
	}
}

func encodePCM16LESine(freqHz float64, sampleRate, n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(int16(sample*20000)))
	}
	return buf
}

func TestAudioFFTTokenizerFindsDominantFrequency(t *testing.T) {
	const sampleRate = 8000
	const frameSize = 64
	pcm := encodePCM16LESine(1000, sampleRate, frameSize*3)

	at := NewAudioFFTTokenizer("a", sampleRate, frameSize, 4)
	blocks := at.Tokenize(pcm)
	if len(blocks) == 0 {
		t.Fatalf("expected at least one audio block")
	}
	if blocks[0].TrackID != "a" || !blocks[0].Keyframe {
		t.Fatalf("unexpected block metadata: %+v", blocks[0])
	}
	if len(blocks[0].Payload) < 4 {
		t.Fatalf("payload too short: %d bytes", len(blocks[0].Payload))
	}
	if string(blocks[0].Payload[:4]) != "AFT0" {
		t.Fatalf("missing AFT0 magic: %q", blocks[0].Payload[:4])
	}

	binCount := binary.BigEndian.Uint16(blocks[0].Payload[4:6])
	if binCount == 0 {
		t.Fatalf("expected at least one bin")
	}
	topHzTenths := binary.BigEndian.Uint32(blocks[0].Payload[6:10])
	topHz := float64(topHzTenths) / 10
	if math.Abs(topHz-1000) > float64(sampleRate)/frameSize {
		t.Fatalf("top bin frequency = %.1f Hz, want near 1000 Hz", topHz)
	}
}

func TestAudioFFTTokenizerEmptyOnShortInput(t *testing.T) {
	at := NewAudioFFTTokenizer("a", 8000, 64, 4)
	if blocks := at.Tokenize(make([]byte, 10)); blocks != nil {
		t.Fatalf("expected nil for input shorter than one frame, got %d blocks", len(blocks))
	}
}

func TestAudioTokenSerializeRoundTripShape(t *testing.T) {
	tok := AudioToken{BinHz: 440, Magnitude: 0.5, Phase: 0}
	b := tok.Serialize()
	if len(b) != 8 {
		t.Fatalf("expected 8-byte token, got %d", len(b))
	}
}

func TestTrackSpecsMetaIncludesEveryDescriptor(t *testing.T) {
	meta := TrackSpecsMeta([]TrackDescriptor{
		{ID: "v", Name: "main", Kind: "video", Codec: "h4core"},
		{ID: "a", Name: "main-audio", Kind: "audio", Codec: "h4core", SampleRate: 48000, Channels: 2},
	})
	specs, ok := meta["track_specs"].([]map[string]any)
	if !ok || len(specs) != 2 {
		t.Fatalf("expected 2 track_specs entries, got %v", meta["track_specs"])
	}
}
