package adapter

import (
	"encoding/binary"
	"math"
	"strconv"
)

// dspMagic tags a DSP adapter opaque block: frequency-domain bins,
// little-endian, independent of the container's own big-endian framing
// since this layout is private to the adapter and opaque to H4MK.
var dspMagic = []byte("DSP0")

type freqBin struct {
	mag, phase float64
}

// DSPState holds the frequency-domain synthesis state a DSPAdapter
// accumulates across a decode chain: a magnitude/phase pair per bin
// index, keyed by the bin index carried in each opaque block.
type DSPState struct {
	SampleRate int
	bins       map[uint16]freqBin
}

// Summary implements DecodeState.
func (s *DSPState) Summary() map[string]any {
	return map[string]any{
		"type":        "DSPState",
		"sample_rate": s.SampleRate,
		"bin_count":   len(s.bins),
	}
}

// DSPAdapter reconstructs audio from frequency-domain bin updates. It is a
// structural stub: Render returns a marker string rather than real PCM, a
// placeholder for wiring an actual inverse-transform synthesis engine.
type DSPAdapter struct {
	SampleRate int
}

// NewDSPAdapter constructs a DSPAdapter at sampleRate.
func NewDSPAdapter(sampleRate int) *DSPAdapter {
	return &DSPAdapter{SampleRate: sampleRate}
}

// DecodeI implements Adapter: initializes state from a keyframe's absolute
// bin values.
func (a *DSPAdapter) DecodeI(opaque []byte) (DecodeState, error) {
	state := &DSPState{SampleRate: a.SampleRate, bins: map[uint16]freqBin{}}
	unpackBins(opaque, state, false)
	return state, nil
}

// ApplyP implements Adapter: applies a predictive block's delta onto
// existing bins.
func (a *DSPAdapter) ApplyP(state DecodeState, opaque []byte) (DecodeState, error) {
	s := state.(*DSPState)
	unpackBins(opaque, s, true)
	return s, nil
}

// ApplyB implements Adapter by delegating to ApplyP; true bidirectional
// bin interpolation is not implemented.
func (a *DSPAdapter) ApplyB(prev, next DecodeState, opaque []byte) (DecodeState, error) {
	return DefaultApplyB(a, prev, next, opaque)
}

// Render implements Adapter. A real synthesis engine would run an inverse
// FFT with phase-vocoder reconstruction over state's bins; this stub
// reports only how much frequency content it accumulated.
func (a *DSPAdapter) Render(state DecodeState) ([]byte, error) {
	s := state.(*DSPState)
	return []byte("DSP_OUT: " + strconv.Itoa(len(s.bins)) + " bins"), nil
}

// unpackBins parses a DSP0 opaque block's (bin_idx, mag, phase) triples
// and applies them to state. Malformed or mismatched blocks are skipped
// rather than rejected, matching the adapter's permissive, best-effort
// contract: a container-level integrity failure is the decoder's job, not
// the adapter's.
func unpackBins(opaque []byte, state *DSPState, delta bool) {
	if len(opaque) < 8 || string(opaque[:4]) != string(dspMagic) {
		return
	}
	binCount := binary.LittleEndian.Uint16(opaque[4:6])
	need := 8 + int(binCount)*6
	if len(opaque) < need {
		return
	}
	for i := 0; i < int(binCount); i++ {
		off := 8 + i*6
		binIdx := binary.LittleEndian.Uint16(opaque[off : off+2])
		magU16 := binary.LittleEndian.Uint16(opaque[off+2 : off+4])
		phaseU16 := binary.LittleEndian.Uint16(opaque[off+4 : off+6])

		mag := float64(magU16) / 65535.0
		phase := (float64(phaseU16) / 65535.0) * (2 * math.Pi)

		if delta {
			if old, ok := state.bins[binIdx]; ok {
				state.bins[binIdx] = freqBin{mag: old.mag + mag, phase: old.phase + phase}
				continue
			}
		}
		state.bins[binIdx] = freqBin{mag: mag, phase: phase}
	}
}

