package tokenize

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/FractalFuryan/h4mk/internal/codec"
	"github.com/FractalFuryan/h4mk/internal/container"
)

// AudioToken is one harmonic bin: a structural, non-identity-preserving
// summary of a frequency component, never raw waveform data.
type AudioToken struct {
	BinHz     float64
	Magnitude float64
	Phase     float64
}

// Serialize packs a token to 8 bytes: freq(4, 0.1 Hz steps, clamped
// 0..20000 Hz) + magnitude(2, normalized) + phase(2, [-pi,pi] mapped to
// [0,1]).
func (t AudioToken) Serialize() []byte {
	hz := t.BinHz
	if hz < 0 {
		hz = 0
	}
	if hz > 20000 {
		hz = 20000
	}
	mag := t.Magnitude
	if mag < 0 {
		mag = 0
	}
	if mag > 1 {
		mag = 1
	}

	w := codec.NewWriter()
	w.PutU32(uint32(hz * 10))
	w.PutU16(uint16(mag * 65535))
	w.PutU16(uint16(((t.Phase + math.Pi) / (2 * math.Pi)) * 65535))
	return w.Bytes()
}

// audioFrameMagic tags one AudioFFTTokenizer output block.
var audioFrameMagic = []byte("AFT0")

// AudioFFTTokenizer derives top-K harmonic bin tokens per frame from
// mono PCM16LE audio via a direct discrete Fourier transform. This is
// structure-first and explicitly not identity-preserving: magnitudes are
// normalized per frame and only the strongest bins survive.
type AudioFFTTokenizer struct {
	TrackID    string
	SampleRate int
	FrameSize  int
	TopK       int
}

// NewAudioFFTTokenizer constructs an AudioFFTTokenizer with the given
// sample rate, FFT window size (in samples), and per-frame bin count.
func NewAudioFFTTokenizer(trackID string, sampleRate, frameSize, topK int) AudioFFTTokenizer {
	return AudioFFTTokenizer{TrackID: trackID, SampleRate: sampleRate, FrameSize: frameSize, TopK: topK}
}

// Tokenize converts raw mono PCM16LE bytes into one container.Block per
// analysis frame, each carrying its top-K harmonic bins. Frames overlap
// 50%; every frame is independently decodable (kind I), since bin
// magnitudes are normalized per frame and carry no inter-frame state.
func (t AudioFFTTokenizer) Tokenize(pcm []byte) []container.Block {
	samples := decodePCM16LE(pcm)
	n := t.FrameSize
	if n <= 0 || len(samples) < n {
		return nil
	}
	hop := n / 2
	window := hanningWindow(n)

	var blocks []container.Block
	frameIdx := 0
	for start := 0; start+n <= len(samples); start += hop {
		frame := make([]float64, n)
		for i := 0; i < n; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spec := realDFT(frame)
		tokens := topKBins(spec, t.SampleRate, n, t.TopK)

		ptsUs := int64(start) * 1_000_000 / int64(t.SampleRate)
		blocks = append(blocks, container.Block{
			TrackID:  t.TrackID,
			PTSUs:    ptsUs,
			Kind:     "I",
			Keyframe: true,
			Payload:  packAudioFrame(tokens),
		})
		frameIdx++
	}
	return blocks
}

func decodePCM16LE(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float64(v) / 32768.0
	}
	return out
}

func hanningWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// realDFT computes the non-negative-frequency half of the discrete
// Fourier transform of a real signal directly (O(n^2)). The corpus
// carries no FFT/DSP library, so this plain transform stands in for one;
// see DESIGN.md.
func realDFT(x []float64) []complex128 {
	n := len(x)
	out := make([]complex128, n/2+1)
	for k := range out {
		var re, im float64
		for ti, v := range x {
			angle := -2 * math.Pi * float64(k) * float64(ti) / float64(n)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		out[k] = complex(re, im)
	}
	return out
}

func topKBins(spec []complex128, sampleRate, frameSize, topK int) []AudioToken {
	mags := make([]float64, len(spec))
	maxMag := 0.0
	for i, c := range spec {
		m := math.Hypot(real(c), imag(c))
		mags[i] = m
		if m > maxMag {
			maxMag = m
		}
	}
	if maxMag > 0 {
		for i := range mags {
			mags[i] /= maxMag
		}
	}

	idx := make([]int, len(spec))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return mags[idx[a]] > mags[idx[b]] })

	k := topK
	if k > len(idx) {
		k = len(idx)
	}
	out := make([]AudioToken, k)
	for i := 0; i < k; i++ {
		bin := idx[i]
		hz := float64(bin*sampleRate) / float64(frameSize)
		out[i] = AudioToken{BinHz: hz, Magnitude: mags[bin], Phase: math.Atan2(imag(spec[bin]), real(spec[bin]))}
	}
	return out
}

// packAudioFrame serializes a frame's bins as "AFT0" ‖ bin_count(u16) ‖
// (8-byte AudioToken)*.
func packAudioFrame(tokens []AudioToken) []byte {
	w := codec.NewWriter()
	w.PutBytes(audioFrameMagic)
	w.PutU16(uint16(len(tokens)))
	for _, tok := range tokens {
		w.PutBytes(tok.Serialize())
	}
	return w.Bytes()
}
