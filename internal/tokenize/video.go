package tokenize

import (
	"github.com/FractalFuryan/h4mk/internal/container"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

// VideoTokenizer converts a sequence of opaque frame blocks into
// time-indexed container.Block values at a constant frame rate. It never
// interprets frame bytes; pixel format, codec, and color space are the
// adapter's concern.
type VideoTokenizer struct {
	TrackID string
	FPS     float64
	GOP     GOPConfig
}

// NewVideoTokenizer constructs a VideoTokenizer.
func NewVideoTokenizer(trackID string, fps float64, gop GOPConfig) VideoTokenizer {
	return VideoTokenizer{TrackID: trackID, FPS: fps, GOP: gop}
}

func (t VideoTokenizer) frameDurationUs() int64 {
	if t.FPS <= 0 {
		return 0
	}
	return int64(1_000_000 / t.FPS)
}

// Tokenize assigns PTS and GOP role to each frame, in order.
func (t VideoTokenizer) Tokenize(frames [][]byte) []container.Block {
	dur := t.frameDurationUs()
	out := make([]container.Block, 0, len(frames))
	for i, frame := range frames {
		kind := KindFor(i, t.GOP)
		out = append(out, container.Block{
			TrackID:  t.TrackID,
			PTSUs:    int64(i) * dur,
			Kind:     kind,
			Keyframe: kind == seekindex.KindI,
			Payload:  frame,
		})
	}
	return out
}
