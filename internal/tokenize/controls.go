package tokenize

import (
	"github.com/FractalFuryan/h4mk/internal/container"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

// ControlEvent is one opaque control/parameter update at an explicit
// timestamp, independent of any fixed frame rate.
type ControlEvent struct {
	PTSUs   int64
	Payload []byte
}

// ControlTokenizer schedules control-track events using the same GOP
// bookkeeping as video, since a control stream can carry its own
// keyframe/delta structure (e.g. full synthesis params vs. deltas).
type ControlTokenizer struct {
	TrackID string
	GOP     GOPConfig
}

// NewControlTokenizer constructs a ControlTokenizer.
func NewControlTokenizer(trackID string, gop GOPConfig) ControlTokenizer {
	return ControlTokenizer{TrackID: trackID, GOP: gop}
}

// Tokenize assigns GOP role to each event, in the order given; PTS is
// taken directly from each event rather than derived from a frame rate.
func (t ControlTokenizer) Tokenize(events []ControlEvent) []container.Block {
	out := make([]container.Block, 0, len(events))
	for i, e := range events {
		kind := KindFor(i, t.GOP)
		out = append(out, container.Block{
			TrackID:  t.TrackID,
			PTSUs:    e.PTSUs,
			Kind:     kind,
			Keyframe: kind == seekindex.KindI,
			Payload:  e.Payload,
		})
	}
	return out
}
