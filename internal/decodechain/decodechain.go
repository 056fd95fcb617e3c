// Package decodechain resolves a (track_id, t_us) query into the ordered
// sequence of CORE block indices a decoder must process: the nearest
// keyframe at or before t_us, followed by same-track blocks up to t_us,
// bounded by the next keyframe's GOP boundary.
package decodechain

import (
	"time"

	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

// Chain is the resolved decode chain for one (track_id, t_us) query.
type Chain struct {
	// CoreIndices is the ordered sequence to feed an Adapter: its head is
	// always a keyframe, the only required seed, and no entry crosses a
	// GOP boundary or exceeds t_us.
	CoreIndices []uint32
	// NextStateIndex is set when the chain contains a B-block: the
	// core_index of the following I-block on the same track, supplied as
	// the lookahead seed ApplyB needs. Nil when the chain has no B-block.
	NextStateIndex *uint32
}

// Resolve computes the decode chain for trackID at tUs against seekm (the
// per-track keyframe index) and trak (the full block descriptor list, in
// ascending core_index order). It returns NoSeed if the track has no
// keyframe at or before tUs. metrics may be nil; when set, Resolve records
// the lookup's latency and resulting chain length.
func Resolve(seekm seekindex.Table, trak []seekindex.Entry, trackID string, tUs int64, metrics *telemetry.Metrics) (Chain, error) {
	start := time.Now()
	var chain Chain
	defer func() {
		metrics.RecordDecodeChainLookup(trackID, time.Since(start), len(chain.CoreIndices))
	}()

	startIndex, ok := seekm.SeekKeyframe(trackID, tUs)
	if !ok {
		return Chain{}, h4errors.NewNoSeed("decodechain.resolve", nil)
	}

	startPos := -1
	for i, e := range trak {
		if e.TrackID == trackID && e.CoreIndex == startIndex {
			startPos = i
			break
		}
	}
	if startPos < 0 {
		return Chain{}, h4errors.NewBadInput("decodechain.resolve", nil)
	}

	indices := []uint32{startIndex}
	hasB := trak[startPos].Kind == seekindex.KindB
	for _, e := range trak[startPos+1:] {
		if e.TrackID != trackID {
			continue
		}
		if e.Kind == seekindex.KindI {
			break
		}
		if e.PTSUs > tUs {
			break
		}
		if e.Kind == seekindex.KindB {
			hasB = true
		}
		indices = append(indices, e.CoreIndex)
	}

	chain = Chain{CoreIndices: indices}
	if hasB {
		for _, e := range trak[startPos+1:] {
			if e.TrackID != trackID {
				continue
			}
			if e.Kind == seekindex.KindI {
				idx := e.CoreIndex
				chain.NextStateIndex = &idx
				break
			}
		}
	}
	return chain, nil
}
