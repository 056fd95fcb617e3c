// Package seekindex implements the per-track block descriptor list (TRAK)
// and the compact binary multi-track keyframe index (SEEKM), plus the
// binary search that resolves a (track_id, t_us) query to a keyframe.
package seekindex

import (
	"encoding/json"
	"sort"

	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// Kind is a block's GOP role.
type Kind string

const (
	KindI Kind = "I"
	KindP Kind = "P"
	KindB Kind = "B"
)

// Entry is one TRAK block descriptor.
type Entry struct {
	TrackID   string `json:"track_id"`
	PTSUs     int64  `json:"pts_us"`
	Kind      Kind   `json:"kind"`
	Keyframe  bool   `json:"keyframe"`
	CoreIndex uint32 `json:"core_index"`
}

type trakPayload struct {
	Trak []Entry `json:"trak"`
}

// PackTrak serializes entries as compact JSON, the canonical TRAK chunk
// payload before base64 embedding in META.
func PackTrak(entries []Entry) ([]byte, error) {
	buf, err := json.Marshal(trakPayload{Trak: entries})
	if err != nil {
		return nil, h4errors.NewBadInput("seekindex.pack_trak", err)
	}
	return buf, nil
}

// UnpackTrak reverses PackTrak.
func UnpackTrak(data []byte) ([]Entry, error) {
	var payload trakPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, h4errors.NewBadInput("seekindex.unpack_trak", err)
	}
	return payload.Trak, nil
}

// KeyframeEntry is one (pts_us, core_index) point in a per-track keyframe
// index.
type KeyframeEntry struct {
	PTSUs     int64
	CoreIndex uint32
}

// Table is the per-track keyframe index, built from a TRAK entry list.
type Table map[string][]KeyframeEntry

// BuildFromTrak derives the per-track keyframe index from entries,
// including only keyframes and sorting each track's list by pts_us.
func BuildFromTrak(entries []Entry) Table {
	out := make(Table)
	for _, e := range entries {
		if e.Keyframe {
			out[e.TrackID] = append(out[e.TrackID], KeyframeEntry{PTSUs: e.PTSUs, CoreIndex: e.CoreIndex})
		}
	}
	for track := range out {
		list := out[track]
		sort.Slice(list, func(i, j int) bool { return list[i].PTSUs < list[j].PTSUs })
		out[track] = list
	}
	return out
}

// PackSEEKM serializes the table as:
//
//	u32 track_count
//	per track: u16 id_len ‖ id ‖ u32 entry_count ‖ (u64 pts_us ‖ u32 core_index)*
//
// Tracks are emitted in sorted order for determinism.
func PackSEEKM(table Table) ([]byte, error) {
	tracks := make([]string, 0, len(table))
	for k := range table {
		tracks = append(tracks, k)
	}
	sort.Strings(tracks)

	w := codec.NewWriter()
	w.PutU32(uint32(len(tracks)))
	for _, track := range tracks {
		if err := w.PutStringU16("seekindex.pack_seekm.track_id", track); err != nil {
			return nil, err
		}
		entries := table[track]
		w.PutU32(uint32(len(entries)))
		for _, e := range entries {
			w.PutU64(uint64(e.PTSUs))
			w.PutU32(e.CoreIndex)
		}
	}
	return w.Bytes(), nil
}

// UnpackSEEKM reverses PackSEEKM.
func UnpackSEEKM(data []byte) (Table, error) {
	r := codec.NewReader(data)
	trackCount, err := r.U32("seekindex.unpack_seekm.track_count")
	if err != nil {
		return nil, err
	}
	out := make(Table, trackCount)
	for i := uint32(0); i < trackCount; i++ {
		trackID, err := r.StringU16("seekindex.unpack_seekm.track_id")
		if err != nil {
			return nil, err
		}
		entryCount, err := r.U32("seekindex.unpack_seekm.entry_count")
		if err != nil {
			return nil, err
		}
		entries := make([]KeyframeEntry, 0, entryCount)
		for j := uint32(0); j < entryCount; j++ {
			pts, err := r.U64("seekindex.unpack_seekm.pts_us")
			if err != nil {
				return nil, err
			}
			idx, err := r.U32("seekindex.unpack_seekm.core_index")
			if err != nil {
				return nil, err
			}
			entries = append(entries, KeyframeEntry{PTSUs: int64(pts), CoreIndex: idx})
		}
		out[trackID] = entries
	}
	return out, nil
}

// SeekKeyframe binary-searches track's keyframe list for the largest
// pts_us <= tUs, returning its core_index. ok is false if the track has no
// keyframes, or none are at or before tUs.
func (t Table) SeekKeyframe(trackID string, tUs int64) (coreIndex uint32, ok bool) {
	entries, present := t[trackID]
	if !present || len(entries) == 0 {
		return 0, false
	}
	// Binary search for the rightmost entry with PTSUs <= tUs.
	lo, hi := 0, len(entries)-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if entries[mid].PTSUs <= tUs {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return 0, false
	}
	return entries[best].CoreIndex, true
}
