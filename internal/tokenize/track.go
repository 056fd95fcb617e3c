package tokenize

// TrackDescriptor is a logical track's human-readable metadata: what a
// reader of META's "track_specs" field sees, separate from the bare
// track_id list container.Build derives from the blocks it was given.
type TrackDescriptor struct {
	ID         string `json:"track_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"` // "audio" | "video" | "control" | "captions"
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Note       string `json:"note,omitempty"`
}

// TrackSpecsMeta renders descriptors as the value for META's
// "track_specs" key.
func TrackSpecsMeta(descriptors []TrackDescriptor) map[string]any {
	specs := make([]map[string]any, 0, len(descriptors))
	for _, d := range descriptors {
		specs = append(specs, map[string]any{
			"track_id":    d.ID,
			"name":        d.Name,
			"kind":        d.Kind,
			"codec":       d.Codec,
			"sample_rate": d.SampleRate,
			"channels":    d.Channels,
			"note":        d.Note,
		})
	}
	return map[string]any{"track_specs": specs}
}
