package adapter

// NullState accumulates every opaque block unchanged. It exists to
// exercise and fuzz decode-chain plumbing without a real model behind it.
type NullState struct {
	Blocks [][]byte
}

// Summary implements DecodeState.
func (s *NullState) Summary() map[string]any {
	total := 0
	for _, b := range s.Blocks {
		total += len(b)
	}
	return map[string]any{
		"type":        "NullState",
		"block_count": len(s.Blocks),
		"total_bytes": total,
	}
}

// NullAdapter passes opaque block payloads through unchanged; Render
// concatenates them in chain order.
type NullAdapter struct{}

// DecodeI implements Adapter.
func (NullAdapter) DecodeI(opaque []byte) (DecodeState, error) {
	return &NullState{Blocks: [][]byte{append([]byte{}, opaque...)}}, nil
}

// ApplyP implements Adapter.
func (NullAdapter) ApplyP(state DecodeState, opaque []byte) (DecodeState, error) {
	s := state.(*NullState)
	s.Blocks = append(s.Blocks, append([]byte{}, opaque...))
	return s, nil
}

// ApplyB implements Adapter by delegating to ApplyP.
func (a NullAdapter) ApplyB(prev, next DecodeState, opaque []byte) (DecodeState, error) {
	return DefaultApplyB(a, prev, next, opaque)
}

// Render implements Adapter.
func (NullAdapter) Render(state DecodeState) ([]byte, error) {
	s := state.(*NullState)
	var out []byte
	for _, b := range s.Blocks {
		out = append(out, b...)
	}
	return out, nil
}
