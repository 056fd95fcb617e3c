// Package adapter defines the model-decode boundary: the container and
// decode-chain resolver never interpret a block's opaque bytes themselves,
// they hand them to an Adapter, which owns all model-specific state.
package adapter

// DecodeState is the opaque, model-specific state an Adapter threads
// through a decode chain. Summary exists only for inspection/debugging
// tooling, never for decode logic.
type DecodeState interface {
	Summary() map[string]any
}

// Adapter adapts an opaque block stream to a concrete model or synthesis
// engine. A decode chain starts with a DecodeI call for its keyframe,
// followed by zero or more ApplyP/ApplyB calls in TRAK order, and ends
// with Render. When the chain carries a next-state seed for B-blocks,
// that seed is decoded with one more, separate DecodeI call.
type Adapter interface {
	// DecodeI initializes state from a keyframe block. It has no
	// dependency on any prior state.
	DecodeI(opaque []byte) (DecodeState, error)
	// ApplyP folds a predictive block into state, depending only on the
	// immediately preceding state.
	ApplyP(state DecodeState, opaque []byte) (DecodeState, error)
	// ApplyB folds a bidirectional block into state, optionally using a
	// lookahead state. Adapters that don't support B-frames can implement
	// this by delegating to ApplyP via DefaultApplyB.
	ApplyB(prev, next DecodeState, opaque []byte) (DecodeState, error)
	// Render converts a final decode state into model-specific output.
	Render(state DecodeState) ([]byte, error)
}

// DefaultApplyB treats a B-block like a P-block against prev, ignoring
// next. Adapters with no true bidirectional support call this from their
// own ApplyB.
func DefaultApplyB(a Adapter, prev, next DecodeState, opaque []byte) (DecodeState, error) {
	return a.ApplyP(prev, opaque)
}
