package decodechain

import (
	"github.com/FractalFuryan/h4mk/internal/adapter"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

// Phase is a decode session's position in the Init -> AwaitingI ->
// HaveState -> Rendered state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseAwaitingI
	PhaseHaveState
	PhaseRendered
)

// Session records an Adapter's progress through one resolved Chain as Run
// drives it: the chain's head goes to DecodeI, later blocks to ApplyP or
// ApplyB, and the final state to Render. It performs no checks of its own.
type Session struct {
	adapter adapter.Adapter
	phase   Phase
	state   adapter.DecodeState
}

// NewSession starts a session in PhaseAwaitingI.
func NewSession(a adapter.Adapter) *Session {
	return &Session{adapter: a, phase: PhaseAwaitingI}
}

// Phase returns the session's current state-machine phase.
func (s *Session) Phase() Phase { return s.phase }

// Run drives chain through blocks and returns the adapter's rendered
// output. blockAt must return the opaque payload for a given core_index;
// each block's GOP kind is looked up in trak. When chain.NextStateIndex is
// set, that block is decoded with its own DecodeI call and passed as the
// lookahead state to every ApplyB.
func Run(a adapter.Adapter, chain Chain, trak []seekindex.Entry, blockAt func(coreIndex uint32) ([]byte, error)) ([]byte, error) {
	if len(chain.CoreIndices) == 0 {
		return nil, h4errors.NewNoSeed("decodechain.run", nil)
	}

	kindOf := make(map[uint32]seekindex.Kind, len(trak))
	for _, e := range trak {
		kindOf[e.CoreIndex] = e.Kind
	}

	s := NewSession(a)
	var nextState adapter.DecodeState
	if chain.NextStateIndex != nil {
		payload, err := blockAt(*chain.NextStateIndex)
		if err != nil {
			return nil, err
		}
		nextState, err = a.DecodeI(payload)
		if err != nil {
			return nil, err
		}
	}

	for i, idx := range chain.CoreIndices {
		payload, err := blockAt(idx)
		if err != nil {
			return nil, err
		}
		switch {
		case i == 0:
			s.state, err = a.DecodeI(payload)
			if err != nil {
				return nil, err
			}
			s.phase = PhaseHaveState
		case kindOf[idx] == seekindex.KindB:
			s.state, err = a.ApplyB(s.state, nextState, payload)
			if err != nil {
				return nil, err
			}
		default:
			s.state, err = a.ApplyP(s.state, payload)
			if err != nil {
				return nil, err
			}
		}
	}

	out, err := a.Render(s.state)
	if err != nil {
		return nil, err
	}
	s.phase = PhaseRendered
	return out, nil
}
