// Package tokenize converts opaque, codec-agnostic frame or event data
// into time-indexed container.Block values: it assigns timing and GOP
// role only, never interpreting payload bytes.
package tokenize

import "github.com/FractalFuryan/h4mk/internal/seekindex"

// GOPConfig controls how often a keyframe is scheduled and whether
// B-blocks are interleaved between keyframes.
type GOPConfig struct {
	Size   int
	AllowB bool
}

// DefaultGOPConfig schedules a keyframe every 30 blocks, no B-blocks.
func DefaultGOPConfig() GOPConfig {
	return GOPConfig{Size: 30, AllowB: false}
}

// IsKeyframe reports whether the block at index starts a new GOP.
func IsKeyframe(index int, cfg GOPConfig) bool {
	if cfg.Size <= 0 {
		return index == 0
	}
	return index%cfg.Size == 0
}

// KindFor determines a block's GOP role.
func KindFor(index int, cfg GOPConfig) seekindex.Kind {
	if IsKeyframe(index, cfg) {
		return seekindex.KindI
	}
	if cfg.AllowB && index%2 == 1 {
		return seekindex.KindB
	}
	return seekindex.KindP
}
