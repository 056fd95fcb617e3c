package container

import (
	"github.com/FractalFuryan/h4mk/internal/adapter"
	"github.com/FractalFuryan/h4mk/internal/compress"
	"github.com/FractalFuryan/h4mk/internal/decodechain"
	"github.com/FractalFuryan/h4mk/internal/ratchet"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

// DecodeChain resolves the decode chain for (trackID, tUs) against this
// container's parsed SEEKM and TRAK. metrics may be nil.
func (c *Container) DecodeChain(trackID string, tUs int64, metrics *telemetry.Metrics) (decodechain.Chain, error) {
	return decodechain.Resolve(c.Seekm, c.Trak, trackID, tUs, metrics)
}

// Render resolves the decode chain for (trackID, tUs), decrypts and
// decompresses every CORE block, and drives a through the resolved chain
// via decodechain.Run. metrics may be nil.
func (c *Container) Render(a adapter.Adapter, engine compress.Engine, cipher *ratchet.State, trackID string, tUs int64, metrics *telemetry.Metrics) ([]byte, error) {
	chain, err := c.DecodeChain(trackID, tUs, metrics)
	if err != nil {
		return nil, err
	}

	// Decode every CORE block once, up front, so blockAt below is a pure
	// lookup; this keeps Run's control flow independent of the
	// decrypt/decompress pipeline.
	blocks, err := c.IterCoreBlocks(engine, cipher, true, metrics)
	if err != nil {
		return nil, err
	}

	return decodechain.Run(a, chain, c.Trak, func(coreIndex uint32) ([]byte, error) {
		return blocks[coreIndex], nil
	})
}
