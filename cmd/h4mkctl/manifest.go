package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/FractalFuryan/h4mk/internal/compress"
	"github.com/FractalFuryan/h4mk/internal/container"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

func runManifest(args []string, metrics *telemetry.Metrics) error {
	fs := flag.NewFlagSet("manifest", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("manifest: expected exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	c, err := container.Parse(data, metrics)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	tracks := make(map[string]int)
	for _, e := range c.Trak {
		tracks[e.TrackID]++
	}

	out := map[string]any{
		"build_id":           c.BuildID,
		"veri_hex":           c.VeriHex,
		"core_block_count":   len(c.CoreIndex),
		"track_block_counts": tracks,
		"compression": map[string]any{
			"engine":        c.Compression.Engine,
			"engine_id":     c.Compression.EngineID,
			"fingerprint":   c.Compression.Fingerprint,
			"deterministic": c.Compression.Deterministic,
			"identity_safe": c.Compression.IdentitySafe,
			"sealed":        c.Compression.Sealed,
		},
		"attestation": compress.Attest(c.Compression),
		"encrypted":   c.Encrypted,
		"meta":        c.Meta,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
