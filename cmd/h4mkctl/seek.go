package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/FractalFuryan/h4mk/internal/container"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

func runSeek(args []string, metrics *telemetry.Metrics) error {
	fs := flag.NewFlagSet("seek", flag.ContinueOnError)
	track := fs.String("track", "", "track id to resolve")
	ptsUs := fs.Int64("pts-us", -1, "target presentation timestamp, in microseconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *track == "" {
		return fmt.Errorf("seek: --track is required")
	}
	if *ptsUs < 0 {
		return fmt.Errorf("seek: --pts-us is required and must be non-negative")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("seek: expected exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	c, err := container.Parse(data, metrics)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	chain, err := c.DecodeChain(*track, *ptsUs, metrics)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	out := map[string]any{
		"track_id":     *track,
		"pts_us":       *ptsUs,
		"core_indices": chain.CoreIndices,
	}
	if chain.NextStateIndex != nil {
		out["next_state_index"] = *chain.NextStateIndex
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
