package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/FractalFuryan/h4mk/internal/container"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

func runBlock(args []string, metrics *telemetry.Metrics) error {
	fs := flag.NewFlagSet("block", flag.ContinueOnError)
	index := fs.Int("index", -1, "CORE block index, in on-wire order")
	raw := fs.Bool("raw", false, "write the raw (still compressed, possibly encrypted) payload bytes to stdout instead of a JSON summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index < 0 {
		return fmt.Errorf("block: --index is required and must be non-negative")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("block: expected exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("block: %w", err)
	}
	c, err := container.Parse(data, metrics)
	if err != nil {
		return fmt.Errorf("block: %w", err)
	}
	if *index >= len(c.CoreIndex) {
		return fmt.Errorf("block: %w", h4errors.NewOutOfRange("block.index", nil))
	}

	payload := c.Chunks[c.CoreIndex[*index]].Payload

	if *raw {
		_, err := os.Stdout.Write(payload)
		return err
	}

	var entry map[string]any
	for _, e := range c.Trak {
		if int(e.CoreIndex) == *index {
			entry = map[string]any{
				"track_id": e.TrackID,
				"pts_us":   e.PTSUs,
				"kind":     e.Kind,
				"keyframe": e.Keyframe,
			}
			break
		}
	}

	out := map[string]any{
		"core_index":  *index,
		"payload_len": len(payload),
		"payload_b64": base64.StdEncoding.EncodeToString(payload),
		"trak_entry":  entry,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
