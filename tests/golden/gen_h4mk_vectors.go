//go:build ignore

// Generates H4MK container golden vectors. Each run writes a fresh random
// build_id into META (and so a different VERI), so the files are not
// byte-identical across runs.
// Run: go run tests/golden/gen_h4mk_vectors.go
// Files:
//   - h4mk_single_track.bin: one track "v", blocks I@0/P@33333/P@66666,
//     payloads "A"/"B"/"C", reference-engine compression, unencrypted.
//   - h4mk_gop_boundary.bin: one track "v", blocks I@0/P@100/I@200/P@300.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/FractalFuryan/h4mk/internal/compress"
	"github.com/FractalFuryan/h4mk/internal/container"
	"github.com/FractalFuryan/h4mk/internal/seekindex"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	outDir := filepath.Join("tests", "golden")
	must(os.MkdirAll(outDir, 0o755))
	engine := compress.NewReferenceEngine()

	{
		blocks := []container.Block{
			{TrackID: "v", PTSUs: 0, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("A")},
			{TrackID: "v", PTSUs: 33_333, Kind: seekindex.KindP, Payload: []byte("B")},
			{TrackID: "v", PTSUs: 66_666, Kind: seekindex.KindP, Payload: []byte("C")},
		}
		res, err := container.Build(blocks, nil, nil, engine, nil, nil)
		must(err)
		must(os.WriteFile(filepath.Join(outDir, "h4mk_single_track.bin"), res.Bytes, 0o644))
	}

	{
		blocks := []container.Block{
			{TrackID: "v", PTSUs: 0, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("i0")},
			{TrackID: "v", PTSUs: 100, Kind: seekindex.KindP, Payload: []byte("p100")},
			{TrackID: "v", PTSUs: 200, Kind: seekindex.KindI, Keyframe: true, Payload: []byte("i200")},
			{TrackID: "v", PTSUs: 300, Kind: seekindex.KindP, Payload: []byte("p300")},
		}
		res, err := container.Build(blocks, nil, nil, engine, nil, nil)
		must(err)
		must(os.WriteFile(filepath.Join(outDir, "h4mk_gop_boundary.bin"), res.Bytes, 0o644))
	}

	fmt.Println("wrote golden H4MK vectors to", outDir)
}
