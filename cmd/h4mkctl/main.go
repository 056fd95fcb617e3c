// h4mkctl is a small inspection tool for H4MK container files: it
// prints container manifests, resolves decode chains, and dumps
// individual CORE blocks without needing a full decoder pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/FractalFuryan/h4mk/internal/logger"
	"github.com/FractalFuryan/h4mk/internal/telemetry"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger.Init()
	log := logger.Logger().With("component", "h4mkctl")
	metrics := telemetry.NewMetrics()

	var err error
	switch os.Args[1] {
	case "manifest":
		err = runManifest(os.Args[2:], metrics)
	case "seek":
		err = runSeek(os.Args[2:], metrics)
	case "block":
		err = runBlock(os.Args[2:], metrics)
	case "version":
		fmt.Println(version)
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: h4mkctl <command> [flags]

commands:
  manifest <file>
  seek --track T --pts-us N <file>
  block --index I [--raw] <file>
  version`)
}
