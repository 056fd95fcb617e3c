package compress

import (
	"os"
	"plugin"

	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// Environment variables controlling optional native engine loading, mirroring
// the original HARMONY4_CORE_PATH / HARMONY4_ENGINE_ID / HARMONY4_ENGINE_FP
// pinning scheme.
const (
	EnvCorePath = "H4MK_CORE_PATH"
	EnvEngineID = "H4MK_ENGINE_ID"
	EnvEngineFP = "H4MK_ENGINE_FP"
)

// nativeEngine wraps a loaded Go plugin that exports the engine ABI:
//
//	var EngineID string
//	var EngineFingerprint string
//	func Compress(data []byte) ([]byte, error)
//	func Decompress(data []byte) ([]byte, error)
type nativeEngine struct {
	id      string
	fp      string
	compress   func([]byte) ([]byte, error)
	decompress func([]byte) ([]byte, error)
}

func (n *nativeEngine) Compress(data []byte) ([]byte, error)   { return n.compress(data) }
func (n *nativeEngine) Decompress(data []byte) ([]byte, error) { return n.decompress(data) }

func (n *nativeEngine) Info() Info {
	return Info{
		Engine:        "native",
		EngineID:      n.id,
		Fingerprint:   n.fp,
		Deterministic: true,
		IdentitySafe:  true,
		Sealed:        true,
	}
}

// loadNative opens the plugin at path and verifies its identity against any
// pinned H4MK_ENGINE_ID / H4MK_ENGINE_FP environment values. A mismatch
// refuses to load with kind=SealMismatch; no ciphertext or compressed bytes
// are ever produced from an unsealed engine.
func loadNative(path string) (Engine, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, h4errors.NewBadInput("compress.loader.open", err)
	}

	idSym, err := p.Lookup("EngineID")
	if err != nil {
		return nil, h4errors.NewBadInput("compress.loader.lookup", err)
	}
	id, ok := idSym.(*string)
	if !ok {
		return nil, h4errors.NewBadInput("compress.loader.lookup", nil)
	}

	fpSym, err := p.Lookup("EngineFingerprint")
	if err != nil {
		return nil, h4errors.NewBadInput("compress.loader.lookup", err)
	}
	fp, ok := fpSym.(*string)
	if !ok {
		return nil, h4errors.NewBadInput("compress.loader.lookup", nil)
	}

	compressSym, err := p.Lookup("Compress")
	if err != nil {
		return nil, h4errors.NewBadInput("compress.loader.lookup", err)
	}
	compressFn, ok := compressSym.(func([]byte) ([]byte, error))
	if !ok {
		return nil, h4errors.NewBadInput("compress.loader.lookup", nil)
	}

	decompressSym, err := p.Lookup("Decompress")
	if err != nil {
		return nil, h4errors.NewBadInput("compress.loader.lookup", err)
	}
	decompressFn, ok := decompressSym.(func([]byte) ([]byte, error))
	if !ok {
		return nil, h4errors.NewBadInput("compress.loader.lookup", nil)
	}

	expectedID := os.Getenv(EnvEngineID)
	expectedFP := os.Getenv(EnvEngineFP)
	if expectedID != "" && expectedID != *id {
		return nil, h4errors.NewSealMismatch("compress.loader.verify", nil)
	}
	if expectedFP != "" && expectedFP != *fp {
		return nil, h4errors.NewSealMismatch("compress.loader.verify", nil)
	}

	return &nativeEngine{id: *id, fp: *fp, compress: compressFn, decompress: decompressFn}, nil
}

// Load resolves the active compression engine: a native engine at
// H4MK_CORE_PATH if set, otherwise the mandatory reference engine. CI and
// open distribution never set H4MK_CORE_PATH, so they always exercise the
// reference path.
func Load() (Engine, error) {
	if corePath := os.Getenv(EnvCorePath); corePath != "" {
		return loadNative(corePath)
	}
	return NewReferenceEngine(), nil
}
