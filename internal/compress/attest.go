package compress

import "github.com/FractalFuryan/h4mk/internal/codec"

// Attestation is a pure structural proof of which engine produced a
// container, letting an operator verify engine identity without
// re-running compression. It carries no timestamp: attestation is a
// function of engine identity alone, so the same engine always produces
// the same attestation hash.
type Attestation struct {
	Engine      string `json:"engine"`
	EngineID    string `json:"engine_id"`
	Fingerprint string `json:"fingerprint"`
	Sealed      bool   `json:"sealed"`
	Proof       string `json:"attestation_hash"`
}

// Attest builds the attestation for a loaded engine's Info.
func Attest(info Info) Attestation {
	msg := info.EngineID + "|" + info.Fingerprint
	digest := codec.SHA256([]byte(msg))
	return Attestation{
		Engine:      info.Engine,
		EngineID:    info.EngineID,
		Fingerprint: info.Fingerprint,
		Sealed:      info.Sealed,
		Proof:       hexString(digest[:]),
	}
}

// Verify reports whether att still matches the given engine's current
// identity.
func Verify(att Attestation, info Info) bool {
	recomputed := Attest(info)
	return att.EngineID == recomputed.EngineID && att.Fingerprint == recomputed.Fingerprint && att.Proof == recomputed.Proof
}
