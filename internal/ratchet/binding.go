package ratchet

import "strconv"

// CoreContext binds an encrypted CORE block to its exact slot in a specific
// container: engine identity, a container identity string, track,
// timestamp, and chunk index. container.Build and container.IterCoreBlocks
// fill ContainerVeriHex with the container's build_id, since VERI is only
// known after every CORE chunk is written. Encrypting the same plaintext under two different
// contexts produces AAD that cannot be swapped between them, so a block
// copied to another container position fails AEAD verification.
type CoreContext struct {
	EngineID        string
	EngineFP        string
	ContainerVeriHex string
	TrackID         string
	PTSUs           int64
	ChunkIndex      int
}

// AAD renders the context as the additional authenticated data bound into
// Encrypt/Decrypt, in the canonical
// "H4MK|engine_id|fingerprint|veri|track_id|pts_us|chunk_index" form.
func (c CoreContext) AAD() []byte {
	s := "H4MK|" + c.EngineID + "|" + c.EngineFP + "|" + c.ContainerVeriHex + "|" +
		c.TrackID + "|" + strconv.FormatInt(c.PTSUs, 10) + "|" + strconv.Itoa(c.ChunkIndex)
	return []byte(s)
}

// EncryptCoreBlock encrypts a CORE block payload under the context's AAD.
func EncryptCoreBlock(s *State, payload []byte, ctx CoreContext) (header, ciphertext []byte, err error) {
	return s.Encrypt(payload, ctx.AAD())
}

// DecryptCoreBlock decrypts a CORE block payload, verifying it belongs to
// ctx's exact slot.
func DecryptCoreBlock(s *State, header, ciphertext []byte, ctx CoreContext) ([]byte, error) {
	return s.Decrypt(header, ciphertext, ctx.AAD())
}
