package ratchet

import (
	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// magicV3 is the fixed 5-byte marker for a v3 living-cipher header.
var magicV3 = []byte("H4LC3")

const (
	flagDHPresent = 0x01
	headerFixedLen = len(magicV3) + 1 /* suite_len */ + 8 /* counter */ + 32 /* prev_transcript */ + 1 /* flags */
)

// buildHeaderV3 serializes a v3 header: magic, suite, counter, the sender's
// transcript at the time of sending, flags, and an optional DH public key
// for the periodic root ratchet.
func buildHeaderV3(suite string, counter uint64, prevTranscript [32]byte, dhPub []byte) []byte {
	w := codec.NewWriter()
	w.PutBytes(magicV3)
	// suite is bounded to 255 bytes by construction (Suite is a short
	// constant); PutStringU8 only fails on oversized input.
	_ = w.PutStringU8("ratchet.header.suite", suite)
	w.PutU64(counter)
	w.PutBytes(prevTranscript[:])

	var flags byte
	if dhPub != nil {
		flags |= flagDHPresent
	}
	w.PutU8(flags)
	if dhPub != nil {
		w.PutBytes(dhPub)
	}
	return w.Bytes()
}

// parseHeaderV3 decodes a v3 header, rejecting anything shorter than the
// declared fields require. Trailing bytes beyond the declared fields are
// tolerated for forward compatibility.
func parseHeaderV3(header []byte) (suite string, counter uint64, prevTranscript [32]byte, flags byte, dhPub [32]byte, err error) {
	if len(header) < len(magicV3) {
		return "", 0, prevTranscript, 0, dhPub, h4errors.NewTruncated("ratchet.header.parse", nil)
	}
	r := codec.NewReader(header)
	magic, err := r.Bytes("ratchet.header.magic", len(magicV3))
	if err != nil {
		return "", 0, prevTranscript, 0, dhPub, err
	}
	for i, b := range magicV3 {
		if magic[i] != b {
			return "", 0, prevTranscript, 0, dhPub, h4errors.NewBadMagic("ratchet.header.magic", nil)
		}
	}

	suite, err = r.StringU8("ratchet.header.suite")
	if err != nil {
		return "", 0, prevTranscript, 0, dhPub, err
	}
	counter, err = r.U64("ratchet.header.counter")
	if err != nil {
		return "", 0, prevTranscript, 0, dhPub, err
	}
	tr, err := r.Hash32("ratchet.header.transcript")
	if err != nil {
		return "", 0, prevTranscript, 0, dhPub, err
	}
	prevTranscript = tr
	flags, err = r.U8("ratchet.header.flags")
	if err != nil {
		return "", 0, prevTranscript, 0, dhPub, err
	}
	if flags&flagDHPresent != 0 {
		dh, err := r.Hash32("ratchet.header.dhpub")
		if err != nil {
			return "", 0, prevTranscript, 0, dhPub, err
		}
		dhPub = dh
	}
	// Remaining bytes are tolerated for forward compatibility.
	return suite, counter, prevTranscript, flags, dhPub, nil
}

// HeaderLen reports the exact on-the-wire length of a v3 header given
// whether a DH public key is present, resolving the split between header
// and ciphertext within an encrypted CORE payload (spec option (b)): the
// reader parses the declared fields rather than relying on a length
// prefix.
func HeaderLen(header []byte) (int, error) {
	if len(header) < headerFixedLen-32 {
		return 0, h4errors.NewTruncated("ratchet.header.len", nil)
	}
	suiteLen := int(header[len(magicV3)])
	fixed := len(magicV3) + 1 + suiteLen + 8 + 32 + 1
	if len(header) < fixed {
		return 0, h4errors.NewTruncated("ratchet.header.len", nil)
	}
	flags := header[fixed-1]
	total := fixed
	if flags&flagDHPresent != 0 {
		total += 32
	}
	if len(header) < total {
		return 0, h4errors.NewTruncated("ratchet.header.len", nil)
	}
	return total, nil
}
