// Package ratchet implements the living cipher: a forward-secure AEAD
// ratchet with transcript binding, a bounded out-of-order skipped-key
// cache, and periodic X25519 root re-keying.
package ratchet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/FractalFuryan/h4mk/internal/codec"
	h4errors "github.com/FractalFuryan/h4mk/internal/errors"
)

// Suite identifies the single cipher suite this package implements.
const Suite = "H4-LIVING-AESGCM-HKDF-SHA256-v3"

// DefaultContext is the domain-separation context mixed into every HKDF
// call during initialization, when no caller-supplied context is given.
var DefaultContext = []byte("H4MK|LivingCipher|v3")

const (
	keyLen   = 32
	nonceLen = 12
)

// State holds one direction pair (send chain, recv chain) of ratchet key
// material. The caller owns exclusive mutable access for the duration of
// any Encrypt or Decrypt call; State is not safe for concurrent use.
type State struct {
	rootKey      [keyLen]byte
	chainSend    [keyLen]byte
	chainRecv    [keyLen]byte
	sendCounter  uint64
	recvCounter  uint64
	transcript   [32]byte
	suite        string
	ooWindow     uint64
	rootEvery    uint64
	skipped      map[uint64][keyLen]byte
	dhPriv       [32]byte
	dhPub        [32]byte
	remoteDHPub  [32]byte
	haveRemote   bool
}

// Options configures optional ratchet parameters at initialization time.
type Options struct {
	Context          []byte
	OOOWindow        uint64
	RootRatchetEvery uint64
}

func hkdfDerive(secret, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, h4errors.NewNoSeed("ratchet.hkdf", err)
	}
	return out, nil
}

// InitFromSharedSecret derives a fresh ratchet state from a 32-byte shared
// secret, as specified for a single unidirectional sender/receiver pair.
// A peer mirrors this state by swapping chain_key_send and chain_key_recv.
func InitFromSharedSecret(sharedSecret []byte, opts Options) (*State, error) {
	if len(sharedSecret) == 0 {
		return nil, h4errors.NewNoSeed("ratchet.init", nil)
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = DefaultContext
	}
	ooo := opts.OOOWindow
	if ooo == 0 {
		ooo = 32
	}
	every := opts.RootRatchetEvery
	if every == 0 {
		every = 1024
	}

	root, err := hkdfDerive(sharedSecret, append(append([]byte{}, ctx...), "|root"...), keyLen)
	if err != nil {
		return nil, err
	}
	ckSend, err := hkdfDerive(root, append(append([]byte{}, ctx...), "|ck_send"...), keyLen)
	if err != nil {
		return nil, err
	}
	ckRecv, err := hkdfDerive(root, append(append([]byte{}, ctx...), "|ck_recv"...), keyLen)
	if err != nil {
		return nil, err
	}

	var dhPriv [32]byte
	if _, err := rand.Read(dhPriv[:]); err != nil {
		return nil, h4errors.NewNoSeed("ratchet.init", err)
	}
	dhPub, err := curve25519X(dhPriv)
	if err != nil {
		return nil, h4errors.NewNoSeed("ratchet.init", err)
	}

	s := &State{
		suite:     Suite,
		ooWindow:  ooo,
		rootEvery: every,
		skipped:   make(map[uint64][keyLen]byte),
		dhPriv:    dhPriv,
		dhPub:     dhPub,
	}
	copy(s.rootKey[:], root)
	copy(s.chainSend[:], ckSend)
	copy(s.chainRecv[:], ckRecv)
	return s, nil
}

// PublicInfo is a snapshot of non-secret state, useful for logging and
// diagnostics.
type PublicInfo struct {
	Suite            string
	SendCounter      uint64
	RecvCounter      uint64
	Transcript       [32]byte
	OOOWindow        uint64
	SkippedCached    int
	RootRatchetEvery uint64
	HasRemoteDH      bool
}

// Mirror returns the peer counterpart of s: a copy with chain_key_send and
// chain_key_recv swapped, so that messages s.Encrypt produces are readable
// by the returned state's Decrypt and vice versa. Decrypt keeps tracking
// Encrypt across a root-ratchet boundary only if the sending State already
// holds the receiving State's DH public key; no exported function sets it.
func (s *State) Mirror() *State {
	m := *s
	m.chainSend, m.chainRecv = s.chainRecv, s.chainSend
	m.skipped = make(map[uint64][keyLen]byte, len(s.skipped))
	for k, v := range s.skipped {
		m.skipped[k] = v
	}
	return &m
}

// Public returns a PublicInfo snapshot of s.
func (s *State) Public() PublicInfo {
	return PublicInfo{
		Suite:            s.suite,
		SendCounter:      s.sendCounter,
		RecvCounter:      s.recvCounter,
		Transcript:       s.transcript,
		OOOWindow:        s.ooWindow,
		SkippedCached:    len(s.skipped),
		RootRatchetEvery: s.rootEvery,
		HasRemoteDH:      s.haveRemote,
	}
}

func curve25519X(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], out)
	return pub, nil
}

func curve25519Shared(priv, peerPub [32]byte) ([32]byte, error) {
	var shared [32]byte
	out, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return shared, err
	}
	copy(shared[:], out)
	return shared, nil
}

// ratchetStep advances chain to the chain key for counter n and derives the
// message key for that counter.
func ratchetStep(chain [keyLen]byte, context []byte, counter uint64) (nextChain, msgKey [keyLen]byte, err error) {
	suffix := append(append([]byte{}, context...), "|ck|"...)
	suffix = append(suffix, u64be(counter)...)
	nc, err := hkdfDerive(chain[:], suffix, keyLen)
	if err != nil {
		return nextChain, msgKey, err
	}
	mkSuffix := append(append([]byte{}, context...), "|mk|"...)
	mkSuffix = append(mkSuffix, u64be(counter)...)
	mk, err := hkdfDerive(chain[:], mkSuffix, keyLen)
	if err != nil {
		return nextChain, msgKey, err
	}
	copy(nextChain[:], nc)
	copy(msgKey[:], mk)
	return nextChain, msgKey, nil
}

func deriveNonce(mk [keyLen]byte, counter uint64) ([nonceLen]byte, error) {
	var nonce [nonceLen]byte
	info := append([]byte("nonce|"), u64be(counter)...)
	n, err := hkdfDerive(mk[:], info, nonceLen)
	if err != nil {
		return nonce, err
	}
	copy(nonce[:], n)
	return nonce, nil
}

func updateTranscript(transcript [32]byte, header, ciphertext []byte) [32]byte {
	hh := codec.SHA256(header)
	ch := codec.SHA256(ciphertext)
	buf := append(append(append([]byte{}, transcript[:]...), hh[:]...), ch[:]...)
	return codec.SHA256(buf)
}

func mixRoot(root, dhShared [32]byte, suite string) ([32]byte, error) {
	var out [32]byte
	info := append([]byte(suite), "|root_mix"...)
	material := append(append([]byte{}, root[:]...), dhShared[:]...)
	mixed, err := hkdfDerive(material, info, keyLen)
	if err != nil {
		return out, err
	}
	copy(out[:], mixed)
	return out, nil
}

func deriveChainsFromRoot(root [32]byte, suite string) (send, recv [32]byte, err error) {
	s, err := hkdfDerive(root[:], append([]byte(suite), "|ck_send"...), keyLen)
	if err != nil {
		return send, recv, err
	}
	r, err := hkdfDerive(root[:], append([]byte(suite), "|ck_recv"...), keyLen)
	if err != nil {
		return send, recv, err
	}
	copy(send[:], s)
	copy(recv[:], r)
	return send, recv, nil
}

func shouldRootRatchet(counter, every uint64) bool {
	return every > 0 && counter > 0 && counter%every == 0
}

func u64be(v uint64) []byte {
	w := codec.NewWriter()
	w.PutU64(v)
	return w.Bytes()
}

func evictSkipped(s *State) {
	var low uint64
	if s.recvCounter > s.ooWindow {
		low = s.recvCounter - s.ooWindow
	}
	high := s.recvCounter + s.ooWindow
	for k := range s.skipped {
		if k < low || k > high {
			delete(s.skipped, k)
		}
	}
}

func precomputeSkipped(s *State, target uint64) error {
	ctx := append([]byte(s.suite), "|ratchet"...)
	tempChain := s.chainRecv
	for i := s.recvCounter; i <= target; i++ {
		nc, mk, err := ratchetStep(tempChain, ctx, i)
		if err != nil {
			return err
		}
		s.skipped[i] = mk
		tempChain = nc
	}
	evictSkipped(s)
	return nil
}

func aeadEncrypt(mk [keyLen]byte, nonce [nonceLen]byte, plaintext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(mk[:])
	if err != nil {
		return nil, h4errors.NewAuth("ratchet.encrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, h4errors.NewAuth("ratchet.encrypt", err)
	}
	return gcm.Seal(nil, nonce[:], plaintext, aad), nil
}

func aeadDecrypt(mk [keyLen]byte, nonce [nonceLen]byte, ciphertext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(mk[:])
	if err != nil {
		return nil, h4errors.NewAuth("ratchet.decrypt", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, h4errors.NewAuth("ratchet.decrypt", err)
	}
	pt, err := gcm.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, h4errors.NewAuth("ratchet.decrypt", err)
	}
	return pt, nil
}

// Encrypt advances the send chain, optionally performs a periodic root
// ratchet, and returns the binary-framed header and AEAD ciphertext for
// plaintext bound to aad.
func (s *State) Encrypt(plaintext, aad []byte) (header, ciphertext []byte, err error) {
	var dhPubForHeader []byte

	if shouldRootRatchet(s.sendCounter, s.rootEvery) {
		var fresh [32]byte
		if _, err := rand.Read(fresh[:]); err != nil {
			return nil, nil, h4errors.NewNoSeed("ratchet.encrypt.rootratchet", err)
		}
		s.dhPriv = fresh
		pub, err := curve25519X(s.dhPriv)
		if err != nil {
			return nil, nil, h4errors.NewNoSeed("ratchet.encrypt.rootratchet", err)
		}
		s.dhPub = pub
		dhPubForHeader = pub[:]

		if s.haveRemote {
			shared, err := curve25519Shared(s.dhPriv, s.remoteDHPub)
			if err != nil {
				return nil, nil, h4errors.NewNoSeed("ratchet.encrypt.rootratchet", err)
			}
			newRoot, err := mixRoot(s.rootKey, shared, s.suite)
			if err != nil {
				return nil, nil, err
			}
			s.rootKey = newRoot
			send, recv, err := deriveChainsFromRoot(s.rootKey, s.suite)
			if err != nil {
				return nil, nil, err
			}
			s.chainSend, s.chainRecv = send, recv
			s.skipped = make(map[uint64][keyLen]byte)
		}
	}

	ctx := append([]byte(s.suite), "|ratchet"...)
	nextChain, mk, err := ratchetStep(s.chainSend, ctx, s.sendCounter)
	if err != nil {
		return nil, nil, err
	}
	s.chainSend = nextChain

	nonce, err := deriveNonce(mk, s.sendCounter)
	if err != nil {
		return nil, nil, err
	}

	hdr := buildHeaderV3(s.suite, s.sendCounter, s.transcript, dhPubForHeader)

	ct, err := aeadEncrypt(mk, nonce, plaintext, append(append([]byte{}, aad...), hdr...))
	if err != nil {
		return nil, nil, err
	}

	s.transcript = updateTranscript(s.transcript, hdr, ct)
	s.sendCounter++

	return hdr, ct, nil
}

// Decrypt validates and decrypts a received (header, ciphertext) pair bound
// to aad, applying the out-of-order window, replay, transcript, and
// root-ratchet rules specified for the living cipher.
func (s *State) Decrypt(header, ciphertext, aad []byte) (out []byte, err error) {
	suite, counter, prevTranscript, flags, dhPub, err := parseHeaderV3(header)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("counter %d: %w", counter, err)
		}
	}()
	if suite != s.suite {
		return nil, h4errors.NewSuiteMismatch("ratchet.decrypt", nil)
	}

	if flags&0x01 != 0 {
		s.remoteDHPub = dhPub
		s.haveRemote = true
		shared, err := curve25519Shared(s.dhPriv, s.remoteDHPub)
		if err != nil {
			return nil, h4errors.NewAuth("ratchet.decrypt.rootratchet", err)
		}
		newRoot, err := mixRoot(s.rootKey, shared, s.suite)
		if err != nil {
			return nil, err
		}
		s.rootKey = newRoot
		send, recv, err := deriveChainsFromRoot(s.rootKey, s.suite)
		if err != nil {
			return nil, err
		}
		// The peer encrypts on the derived send chain, so it is this side's
		// receive chain.
		s.chainSend, s.chainRecv = recv, send
		s.skipped = make(map[uint64][keyLen]byte)
	}

	if s.recvCounter > s.ooWindow && counter < s.recvCounter-s.ooWindow {
		return nil, h4errors.NewReplay("ratchet.decrypt", nil)
	}

	aadWithHeader := append(append([]byte{}, aad...), header...)

	if mk, ok := s.skipped[counter]; ok {
		delete(s.skipped, counter)
		nonce, err := deriveNonce(mk, counter)
		if err != nil {
			return nil, err
		}
		return aeadDecrypt(mk, nonce, ciphertext, aadWithHeader)
	}

	if counter > s.recvCounter {
		if counter-s.recvCounter > s.ooWindow {
			return nil, h4errors.NewTooFar("ratchet.decrypt", nil)
		}
		if err := precomputeSkipped(s, counter); err != nil {
			return nil, err
		}
		mk, ok := s.skipped[counter]
		if !ok {
			return nil, h4errors.NewTooFar("ratchet.decrypt", nil)
		}
		delete(s.skipped, counter)
		nonce, err := deriveNonce(mk, counter)
		if err != nil {
			return nil, err
		}
		pt, err := aeadDecrypt(mk, nonce, ciphertext, aadWithHeader)
		if err != nil {
			return nil, err
		}
		evictSkipped(s)
		return pt, nil
	}

	if counter != s.recvCounter {
		return nil, h4errors.NewReplay("ratchet.decrypt", nil)
	}

	if prevTranscript != s.transcript {
		return nil, h4errors.NewTranscriptMismatch("ratchet.decrypt", nil)
	}

	ctx := append([]byte(s.suite), "|ratchet"...)
	nextChain, mk, err := ratchetStep(s.chainRecv, ctx, s.recvCounter)
	if err != nil {
		return nil, err
	}
	s.chainRecv = nextChain

	nonce, err := deriveNonce(mk, s.recvCounter)
	if err != nil {
		return nil, err
	}

	pt, err := aeadDecrypt(mk, nonce, ciphertext, aadWithHeader)
	if err != nil {
		return nil, err
	}

	s.transcript = updateTranscript(s.transcript, header, ciphertext)
	s.recvCounter++
	evictSkipped(s)

	return pt, nil
}
