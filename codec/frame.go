package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alexandertomana/MouseShare/errkind"
)

// DefaultMaxFrameLength bounds a single frame's payload, per spec §4.1;
// a longer declared length is a connection-level failure, not a
// per-frame one.
const DefaultMaxFrameLength = 10 << 20 // 10 MiB

const lengthPrefixSize = 4

// AEAD performs the sealing backing an encrypted session. The core
// only invokes this primitive; the implementation (AES-256-GCM, per
// spec §6) lives here because Go's standard library already expresses
// it idiomatically and no ecosystem package adds anything over
// crypto/aes+crypto/cipher for a one-shot AEAD seal/open (see
// DESIGN.md).
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD builds an AES-256-GCM sealer/opener from a derived 32-byte
// key (see DeriveKey).
func NewAEAD(key [32]byte) (*AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: gcm}, nil
}

// Seal produces nonce ‖ ciphertext ‖ tag, per spec §4.1's sealed-blob
// layout.
func (a *AEAD) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := a.aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Open reverses Seal. A wrong key or corrupted ciphertext surfaces as
// errkind.DecryptFailed.
func (a *AEAD) Open(blob []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(blob) < ns {
		return nil, errkind.New(errkind.DecryptFailed, "sealed blob shorter than nonce")
	}
	nonce, ciphertext := blob[:ns], blob[ns:]
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.DecryptFailed, "AEAD open failed", err)
	}
	return plaintext, nil
}

// Frame prefixes body with a big-endian u32 length, per spec §4.1/§6.
func Frame(body []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out
}

// ReadFrame reads one length-prefixed frame from r, enforcing maxLen.
// A length violation is a connection-level failure per spec §4.1 and
// is reported as errkind.FrameMalformed so the caller closes the
// connection rather than merely dropping the frame.
func ReadFrame(r io.Reader, maxLen uint32) ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxLen {
		return nil, errkind.New(errkind.FrameMalformed, fmt.Sprintf("frame length %d exceeds max %d", n, maxLen))
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
