package codec

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfSalt is a fixed per-application salt; key derivation is stretched
// from a shared password, not a negotiated secret, so there is no
// per-session salt to mix in (spec §4.1: "no key rotation within a
// session").
var hkdfSalt = []byte("mouseshare-session-key-salt-v1")

const hkdfInfo = "session-key"

// DeriveKey stretches a shared password to a 256-bit AES-GCM key via
// HKDF-SHA256, per spec §4.1/§6.
func DeriveKey(password string) ([32]byte, error) {
	var key [32]byte
	h := hkdf.New(sha256.New, []byte(password), hkdfSalt, []byte(hkdfInfo))
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return key, err
	}
	return key, nil
}
