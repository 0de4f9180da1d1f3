/* SPDX-License-Identifier: MIT */

package noise

import (
	"crypto/subtle"

	"golang.org/x/crypto/curve25519"
)

const (
	DHLen    = 32 // Curve25519 key size
	HashLen  = 32 // BLAKE2s-256 output size
	BlockLen = 64 // BLAKE2s block size used by the HMAC construction
	TagLen   = 16 // ChaCha20-Poly1305 tag size
)

// DHKey is a Curve25519 keypair. Public is derived with X25519 against the
// basepoint; it is never reconstructed lazily so that a zero-value DHKey is
// distinguishable from "no key yet" by the caller, not by this package.
type DHKey struct {
	Private [DHLen]byte
	Public  [DHLen]byte
}

// GenerateKeypair derives the public key for the supplied private scalar by
// multiplying against the curve basepoint. The caller provides the randomness
// so deterministic keys can be pinned in tests.
func GenerateKeypair(random [DHLen]byte) (DHKey, error) {
	var key DHKey
	key.Private = random
	pub, err := curve25519.X25519(key.Private[:], curve25519.Basepoint)
	if err != nil {
		return DHKey{}, err
	}
	copy(key.Public[:], pub)
	return key, nil
}

func dh(priv, pub [DHLen]byte) ([]byte, error) {
	return curve25519.X25519(priv[:], pub[:])
}

// IsZero reports whether k is the all-zero public key (no remote key seen).
func IsZero(k [DHLen]byte) bool {
	var zero [DHLen]byte
	return subtle.ConstantTimeCompare(k[:], zero[:]) == 1
}
