/* SPDX-License-Identifier: MIT */

package noise

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// maxNonce is the last legal counter value; 2^64-1 is reserved.
const maxNonce = ^uint64(0) - 1

// CipherState is a per-direction AEAD with a monotonic 64-bit counter.
type CipherState struct {
	key [32]byte
	n   uint64
}

func NewCipherState(key [32]byte) CipherState {
	return CipherState{key: key}
}

// Nonce returns the counter that the next EncryptWithAD/DecryptWithAD call
// will use, without advancing it.
func (c *CipherState) Nonce() uint64 { return c.n }

// SetNonce forcibly sets the counter; used by the transport layer, which
// tracks the peer's explicit wire nonce and restores the prior value when a
// decrypt attempt fails.
func (c *CipherState) SetNonce(n uint64) { c.n = n }

func nonceBytes(n uint64) [chacha20poly1305.NonceSize]byte {
	var nb [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nb[4:], n)
	return nb
}

// EncryptWithAD writes ciphertext||tag for plaintext to the start of out
// (len(out) must be at least len(plaintext)+16) and advances n. Refuses once n has
// reached the reserved terminal value.
func (c *CipherState) EncryptWithAD(ad, plaintext, out []byte) (int, error) {
	if len(out) < len(plaintext)+TagLen {
		return 0, ErrInput
	}
	if c.n >= maxNonce+1 {
		return 0, ErrInput
	}
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return 0, err
	}
	nb := nonceBytes(c.n)
	sealed := aead.Seal(out[:0], nb[:], plaintext, ad)
	c.n++
	return len(sealed), nil
}

// DecryptWithAD is the symmetric counterpart; n advances only on success,
// so a failed attempt leaves the state exactly as it was on entry.
func (c *CipherState) DecryptWithAD(ad, ciphertext, out []byte) (int, error) {
	if len(ciphertext) < TagLen {
		return 0, ErrDecrypt
	}
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return 0, err
	}
	nb := nonceBytes(c.n)
	opened, err := aead.Open(out[:0], nb[:], ciphertext, ad)
	if err != nil {
		return 0, ErrDecrypt
	}
	c.n++
	return len(opened), nil
}
