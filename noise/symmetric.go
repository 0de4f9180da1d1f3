/* SPDX-License-Identifier: MIT */

package noise

import (
	"golang.org/x/crypto/blake2s"
)

// symmetricState is Noise's SymmetricState: chaining key, running transcript
// hash, and AEAD-gated hash mixing. It is copied by value (all fields are
// fixed-size or value types) so that handshake.go can snapshot-and-restore
// it around a failed message.
type symmetricState struct {
	ck     [HashLen]byte
	h      [HashLen]byte
	cipher CipherState
	hasKey bool
}

// newSymmetricState initializes h/ck from the protocol name: zero-padded if
// shorter than the hash length, BLAKE2s-256 hashed otherwise.
func newSymmetricState(protocolName []byte) symmetricState {
	var s symmetricState
	if len(protocolName) < HashLen {
		copy(s.h[:], protocolName)
	} else {
		s.h = blake2s.Sum256(protocolName)
	}
	s.ck = s.h
	s.cipher = NewCipherState([32]byte{})
	return s
}

func (s *symmetricState) mixHash(data []byte) {
	ctx := append(append([]byte{}, s.h[:]...), data...)
	s.h = blake2s.Sum256(ctx)
}

func (s *symmetricState) mixKey(ikm []byte) {
	out := hkdf(2, s.ck, ikm)
	s.ck = out[0]
	s.cipher = NewCipherState(out[1])
	s.hasKey = true
}

// encryptAndHash encrypts payload (or copies it through, unkeyed) into out
// and mixes the result into h.
func (s *symmetricState) encryptAndHash(payload []byte, out []byte) (int, error) {
	var n int
	if s.hasKey {
		if len(out) < len(payload)+TagLen {
			return 0, ErrInput
		}
		written, err := s.cipher.EncryptWithAD(s.h[:], payload, out)
		if err != nil {
			return 0, err
		}
		n = written
	} else {
		if len(out) < len(payload) {
			return 0, ErrInput
		}
		n = copy(out, payload)
	}
	s.mixHash(out[:n])
	return n, nil
}

// decryptAndHash is the symmetric counterpart; mixHash always uses the
// ciphertext bytes as received, matching encryptAndHash's ordering so both
// sides derive the same transcript hash.
func (s *symmetricState) decryptAndHash(ciphertext []byte, out []byte) (int, error) {
	var n int
	if s.hasKey {
		written, err := s.cipher.DecryptWithAD(s.h[:], ciphertext, out)
		if err != nil {
			return 0, err
		}
		n = written
	} else {
		if len(out) < len(ciphertext) {
			return 0, ErrInput
		}
		n = copy(out, ciphertext)
	}
	s.mixHash(ciphertext)
	return n, nil
}

// split derives the two unidirectional transport keys from ck.
func (s *symmetricState) split() (CipherState, CipherState) {
	out := hkdf(2, s.ck, nil)
	return NewCipherState(out[0]), NewCipherState(out[1])
}

// hmacBlake2s implements the standard ipad/opad HMAC construction over
// BLAKE2s-256 with its 64-byte block size.
func hmacBlake2s(key, data []byte) [HashLen]byte {
	var ipad, opad [BlockLen]byte
	copy(ipad[:], key)
	copy(opad[:], key)
	for i := range ipad {
		ipad[i] ^= 0x36
		opad[i] ^= 0x5c
	}
	inner := blake2s.Sum256(append(append([]byte{}, ipad[:]...), data...))
	outer := blake2s.Sum256(append(append([]byte{}, opad[:]...), inner[:]...))
	return outer
}

// hkdf is the Noise HKDF: temp = HMAC(ck, ikm), then a chain of
// HMAC(temp, ...) derivations. n must be 1, 2, or 3.
func hkdf(n int, chainingKey [HashLen]byte, ikm []byte) [][HashLen]byte {
	if n < 1 || n > 3 {
		panic("noise: hkdf supports only 1..3 outputs")
	}
	temp := hmacBlake2s(chainingKey[:], ikm)
	out := make([][HashLen]byte, n)
	out[0] = hmacBlake2s(temp[:], []byte{0x01})
	for i := 1; i < n; i++ {
		in := append(append([]byte{}, out[i-1][:]...), byte(i+1))
		out[i] = hmacBlake2s(temp[:], in)
	}
	return out
}
