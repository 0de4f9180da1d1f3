/* SPDX-License-Identifier: MIT */

package transport

import (
	"encoding/binary"
	"errors"

	"github.com/dungph/liot/noise"
)

// MaxPlaintext is the per-message plaintext ceiling; the handshake and
// transport layers size their scratch buffers to it. Oversized plaintexts
// are rejected, never silently truncated.
const MaxPlaintext = 224

// NonceSize is the little-endian u64 frame header preceding the AEAD
// ciphertext on the wire.
const NonceSize = 8

var (
	// ErrTooLarge is returned by Send when plaintext exceeds MaxPlaintext.
	ErrTooLarge = errors.New("transport: plaintext exceeds scratch buffer ceiling")
	// ErrShortFrame is returned by Recv when a frame is too small to
	// contain a nonce and an AEAD tag.
	ErrShortFrame = errors.New("transport: frame too short")
	// ErrReplay is returned by Recv when msg.nonce <= n_recv: the frame is
	// dropped silently at the protocol level, but callers that want to
	// distinguish a replay from a transport fault can check this.
	ErrReplay = errors.New("transport: nonce is not ahead of n_recv")
	// ErrExhausted is returned by Send once n_send has used every legal
	// nonce value.
	ErrExhausted = errors.New("transport: nonce space exhausted")
)

// TransportMsg is the decoded wire frame: an explicit 64-bit nonce followed
// by the AEAD ciphertext.
type TransportMsg struct {
	Nonce uint64
	Data  []byte
}

// Transport wraps the two unidirectional CipherStates a completed
// Handshake.Upgrade() produces into a framed, replay-aware channel. A
// Transport is single-writer/single-reader; at most one outstanding Send
// and one outstanding Recv at a time.
type Transport struct {
	send   noise.CipherState
	recv   noise.CipherState
	nRecv  uint64
	gotOne bool
}

// New builds a Transport from the two keys Handshake.Upgrade returns.
func New(send, recv noise.CipherState) *Transport {
	return &Transport{send: send, recv: recv}
}

// Send encrypts plaintext under n_send, advances n_send on success, and
// returns the framed bytes (nonce ‖ ciphertext) ready to hand to a Channel.
func (t *Transport) Send(plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxPlaintext {
		return nil, ErrTooLarge
	}
	n := t.send.Nonce()
	frame := make([]byte, NonceSize+len(plaintext)+noise.TagLen)
	binary.LittleEndian.PutUint64(frame[:NonceSize], n)
	written, err := t.send.EncryptWithAD(nil, plaintext, frame[NonceSize:])
	if err != nil {
		return nil, ErrExhausted
	}
	return frame[:NonceSize+written], nil
}

// Recv parses a wire frame, enforces forward nonce progress, and decrypts.
// It optimistically sets n_recv to msg.nonce before attempting decryption,
// then restores the prior value if the AEAD check fails, so a
// corrupt-but-forward frame never leaves n_recv desynced. A replayed nonce
// is rejected without touching state at all.
func (t *Transport) Recv(frame []byte) ([]byte, error) {
	if len(frame) < NonceSize+noise.TagLen {
		return nil, ErrShortFrame
	}
	nonce := binary.LittleEndian.Uint64(frame[:NonceSize])
	// Before the first accepted frame, n_recv has no meaning yet; any
	// nonce (normally 0, the sender's first value) is admissible. After
	// that, only strictly-ahead nonces are accepted; backward or equal
	// nonces are silently dropped.
	if t.gotOne && nonce <= t.nRecv {
		return nil, ErrReplay
	}

	snapshotNonce := t.recv.Nonce()
	snapshotRecvAt := t.nRecv
	snapshotGotOne := t.gotOne

	t.nRecv = nonce
	t.gotOne = true
	t.recv.SetNonce(nonce)

	out := make([]byte, len(frame)-NonceSize-noise.TagLen)
	n, err := t.recv.DecryptWithAD(nil, frame[NonceSize:], out)
	if err != nil {
		t.nRecv = snapshotRecvAt
		t.gotOne = snapshotGotOne
		t.recv.SetNonce(snapshotNonce)
		return nil, err
	}
	return out[:n], nil
}
