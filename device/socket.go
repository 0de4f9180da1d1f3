/* SPDX-License-Identifier: MIT */

package device

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/dungph/liot/access"
	"github.com/dungph/liot/channel"
	"github.com/dungph/liot/noise"
	"github.com/dungph/liot/transport"
)

// Socket upgrades a raw channel.Channel into an authenticated, encrypted
// one by running a Noise handshake over it and framing every subsequent
// message through the resulting Transport. It implements channel.Channel
// itself, so device.Run treats a handshaked broadcast peer exactly like a
// cloud-bus or in-process channel.
type Socket struct {
	conn         channel.Channel
	initializer  bool
	transport    *transport.Transport
	remoteStatic [noise.DHLen]byte

	// sendMu/recvMu serialize encrypt and decrypt independently: the two
	// device-loop tasks touch the same direction of the Transport at most
	// once at a time each.
	sendMu sync.Mutex
	recvMu sync.Mutex
}

// Handshake runs a Noise handshake of the given pattern over conn and
// returns a Socket wrapping the resulting Transport. local is the node's
// static identity keypair; a fresh ephemeral keypair is generated per
// call.
func Handshake(conn channel.Channel, pattern noise.Pattern, local noise.DHKey, prologue []byte) (*Socket, error) {
	e, err := freshEphemeral()
	if err != nil {
		return nil, fmt.Errorf("device: ephemeral key: %w", err)
	}

	var hs *noise.Handshake
	if conn.IsInitializer() {
		hs = noise.New(pattern, true, e, local, prologue)
	} else {
		hs = noise.New(pattern, false, e, local, prologue)
	}

	if err := runHandshakeSteps(hs, conn, pattern, conn.IsInitializer()); err != nil {
		return nil, err
	}

	send, recv, remoteStatic, err := hs.Upgrade()
	if err != nil {
		return nil, fmt.Errorf("device: upgrade: %w", err)
	}

	s := &Socket{
		conn:         conn,
		initializer:  conn.IsInitializer(),
		transport:    transport.New(send, recv),
		remoteStatic: remoteStatic,
	}
	return s, nil
}

func freshEphemeral() (noise.DHKey, error) {
	var seed [noise.DHLen]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return noise.DHKey{}, err
	}
	return noise.GenerateKeypair(seed)
}

// handshakeBufLen bounds the largest single handshake message: two DH
// public keys plus two AEAD tags, the IX/XX message-2 worst case.
const handshakeBufLen = 2*noise.DHLen + 2*noise.TagLen

// runHandshakeSteps drives the fixed write/read sequence for pattern and
// role, spelled out step by step rather than as a generic token-driven
// loop.
func runHandshakeSteps(hs *noise.Handshake, conn channel.Channel, pattern noise.Pattern, initiator bool) error {
	buf := make([]byte, handshakeBufLen)
	payload := make([]byte, handshakeBufLen)

	writeAndSend := func() error {
		n, err := hs.WriteMessage(nil, buf)
		if err != nil {
			return fmt.Errorf("device: handshake write: %w", err)
		}
		if err := conn.Send(buf[:n]); err != nil {
			return fmt.Errorf("device: handshake send: %w", err)
		}
		return nil
	}
	recvAndRead := func() error {
		frame, err := conn.Recv()
		if err != nil {
			return fmt.Errorf("device: handshake recv: %w", err)
		}
		if _, err := hs.ReadMessage(frame, payload); err != nil {
			return fmt.Errorf("device: handshake read: %w", err)
		}
		return nil
	}

	if pattern == noise.PatternIX {
		if initiator {
			// -> e, s
			if err := writeAndSend(); err != nil {
				return err
			}
			// <- e, ee, se, s, es
			return recvAndRead()
		}
		// -> e, s
		if err := recvAndRead(); err != nil {
			return err
		}
		// <- e, ee, se, s, es
		return writeAndSend()
	}

	if initiator {
		if err := writeAndSend(); err != nil { // -> e
			return err
		}
		if err := recvAndRead(); err != nil { // <- e, ee, s, es
			return err
		}
		return writeAndSend() // -> s, se
	}
	if err := recvAndRead(); err != nil { // -> e
		return err
	}
	if err := writeAndSend(); err != nil { // <- e, ee, s, es
		return err
	}
	return recvAndRead() // -> s, se
}

// IsInitializer delegates to the underlying channel's role assignment.
func (s *Socket) IsInitializer() bool { return s.initializer }

// RemoteID is the authenticated peer's short identity, the identifier the
// access-control store is keyed on, not the link-layer address the
// underlying channel may have used to connect.
func (s *Socket) RemoteID() []byte {
	return []byte(access.ShortID(s.remoteStatic))
}

// Send encrypts plaintext and writes the framed ciphertext to the
// underlying channel. Concurrent Send/Recv calls from the two device-loop
// tasks are each serialized on their own mutex, but both ultimately touch
// the same Transport, whose CipherStates are direction-exclusive (send vs
// recv) so a concurrent Send and Recv never race on the same counter.
func (s *Socket) Send(plaintext []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	frame, err := s.transport.Send(plaintext)
	if err != nil {
		return err
	}
	return s.conn.Send(frame)
}

// Recv reads one frame from the underlying channel and decrypts it.
func (s *Socket) Recv() ([]byte, error) {
	frame, err := s.conn.Recv()
	if err != nil {
		return nil, err
	}

	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	return s.transport.Recv(frame)
}

var _ channel.Channel = (*Socket)(nil)
