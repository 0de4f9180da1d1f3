/* SPDX-License-Identifier: MIT */

// Package channel defines the uniform bidirectional byte-channel contract
// shared by the broadcast demux, the cloud message bus, and in-process
// pairs.
package channel

import "errors"

// ErrClosed is returned by Recv once the channel has been torn down. Frames
// still queued at teardown may or may not be delivered first, depending on
// the implementation.
var ErrClosed = errors.New("channel: closed")

// Channel is the uniform bidirectional byte-channel contract implemented by
// the broadcast demux, the cloud-bus bridge, and an in-process pair.
type Channel interface {
	// IsInitializer is pure and requires no I/O.
	IsInitializer() bool
	// RemoteID is the peer identity used for access-control lookup.
	RemoteID() []byte
	// Send resolves when the frame is accepted by the lower transport.
	Send(frame []byte) error
	// Recv resolves when a complete frame is available, or returns
	// ErrClosed on teardown.
	Recv() ([]byte, error)
}
