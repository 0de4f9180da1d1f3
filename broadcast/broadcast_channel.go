/* SPDX-License-Identifier: MIT */

package broadcast

import "github.com/dungph/liot/channel"

// broadcastChannel implements channel.Channel over a Demux's per-peer
// queue.
type broadcastChannel struct {
	demux *Demux
	addr  Address
	entry *peerEntry
}

var _ channel.Channel = (*broadcastChannel)(nil)

func newBroadcastChannel(d *Demux, addr Address, entry *peerEntry) *broadcastChannel {
	return &broadcastChannel{demux: d, addr: addr, entry: entry}
}

// IsInitializer assigns the handshake role without coordination: the side
// with the numerically larger local address initiates.
func (c *broadcastChannel) IsInitializer() bool {
	return c.addr.Less(c.demux.local)
}

func (c *broadcastChannel) RemoteID() []byte {
	id := make([]byte, AddrLen)
	copy(id, c.addr[:])
	return id
}

// Send broadcasts {target_addr: peer_addr, data: Data(frame)}. The radio
// has no true unicast; the target address is the demux key at the receiver.
func (c *broadcastChannel) Send(frame []byte) error {
	return c.demux.radio.Broadcast(encodeData(c.addr, frame))
}

// Recv iterates the inbound queue, responding to broadcast Hellos inline
// and yielding only Data envelopes addressed to the local node. Everything
// else is discarded.
func (c *broadcastChannel) Recv() ([]byte, error) {
	for {
		var env envelope
		select {
		case <-c.entry.done:
			return nil, channel.ErrClosed
		case env = <-c.entry.queue:
		}
		switch {
		case env.target == Broadcast && env.kind == payloadHello:
			// Re-advertise back at the sender to bootstrap pairing.
			_ = c.demux.radio.Broadcast(encodeHello(c.addr))
		case env.target == c.demux.local && env.kind == payloadData:
			return env.data, nil
		}
		// Other envelopes (e.g. Hello directed at someone else) are
		// silently discarded.
	}
}

// Close marks this peer's entry closed so the demux prunes it on the next
// sweep.
func (c *broadcastChannel) Close() {
	c.demux.markClosed(c.addr)
}
