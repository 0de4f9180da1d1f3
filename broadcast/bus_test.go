/* SPDX-License-Identifier: MIT
 *
 * In-process stand-in for a broadcast link-layer medium, used only by this
 * package's tests. Every registered node's Broadcast call is delivered to
 * every other registered node's Demux.OnReceive, mirroring a real radio's
 * receive callback.
 */

package broadcast

import "sync"

type bus struct {
	mu    sync.Mutex
	nodes map[Address]*Demux
}

func newBus() *bus {
	return &bus{nodes: make(map[Address]*Demux)}
}

func (b *bus) register(addr Address, d *Demux) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[addr] = d
}

type simRadio struct {
	bus  *bus
	self Address
}

func (r *simRadio) Broadcast(frame []byte) error {
	r.bus.mu.Lock()
	targets := make([]*Demux, 0, len(r.bus.nodes))
	for addr, d := range r.bus.nodes {
		if addr != r.self {
			targets = append(targets, d)
		}
	}
	r.bus.mu.Unlock()

	for _, d := range targets {
		d.OnReceive(r.self, frame)
	}
	return nil
}

func newTestNode(b *bus, addr Address) *Demux {
	d := NewDemux(addr, &simRadio{bus: b, self: addr})
	b.register(addr, d)
	return d
}
