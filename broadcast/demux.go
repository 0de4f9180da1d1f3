/* SPDX-License-Identifier: MIT */

// Package broadcast demultiplexes a shared broadcast radio into per-peer
// logical channels. Frames arriving from any source address are routed to
// that peer's bounded inbound queue; addresses seen for the first time
// surface as new channels on Incoming.
package broadcast

import (
	"sync"

	"github.com/dungph/liot/channel"
	"github.com/dungph/liot/internal/ratelimiter"
)

// queueCapacity bounds each peer's inbound queue; overflow drops the
// oldest frame at the producer.
const queueCapacity = 10

// ingressCapacity bounds the radio-callback-to-demux-loop handoff queue;
// the radio callback itself must do no work beyond enqueueing here.
const ingressCapacity = 64

// Radio is the external collaborator this package demultiplexes over: a
// physical or simulated broadcast link-layer medium. There is no true
// unicast; the envelope's target address is the demux key at the receiver.
type Radio interface {
	Broadcast(frame []byte) error
}

type ingressEvent struct {
	source Address
	raw    []byte
}

// Demux maps (peer-address, frame) bursts arriving from a Radio into
// per-peer logical Channels, surfacing new peers on Incoming().
type Demux struct {
	local   Address
	radio   Radio
	limiter ratelimiter.Ratelimiter

	ingress chan ingressEvent

	mu       sync.Mutex
	peers    map[Address]*peerEntry
	incoming chan channel.Channel
}

type peerEntry struct {
	queue     chan envelope
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewDemux constructs a Demux for local, multiplexing frames delivered via
// OnReceive and pumped by Run over radio.
func NewDemux(local Address, radio Radio) *Demux {
	d := &Demux{
		local:    local,
		radio:    radio,
		ingress:  make(chan ingressEvent, ingressCapacity),
		peers:    make(map[Address]*peerEntry),
		incoming: make(chan channel.Channel, ingressCapacity),
	}
	d.limiter.Init()
	return d
}

// Close stops the ratelimiter's background sweep. It does not close the
// Incoming channel or any peer queues; callers that have stopped calling
// Run should simply drop the Demux.
func (d *Demux) Close() { d.limiter.Close() }

// OnReceive is the radio's receive callback. It runs on the driver thread,
// so it does no work beyond copying and enqueueing.
func (d *Demux) OnReceive(source Address, raw []byte) {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	select {
	case d.ingress <- ingressEvent{source: source, raw: cp}:
	default:
		// Backpressure at the producer side; overflow is dropped, same
		// policy as the per-peer queues.
	}
}

// Incoming surfaces newly-seen peer addresses as Channels.
func (d *Demux) Incoming() <-chan channel.Channel { return d.incoming }

// Advertise broadcasts {target_addr: BROADCAST, data: Hello}.
func (d *Demux) Advertise() error {
	return d.radio.Broadcast(encodeHello(Broadcast))
}

// Run processes ingress events until stop is closed. It is the
// single-threaded "executor" side of the radio-callback/demux split.
func (d *Demux) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev := <-d.ingress:
			d.handle(ev)
		}
	}
}

func (d *Demux) handle(ev ingressEvent) {
	env, err := decodeEnvelope(ev.raw)
	if err != nil {
		return
	}

	d.mu.Lock()
	entry, exists := d.peers[ev.source]
	if !exists {
		if !d.limiter.Allow([ratelimiter.AddrLen]byte(ev.source)) {
			d.mu.Unlock()
			return
		}
		entry = &peerEntry{queue: make(chan envelope, queueCapacity), done: make(chan struct{})}
		d.peers[ev.source] = entry
	}
	d.pruneLocked()
	d.mu.Unlock()

	if !exists {
		bc := newBroadcastChannel(d, ev.source, entry)
		select {
		case d.incoming <- bc:
		default:
		}
	}

	select {
	case entry.queue <- env:
	default:
		// Oldest-drop on overflow.
		select {
		case <-entry.queue:
		default:
		}
		select {
		case entry.queue <- env:
		default:
		}
	}
}

// pruneLocked drops peer entries whose channel has been closed. Caller
// holds d.mu.
func (d *Demux) pruneLocked() {
	for addr, e := range d.peers {
		if e.closed {
			delete(d.peers, addr)
		}
	}
}

func (d *Demux) markClosed(addr Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.peers[addr]; ok {
		e.closed = true
		e.closeOnce.Do(func() { close(e.done) })
	}
}
