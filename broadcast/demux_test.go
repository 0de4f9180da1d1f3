/* SPDX-License-Identifier: MIT */

package broadcast

import (
	"testing"
	"time"

	"github.com/dungph/liot/channel"
)

func addrs(a, b byte) (Address, Address) {
	return Address{a, 0, 0, 0, 0, 1}, Address{b, 0, 0, 0, 0, 2}
}

// TestHelloHandshake: A broadcasts Hello, B
// receives it and unicasts Hello back, and each side's demux surfaces a
// new incoming channel for the other's address.
func TestHelloHandshake(t *testing.T) {
	bus := newBus()
	addrA, addrB := addrs(1, 2)
	demuxA := newTestNode(bus, addrA)
	demuxB := newTestNode(bus, addrB)

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go demuxA.Run(stop)
	go demuxB.Run(stop)

	if err := demuxA.Advertise(); err != nil {
		t.Fatalf("Advertise: %v", err)
	}

	var bSeesA channel.Channel
	select {
	case bSeesA = <-demuxB.Incoming():
	case <-time.After(2 * time.Second):
		t.Fatal("B never saw an incoming channel for A")
	}
	if string(bSeesA.RemoteID()) != string(addrA[:]) {
		t.Fatalf("B's incoming channel has RemoteID %x, want %x", bSeesA.RemoteID(), addrA)
	}

	// Draining B's channel processes the queued Hello and triggers B's
	// unicast reply back to A.
	go bSeesA.Recv()

	var aSeesB channel.Channel
	select {
	case aSeesB = <-demuxA.Incoming():
	case <-time.After(2 * time.Second):
		t.Fatal("A never saw an incoming channel for B after B's reply")
	}
	if string(aSeesB.RemoteID()) != string(addrB[:]) {
		t.Fatalf("A's incoming channel has RemoteID %x, want %x", aSeesB.RemoteID(), addrB)
	}
}

// TestDemuxIsolation: frames for address A never
// appear in channel B's inbound queue.
func TestDemuxIsolation(t *testing.T) {
	local := Address{9, 9, 9, 9, 9, 9}
	d := NewDemux(local, &simRadio{bus: newBus(), self: local})

	addrA := Address{1, 1, 1, 1, 1, 1}
	addrB := Address{2, 2, 2, 2, 2, 2}

	d.handle(ingressEvent{source: addrA, raw: encodeData(local, []byte("for-A-channel"))})
	d.handle(ingressEvent{source: addrB, raw: encodeData(local, []byte("for-B-channel"))})

	d.mu.Lock()
	entryA, okA := d.peers[addrA]
	entryB, okB := d.peers[addrB]
	d.mu.Unlock()
	if !okA || !okB {
		t.Fatal("expected both addresses to have been admitted")
	}

	select {
	case env := <-entryA.queue:
		if string(env.data) != "for-A-channel" {
			t.Fatalf("A's queue has the wrong payload: %q", env.data)
		}
	default:
		t.Fatal("A's queue is unexpectedly empty")
	}
	select {
	case env := <-entryB.queue:
		if string(env.data) != "for-B-channel" {
			t.Fatalf("B's queue has the wrong payload: %q", env.data)
		}
	default:
		t.Fatal("B's queue is unexpectedly empty")
	}

	// Both queues must now be drained; nothing crossed over.
	select {
	case env := <-entryA.queue:
		t.Fatalf("A's queue unexpectedly has a second frame: %+v", env)
	default:
	}
}

// TestInitiatorSelection: for any address pair,
// exactly one side reports IsInitializer() == true.
func TestInitiatorSelection(t *testing.T) {
	bus := newBus()
	addrA, addrB := addrs(3, 4)
	demuxA := newTestNode(bus, addrA)
	demuxB := newTestNode(bus, addrB)

	chA := newBroadcastChannel(demuxA, addrB, &peerEntry{queue: make(chan envelope, 1), done: make(chan struct{})})
	chB := newBroadcastChannel(demuxB, addrA, &peerEntry{queue: make(chan envelope, 1), done: make(chan struct{})})

	if chA.IsInitializer() == chB.IsInitializer() {
		t.Fatalf("exactly one side must be the initiator, got %v / %v", chA.IsInitializer(), chB.IsInitializer())
	}
}

// TestQueueOverflowDropsOldest: on overflow the oldest frame is dropped,
// not the newest.
func TestQueueOverflowDropsOldest(t *testing.T) {
	local := Address{9, 9, 9, 9, 9, 9}
	d := NewDemux(local, &simRadio{bus: newBus(), self: local})
	source := Address{1, 1, 1, 1, 1, 1}

	for i := 0; i < queueCapacity+2; i++ {
		d.handle(ingressEvent{source: source, raw: encodeData(local, []byte{byte(i)})})
	}

	d.mu.Lock()
	entry := d.peers[source]
	d.mu.Unlock()

	if len(entry.queue) != queueCapacity {
		t.Fatalf("queue length = %d, want %d", len(entry.queue), queueCapacity)
	}
	first := <-entry.queue
	if first.data[0] != 2 {
		t.Fatalf("oldest-drop should have left frame 2 at the front, got %d", first.data[0])
	}
}
