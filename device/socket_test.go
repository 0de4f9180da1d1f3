/* SPDX-License-Identifier: MIT
 *
 * End-to-end check over an in-process channel pair: each end wrapped with
 * a freshly seeded XX handshake, one side transmitting an environment
 * update and the peer receiving exactly that variant.
 */

package device

import (
	"encoding/json"
	"testing"

	"github.com/dungph/liot/access"
	"github.com/dungph/liot/channel"
	"github.com/dungph/liot/noise"
)

func staticKey(t *testing.T, seed byte) noise.DHKey {
	t.Helper()
	var raw [noise.DHLen]byte
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	k, err := noise.GenerateKeypair(raw)
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return k
}

func TestInProcessPairHandshakeAndRoundTrip(t *testing.T) {
	a, b := channel.NewPipe(4)

	aStatic := staticKey(t, 1)
	bStatic := staticKey(t, 50)

	type result struct {
		sock *Socket
		err  error
	}
	aCh := make(chan result, 1)
	bCh := make(chan result, 1)

	go func() {
		s, err := Handshake(a, noise.PatternXX, aStatic, nil)
		aCh <- result{s, err}
	}()
	go func() {
		s, err := Handshake(b, noise.PatternXX, bStatic, nil)
		bCh <- result{s, err}
	}()

	ra := <-aCh
	rb := <-bCh
	if ra.err != nil {
		t.Fatalf("side a handshake: %v", ra.err)
	}
	if rb.err != nil {
		t.Fatalf("side b handshake: %v", rb.err)
	}

	msg := NewUpdate(NewEnvironment(EnvironmentData{Temperature: 23.4, Humidity: 55.0, Dark: false}))
	frame, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := ra.sock.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := rb.sock.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Update == nil || decoded.Update.Environment == nil {
		t.Fatalf("expected Update(Environment), got %+v", decoded)
	}
	env := decoded.Update.Environment
	if env.Temperature != 23.4 || env.Humidity != 55.0 || env.Dark != false {
		t.Fatalf("environment payload mismatch: %+v", env)
	}
}

func TestSocketRemoteIDIsAuthenticatedShortID(t *testing.T) {
	a, b := channel.NewPipe(4)
	aStatic := staticKey(t, 5)
	bStatic := staticKey(t, 90)

	type result struct {
		sock *Socket
		err  error
	}
	aCh := make(chan result, 1)
	bCh := make(chan result, 1)
	go func() {
		s, err := Handshake(a, noise.PatternXX, aStatic, nil)
		aCh <- result{s, err}
	}()
	go func() {
		s, err := Handshake(b, noise.PatternXX, bStatic, nil)
		bCh <- result{s, err}
	}()
	ra, rb := <-aCh, <-bCh
	if ra.err != nil || rb.err != nil {
		t.Fatalf("handshake errors: %v / %v", ra.err, rb.err)
	}

	// a's view of the remote (b) must match the short id b reports for
	// itself, i.e. the access-control identity is the peer's own static
	// key's short id, not some locally-chosen label.
	if got, want := string(ra.sock.RemoteID()), access.ShortID(bStatic.Public); got != want {
		t.Fatalf("a's RemoteID = %q, want b's short id %q", got, want)
	}
	if got, want := string(rb.sock.RemoteID()), access.ShortID(aStatic.Public); got != want {
		t.Fatalf("b's RemoteID = %q, want a's short id %q", got, want)
	}
	if string(ra.sock.RemoteID()) == string(rb.sock.RemoteID()) {
		t.Fatal("the two sides' remote ids should differ (they authenticate each other, not themselves)")
	}
	if len(ra.sock.RemoteID()) == 0 {
		t.Fatal("RemoteID must not be empty after a completed handshake")
	}
}
