/* SPDX-License-Identifier: MIT */

package device

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dungph/liot/channel"
)

type scriptedHandler struct {
	states          chan Data
	controlReceived chan Data
}

func (h *scriptedHandler) WaitNewState(ctx context.Context) (Data, error) {
	select {
	case s := <-h.states:
		return s, nil
	case <-ctx.Done():
		return Data{}, ctx.Err()
	}
}

func (h *scriptedHandler) HandleControl(d Data) error {
	h.controlReceived <- d
	return nil
}

func (h *scriptedHandler) HandleUpdate(Data) error { return nil }

// TestRunPushesStateAndDispatchesControl exercises Run's two concurrent
// tasks end to end over an in-process pair (whose RemoteID is the
// "internal" sentinel, so both push and dispatch are unconditionally
// permitted).
func TestRunPushesStateAndDispatchesControl(t *testing.T) {
	a, b := channel.NewPipe(4)
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	states := make(chan Data, 1)
	states <- NewEnvironment(EnvironmentData{Temperature: 21.0, Humidity: 40.0, Dark: true})
	h := &scriptedHandler{states: states, controlReceived: make(chan Data, 1)}

	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, a, store, h, discardLogger{}) }()

	frame, err := b.Recv()
	if err != nil {
		t.Fatalf("b.Recv: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.Update == nil || msg.Update.Environment == nil {
		t.Fatalf("expected a pushed Update(Environment), got %+v", msg)
	}

	ctrl, err := json.Marshal(NewControl(NewSwitch(SwitchData{State: true})))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := b.Send(ctrl); err != nil {
		t.Fatalf("b.Send: %v", err)
	}

	select {
	case d := <-h.controlReceived:
		if d.Switch == nil || !d.Switch.State {
			t.Fatalf("unexpected control payload: %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleControl to run")
	}
}
