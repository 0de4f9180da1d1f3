/* SPDX-License-Identifier: MIT */

package device

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dungph/liot/access"
)

func openTestStore(t *testing.T) *access.Store {
	t.Helper()
	s, err := access.Open(filepath.Join(t.TempDir(), "liot.db"))
	if err != nil {
		t.Fatalf("access.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type nopHandler struct {
	controlled []Data
	updated    []Data
}

func (h *nopHandler) HandleControl(d Data) error { h.controlled = append(h.controlled, d); return nil }
func (h *nopHandler) HandleUpdate(d Data) error  { h.updated = append(h.updated, d); return nil }
func (h *nopHandler) WaitNewState(ctx context.Context) (Data, error) {
	<-ctx.Done()
	return Data{}, ctx.Err()
}

// TestAccessControlDenial: an add_controller("Y") message delivered over
// peer X's channel, with X absent from every role set, must leave the
// controllers set unchanged.
func TestAccessControlDenial(t *testing.T) {
	store := openTestStore(t)
	peerX := []byte("X")

	msg := NewAddController("Y")
	if err := dispatch(store, &nopHandler{}, peerX, msg, discardLogger{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	ok, err := store.IsRole(access.RoleController, []byte("Y"))
	if err != nil {
		t.Fatalf("IsRole: %v", err)
	}
	if ok {
		t.Fatal("non-manager peer X must not be able to add a controller")
	}
}

func TestAccessControlAllowsManager(t *testing.T) {
	store := openTestStore(t)
	peerX := []byte("X")
	if err := store.AddRole(access.RoleManager, peerX); err != nil {
		t.Fatalf("AddRole: %v", err)
	}

	msg := NewAddController("Y")
	if err := dispatch(store, &nopHandler{}, peerX, msg, discardLogger{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	ok, err := store.IsRole(access.RoleController, []byte("Y"))
	if err != nil {
		t.Fatalf("IsRole: %v", err)
	}
	if !ok {
		t.Fatal("manager peer X should be able to add a controller")
	}
}

func TestControlGatedByController(t *testing.T) {
	store := openTestStore(t)
	peerX := []byte("X")
	h := &nopHandler{}

	msg := NewControl(NewSwitch(SwitchData{State: true}))
	if err := dispatch(store, h, peerX, msg, discardLogger{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.controlled) != 0 {
		t.Fatal("non-controller peer's Control message must have no effect")
	}

	if err := store.AddRole(access.RoleController, peerX); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if err := dispatch(store, h, peerX, msg, discardLogger{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.controlled) != 1 {
		t.Fatal("controller peer's Control message should reach the device")
	}
}

func TestSentinelAlwaysAllowedAsController(t *testing.T) {
	store := openTestStore(t)
	h := &nopHandler{}
	msg := NewControl(NewMotion(MotionData{State: true}))
	if err := dispatch(store, h, access.SentinelMQTT, msg, discardLogger{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.controlled) != 1 {
		t.Fatal("the mqtt sentinel should always be treated as a controller")
	}
}

// discardLogger is a no-op Logger for tests that don't care about output.
type discardLogger struct{}

func (discardLogger) Debug(v ...interface{})            {}
func (discardLogger) Debugf(f string, v ...interface{}) {}
func (discardLogger) Info(v ...interface{})             {}
func (discardLogger) Infof(f string, v ...interface{})  {}
func (discardLogger) Error(v ...interface{})            {}
func (discardLogger) Errorf(f string, v ...interface{}) {}
