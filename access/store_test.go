/* SPDX-License-Identifier: MIT */

package access

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "liot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSentinelBypass(t *testing.T) {
	s := openTestStore(t)

	for _, role := range []Role{RoleController, RoleSubscriber, RoleRFID} {
		for _, id := range [][]byte{SentinelMQTT, SentinelInternal} {
			ok, err := s.IsRole(role, id)
			if err != nil {
				t.Fatalf("IsRole: %v", err)
			}
			if !ok {
				t.Fatalf("sentinel %q should bypass role %v", id, role)
			}
		}
	}

	ok, err := s.IsRole(RoleManager, SentinelMQTT)
	if err != nil || !ok {
		t.Fatal("mqtt sentinel should bypass RoleManager")
	}
	ok, err = s.IsRole(RoleManager, SentinelInternal)
	if err != nil || ok {
		t.Fatal("internal sentinel should NOT bypass RoleManager")
	}
}

func TestAddRemoveRoleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	peer := []byte("peer-x")

	ok, err := s.IsRole(RoleController, peer)
	if err != nil {
		t.Fatalf("IsRole: %v", err)
	}
	if ok {
		t.Fatal("unknown peer should not start as controller")
	}

	if err := s.AddRole(RoleController, peer); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	ok, err = s.IsRole(RoleController, peer)
	if err != nil || !ok {
		t.Fatal("peer should be controller after AddRole")
	}

	if err := s.RemoveRole(RoleController, peer); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	ok, err = s.IsRole(RoleController, peer)
	if err != nil || ok {
		t.Fatal("peer should no longer be controller after RemoveRole")
	}
}

func TestSetRFIDsWholesaleReplace(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddRole(RoleRFID, []byte("card-1")); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if err := s.SetRFIDs([][]byte{[]byte("card-2"), []byte("card-3")}); err != nil {
		t.Fatalf("SetRFIDs: %v", err)
	}

	ok, _ := s.IsRole(RoleRFID, []byte("card-1"))
	if ok {
		t.Fatal("card-1 should have been cleared by wholesale replace")
	}
	ids, err := s.Roles(RoleRFID)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 rfids after replace, got %d", len(ids))
	}
}

func TestPrivateKeyPersistedAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liot.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key1, err := s1.PrivateKey()
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	key2, err := s2.PrivateKey()
	if err != nil {
		t.Fatalf("PrivateKey (reopen): %v", err)
	}
	if key1 != key2 {
		t.Fatal("private key was not persisted across reopen")
	}
}

func TestDataNamespaceRoundTrip(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Data("thing_title")
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if v != nil {
		t.Fatal("absent key should read back nil")
	}

	if err := s.SetData("thing_title", []byte("front door")); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	v, err = s.Data("thing_title")
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(v) != "front door" {
		t.Fatalf("round trip mismatch: %q", v)
	}
}
