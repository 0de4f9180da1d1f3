/* SPDX-License-Identifier: MIT
 *
 * bbolt's single-writer transaction serializes every mutation below, so no
 * extra application-level mutex is needed.
 */

package access

import (
	"crypto/rand"
	"fmt"

	"go.etcd.io/bbolt"
)

// Role names the four disjoint authorization sets.
type Role int

const (
	RoleManager Role = iota
	RoleController
	RoleSubscriber
	RoleRFID
)

func (r Role) bucketName() []byte {
	switch r {
	case RoleManager:
		return []byte("managers")
	case RoleController:
		return []byte("controllers")
	case RoleSubscriber:
		return []byte("subscribers")
	case RoleRFID:
		return []byte("rfids")
	default:
		panic("access: unknown role")
	}
}

var (
	bucketRole       = []byte("role")
	bucketPrivateKey = []byte("private key")
	bucketData       = []byte("data")
	// bucketWifi reserves the credentials namespace for the Wi-Fi
	// association layer, which lives outside this module; nothing here
	// writes it.
	bucketWifi = []byte("wifi")

	keyPrivate = []byte("key")
)

// Store is the persisted access-control store and key material holder: a
// single bbolt database holding the role, private-key, and settings
// namespaces.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path and ensures
// every namespace bucket exists, so readers can treat "bucket present,
// key absent" as the empty set.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	s := &Store{db: db}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketData); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketPrivateKey); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketWifi); err != nil {
			return err
		}
		role, err := tx.CreateBucketIfNotExists(bucketRole)
		if err != nil {
			return err
		}
		for _, r := range []Role{RoleManager, RoleController, RoleSubscriber, RoleRFID} {
			if _, err := role.CreateBucketIfNotExists(r.bucketName()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init buckets: %v", ErrIO, err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

// isSentinel reports whether identity is one of the always-privileged
// sentinel identities, and if so which role sets it carries.
func isSentinel(identity []byte) (managers, rest bool) {
	switch string(identity) {
	case string(SentinelMQTT):
		return true, true
	case string(SentinelInternal):
		return false, true
	default:
		return false, false
	}
}

// IsRole reports whether identity currently holds role. "mqtt" and
// "internal" behave as if present in controllers/subscribers/rfids;
// "mqtt" additionally as if present in managers.
func (s *Store) IsRole(role Role, identity []byte) (bool, error) {
	isManager, isRest := isSentinel(identity)
	if role == RoleManager && isManager {
		return true, nil
	}
	if role != RoleManager && isRest {
		return true, nil
	}

	var present bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRole).Bucket(role.bucketName())
		present = b.Get(identity) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: is role: %v", ErrIO, err)
	}
	return present, nil
}

// AddRole grants role to identity. The value stored is empty; membership
// is the key's presence.
func (s *Store) AddRole(role Role, identity []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRole).Bucket(role.bucketName()).Put(identity, []byte{})
	})
	if err != nil {
		return fmt.Errorf("%w: add role: %v", ErrIO, err)
	}
	return nil
}

// RemoveRole revokes role from identity; removing an absent identity is a
// no-op.
func (s *Store) RemoveRole(role Role, identity []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRole).Bucket(role.bucketName()).Delete(identity)
	})
	if err != nil {
		return fmt.Errorf("%w: remove role: %v", ErrIO, err)
	}
	return nil
}

// Roles returns every identity currently holding role, for diagnostics and
// tests. Order follows bbolt's byte-lexicographic key order.
func (s *Store) Roles(role Role) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRole).Bucket(role.bucketName()).ForEach(func(k, _ []byte) error {
			id := make([]byte, len(k))
			copy(id, k)
			out = append(out, id)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list role: %v", ErrIO, err)
	}
	return out, nil
}

// SetRFIDs wholesale-replaces the rfids set; "clear all cards" uses this
// rather than repeated RemoveRole calls.
func (s *Store) SetRFIDs(ids [][]byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRole)
		if err := b.DeleteBucket(RoleRFID.bucketName()); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		fresh, err := b.CreateBucket(RoleRFID.bucketName())
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := fresh.Put(id, []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set rfids: %v", ErrIO, err)
	}
	return nil
}

// PrivateKey returns the node's persisted Curve25519 static private key,
// generating and persisting one on first call if absent.
func (s *Store) PrivateKey() ([32]byte, error) {
	var key [32]byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPrivateKey)
		if existing := b.Get(keyPrivate); existing != nil {
			copy(key[:], existing)
			return nil
		}
		if _, err := rand.Read(key[:]); err != nil {
			return err
		}
		return b.Put(keyPrivate, key[:])
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: private key: %v", ErrIO, err)
	}
	return key, nil
}

// Data returns the raw bytes stored under key in the free-form settings
// namespace, or nil if absent.
func (s *Store) Data(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketData).Get([]byte(key)); v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get data: %v", ErrIO, err)
	}
	return out, nil
}

// SetData stores value under key in the settings namespace.
func (s *Store) SetData(key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketData).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: set data: %v", ErrIO, err)
	}
	return nil
}
