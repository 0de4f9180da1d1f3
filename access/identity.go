/* SPDX-License-Identifier: MIT */

package access

import (
	"github.com/mr-tron/base58"
)

// ShortIDLen is the length of the human-facing handle and cloud-bus topic
// prefix: the first six characters of the base58 public key.
const ShortIDLen = 6

// ShortID derives the stable human-facing handle from a node's Curve25519
// public key.
func ShortID(publicKey [32]byte) string {
	full := base58.Encode(publicKey[:])
	if len(full) < ShortIDLen {
		return full
	}
	return full[:ShortIDLen]
}

// Sentinel peer identities: these never appear as a real node's remote
// identity, but are recognized by Store.IsRole as unconditionally present
// in specific role sets.
var (
	SentinelMQTT     = []byte("mqtt")
	SentinelInternal = []byte("internal")
)
