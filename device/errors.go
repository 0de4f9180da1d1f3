/* SPDX-License-Identifier: MIT */

package device

import "errors"

// ErrDeserialize marks a malformed inbound message: a frame that fails to
// parse as a Message is dropped silently by Run, but tests and direct
// callers of Unmarshal can still distinguish the failure.
var ErrDeserialize = errors.New("device: malformed message")
