/* SPDX-License-Identifier: MIT */

package noise

import "errors"

// Error kinds surfaced by the handshake and cipher engine. Callers should
// compare with errors.Is; Decrypt is the only one expected in steady-state
// operation (a corrupt or replayed frame), the rest indicate caller misuse.
var (
	ErrInput       = errors.New("noise: buffer too small")
	ErrDecrypt     = errors.New("noise: decryption failed")
	ErrNotMyTurn   = errors.New("noise: handshake operation out of turn")
	ErrNeedUpgrade = errors.New("noise: handshake already complete, upgrade to transport")
)
