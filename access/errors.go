/* SPDX-License-Identifier: MIT */

package access

import "errors"

// ErrIO marks storage faults. Store wraps it with %w so callers can match
// it with errors.Is while still seeing the underlying failure.
var ErrIO = errors.New("access: storage fault")
