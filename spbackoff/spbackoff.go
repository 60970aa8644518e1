// Package spbackoff holds the retry and backoff policy for RPCs to the SP:
// how many attempts a call gets, and how long to wait out an SP-busy
// response without spending one of them.
package spbackoff

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// selfResetWallClockTarget is how long a self-reset operation (resetting
// the gateway's own SP) is allowed to keep retrying: long enough that the
// SP's own reboot doesn't get interpreted as a failed RPC.
const selfResetWallClockTarget = 30 * time.Second

// BusyPolicy returns the exponential backoff schedule used while waiting
// out an SpError{Busy} response within a single RPC attempt. Time spent
// sleeping here does not consume the attempt budget — it is purely absorbed
// inside rpcCallOneAttempt's per-attempt deadline.
func BusyPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.Multiplier = 2.0
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 0 // unbounded: absorb busy responses indefinitely
	return b
}

// DefaultMaxAttempts is the attempt budget for an ordinary RPC.
const DefaultMaxAttempts = 5

// SelfResetAttempts computes the inflated attempt budget given to
// operations that trigger the gateway's own SP to reset itself. The SP may
// stop answering mid-reboot for up to selfResetWallClockTarget; rather than
// pick an attempt count by hand, it is derived from the per-attempt
// timeout so the aggregate retry window stays roughly constant regardless
// of how that timeout is configured.
func SelfResetAttempts(perAttemptTimeout time.Duration) int {
	ms := perAttemptTimeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	target := selfResetWallClockTarget.Milliseconds()
	return int((target + ms - 1) / ms) // ceil(target/ms)
}
