// Package sperrors collects the error taxonomy shared by every layer of the
// gateway core: transport failures, RPC exhaustion, SP-reported errors, and
// the consistency failures the TLV paginator can detect.
package sperrors

import (
	"errors"
	"fmt"

	"github.com/oxidecomputer/spgw/wire"
)

// ErrNoSpDiscovered is returned by any RPC attempted before the reactor has
// completed its initial discovery handshake.
var ErrNoSpDiscovered = errors.New("sperrors: no SP discovered yet")

// ErrSerialConsoleAlreadyAttached is returned by SerialConsoleAttach when a
// console session already owns the connection.
var ErrSerialConsoleAlreadyAttached = errors.New("sperrors: serial console already attached")

// ErrSerialConsoleDetached is returned by a console session's Recv once the
// session has been detached and its receive channel closed.
var ErrSerialConsoleDetached = errors.New("sperrors: serial console detached")

// ErrShuttingDown is returned to every command still queued when the
// reactor's context is canceled.
var ErrShuttingDown = errors.New("sperrors: reactor is shutting down")

// ErrBogusSerialConsoleState reports serial console state that cannot be
// right: the reactor's internal detach was asked to tear down a session
// under a connection key that does not match the attached one, or a
// console write was acknowledged with an offset outside the range sent.
var ErrBogusSerialConsoleState = errors.New("sperrors: bogus serial console state")

// ErrEmptyImage is returned by StartUpdate when the caller supplies a
// zero-length image.
var ErrEmptyImage = errors.New("sperrors: update image is empty")

// ErrInvalidSlotForComponent is returned when a slot number is out of range
// for the addressed component (e.g. a nonzero slot for the SP itself).
var ErrInvalidSlotForComponent = errors.New("sperrors: invalid slot for component")

// ErrIpccValueTooLarge is returned when an IPCC key-lookup value exceeds the
// single-packet trailing-data budget.
var ErrIpccValueTooLarge = errors.New("sperrors: ipcc value exceeds trailing data budget")

// ErrAttemptTimedOut means a single RPC attempt's per-attempt timer fired
// before a matching response arrived.
var ErrAttemptTimedOut = errors.New("sperrors: rpc attempt timed out")

// ErrStaleMessageID means a single RPC attempt received a response bearing
// a message id other than the one it sent, and was ignored.
var ErrStaleMessageID = errors.New("sperrors: received response for a stale message id")

// ErrTooManyItems is returned by the TLV paginator when the SP's first page
// reports a total exceeding the DoS cap.
type ErrTooManyItems struct {
	Limit   uint32
	Total   uint32
}

func (e *ErrTooManyItems) Error() string {
	return fmt.Sprintf("sperrors: sp reported %d items, exceeding limit of %d", e.Total, e.Limit)
}

// ErrUnexpectedOffset is returned when a page's offset does not equal the
// number of items collected so far.
type ErrUnexpectedOffset struct {
	Want uint32
	Got  uint32
}

func (e *ErrUnexpectedOffset) Error() string {
	return fmt.Sprintf("sperrors: unexpected page offset (want %d, got %d)", e.Want, e.Got)
}

// ErrTotalChanged is returned when successive pages of the same query report
// different totals.
type ErrTotalChanged struct {
	First uint32
	Later uint32
}

func (e *ErrTotalChanged) Error() string {
	return fmt.Sprintf("sperrors: sp reported total changed mid-query (%d then %d)", e.First, e.Later)
}

// ErrOverReported is returned when the SP has delivered more items than it
// originally claimed as the total.
type ErrOverReported struct {
	Total     uint32
	Collected uint32
}

func (e *ErrOverReported) Error() string {
	return fmt.Sprintf("sperrors: sp delivered %d items but reported a total of %d", e.Collected, e.Total)
}

// ErrNoProgress is returned when a page reports a nonzero total but yields
// no recognized items, and the paginator cannot distinguish "done" from
// "stuck" (e.g. an SP emitting only unknown tags forever).
type ErrNoProgress struct {
	Offset uint32
	Total  uint32
}

func (e *ErrNoProgress) Error() string {
	return fmt.Sprintf("sperrors: page at offset %d made no progress toward reported total %d", e.Offset, e.Total)
}

// ErrTLVDeserialize wraps a failure to parse a single TLV entry's value.
type ErrTLVDeserialize struct {
	Tag wire.Tag
	Err error
}

func (e *ErrTLVDeserialize) Error() string {
	return fmt.Sprintf("sperrors: failed to deserialize %s entry: %v", e.Tag, e.Err)
}

func (e *ErrTLVDeserialize) Unwrap() error { return e.Err }

// ErrExhaustedAttempts is returned by rpcCall when every retry attempt
// failed (timed out or was answered by a stale message id) without ever
// producing a usable response.
type ErrExhaustedAttempts struct {
	Attempts int
	Last     error
}

func (e *ErrExhaustedAttempts) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("sperrors: exhausted %d attempts, last error: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("sperrors: exhausted %d attempts", e.Attempts)
}

func (e *ErrExhaustedAttempts) Unwrap() error { return e.Last }

// AsSpError extracts the SP-reported error from err, if any layer of it is
// one.
func AsSpError(err error) (wire.SpError, bool) {
	var spErr wire.SpError
	if errors.As(err, &spErr) {
		return spErr, true
	}
	return wire.SpError{}, false
}
