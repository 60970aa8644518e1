// Package transport abstracts the single IPv6/UDP socket a reactor owns,
// following the same Send/Receive/Close shape used elsewhere in the example
// corpus for UDP-based protocols, but narrowed to this core's one-SP, one-
// peer, no-multicast model.
package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/oxidecomputer/spgw/wire"
)

// InboundKind discriminates what kind of message a Socket delivered.
type InboundKind uint8

const (
	// InboundSpResponse is a reply to an outstanding RPC.
	InboundSpResponse InboundKind = iota
	// InboundSerialConsole is unsolicited relayed console output.
	InboundSerialConsole
	// InboundHostPhase2Request is the SP, on the host's behalf, asking for a
	// chunk of the host's boot image.
	InboundHostPhase2Request
)

// Inbound is everything a Socket can hand back from Recv: a discriminant
// plus the superset of payloads each kind may carry, mirroring wire.Message's
// tagged-union-as-struct pattern.
type Inbound struct {
	Kind InboundKind

	MessageID uint32
	Response  wire.SpResponse
	// ResponseTrailing carries the raw TLV bytes that follow an
	// InboundSpResponse's fixed fields, for paginated-query responses.
	ResponseTrailing []byte
	Console          wire.SerialConsoleFrame
	ConsoleData      []byte
	Phase2           wire.HostPhase2DataRequest
}

// Socket is the one UDP peer connection a reactor owns. The reactor calls
// Send from its own goroutine and Recv from its receive pump goroutine, so
// implementations must allow one Send and one Recv to run concurrently.
type Socket interface {
	// Send transmits a fully-packed datagram to the SP.
	Send(ctx context.Context, packet []byte) error
	// Recv blocks until the next inbound message is available or ctx is
	// done.
	Recv(ctx context.Context) (Inbound, error)
	// Close releases the underlying file descriptor.
	Close() error
}

// NetworkError wraps a low-level socket failure with the operation that
// produced it, following the corpus convention of naming the failing step
// rather than just propagating the raw net error.
type NetworkError struct {
	Operation string
	Addr      net.Addr
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Addr != nil {
		return fmt.Sprintf("transport: %s to %s: %v", e.Operation, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
