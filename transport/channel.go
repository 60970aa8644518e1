package transport

import (
	"context"
)

// ChannelSocket is a Socket test double backed by Go channels, standing in
// for a real UDP connection in reactor tests. Sent packets are captured
// verbatim on Sent for assertions; Deliver (from the test goroutine) queues
// pre-built Inbound values for the reactor to receive, so tests never need a
// byte-accurate wire codec round trip.
type ChannelSocket struct {
	sent   chan []byte
	inbox  chan Inbound
	closed chan struct{}
}

// NewChannelSocket builds a ChannelSocket with the given inbox depth.
func NewChannelSocket(inboxDepth int) *ChannelSocket {
	return &ChannelSocket{
		sent:   make(chan []byte, 64),
		inbox:  make(chan Inbound, inboxDepth),
		closed: make(chan struct{}),
	}
}

// Deliver queues an Inbound value as if it had just arrived on the wire.
// It blocks if the inbox is full, simulating backpressure.
func (c *ChannelSocket) Deliver(in Inbound) {
	select {
	case c.inbox <- in:
	case <-c.closed:
	}
}

// Sent returns the channel of raw packets handed to Send, for test
// assertions about what the reactor transmitted.
func (c *ChannelSocket) Sent() <-chan []byte { return c.sent }

func (c *ChannelSocket) Send(ctx context.Context, packet []byte) error {
	cp := make([]byte, len(packet))
	copy(cp, packet)
	select {
	case c.sent <- cp:
		return nil
	case <-c.closed:
		return &NetworkError{Operation: "send datagram", Err: errClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChannelSocket) Recv(ctx context.Context) (Inbound, error) {
	select {
	case in := <-c.inbox:
		return in, nil
	case <-c.closed:
		return Inbound{}, &NetworkError{Operation: "receive datagram", Err: errClosed}
	case <-ctx.Done():
		return Inbound{}, ctx.Err()
	}
}

func (c *ChannelSocket) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

var errClosed = channelClosedError("channel socket closed")

type channelClosedError string

func (e channelClosedError) Error() string { return string(e) }
