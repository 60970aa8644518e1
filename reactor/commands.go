package reactor

import (
	"context"

	"github.com/oxidecomputer/spgw/wire"
)

// command is the reactor's work-item type: a closure-bearing value queued
// on Handle.cmds and executed on the reactor's own goroutine. It stands in
// for the original's InnerCommand enum — Go has no sum type, but does have
// first-class functions, so each command kind is its own small type rather
// than one struct with every variant's fields.
type command interface {
	run(ctx context.Context, r *Reactor)
	fail(err error)
}

// rpcReply is what every plain RPC command resolves to.
type rpcReply struct {
	resp     wire.SpResponse
	trailing []byte
	consumed int
	err      error
}

type rpcCommand struct {
	req      wire.MgsRequest
	outgoing []byte
	reply    chan rpcReply
}

func (c *rpcCommand) run(ctx context.Context, r *Reactor) {
	resp, trailing, consumed, err := r.rpcCallConsuming(ctx, c.req, c.outgoing)
	c.reply <- rpcReply{resp: resp, trailing: trailing, consumed: consumed, err: err}
}

func (c *rpcCommand) fail(err error) {
	c.reply <- rpcReply{err: err}
}

// Rpc sends req (with no outgoing trailing data) and waits for the SP's
// response.
func (h *Handle) Rpc(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
	cmd := &rpcCommand{req: req, reply: make(chan rpcReply, 1)}
	if err := h.enqueue(ctx, cmd); err != nil {
		return wire.SpResponse{}, nil, err
	}
	reply := <-cmd.reply
	return reply.resp, reply.trailing, reply.err
}

// RpcWithTrailingData sends req plus as much of outgoing as fits in one
// datagram, returning the response and how many bytes of outgoing were
// actually sent (the caller's cursor advances by exactly that much).
func (h *Handle) RpcWithTrailingData(ctx context.Context, req wire.MgsRequest, outgoing []byte) (wire.SpResponse, int, error) {
	cmd := &rpcCommand{req: req, outgoing: outgoing, reply: make(chan rpcReply, 1)}
	if err := h.enqueue(ctx, cmd); err != nil {
		return wire.SpResponse{}, 0, err
	}
	reply := <-cmd.reply
	return reply.resp, reply.consumed, reply.err
}

// attachReply is what a serial console attach resolves to.
type attachReply struct {
	key   uint64
	rx    <-chan ConsoleDelivery
	ackResp wire.SpResponse
	err   error
}

type attachCommand struct {
	component wire.SpComponent
	reply     chan attachReply
}

func (c *attachCommand) run(ctx context.Context, r *Reactor) {
	key, rx, err := r.attachSerialConsole(c.component)
	if err != nil {
		c.reply <- attachReply{err: err}
		return
	}
	resp, _, rpcErr := r.rpcCallConsuming(ctx, wire.MgsRequest{Kind: wire.ReqSerialConsoleAttach, Component: c.component}, nil)
	if rpcErr != nil {
		_ = r.detachSerialConsole(&key)
		c.reply <- attachReply{err: rpcErr}
		return
	}
	if ackErr := resp.ExpectSerialConsoleAttachAck(); ackErr != nil {
		_ = r.detachSerialConsole(&key)
		c.reply <- attachReply{err: ackErr}
		return
	}
	c.reply <- attachReply{key: key, rx: rx, ackResp: resp}
}

func (c *attachCommand) fail(err error) { c.reply <- attachReply{err: err} }

// SerialConsoleAttach attaches console relaying for component, returning a
// connection key (used by Write/Detach/KeepAlive) and a receive channel for
// inbound console bytes.
func (h *Handle) SerialConsoleAttach(ctx context.Context, component wire.SpComponent) (uint64, <-chan ConsoleDelivery, error) {
	cmd := &attachCommand{component: component, reply: make(chan attachReply, 1)}
	if err := h.enqueue(ctx, cmd); err != nil {
		return 0, nil, err
	}
	reply := <-cmd.reply
	return reply.key, reply.rx, reply.err
}

type detachCommand struct {
	key   uint64
	reply chan error
}

func (c *detachCommand) run(ctx context.Context, r *Reactor) {
	if r.console.attached && c.key != r.console.key {
		// A stale key from an earlier session: leave the current session
		// alone and succeed without sending anything to the SP.
		c.reply <- nil
		return
	}
	err := r.detachSerialConsole(&c.key)
	if err == nil {
		_, _, rpcErr := r.rpcCallConsuming(ctx, wire.MgsRequest{Kind: wire.ReqSerialConsoleDetach}, nil)
		if rpcErr != nil {
			r.log.WithError(rpcErr).Debug("serial console detach ack failed, session already torn down locally")
		}
	}
	c.reply <- err
}

func (c *detachCommand) fail(err error) { c.reply <- err }

// SerialConsoleDetach ends the session identified by key. A key that does
// not match the attached session is treated as stale: the call succeeds and
// the attached session is left as it is.
func (h *Handle) SerialConsoleDetach(ctx context.Context, key uint64) error {
	cmd := &detachCommand{key: key, reply: make(chan error, 1)}
	if err := h.enqueue(ctx, cmd); err != nil {
		return err
	}
	return <-cmd.reply
}

// phase2Reply is what GetMostRecentHostPhase2Request resolves to.
type phase2Reply struct {
	req *wire.HostPhase2DataRequest
}

type getPhase2Command struct {
	reply chan phase2Reply
}

func (c *getPhase2Command) run(ctx context.Context, r *Reactor) {
	c.reply <- phase2Reply{req: r.mostRecentPhase2}
}

func (c *getPhase2Command) fail(err error) { c.reply <- phase2Reply{} }

// GetMostRecentHostPhase2Request returns the last host phase-2 data request
// observed, if any.
func (h *Handle) GetMostRecentHostPhase2Request(ctx context.Context) (*wire.HostPhase2DataRequest, error) {
	cmd := &getPhase2Command{reply: make(chan phase2Reply, 1)}
	if err := h.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	reply := <-cmd.reply
	return reply.req, nil
}

type clearPhase2Command struct {
	done chan struct{}
}

func (c *clearPhase2Command) run(ctx context.Context, r *Reactor) {
	r.mostRecentPhase2 = nil
	close(c.done)
}

func (c *clearPhase2Command) fail(err error) { close(c.done) }

// ClearMostRecentHostPhase2Request discards any recorded host phase-2
// request.
func (h *Handle) ClearMostRecentHostPhase2Request(ctx context.Context) error {
	cmd := &clearPhase2Command{done: make(chan struct{})}
	if err := h.enqueue(ctx, cmd); err != nil {
		return err
	}
	<-cmd.done
	return nil
}

// enqueue submits cmd to the reactor, giving up only if ctx is done; it
// does not detect a reactor that has stopped running.
func (h *Handle) enqueue(ctx context.Context, cmd command) error {
	select {
	case h.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
