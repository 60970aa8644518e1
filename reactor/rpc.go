package reactor

import (
	"context"
	"time"

	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/spbackoff"
	"github.com/oxidecomputer/spgw/transport"
	"github.com/oxidecomputer/spgw/wire"
)

// isSelfReset reports whether req triggers the gateway's own SP to reset,
// which gets an inflated attempt budget since the SP may go briefly silent
// mid-reboot.
func isSelfReset(req wire.MgsRequest) bool {
	if req.Kind == wire.ReqResetTrigger {
		return true
	}
	return req.Kind == wire.ReqResetComponentTrigger && req.Component == wire.SPItself
}

// rpcCall performs one logical RPC: it stamps a single message id, then
// retries rpcCallOneAttempt up to the call's attempt budget. outgoing is
// optional trailing data to append to the request (e.g. a serial console
// or firmware chunk). rpcCall drops the count of outgoing bytes that fit in
// the datagram; rpcCallConsuming returns it as consumed.
func (r *Reactor) rpcCall(ctx context.Context, req wire.MgsRequest, outgoing []byte) (resp wire.SpResponse, trailing []byte, err error) {
	resp, trailing, _, err = r.rpcCallConsuming(ctx, req, outgoing)
	return resp, trailing, err
}

func (r *Reactor) rpcCallConsuming(ctx context.Context, req wire.MgsRequest, outgoing []byte) (resp wire.SpResponse, trailing []byte, consumed int, err error) {
	id := r.nextMessageID()

	buf := make([]byte, wire.MaxSerializedSize)
	msg := wire.NewRequestMessage(id, req)
	var n int
	if outgoing != nil {
		n, consumed = wire.SerializeWithTrailingData(buf, msg, outgoing)
	} else {
		n, err = wire.Serialize(buf, msg)
		if err != nil {
			return wire.SpResponse{}, nil, 0, err
		}
	}
	packet := buf[:n]

	maxAttempts := r.cfg.MaxAttempts
	if isSelfReset(req) {
		maxAttempts = spbackoff.SelfResetAttempts(r.cfg.PerAttemptTimeout)
	}

	start := time.Now()
	kind := req.Kind.String()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		got, ok, retryReason, aerr := r.rpcCallOneAttempt(ctx, packet, id)
		if aerr != nil {
			r.hooks.RpcAttempt(kind, "error")
			r.hooks.RpcCallFinished(kind, time.Since(start))
			return wire.SpResponse{}, nil, consumed, aerr
		}
		if ok {
			if spErr, isErr := got.AsError(); isErr {
				r.hooks.RpcAttempt(kind, "sp-error")
				r.hooks.RpcCallFinished(kind, time.Since(start))
				return wire.SpResponse{}, nil, consumed, spErr
			}
			r.hooks.RpcAttempt(kind, "success")
			r.hooks.RpcCallFinished(kind, time.Since(start))
			return got, r.lastResponseTrailing, consumed, nil
		}
		r.hooks.RpcAttempt(kind, "retry")
		lastErr = retryReason
	}
	r.hooks.RpcExhausted()
	r.hooks.RpcCallFinished(kind, time.Since(start))
	return wire.SpResponse{}, nil, consumed, &sperrors.ErrExhaustedAttempts{Attempts: maxAttempts, Last: lastErr}
}

// rpcCallOneAttempt sends packet and waits up to r.cfg.PerAttemptTimeout
// for the matching response, absorbing SpError{Busy} via backoff (which
// does not consume attempt budget) and forwarding any unsolicited serial
// console or host phase-2 messages that arrive meanwhile without resetting
// the attempt's deadline. ok=false, err=nil means this attempt failed
// (timeout, or a response for a stale message id) and the caller should
// try the next attempt; retryReason explains why, for diagnostics on final
// exhaustion, and is not itself fatal.
func (r *Reactor) rpcCallOneAttempt(ctx context.Context, packet []byte, expectedID uint32) (resp wire.SpResponse, ok bool, retryReason error, err error) {
	busy := spbackoff.BusyPolicy()
	timer := time.NewTimer(r.cfg.PerAttemptTimeout)
	defer timer.Stop()

	send := true
	for {
		if send {
			if err := r.socket.Send(ctx, packet); err != nil {
				return wire.SpResponse{}, false, nil, err
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.cfg.PerAttemptTimeout)
			send = false
		}

		select {
		case <-ctx.Done():
			return wire.SpResponse{}, false, nil, ctx.Err()

		case in := <-r.inbound:
			switch in.Kind {
			case transport.InboundHostPhase2Request:
				r.setMostRecentHostPhase2Request(in.Phase2)
				continue
			case transport.InboundSerialConsole:
				r.forwardSerialConsole(in)
				continue
			case transport.InboundSpResponse:
				if in.MessageID != expectedID {
					r.log.WithFields(logFields{"got": in.MessageID, "want": expectedID}).Warn("received SP response for unexpected message id")
					return wire.SpResponse{}, false, sperrors.ErrStaleMessageID, nil
				}
				if spErr, isBusy := in.Response.AsError(); isBusy && spErr.Code == wire.SpErrorBusy {
					r.hooks.SpBusy()
					wait := busy.NextBackOff()
					if wait < 0 {
						// MaxElapsedTime is unbounded for busy absorption; this
						// should be unreachable, but never dead-loop on a
						// negative duration if the policy ever changes.
						wait = r.cfg.PerAttemptTimeout
					}
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return wire.SpResponse{}, false, nil, ctx.Err()
					}
					send = true
					continue
				}
				r.lastResponseTrailing = in.ResponseTrailing
				return in.Response, true, nil, nil
			}

		case <-timer.C:
			return wire.SpResponse{}, false, sperrors.ErrAttemptTimedOut, nil
		}
	}
}

// logFields is a tiny alias so this file doesn't need to import logrus
// just for a map literal type.
type logFields = map[string]interface{}
