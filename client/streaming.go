package client

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/wire"
)

// SerialConsoleAttach begins relaying console traffic for component,
// returning a send half and a receive half that can be used and closed
// independently (e.g. from two different goroutines).
func (c *Client) SerialConsoleAttach(ctx context.Context, component wire.SpComponent) (*AttachedSerialConsoleSend, *AttachedSerialConsoleRecv, error) {
	key, rx, err := c.handle.SerialConsoleAttach(ctx, component)
	if err != nil {
		return nil, nil, err
	}
	send := &AttachedSerialConsoleSend{key: key, client: c}
	recv := &AttachedSerialConsoleRecv{key: key, rx: rx}
	return send, recv, nil
}

// AttachedSerialConsoleSend is the write half of an attached console
// session: outgoing keystrokes, breaks, and keepalives.
type AttachedSerialConsoleSend struct {
	key      uint64
	txOffset uint64
	client   *Client
}

// Write streams data to the console, splitting it into as many
// packet-sized chunks as needed and honoring partial acknowledgement: if
// the SP accepts fewer bytes than were sent in a chunk, the unaccepted
// suffix is resent as part of the next chunk rather than dropped.
func (s *AttachedSerialConsoleSend) Write(ctx context.Context, data []byte) (int, error) {
	cursor := bytes.NewReader(data)
	written := 0

	for cursor.Len() > 0 {
		chunkLen := cursor.Len()
		if chunkLen > wire.MinTrailingDataLen {
			chunkLen = wire.MinTrailingDataLen
		}
		chunk := make([]byte, chunkLen)
		n, _ := cursor.Read(chunk)
		chunk = chunk[:n]

		resp, consumed, err := s.client.handle.RpcWithTrailingData(ctx,
			wire.MgsRequest{Kind: wire.ReqSerialConsoleWrite, ConsoleOffset: s.txOffset}, chunk)
		if err != nil {
			return written, err
		}
		accepted, err := resp.ExpectSerialConsoleWriteAck()
		if err != nil {
			return written, err
		}
		if accepted < s.txOffset || accepted > s.txOffset+uint64(consumed) {
			return written, fmt.Errorf("client: sp acknowledged an offset outside the sent range (sent up to %d, acked %d): %w", s.txOffset+uint64(consumed), accepted, sperrors.ErrBogusSerialConsoleState)
		}

		acceptedThisChunk := accepted - s.txOffset
		rewind := int64(consumed) - int64(acceptedThisChunk)
		if rewind > 0 {
			if _, err := cursor.Seek(-rewind, io.SeekCurrent); err != nil {
				return written, err
			}
		}

		s.txOffset = accepted
		written += int(acceptedThisChunk)
	}

	return written, nil
}

// KeepAlive pings the console session so the SP doesn't time it out.
func (s *AttachedSerialConsoleSend) KeepAlive(ctx context.Context) error {
	resp, err := s.client.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSerialConsoleKeepAlive})
	if err != nil {
		return err
	}
	return resp.ExpectSerialConsoleKeepAliveAck()
}

// SendBreak sends a serial break condition.
func (s *AttachedSerialConsoleSend) SendBreak(ctx context.Context) error {
	resp, err := s.client.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSerialConsoleBreak})
	if err != nil {
		return err
	}
	return resp.ExpectSerialConsoleBreakAck()
}

// Detach ends the console session.
func (s *AttachedSerialConsoleSend) Detach(ctx context.Context) error {
	return s.client.handle.SerialConsoleDetach(ctx, s.key)
}

// AttachedSerialConsoleRecv is the read half of an attached console
// session: relayed SP output.
type AttachedSerialConsoleRecv struct {
	key      uint64
	rxOffset uint64
	rx       <-chan reactor.ConsoleDelivery
}

// Recv blocks for the next chunk of console output, or returns an error if
// ctx is done or the session has been detached.
func (r *AttachedSerialConsoleRecv) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-r.rx:
		if !ok {
			return nil, sperrors.ErrSerialConsoleDetached
		}
		if frame.Offset != r.rxOffset {
			// A gap means the reactor dropped frames (receiver fell behind);
			// resync to what the SP says is current rather than erroring.
		}
		r.rxOffset = frame.Offset + uint64(len(frame.Data))
		return frame.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
