// Package update drives firmware update delivery to the SP: starting an
// update, streaming the image in chunks, polling status, and aborting.
// It sits at the same layer as client, operating directly on a
// reactor.Handle so client's update methods are thin dispatchers.
package update

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/wire"
)

// chunkBudget is how many image bytes we try to stream per UpdateChunk
// RPC; the wire layer may accept fewer per call depending on header
// overhead, and Start follows whatever SerializeWithTrailingData actually
// consumed.
const chunkBudget = wire.MinTrailingDataLen

// Start delivers image to component's update slot under updateID. It does
// not return until every chunk has been acknowledged: there is no
// background streaming task here, since the reactor already serializes one
// logical operation at a time the way the rest of this core does.
func Start(ctx context.Context, handle *reactor.Handle, component wire.SpComponent, updateID uuid.UUID, slot uint16, image []byte) error {
	if len(image) == 0 {
		return sperrors.ErrEmptyImage
	}
	if component == wire.SPItself && slot != 0 {
		return sperrors.ErrInvalidSlotForComponent
	}

	id := [16]byte(updateID)

	resp, err := handle.Rpc(ctx, wire.MgsRequest{
		Kind:      wire.ReqUpdateStart,
		Component: component,
		Slot:      slot,
		UpdateID:  id,
	})
	if err != nil {
		return err
	}
	if err := resp.ExpectUpdateStartAck(); err != nil {
		return err
	}

	offset := uint64(0)
	for offset < uint64(len(image)) {
		end := offset + chunkBudget
		if end > uint64(len(image)) {
			end = uint64(len(image))
		}

		resp, consumed, err := handle.RpcWithTrailingData(ctx, wire.MgsRequest{
			Kind:        wire.ReqUpdateChunk,
			Component:   component,
			UpdateID:    id,
			ChunkOffset: offset,
		}, image[offset:end])
		if err != nil {
			return err
		}
		if err := resp.ExpectUpdateChunkAck(); err != nil {
			return err
		}
		offset += uint64(consumed)
	}

	return nil
}

// Status fetches the current update status for component.
func Status(ctx context.Context, handle *reactor.Handle, component wire.SpComponent) (wire.UpdateStatus, error) {
	resp, _, err := handle.Rpc(ctx, wire.MgsRequest{Kind: wire.ReqUpdateStatus, Component: component})
	if err != nil {
		return wire.UpdateStatus{}, err
	}
	return resp.ExpectUpdateStatus()
}

// Abort cancels an in-progress update on component.
func Abort(ctx context.Context, handle *reactor.Handle, component wire.SpComponent, updateID uuid.UUID) error {
	resp, _, err := handle.Rpc(ctx, wire.MgsRequest{
		Kind:      wire.ReqUpdateAbort,
		Component: component,
		UpdateID:  [16]byte(updateID),
	})
	if err != nil {
		return err
	}
	return resp.ExpectUpdateAbortAck()
}
