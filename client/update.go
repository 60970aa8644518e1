package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxidecomputer/spgw/update"
	"github.com/oxidecomputer/spgw/wire"
)

// StartUpdate delivers image to component's update slot under updateID,
// blocking until every chunk is acknowledged.
func (c *Client) StartUpdate(ctx context.Context, component wire.SpComponent, updateID uuid.UUID, slot uint16, image []byte) error {
	return update.Start(ctx, c.handle, component, updateID, slot, image)
}

// UpdateStatus fetches the current update status for component.
func (c *Client) UpdateStatus(ctx context.Context, component wire.SpComponent) (wire.UpdateStatus, error) {
	return update.Status(ctx, c.handle, component)
}

// UpdateAbort cancels an in-progress update on component.
func (c *Client) UpdateAbort(ctx context.Context, component wire.SpComponent, updateID uuid.UUID) error {
	return update.Abort(ctx, c.handle, component, updateID)
}
