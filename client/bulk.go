package client

import (
	"context"

	"github.com/oxidecomputer/spgw/paginate"
	"github.com/oxidecomputer/spgw/spdevice"
	"github.com/oxidecomputer/spgw/wire"
)

// Inventory fetches the full list of devices the SP knows about, paging
// through the TLV protocol as many times as the SP requires.
func (c *Client) Inventory(ctx context.Context) ([]spdevice.Device, error) {
	return paginate.Collect[spdevice.Device](ctx, spdevice.InventoryQuery{}, c.handle.Rpc)
}

// ComponentDetails fetches the full list of port-status and measurement
// entries for a single component.
func (c *Client) ComponentDetails(ctx context.Context, component wire.SpComponent) ([]wire.ComponentDetails, error) {
	return paginate.Collect[wire.ComponentDetails](ctx, spdevice.ComponentDetailsQuery{Component: component}, c.handle.Rpc)
}

// BulkIgnitionState fetches ignition state for every target at once.
func (c *Client) BulkIgnitionState(ctx context.Context) ([]wire.IgnitionState, error) {
	return paginate.Collect[wire.IgnitionState](ctx, spdevice.BulkIgnitionStateQuery{}, c.handle.Rpc)
}

// BulkIgnitionLinkEvents fetches link events for every target at once.
func (c *Client) BulkIgnitionLinkEvents(ctx context.Context) ([]wire.LinkEvents, error) {
	return paginate.Collect[wire.LinkEvents](ctx, spdevice.BulkIgnitionLinkEventsQuery{}, c.handle.Rpc)
}
