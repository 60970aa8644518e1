package client

import (
	"context"

	"github.com/oxidecomputer/spgw/wire"
)

// MostRecentHostPhase2Request returns the last unsolicited host phase-2
// data request the reactor observed, if any. The gateway keeps only the
// single most recent one, since the host only ever has one outstanding
// phase-2 fetch at a time.
func (c *Client) MostRecentHostPhase2Request(ctx context.Context) (*wire.HostPhase2DataRequest, error) {
	return c.handle.GetMostRecentHostPhase2Request(ctx)
}

// ClearMostRecentHostPhase2Request discards any recorded host phase-2
// request, so a stale one isn't mistaken for a fresh one.
func (c *Client) ClearMostRecentHostPhase2Request(ctx context.Context) error {
	return c.handle.ClearMostRecentHostPhase2Request(ctx)
}
