// Package client is the public facade this core exposes to callers: a
// typed method per SP operation, each translating to one or more RPCs
// against the reactor it's bound to (paginated queries, chunked console
// writes and updates take several). The request building for paginated
// queries and updates lives in the spdevice and update packages.
package client

import (
	"context"

	"github.com/oxidecomputer/spgw/reactor"
	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/wire"
)

// Client is a handle to a single SP, backed by a running reactor.
type Client struct {
	handle *reactor.Handle
}

// New wraps a reactor.Handle as a Client. The reactor must already be
// running (via Reactor.Run) in its own goroutine.
func New(handle *reactor.Handle) *Client {
	return &Client{handle: handle}
}

func (c *Client) rpc(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, error) {
	resp, _, err := c.handle.Rpc(ctx, req)
	return resp, err
}

// IgnitionState fetches the ignition state of a single target.
func (c *Client) IgnitionState(ctx context.Context, target uint8) (wire.IgnitionState, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqIgnitionState, Target: target})
	if err != nil {
		return wire.IgnitionState{}, err
	}
	return resp.ExpectIgnitionState()
}

// IgnitionLinkEvents fetches link events for a single target.
func (c *Client) IgnitionLinkEvents(ctx context.Context, target uint8) (wire.LinkEvents, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqIgnitionLinkEvents, Target: target})
	if err != nil {
		return wire.LinkEvents{}, err
	}
	return resp.ExpectIgnitionLinkEvents()
}

// ClearIgnitionLinkEvents clears link events, optionally scoped to a
// target and/or a transceiver selection.
func (c *Client) ClearIgnitionLinkEvents(ctx context.Context, target *uint8, xcvr *wire.TransceiverSelect) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{
		Kind:                   wire.ReqClearIgnitionLinkEvents,
		ClearTarget:            target,
		ClearTransceiverSelect: xcvr,
	})
	if err != nil {
		return err
	}
	return resp.ExpectClearIgnitionLinkEventsAck()
}

// IgnitionCommand issues a power command to a target.
func (c *Client) IgnitionCommand(ctx context.Context, target uint8, cmd wire.IgnitionCommand) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqIgnitionCommand, Target: target, IgnitionCmd: cmd})
	if err != nil {
		return err
	}
	return resp.ExpectIgnitionCommandAck()
}

// State fetches the SP's own versioned state.
func (c *Client) State(ctx context.Context) (wire.VersionedSpState, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSpState})
	if err != nil {
		return wire.VersionedSpState{}, err
	}
	return resp.ExpectSpState()
}

// ComponentActiveSlot fetches the active firmware slot of component.
func (c *Client) ComponentActiveSlot(ctx context.Context, component wire.SpComponent) (uint16, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqComponentGetActiveSlot, Component: component})
	if err != nil {
		return 0, err
	}
	return resp.ExpectComponentActiveSlot()
}

// SetComponentActiveSlot sets the active firmware slot of component for
// the next boot only.
func (c *Client) SetComponentActiveSlot(ctx context.Context, component wire.SpComponent, slot uint16) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqComponentSetActiveSlot, Component: component, Slot: slot})
	if err != nil {
		return err
	}
	return resp.ExpectComponentSetActiveSlotAck()
}

// SetAndPersistComponentActiveSlot sets the active firmware slot of
// component, persisting across reboots.
func (c *Client) SetAndPersistComponentActiveSlot(ctx context.Context, component wire.SpComponent, slot uint16) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqComponentSetAndPersistActiveSlot, Component: component, Slot: slot})
	if err != nil {
		return err
	}
	return resp.ExpectComponentSetAndPersistActiveSlotAck()
}

// ComponentClearStatus clears latched error/status state for component.
func (c *Client) ComponentClearStatus(ctx context.Context, component wire.SpComponent) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqComponentClearStatus, Component: component})
	if err != nil {
		return err
	}
	return resp.ExpectComponentClearStatusAck()
}

// GetStartupOptions fetches the sled's current startup option bitfield.
func (c *Client) GetStartupOptions(ctx context.Context) (wire.StartupOptions, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqGetStartupOptions})
	if err != nil {
		return 0, err
	}
	return resp.ExpectStartupOptions()
}

// SetStartupOptions overwrites the sled's startup option bitfield.
func (c *Client) SetStartupOptions(ctx context.Context, opts wire.StartupOptions) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSetStartupOptions, StartupOpts: opts})
	if err != nil {
		return err
	}
	return resp.ExpectSetStartupOptionsAck()
}

// PowerState fetches the sled's current power state.
func (c *Client) PowerState(ctx context.Context) (wire.PowerState, error) {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqGetPowerState})
	if err != nil {
		return 0, err
	}
	return resp.ExpectPowerState()
}

// SetPowerState requests a transition to state.
func (c *Client) SetPowerState(ctx context.Context, state wire.PowerState) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSetPowerState, PowerState: state})
	if err != nil {
		return err
	}
	return resp.ExpectSetPowerStateAck()
}

// SendHostNmi asks the SP to deliver an NMI to the host CPU.
func (c *Client) SendHostNmi(ctx context.Context) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqSendHostNmi})
	if err != nil {
		return err
	}
	return resp.ExpectSendHostNmiAck()
}

// SetIpccKeyLookupValue pre-seeds the IPCC key/value the host will query
// for key. data must fit within wire.MinTrailingDataLen.
func (c *Client) SetIpccKeyLookupValue(ctx context.Context, key uint8, data []byte) error {
	if len(data) > wire.MinTrailingDataLen {
		return sperrors.ErrIpccValueTooLarge
	}
	resp, consumed, err := c.handle.RpcWithTrailingData(ctx, wire.MgsRequest{Kind: wire.ReqSetIpccKeyLookupValue, IpccKey: key}, data)
	if err != nil {
		return err
	}
	if consumed != len(data) {
		return sperrors.ErrIpccValueTooLarge
	}
	return resp.ExpectSetIpccKeyLookupValueAck()
}

// GetCabooseValue reads a single caboose entry from the SP's own image.
func (c *Client) GetCabooseValue(ctx context.Context, key [4]byte) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqReadCaboose, CabooseKey: key})
	if err != nil {
		return err
	}
	return resp.ExpectCabooseValue()
}

// ReadComponentCaboose reads a single caboose entry from component's
// image at slot.
func (c *Client) ReadComponentCaboose(ctx context.Context, component wire.SpComponent, slot uint16, key [4]byte) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqReadComponentCaboose, Component: component, Slot: slot, CabooseKey: key})
	if err != nil {
		return err
	}
	return resp.ExpectCabooseValue()
}

// ResetComponentPrepare arms a subsequent ResetComponentTrigger for
// component.
func (c *Client) ResetComponentPrepare(ctx context.Context, component wire.SpComponent) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqResetComponentPrepare, Component: component})
	if err != nil {
		return err
	}
	return resp.ExpectSysResetComponentPrepareAck()
}

// ResetComponentTrigger fires a previously armed reset of component. When
// component is wire.SPItself, the SP resetting itself means it can never
// actually acknowledge the trigger RPC — any ack is treated as a protocol
// violation, and ResetComponentTriggerWithoutPrepare (the SP noticing it
// was never armed) is treated as success, since from the caller's
// perspective the SP is about to reset either way.
func (c *Client) ResetComponentTrigger(ctx context.Context, component wire.SpComponent) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqResetComponentTrigger, Component: component})
	if component == wire.SPItself {
		if spErr, ok := sperrors.AsSpError(err); ok && spErr.Code == wire.SpErrorResetComponentTriggerWithoutPrepare {
			return nil
		}
		if err == nil {
			return &wire.ErrBadResponseType{Expected: "no response (sp resetting itself)", Got: resp.Name()}
		}
		return err
	}
	if err != nil {
		return err
	}
	return resp.ExpectSysResetComponentTriggerAck()
}

// ResetTrigger fires a whole-sled reset that was previously prepared via
// ResetComponentPrepare(SPItself). It is a distinct wire operation from
// ResetComponentTrigger(SPItself), carrying no component field of its own,
// but shares the same never-acked semantics: the SP resetting itself means
// it can never actually acknowledge the trigger RPC.
func (c *Client) ResetTrigger(ctx context.Context) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqResetTrigger})
	if spErr, ok := sperrors.AsSpError(err); ok && spErr.Code == wire.SpErrorResetComponentTriggerWithoutPrepare {
		return nil
	}
	if err == nil {
		return &wire.ErrBadResponseType{Expected: "no response (sp resetting itself)", Got: resp.Name()}
	}
	return err
}

// ComponentAction issues an opaque component-specific action.
func (c *Client) ComponentAction(ctx context.Context, component wire.SpComponent, action wire.ComponentAction) error {
	resp, err := c.rpc(ctx, wire.MgsRequest{Kind: wire.ReqComponentAction, Component: component, Action: action})
	if err != nil {
		return err
	}
	return resp.ExpectComponentActionAck()
}
