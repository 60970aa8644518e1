// Package spdevice implements the paginate.Query adapters for the four
// bulk TLV-paginated queries this core supports: inventory, per-component
// details, bulk ignition state, and bulk ignition link events.
package spdevice

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/oxidecomputer/spgw/paginate"
	"github.com/oxidecomputer/spgw/wire"
)

// Device is one fully decoded inventory entry.
type Device struct {
	Component    wire.SpComponent
	Device       string
	Description  string
	Capabilities wire.DeviceCapabilities
	Presence     wire.DevicePresence
}

// InventoryQuery adapts the Inventory RPC to paginate.Collect.
type InventoryQuery struct{}

func (InventoryQuery) Request(offset uint32) wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqInventory, Offset: offset}
}

func (InventoryQuery) ParseResponse(resp wire.SpResponse) (wire.TlvPage, error) {
	return resp.ExpectInventory()
}

func (InventoryQuery) ParseItem(tag wire.Tag, value []byte) (Device, bool, error) {
	if tag != wire.TagDeviceDescriptionHeader {
		return Device{}, false, nil
	}
	dev, err := decodeDevice(value)
	if err != nil {
		return Device{}, false, err
	}
	return dev, true, nil
}

// decodeDevice parses a TagDeviceDescriptionHeader TLV value: a
// component id (length-prefixed string), fixed header fields, then the
// device and description strings concatenated back to back.
func decodeDevice(value []byte) (Device, error) {
	comp, rest, err := unpackComponentID(value)
	if err != nil {
		return Device{}, err
	}
	const fixedLen = 2 + 2 + 4 + 1
	if len(rest) < fixedLen {
		return Device{}, fmt.Errorf("spdevice: truncated device description header")
	}
	header := wire.DeviceDescriptionHeader{
		Component:      comp,
		DeviceLen:      binary.BigEndian.Uint16(rest[0:2]),
		DescriptionLen: binary.BigEndian.Uint16(rest[2:4]),
		Capabilities:   wire.DeviceCapabilities(binary.BigEndian.Uint32(rest[4:8])),
		Presence:       wire.DevicePresence(rest[8]),
	}
	rest = rest[fixedLen:]

	// Check the two lengths against what's actually left before slicing:
	// the strings must fill the rest of the value exactly, so a corrupt or
	// adversarial header can't be used to read past the end of the
	// datagram or to hide extra bytes after the strings.
	deviceLen := int(header.DeviceLen)
	descLen := int(header.DescriptionLen)
	total := deviceLen + descLen
	if total < deviceLen || total < descLen {
		return Device{}, fmt.Errorf("spdevice: device/description length overflow")
	}
	if len(rest) < total {
		return Device{}, fmt.Errorf("spdevice: truncated device/description strings")
	}
	if len(rest) > total {
		return Device{}, fmt.Errorf("spdevice: %d unexpected bytes after device/description strings", len(rest)-total)
	}

	deviceBytes := rest[:deviceLen]
	descBytes := rest[deviceLen : deviceLen+descLen]
	if !utf8.Valid(deviceBytes) {
		return Device{}, fmt.Errorf("spdevice: device name is not valid utf-8")
	}
	if !utf8.Valid(descBytes) {
		return Device{}, fmt.Errorf("spdevice: description is not valid utf-8")
	}

	return Device{
		Component:    header.Component,
		Device:       string(deviceBytes),
		Description:  string(descBytes),
		Capabilities: header.Capabilities,
		Presence:     header.Presence,
	}, nil
}

func unpackComponentID(buf []byte) (wire.SpComponent, []byte, error) {
	if len(buf) < 1 {
		return wire.SpComponent{}, nil, fmt.Errorf("spdevice: truncated component id")
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return wire.SpComponent{}, nil, fmt.Errorf("spdevice: truncated component id body")
	}
	return wire.SpComponent{ID: string(buf[1 : 1+n])}, buf[1+n:], nil
}

// ComponentDetailsQuery adapts the ComponentDetails RPC to paginate.Collect
// for a single, already-known component.
type ComponentDetailsQuery struct {
	Component wire.SpComponent
}

func (q ComponentDetailsQuery) Request(offset uint32) wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqComponentDetails, Component: q.Component, Offset: offset}
}

func (ComponentDetailsQuery) ParseResponse(resp wire.SpResponse) (wire.TlvPage, error) {
	return resp.ExpectComponentDetails()
}

func (ComponentDetailsQuery) ParseItem(tag wire.Tag, value []byte) (wire.ComponentDetails, bool, error) {
	switch tag {
	case wire.TagPortStatus:
		ps, err := decodePortStatus(value)
		if err != nil {
			return wire.ComponentDetails{}, false, err
		}
		return wire.ComponentDetails{IsPortStatus: true, PortStatus: ps}, true, nil
	case wire.TagMeasurementHeader:
		m, err := decodeMeasurement(value)
		if err != nil {
			return wire.ComponentDetails{}, false, err
		}
		return wire.ComponentDetails{Measurement: m}, true, nil
	default:
		return wire.ComponentDetails{}, false, nil
	}
}

func decodePortStatus(value []byte) (wire.PortStatus, error) {
	if len(value) < 4 {
		return wire.PortStatus{}, fmt.Errorf("spdevice: truncated port status")
	}
	port := value[0]
	up := value[1] != 0
	errLen := int(binary.BigEndian.Uint16(value[2:4]))
	rest := value[4:]
	if len(rest) < errLen {
		return wire.PortStatus{}, fmt.Errorf("spdevice: truncated port status error string")
	}
	errBytes := rest[:errLen]
	if !utf8.Valid(errBytes) {
		return wire.PortStatus{}, fmt.Errorf("spdevice: port status error string is not valid utf-8")
	}
	return wire.PortStatus{Port: port, Up: up, Error: string(errBytes)}, nil
}

func decodeMeasurement(value []byte) (wire.Measurement, error) {
	const fixedLen = 2 + 1 + 4
	if len(value) < fixedLen {
		return wire.Measurement{}, fmt.Errorf("spdevice: truncated measurement header")
	}
	header := wire.MeasurementHeader{
		NameLength: binary.BigEndian.Uint16(value[0:2]),
		Kind:       value[2],
		Value:      math.Float32frombits(binary.BigEndian.Uint32(value[3:7])),
	}
	nameLen := int(header.NameLength)
	rest := value[fixedLen:]
	if len(rest) < nameLen {
		return wire.Measurement{}, fmt.Errorf("spdevice: truncated measurement name")
	}
	nameBytes := rest[:nameLen]
	if !utf8.Valid(nameBytes) {
		return wire.Measurement{}, fmt.Errorf("spdevice: measurement name is not valid utf-8")
	}
	return wire.Measurement{Name: string(nameBytes), Kind: header.Kind, Value: header.Value}, nil
}

// BulkIgnitionStateQuery adapts the BulkIgnitionState RPC to
// paginate.Collect.
type BulkIgnitionStateQuery struct{}

func (BulkIgnitionStateQuery) Request(offset uint32) wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqBulkIgnitionState, Offset: offset}
}

func (BulkIgnitionStateQuery) ParseResponse(resp wire.SpResponse) (wire.TlvPage, error) {
	return resp.ExpectBulkIgnitionState()
}

func (BulkIgnitionStateQuery) ParseItem(tag wire.Tag, value []byte) (wire.IgnitionState, bool, error) {
	if tag != wire.TagIgnitionState {
		return wire.IgnitionState{}, false, nil
	}
	if len(value) < 3 {
		return wire.IgnitionState{}, false, fmt.Errorf("spdevice: truncated ignition state")
	}
	return wire.IgnitionState{
		Target:  value[0],
		Present: value[1] != 0,
		PowerOn: value[2] != 0,
	}, true, nil
}

// BulkIgnitionLinkEventsQuery adapts the BulkIgnitionLinkEvents RPC to
// paginate.Collect.
type BulkIgnitionLinkEventsQuery struct{}

func (BulkIgnitionLinkEventsQuery) Request(offset uint32) wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqBulkIgnitionLinkEvents, Offset: offset}
}

func (BulkIgnitionLinkEventsQuery) ParseResponse(resp wire.SpResponse) (wire.TlvPage, error) {
	return resp.ExpectBulkIgnitionLinkEvents()
}

func (BulkIgnitionLinkEventsQuery) ParseItem(tag wire.Tag, value []byte) (wire.LinkEvents, bool, error) {
	if tag != wire.TagLinkEvents {
		return wire.LinkEvents{}, false, nil
	}
	if len(value) < 3 {
		return wire.LinkEvents{}, false, fmt.Errorf("spdevice: truncated link events")
	}
	return wire.LinkEvents{
		Target:     value[0],
		Controller: value[1],
		System:     value[2],
	}, true, nil
}

var _ paginate.Query[Device] = InventoryQuery{}
var _ paginate.Query[wire.ComponentDetails] = ComponentDetailsQuery{}
var _ paginate.Query[wire.IgnitionState] = BulkIgnitionStateQuery{}
var _ paginate.Query[wire.LinkEvents] = BulkIgnitionLinkEventsQuery{}
