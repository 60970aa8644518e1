package wire

import (
	"encoding/binary"
	"fmt"
)

// Tag discriminates a TLV triple's value type.
type Tag uint8

const (
	TagDeviceDescriptionHeader Tag = iota
	TagIgnitionState
	TagLinkEvents
	TagPortStatus
	TagMeasurementHeader
)

func (t Tag) String() string {
	switch t {
	case TagDeviceDescriptionHeader:
		return "device-description-header"
	case TagIgnitionState:
		return "ignition-state"
	case TagLinkEvents:
		return "link-events"
	case TagPortStatus:
		return "port-status"
	case TagMeasurementHeader:
		return "measurement-header"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// tlvTriple is one length-prefixed (tag, value) pair as it appears on the
// wire: 1 byte tag, 2 byte big-endian length, then that many value bytes.
type tlvTriple struct {
	Tag   Tag
	Value []byte
}

// DecodeTLV splits a byte slice into successive TLV triples, returning an
// error on any malformed (truncated) triple. It does not interpret values;
// callers are responsible for calling a per-tag parser.
func DecodeTLV(data []byte) ([]tlvTriple, error) {
	var out []tlvTriple
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, fmt.Errorf("wire: truncated TLV triple header")
		}
		tag := Tag(data[0])
		length := binary.BigEndian.Uint16(data[1:3])
		data = data[3:]
		if int(length) > len(data) {
			return nil, fmt.Errorf("wire: truncated TLV value for tag %s (want %d, have %d)", tag, length, len(data))
		}
		out = append(out, tlvTriple{Tag: tag, Value: data[:length]})
		data = data[length:]
	}
	return out, nil
}

// DeviceDescriptionHeader precedes a device's concatenated (device,
// description) UTF-8 strings in an inventory TLV entry.
type DeviceDescriptionHeader struct {
	Component       SpComponent
	DeviceLen       uint16
	DescriptionLen  uint16
	Capabilities    DeviceCapabilities
	Presence        DevicePresence
}

// IgnitionState is the decoded payload of a TagIgnitionState TLV entry.
type IgnitionState struct {
	Target  uint8
	Present bool
	PowerOn bool
}

// LinkEvents is the decoded payload of a TagLinkEvents TLV entry.
type LinkEvents struct {
	Target     uint8
	Controller uint8
	System     uint8
}

// PortStatus is the decoded payload of a TagPortStatus component-details
// TLV entry.
type PortStatus struct {
	Port  uint8
	Up    bool
	Error string
}

// MeasurementHeader precedes a measurement's UTF-8 name suffix in a
// component-details TLV entry.
type MeasurementHeader struct {
	NameLength uint16
	Kind       uint8
	Value      float32
}

// Measurement is a fully decoded component-details measurement entry.
type Measurement struct {
	Name  string
	Kind  uint8
	Value float32
}

// ComponentDetails is the decoded payload of one component-details TLV
// entry: either a PortStatus or a Measurement.
type ComponentDetails struct {
	IsPortStatus bool
	PortStatus   PortStatus
	Measurement  Measurement
}
