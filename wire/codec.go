package wire

import (
	"encoding/binary"
	"fmt"
)

// Message is the full envelope: a Header plus exactly one populated
// tagged-union payload selected by Kind.
type Message struct {
	Header   Header
	Kind     KindTag
	Request  MgsRequest
	Response SpResponse
	SpReqKind SpRequestKind
	Console  SerialConsoleFrame
	Phase2   HostPhase2DataRequest
}

// NewRequestMessage builds an MgsRequest envelope with the given message id.
func NewRequestMessage(messageID uint32, req MgsRequest) Message {
	return Message{
		Header:  Header{Version: CurrentVersion, MessageID: messageID},
		Kind:    KindMgsRequest,
		Request: req,
	}
}

// Serialize packs msg (with no trailing data) into buf, returning the
// number of bytes written. buf must be at least MaxSerializedSize long.
func Serialize(buf []byte, msg Message) (int, error) {
	n, _, err := serializeInto(buf, msg, nil)
	return n, err
}

// SerializeWithTrailingData packs msg into buf and then appends as many
// bytes of trailing as fit in the remainder of buf. It returns the total
// bytes written to buf and the number of trailing bytes consumed — the
// caller advances its own cursor by the latter. This mirrors the original's
// single serialization call that both measures and transmits available
// trailing capacity for streamed payloads like serial console writes and
// firmware chunks.
func SerializeWithTrailingData(buf []byte, msg Message, trailing []byte) (n int, consumed int) {
	n, consumed, err := serializeInto(buf, msg, trailing)
	if err != nil {
		// Only possible if buf itself is too small for the fixed header or
		// msg is not an MgsRequest; callers always pass a request and a
		// MaxSerializedSize buffer.
		panic(err)
	}
	return n, consumed
}

func serializeInto(buf []byte, msg Message, trailing []byte) (n int, consumed int, err error) {
	if len(buf) < HeaderLen+2 {
		return 0, 0, fmt.Errorf("wire: buffer too small")
	}
	off := msg.Header.pack(buf)
	buf[off] = uint8(msg.Kind)
	off++

	switch msg.Kind {
	case KindMgsRequest:
		buf[off] = uint8(msg.Request.Kind)
		off++
		off += packRequestFields(buf[off:], msg.Request)
	default:
		return 0, 0, fmt.Errorf("wire: serializing non-request message kinds is not supported by this core")
	}

	if trailing == nil {
		return off, 0, nil
	}

	room := len(buf) - off
	if room < 0 {
		room = 0
	}
	consumed = len(trailing)
	if consumed > room {
		consumed = room
	}
	off += copy(buf[off:], trailing[:consumed])
	return off, consumed, nil
}

// packRequestFields encodes the fields relevant to req.Kind and returns the
// number of bytes written. Only a fixed, small set of fields is ever
// meaningful for a given kind (see the MgsRequest doc comment).
func packRequestFields(buf []byte, req MgsRequest) int {
	switch req.Kind {
	case ReqIgnitionState, ReqIgnitionLinkEvents:
		buf[0] = req.Target
		return 1
	case ReqIgnitionCommand:
		buf[0] = req.Target
		buf[1] = uint8(req.IgnitionCmd)
		return 2
	case ReqClearIgnitionLinkEvents:
		n := 0
		hasTarget := req.ClearTarget != nil
		hasXcvr := req.ClearTransceiverSelect != nil
		buf[0] = boolByte(hasTarget)
		buf[1] = boolByte(hasXcvr)
		n = 2
		if hasTarget {
			buf[n] = *req.ClearTarget
			n++
		}
		if hasXcvr {
			buf[n] = uint8(*req.ClearTransceiverSelect)
			n++
		}
		return n
	case ReqBulkIgnitionState, ReqBulkIgnitionLinkEvents, ReqInventory:
		binary.BigEndian.PutUint32(buf[0:4], req.Offset)
		return 4
	case ReqComponentDetails:
		n := packComponent(buf, req.Component)
		binary.BigEndian.PutUint32(buf[n:n+4], req.Offset)
		return n + 4
	case ReqComponentGetActiveSlot, ReqComponentClearStatus:
		return packComponent(buf, req.Component)
	case ReqComponentSetActiveSlot:
		n := packComponent(buf, req.Component)
		binary.BigEndian.PutUint16(buf[n:n+2], req.Slot)
		return n + 2
	case ReqComponentSetAndPersistActiveSlot:
		n := packComponent(buf, req.Component)
		binary.BigEndian.PutUint16(buf[n:n+2], req.Slot)
		return n + 2
	case ReqSetStartupOptions:
		binary.BigEndian.PutUint64(buf[0:8], uint64(req.StartupOpts))
		return 8
	case ReqUpdateStart:
		n := packComponent(buf, req.Component)
		copy(buf[n:n+16], req.UpdateID[:])
		binary.BigEndian.PutUint16(buf[n+16:n+18], req.Slot)
		return n + 18
	case ReqUpdateChunk:
		n := packComponent(buf, req.Component)
		copy(buf[n:n+16], req.UpdateID[:])
		binary.BigEndian.PutUint64(buf[n+16:n+24], req.ChunkOffset)
		return n + 24
	case ReqUpdateStatus:
		return packComponent(buf, req.Component)
	case ReqUpdateAbort:
		n := packComponent(buf, req.Component)
		copy(buf[n:n+16], req.UpdateID[:])
		return n + 16
	case ReqSetPowerState:
		buf[0] = uint8(req.PowerState)
		return 1
	case ReqSerialConsoleAttach:
		return packComponent(buf, req.Component)
	case ReqSerialConsoleWrite:
		binary.BigEndian.PutUint64(buf[0:8], req.ConsoleOffset)
		return 8
	case ReqSetIpccKeyLookupValue:
		buf[0] = req.IpccKey
		return 1
	case ReqReadCaboose:
		copy(buf[0:4], req.CabooseKey[:])
		return 4
	case ReqReadComponentCaboose:
		n := packComponent(buf, req.Component)
		binary.BigEndian.PutUint16(buf[n:n+2], req.Slot)
		copy(buf[n+2:n+6], req.CabooseKey[:])
		return n + 6
	case ReqResetComponentPrepare, ReqResetComponentTrigger:
		return packComponent(buf, req.Component)
	case ReqComponentAction:
		n := packComponent(buf, req.Component)
		binary.BigEndian.PutUint32(buf[n:n+4], req.Action.Action)
		return n + 4
	case ReqDiscover, ReqSpState, ReqGetStartupOptions, ReqGetPowerState,
		ReqSerialConsoleKeepAlive, ReqSerialConsoleBreak, ReqSerialConsoleDetach,
		ReqSendHostNmi, ReqResetTrigger:
		return 0
	default:
		return 0
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// packComponent encodes an SpComponent as a length-prefixed string; the
// original wire format uses a fixed-width component id, but a
// length-prefixed string is the simplest faithful stand-in here.
func packComponent(buf []byte, c SpComponent) int {
	buf[0] = uint8(len(c.ID))
	copy(buf[1:], c.ID)
	return 1 + len(c.ID)
}

func unpackComponent(buf []byte) (SpComponent, []byte, error) {
	if len(buf) < 1 {
		return SpComponent{}, nil, fmt.Errorf("wire: truncated component")
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return SpComponent{}, nil, fmt.Errorf("wire: truncated component id")
	}
	return SpComponent{ID: string(buf[1 : 1+n])}, buf[1+n:], nil
}
