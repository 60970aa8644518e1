package wire

import (
	"encoding/binary"
	"fmt"
)

// DecodeMessage decodes a single datagram into a Message plus whatever
// trailing bytes follow the fixed fields (serial console / host phase-2
// payload bytes). It is the receive-side counterpart to Serialize /
// SerializeWithTrailingData.
func DecodeMessage(buf []byte) (Message, []byte, error) {
	hdr, rest, err := unpackHeader(buf)
	if err != nil {
		return Message{}, nil, err
	}
	if len(rest) < 1 {
		return Message{}, nil, fmt.Errorf("wire: truncated message kind")
	}
	kind := KindTag(rest[0])
	rest = rest[1:]

	msg := Message{Header: hdr, Kind: kind}

	switch kind {
	case KindSpResponse:
		resp, trailing, err := unpackResponse(rest)
		if err != nil {
			return Message{}, nil, err
		}
		msg.Response = resp
		return msg, trailing, nil
	case KindSpRequest:
		if len(rest) < 1 {
			return Message{}, nil, fmt.Errorf("wire: truncated sp-request kind")
		}
		msg.SpReqKind = SpRequestKind(rest[0])
		rest = rest[1:]
		switch msg.SpReqKind {
		case SpReqSerialConsole:
			comp, rest2, err := unpackComponent(rest)
			if err != nil {
				return Message{}, nil, err
			}
			if len(rest2) < 8 {
				return Message{}, nil, fmt.Errorf("wire: truncated serial console frame")
			}
			msg.Console = SerialConsoleFrame{
				Component: comp,
				Offset:    binary.BigEndian.Uint64(rest2[0:8]),
			}
			return msg, rest2[8:], nil
		case SpReqHostPhase2Data:
			if len(rest) < 40 {
				return Message{}, nil, fmt.Errorf("wire: truncated host phase2 request")
			}
			var hash [32]byte
			copy(hash[:], rest[0:32])
			msg.Phase2 = HostPhase2DataRequest{
				Hash:   hash,
				Offset: binary.BigEndian.Uint64(rest[32:40]),
			}
			return msg, rest[40:], nil
		default:
			return Message{}, nil, fmt.Errorf("wire: unknown sp-request kind %d", msg.SpReqKind)
		}
	default:
		return Message{}, nil, fmt.Errorf("wire: decoding message kind %d is not supported by this core", kind)
	}
}

func unpackResponse(buf []byte) (SpResponse, []byte, error) {
	if len(buf) < 1 {
		return SpResponse{}, nil, fmt.Errorf("wire: truncated response kind")
	}
	kind := ResponseKind(buf[0])
	buf = buf[1:]
	resp := SpResponse{Kind: kind}

	switch kind {
	case RespError:
		if len(buf) < 1 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated sp error code")
		}
		code := SpErrorCode(buf[0])
		msg, rest, err := unpackString(buf[1:])
		if err != nil {
			return SpResponse{}, nil, err
		}
		resp.Err = SpError{Code: code, Message: msg}
		return resp, rest, nil
	case RespDiscover:
		if len(buf) < 1 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated discover response")
		}
		resp.Discover = DiscoverResponse{SpPort: SpPort(buf[0])}
		return resp, buf[1:], nil
	case RespSpState:
		if len(buf) < 5 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated sp state")
		}
		version := binary.BigEndian.Uint32(buf[0:4])
		serial, rest, err := unpackString(buf[4:])
		if err != nil {
			return SpResponse{}, nil, err
		}
		model, rest, err := unpackString(rest)
		if err != nil {
			return SpResponse{}, nil, err
		}
		if len(rest) < 1 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated sp state power field")
		}
		resp.State = VersionedSpState{
			Version:      version,
			SerialNumber: serial,
			ModelNumber:  model,
			PowerState:   PowerState(rest[0]),
		}
		return resp, rest[1:], nil
	case RespInventory, RespComponentDetails, RespBulkIgnitionState, RespBulkIgnitionLinkEvents:
		if len(buf) < 8 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated tlv page header")
		}
		resp.Page = TlvPage{
			Offset: binary.BigEndian.Uint32(buf[0:4]),
			Total:  binary.BigEndian.Uint32(buf[4:8]),
		}
		return resp, buf[8:], nil
	case RespComponentActiveSlot:
		if len(buf) < 2 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated active slot")
		}
		resp.ActiveSlot = binary.BigEndian.Uint16(buf[0:2])
		return resp, buf[2:], nil
	case RespStartupOptions:
		if len(buf) < 8 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated startup options")
		}
		resp.StartupOpts = StartupOptions(binary.BigEndian.Uint64(buf[0:8]))
		return resp, buf[8:], nil
	case RespPowerState:
		if len(buf) < 1 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated power state")
		}
		resp.PowerState = PowerState(buf[0])
		return resp, buf[1:], nil
	case RespUpdateStatus:
		if len(buf) < 9 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated update status")
		}
		statusKind := UpdateStatusKind(buf[0])
		received := binary.BigEndian.Uint32(buf[1:5])
		total := binary.BigEndian.Uint32(buf[5:9])
		reason, rest, err := unpackString(buf[9:])
		if err != nil {
			return SpResponse{}, nil, err
		}
		resp.UpdateStatus = UpdateStatus{
			Kind:          statusKind,
			BytesReceived: received,
			TotalBytes:    total,
			FailureReason: reason,
		}
		return resp, rest, nil
	case RespSerialConsoleWriteAck:
		if len(buf) < 8 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated serial console write ack")
		}
		resp.ConsoleAccepted = binary.BigEndian.Uint64(buf[0:8])
		return resp, buf[8:], nil
	case RespClearIgnitionLinkEventsAck, RespIgnitionCommandAck, RespComponentSetActiveSlotAck,
		RespComponentSetAndPersistActiveSlotAck, RespComponentClearStatusAck, RespSetStartupOptionsAck,
		RespUpdateStartAck, RespUpdateChunkAck, RespUpdateAbortAck, RespSetPowerStateAck,
		RespSerialConsoleAttachAck, RespSerialConsoleKeepAliveAck, RespSerialConsoleBreakAck,
		RespSerialConsoleDetachAck, RespSendHostNmiAck, RespSetIpccKeyLookupValueAck,
		RespSysResetComponentPrepareAck, RespSysResetComponentTriggerAck, RespComponentActionAck:
		return resp, buf, nil
	case RespCabooseValue:
		value, rest, err := unpackString(buf)
		if err != nil {
			return SpResponse{}, nil, err
		}
		_ = value
		return resp, rest, nil
	case RespIgnitionState:
		if len(buf) < 3 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated ignition state")
		}
		resp.IgnitionSt = IgnitionState{Target: buf[0], Present: buf[1] != 0, PowerOn: buf[2] != 0}
		return resp, buf[3:], nil
	case RespIgnitionLinkEvents:
		if len(buf) < 3 {
			return SpResponse{}, nil, fmt.Errorf("wire: truncated ignition link events")
		}
		resp.LinkEv = LinkEvents{Target: buf[0], Controller: buf[1], System: buf[2]}
		return resp, buf[3:], nil
	default:
		return SpResponse{}, nil, fmt.Errorf("wire: unknown response kind %d", kind)
	}
}

func unpackString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("wire: truncated string length")
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, fmt.Errorf("wire: truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}
