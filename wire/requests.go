package wire

import "fmt"

// RequestKind discriminates the MgsRequest tagged union.
type RequestKind uint8

const (
	ReqDiscover RequestKind = iota
	ReqIgnitionState
	ReqBulkIgnitionState
	ReqIgnitionLinkEvents
	ReqBulkIgnitionLinkEvents
	ReqClearIgnitionLinkEvents
	ReqIgnitionCommand
	ReqSpState
	ReqInventory
	ReqComponentDetails
	ReqComponentGetActiveSlot
	ReqComponentSetActiveSlot
	ReqComponentSetAndPersistActiveSlot
	ReqComponentClearStatus
	ReqGetStartupOptions
	ReqSetStartupOptions
	ReqUpdateStart
	ReqUpdateChunk
	ReqUpdateStatus
	ReqUpdateAbort
	ReqGetPowerState
	ReqSetPowerState
	ReqSerialConsoleAttach
	ReqSerialConsoleWrite
	ReqSerialConsoleKeepAlive
	ReqSerialConsoleBreak
	ReqSerialConsoleDetach
	ReqSendHostNmi
	ReqSetIpccKeyLookupValue
	ReqReadCaboose
	ReqReadComponentCaboose
	ReqResetComponentPrepare
	ReqResetComponentTrigger
	ReqResetTrigger
	ReqComponentAction
)

func (k RequestKind) String() string {
	switch k {
	case ReqDiscover:
		return "Discover"
	case ReqIgnitionState:
		return "IgnitionState"
	case ReqBulkIgnitionState:
		return "BulkIgnitionState"
	case ReqIgnitionLinkEvents:
		return "IgnitionLinkEvents"
	case ReqBulkIgnitionLinkEvents:
		return "BulkIgnitionLinkEvents"
	case ReqClearIgnitionLinkEvents:
		return "ClearIgnitionLinkEvents"
	case ReqIgnitionCommand:
		return "IgnitionCommand"
	case ReqSpState:
		return "SpState"
	case ReqInventory:
		return "Inventory"
	case ReqComponentDetails:
		return "ComponentDetails"
	case ReqComponentGetActiveSlot:
		return "ComponentGetActiveSlot"
	case ReqComponentSetActiveSlot:
		return "ComponentSetActiveSlot"
	case ReqComponentSetAndPersistActiveSlot:
		return "ComponentSetAndPersistActiveSlot"
	case ReqComponentClearStatus:
		return "ComponentClearStatus"
	case ReqGetStartupOptions:
		return "GetStartupOptions"
	case ReqSetStartupOptions:
		return "SetStartupOptions"
	case ReqUpdateStart:
		return "UpdateStart"
	case ReqUpdateChunk:
		return "UpdateChunk"
	case ReqUpdateStatus:
		return "UpdateStatus"
	case ReqUpdateAbort:
		return "UpdateAbort"
	case ReqGetPowerState:
		return "GetPowerState"
	case ReqSetPowerState:
		return "SetPowerState"
	case ReqSerialConsoleAttach:
		return "SerialConsoleAttach"
	case ReqSerialConsoleWrite:
		return "SerialConsoleWrite"
	case ReqSerialConsoleKeepAlive:
		return "SerialConsoleKeepAlive"
	case ReqSerialConsoleBreak:
		return "SerialConsoleBreak"
	case ReqSerialConsoleDetach:
		return "SerialConsoleDetach"
	case ReqSendHostNmi:
		return "SendHostNmi"
	case ReqSetIpccKeyLookupValue:
		return "SetIpccKeyLookupValue"
	case ReqReadCaboose:
		return "ReadCaboose"
	case ReqReadComponentCaboose:
		return "ReadComponentCaboose"
	case ReqResetComponentPrepare:
		return "ResetComponentPrepare"
	case ReqResetComponentTrigger:
		return "ResetComponentTrigger"
	case ReqResetTrigger:
		return "ResetTrigger"
	case ReqComponentAction:
		return "ComponentAction"
	default:
		return fmt.Sprintf("RequestKind(%d)", k)
	}
}

// TransceiverSelect restricts clear-link-events to a subset of ignition
// transceivers.
type TransceiverSelect uint8

const (
	TransceiverController TransceiverSelect = iota
	TransceiverSystem
)

// IgnitionCommand is the command payload of ReqIgnitionCommand.
type IgnitionCommand uint8

const (
	IgnitionCommandPowerOn IgnitionCommand = iota
	IgnitionCommandPowerOff
	IgnitionCommandPowerReset
)

// PowerState is the value carried by GetPowerState/SetPowerState.
type PowerState uint8

const (
	PowerStateA0 PowerState = iota
	PowerStateA1
	PowerStateA2
)

// StartupOptions is a bitfield of sled startup behaviors.
type StartupOptions uint64

// ComponentAction is an opaque per-component action payload.
type ComponentAction struct {
	Action uint32
}

// MgsRequest is the tagged union of every request variant this core emits.
// A Go struct-with-discriminant stands in for the Rust enum; only the
// fields relevant to Kind are populated.
type MgsRequest struct {
	Kind RequestKind

	Target                 uint8              // IgnitionState, IgnitionLinkEvents, IgnitionCommand
	IgnitionCmd            IgnitionCommand    // IgnitionCommand
	ClearTarget            *uint8             // ClearIgnitionLinkEvents
	ClearTransceiverSelect *TransceiverSelect // ClearIgnitionLinkEvents
	Offset                 uint32             // BulkIgnitionState, BulkIgnitionLinkEvents, Inventory, ComponentDetails
	Component              SpComponent        // ComponentDetails, ComponentGetActiveSlot, ComponentSetActiveSlot, ComponentSetAndPersistActiveSlot, ComponentClearStatus, UpdateStart, UpdateChunk, UpdateStatus, UpdateAbort, SerialConsoleAttach, ReadComponentCaboose, ResetComponentPrepare, ResetComponentTrigger, ComponentAction
	Slot                   uint16             // ComponentSetActiveSlot, ComponentSetAndPersistActiveSlot, UpdateStart, ReadComponentCaboose
	StartupOpts            StartupOptions     // SetStartupOptions
	UpdateID               [16]byte           // UpdateStart, UpdateChunk, UpdateAbort
	PowerState             PowerState         // SetPowerState
	ConsoleOffset          uint64             // SerialConsoleWrite
	ChunkOffset            uint64             // UpdateChunk
	IpccKey                uint8              // SetIpccKeyLookupValue
	CabooseKey             [4]byte            // ReadCaboose, ReadComponentCaboose
	Action                 ComponentAction    // ComponentAction
}
