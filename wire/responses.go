package wire

import "fmt"

// ResponseKind discriminates the SpResponse tagged union.
type ResponseKind uint8

const (
	RespError ResponseKind = iota
	RespDiscover
	RespIgnitionState
	RespBulkIgnitionState
	RespIgnitionLinkEvents
	RespBulkIgnitionLinkEvents
	RespClearIgnitionLinkEventsAck
	RespIgnitionCommandAck
	RespSpState
	RespInventory
	RespComponentDetails
	RespComponentActiveSlot
	RespComponentSetActiveSlotAck
	RespComponentSetAndPersistActiveSlotAck
	RespComponentClearStatusAck
	RespStartupOptions
	RespSetStartupOptionsAck
	RespUpdateStartAck
	RespUpdateChunkAck
	RespUpdateAbortAck
	RespUpdateStatus
	RespPowerState
	RespSetPowerStateAck
	RespSerialConsoleAttachAck
	RespSerialConsoleWriteAck
	RespSerialConsoleKeepAliveAck
	RespSerialConsoleBreakAck
	RespSerialConsoleDetachAck
	RespSendHostNmiAck
	RespSetIpccKeyLookupValueAck
	RespCabooseValue
	RespSysResetComponentPrepareAck
	RespSysResetComponentTriggerAck
	RespComponentActionAck
)

// SpErrorCode enumerates the error variants an SP can report.
type SpErrorCode uint8

const (
	SpErrorBusy SpErrorCode = iota
	SpErrorResetComponentTriggerWithoutPrepare
	SpErrorSerialConsoleAlreadyAttached
	SpErrorInvalidSlotForComponent
	SpErrorRequestUnsupportedForComponent
	SpErrorOther
)

func (c SpErrorCode) String() string {
	switch c {
	case SpErrorBusy:
		return "busy"
	case SpErrorResetComponentTriggerWithoutPrepare:
		return "reset-component-trigger-without-prepare"
	case SpErrorSerialConsoleAlreadyAttached:
		return "serial-console-already-attached"
	case SpErrorInvalidSlotForComponent:
		return "invalid-slot-for-component"
	case SpErrorRequestUnsupportedForComponent:
		return "request-unsupported-for-component"
	default:
		return "other"
	}
}

// SpError is the SP-reported error payload of RespError.
type SpError struct {
	Code    SpErrorCode
	Message string
}

func (e SpError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sp error: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("sp error: %s", e.Code)
}

// DeviceCapabilities is a bitfield describing what an inventory device
// supports.
type DeviceCapabilities uint32

// DevicePresence reports whether an inventory device is physically present.
type DevicePresence uint8

const (
	DevicePresent DevicePresence = iota
	DeviceNotPresent
	DevicePresenceUnavailable
	DevicePresenceFailed
)

// UpdateStatusKind discriminates UpdateStatus.
type UpdateStatusKind uint8

const (
	UpdateStatusNone UpdateStatusKind = iota
	UpdateStatusPreparing
	UpdateStatusInProgress
	UpdateStatusComplete
	UpdateStatusAborted
	UpdateStatusFailed
)

// UpdateStatus reports the state of an in-progress or completed update.
type UpdateStatus struct {
	Kind            UpdateStatusKind
	BytesReceived   uint32
	TotalBytes      uint32
	FailureReason   string
}

// VersionedSpState is the decoded payload of RespSpState.
type VersionedSpState struct {
	Version        uint32
	SerialNumber   string
	ModelNumber    string
	PowerState     PowerState
}

// DiscoverResponse is the decoded payload of RespDiscover.
type DiscoverResponse struct {
	SpPort SpPort
}

// TlvPage is the page header every paginated response begins with.
type TlvPage struct {
	Offset uint32
	Total  uint32
}

// SpResponse is the tagged union of every response variant this core
// receives.
type SpResponse struct {
	Kind ResponseKind

	Err             SpError
	Discover        DiscoverResponse
	State           VersionedSpState
	Page            TlvPage
	ActiveSlot      uint16
	StartupOpts     StartupOptions
	PowerState      PowerState
	UpdateStatus    UpdateStatus
	ConsoleAccepted uint64
	IgnitionSt      IgnitionState
	LinkEv          LinkEvents
}

func (r SpResponse) Name() string {
	switch r.Kind {
	case RespError:
		return "error"
	default:
		return fmt.Sprintf("response-kind-%d", r.Kind)
	}
}

func badResponseType(expected string, got SpResponse) error {
	return &ErrBadResponseType{Expected: expected, Got: got.Name()}
}

// ErrBadResponseType is returned by an expect* accessor when the SP's
// response variant does not match what the caller asked for.
type ErrBadResponseType struct {
	Expected string
	Got      string
}

func (e *ErrBadResponseType) Error() string {
	return fmt.Sprintf("unexpected SP response: expected %s, got %s", e.Expected, e.Got)
}

// AsError returns the SP error carried by this response, if any.
func (r SpResponse) AsError() (SpError, bool) {
	if r.Kind == RespError {
		return r.Err, true
	}
	return SpError{}, false
}

func (r SpResponse) ExpectDiscover() (DiscoverResponse, error) {
	if r.Kind != RespDiscover {
		return DiscoverResponse{}, badResponseType("discover", r)
	}
	return r.Discover, nil
}

func (r SpResponse) ExpectSpState() (VersionedSpState, error) {
	if r.Kind != RespSpState {
		return VersionedSpState{}, badResponseType("sp-state", r)
	}
	return r.State, nil
}

func (r SpResponse) ExpectInventory() (TlvPage, error) {
	if r.Kind != RespInventory {
		return TlvPage{}, badResponseType("inventory", r)
	}
	return r.Page, nil
}

func (r SpResponse) ExpectComponentDetails() (TlvPage, error) {
	if r.Kind != RespComponentDetails {
		return TlvPage{}, badResponseType("component-details", r)
	}
	return r.Page, nil
}

func (r SpResponse) ExpectBulkIgnitionState() (TlvPage, error) {
	if r.Kind != RespBulkIgnitionState {
		return TlvPage{}, badResponseType("bulk-ignition-state", r)
	}
	return r.Page, nil
}

func (r SpResponse) ExpectBulkIgnitionLinkEvents() (TlvPage, error) {
	if r.Kind != RespBulkIgnitionLinkEvents {
		return TlvPage{}, badResponseType("bulk-ignition-link-events", r)
	}
	return r.Page, nil
}

func (r SpResponse) ExpectComponentActiveSlot() (uint16, error) {
	if r.Kind != RespComponentActiveSlot {
		return 0, badResponseType("component-active-slot", r)
	}
	return r.ActiveSlot, nil
}

func (r SpResponse) ExpectStartupOptions() (StartupOptions, error) {
	if r.Kind != RespStartupOptions {
		return 0, badResponseType("startup-options", r)
	}
	return r.StartupOpts, nil
}

func (r SpResponse) ExpectPowerState() (PowerState, error) {
	if r.Kind != RespPowerState {
		return 0, badResponseType("power-state", r)
	}
	return r.PowerState, nil
}

func (r SpResponse) ExpectUpdateStatus() (UpdateStatus, error) {
	if r.Kind != RespUpdateStatus {
		return UpdateStatus{}, badResponseType("update-status", r)
	}
	return r.UpdateStatus, nil
}

func (r SpResponse) ExpectIgnitionState() (IgnitionState, error) {
	if r.Kind != RespIgnitionState {
		return IgnitionState{}, badResponseType("ignition-state", r)
	}
	return r.IgnitionSt, nil
}

func (r SpResponse) ExpectIgnitionLinkEvents() (LinkEvents, error) {
	if r.Kind != RespIgnitionLinkEvents {
		return LinkEvents{}, badResponseType("ignition-link-events", r)
	}
	return r.LinkEv, nil
}

func (r SpResponse) ExpectSerialConsoleWriteAck() (uint64, error) {
	if r.Kind != RespSerialConsoleWriteAck {
		return 0, badResponseType("serial-console-write-ack", r)
	}
	return r.ConsoleAccepted, nil
}

// expectAck is shared by every bare-acknowledgement response kind.
func (r SpResponse) expectAck(kind ResponseKind, name string) error {
	if r.Kind != kind {
		return badResponseType(name, r)
	}
	return nil
}

func (r SpResponse) ExpectClearIgnitionLinkEventsAck() error {
	return r.expectAck(RespClearIgnitionLinkEventsAck, "clear-ignition-link-events-ack")
}
func (r SpResponse) ExpectIgnitionCommandAck() error {
	return r.expectAck(RespIgnitionCommandAck, "ignition-command-ack")
}
func (r SpResponse) ExpectComponentSetActiveSlotAck() error {
	return r.expectAck(RespComponentSetActiveSlotAck, "component-set-active-slot-ack")
}
func (r SpResponse) ExpectComponentSetAndPersistActiveSlotAck() error {
	return r.expectAck(RespComponentSetAndPersistActiveSlotAck, "component-set-and-persist-active-slot-ack")
}
func (r SpResponse) ExpectComponentClearStatusAck() error {
	return r.expectAck(RespComponentClearStatusAck, "component-clear-status-ack")
}
func (r SpResponse) ExpectSetStartupOptionsAck() error {
	return r.expectAck(RespSetStartupOptionsAck, "set-startup-options-ack")
}
func (r SpResponse) ExpectUpdateAbortAck() error {
	return r.expectAck(RespUpdateAbortAck, "update-abort-ack")
}
func (r SpResponse) ExpectUpdateStartAck() error {
	return r.expectAck(RespUpdateStartAck, "update-start-ack")
}
func (r SpResponse) ExpectUpdateChunkAck() error {
	return r.expectAck(RespUpdateChunkAck, "update-chunk-ack")
}
func (r SpResponse) ExpectSetPowerStateAck() error {
	return r.expectAck(RespSetPowerStateAck, "set-power-state-ack")
}
func (r SpResponse) ExpectSerialConsoleAttachAck() error {
	return r.expectAck(RespSerialConsoleAttachAck, "serial-console-attach-ack")
}
func (r SpResponse) ExpectSerialConsoleKeepAliveAck() error {
	return r.expectAck(RespSerialConsoleKeepAliveAck, "serial-console-keepalive-ack")
}
func (r SpResponse) ExpectSerialConsoleBreakAck() error {
	return r.expectAck(RespSerialConsoleBreakAck, "serial-console-break-ack")
}
func (r SpResponse) ExpectSerialConsoleDetachAck() error {
	return r.expectAck(RespSerialConsoleDetachAck, "serial-console-detach-ack")
}
func (r SpResponse) ExpectSendHostNmiAck() error {
	return r.expectAck(RespSendHostNmiAck, "send-host-nmi-ack")
}
func (r SpResponse) ExpectSetIpccKeyLookupValueAck() error {
	return r.expectAck(RespSetIpccKeyLookupValueAck, "set-ipcc-key-lookup-value-ack")
}
func (r SpResponse) ExpectSysResetComponentPrepareAck() error {
	return r.expectAck(RespSysResetComponentPrepareAck, "sys-reset-component-prepare-ack")
}
func (r SpResponse) ExpectSysResetComponentTriggerAck() error {
	return r.expectAck(RespSysResetComponentTriggerAck, "sys-reset-component-trigger-ack")
}
func (r SpResponse) ExpectComponentActionAck() error {
	return r.expectAck(RespComponentActionAck, "component-action-ack")
}

func (r SpResponse) ExpectCabooseValue() error {
	return r.expectAck(RespCabooseValue, "caboose-value")
}
