package wire

// SpRequestKind discriminates the MessageKind::SpRequest tagged union: the
// two kinds of unsolicited, out-of-band message an SP sends outside of any
// RPC reply.
type SpRequestKind uint8

const (
	SpReqSerialConsole SpRequestKind = iota
	SpReqHostPhase2Data
)

// SerialConsoleFrame is the decoded payload of an SpRequest::SerialConsole
// message: a relayed chunk of console output at a given stream offset.
type SerialConsoleFrame struct {
	Component SpComponent
	Offset    uint64
}

// HostPhase2DataRequest is the decoded payload of an
// SpRequest::HostPhase2Data message: the host, via the SP, asking the
// gateway for a chunk of its boot image.
type HostPhase2DataRequest struct {
	Hash   [32]byte
	Offset uint64
}
