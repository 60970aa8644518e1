package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeDiscoverRequest(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	msg := NewRequestMessage(7, MgsRequest{Kind: ReqDiscover})
	n, err := Serialize(buf, msg)
	require.NoError(t, err)
	require.Equal(t, HeaderLen+2, n)
	require.Equal(t, CurrentVersion, buf[0])
	require.Equal(t, uint8(KindMgsRequest), buf[HeaderLen])
	require.Equal(t, uint8(ReqDiscover), buf[HeaderLen+1])
}

func TestSerializeComponentSetActiveSlot(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	req := MgsRequest{
		Kind:      ReqComponentSetActiveSlot,
		Component: SpComponent{ID: "sp3"},
		Slot:      2,
	}
	msg := NewRequestMessage(1, req)
	n, err := Serialize(buf, msg)
	require.NoError(t, err)
	require.Greater(t, n, HeaderLen+2)
}

func TestSerializeWithTrailingDataConsumesWhatFits(t *testing.T) {
	buf := make([]byte, HeaderLen+2+8+4) // header + kind + req-kind + offset(8) + room for 4 bytes trailing
	req := MgsRequest{Kind: ReqSerialConsoleWrite, ConsoleOffset: 128}
	msg := NewRequestMessage(9, req)

	trailing := []byte("hello world")
	n, consumed := SerializeWithTrailingData(buf, msg, trailing)
	require.Equal(t, 4, consumed)
	require.Equal(t, len(buf), n)
}

func TestSerializeWithTrailingDataEmptyTrailing(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	msg := NewRequestMessage(1, MgsRequest{Kind: ReqSerialConsoleWrite, ConsoleOffset: 0})
	n, consumed := SerializeWithTrailingData(buf, msg, nil)
	require.Equal(t, 0, consumed)
	require.Equal(t, HeaderLen+2+8, n)
}

func TestDecodeMessageDiscoverResponse(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	off := Header{Version: CurrentVersion, MessageID: 42}.pack(buf)
	buf[off] = uint8(KindSpResponse)
	off++
	buf[off] = uint8(RespDiscover)
	off++
	buf[off] = uint8(SpPortTwo)
	off++

	msg, trailing, err := DecodeMessage(buf[:off])
	require.NoError(t, err)
	require.Empty(t, trailing)
	require.Equal(t, uint32(42), msg.Header.MessageID)
	require.Equal(t, KindSpResponse, msg.Kind)
	disc, err := msg.Response.ExpectDiscover()
	require.NoError(t, err)
	require.Equal(t, SpPortTwo, disc.SpPort)
}

func TestDecodeMessageErrorResponse(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	off := Header{Version: CurrentVersion, MessageID: 1}.pack(buf)
	buf[off] = uint8(KindSpResponse)
	off++
	buf[off] = uint8(RespError)
	off++
	buf[off] = uint8(SpErrorBusy)
	off++
	msgText := "retry later"
	buf[off] = 0
	buf[off+1] = uint8(len(msgText))
	off += 2
	off += copy(buf[off:], msgText)

	msg, _, err := DecodeMessage(buf[:off])
	require.NoError(t, err)
	spErr, ok := msg.Response.AsError()
	require.True(t, ok)
	require.Equal(t, SpErrorBusy, spErr.Code)
	require.Equal(t, msgText, spErr.Message)
}

func TestDecodeMessageSerialConsoleFrame(t *testing.T) {
	buf := make([]byte, MaxSerializedSize)
	off := Header{Version: CurrentVersion, MessageID: 5}.pack(buf)
	buf[off] = uint8(KindSpRequest)
	off++
	buf[off] = uint8(SpReqSerialConsole)
	off++
	off += packComponent(buf[off:], SPItself)
	off += packU64(buf[off:], 1024)
	payload := []byte("console bytes here")
	off += copy(buf[off:], payload)

	msg, trailing, err := DecodeMessage(buf[:off])
	require.NoError(t, err)
	require.Equal(t, KindSpRequest, msg.Kind)
	require.Equal(t, SpReqSerialConsole, msg.SpReqKind)
	require.Equal(t, SPItself, msg.Console.Component)
	require.Equal(t, uint64(1024), msg.Console.Offset)
	require.Equal(t, payload, trailing)
}

func TestDecodeMessageTruncatedHeaderErrors(t *testing.T) {
	_, _, err := DecodeMessage([]byte{1, 2})
	require.Error(t, err)
}

func TestDecodeTLVRoundTrip(t *testing.T) {
	buf := []byte{
		uint8(TagIgnitionState), 0, 2, 7, 1,
		uint8(TagPortStatus), 0, 1, 0,
	}
	triples, err := DecodeTLV(buf)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	require.Equal(t, TagIgnitionState, triples[0].Tag)
	require.Equal(t, []byte{7, 1}, triples[0].Value)
	require.Equal(t, TagPortStatus, triples[1].Tag)
}

func TestDecodeTLVTruncatedValue(t *testing.T) {
	buf := []byte{uint8(TagIgnitionState), 0, 5, 1}
	_, err := DecodeTLV(buf)
	require.Error(t, err)
}

// packU64 is a small test-local helper mirroring the production codec's
// big-endian field packing for the serial console offset.
func packU64(buf []byte, v uint64) int {
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(v)
		v >>= 8
	}
	return 8
}
