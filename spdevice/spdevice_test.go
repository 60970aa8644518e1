package spdevice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/wire"
)

func buildDeviceValue(t *testing.T, componentID, device, description string, caps wire.DeviceCapabilities, presence wire.DevicePresence) []byte {
	t.Helper()
	buf := []byte{uint8(len(componentID))}
	buf = append(buf, componentID...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(device)))
	buf = append(buf, lenBuf[:]...)
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(description)))
	buf = append(buf, lenBuf[:]...)
	var capBuf [4]byte
	binary.BigEndian.PutUint32(capBuf[:], uint32(caps))
	buf = append(buf, capBuf[:]...)
	buf = append(buf, uint8(presence))
	buf = append(buf, device...)
	buf = append(buf, description...)
	return buf
}

func TestDecodeDeviceRoundTrip(t *testing.T) {
	value := buildDeviceValue(t, "sp3", "sp3-device", "a description", 0x01, wire.DevicePresent)
	dev, ok, err := InventoryQuery{}.ParseItem(wire.TagDeviceDescriptionHeader, value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sp3", dev.Component.ID)
	require.Equal(t, "sp3-device", dev.Device)
	require.Equal(t, "a description", dev.Description)
	require.Equal(t, wire.DevicePresent, dev.Presence)
}

func TestDecodeDeviceSkipsUnknownTag(t *testing.T) {
	_, ok, err := InventoryQuery{}.ParseItem(wire.TagIgnitionState, []byte{1, 2, 3})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeDeviceRejectsTruncatedStrings(t *testing.T) {
	value := buildDeviceValue(t, "sp3", "sp3-device", "a description", 0, wire.DevicePresent)
	truncated := value[:len(value)-5]
	_, _, err := InventoryQuery{}.ParseItem(wire.TagDeviceDescriptionHeader, truncated)
	require.Error(t, err)
}

func TestDecodeBulkIgnitionState(t *testing.T) {
	item, ok, err := BulkIgnitionStateQuery{}.ParseItem(wire.TagIgnitionState, []byte{3, 1, 0})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wire.IgnitionState{Target: 3, Present: true, PowerOn: false}, item)
}

func TestDecodeMeasurement(t *testing.T) {
	name := "temp0"
	var buf []byte
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, 1) // kind
	var valBuf [4]byte
	binary.BigEndian.PutUint32(valBuf[:], 0x42280000) // 42.0f
	buf = append(buf, valBuf[:]...)
	buf = append(buf, name...)

	details, ok, err := ComponentDetailsQuery{}.ParseItem(wire.TagMeasurementHeader, buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, details.IsPortStatus)
	require.Equal(t, name, details.Measurement.Name)
	require.InDelta(t, 42.0, details.Measurement.Value, 0.001)
}
