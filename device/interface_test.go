package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/internal/usbtest"
	"github.com/Alia5/usbd/usb"
)

func TestBaseBeforeInit(t *testing.T) {
	drv := newStubDriver()

	assert.False(t, drv.IsOpen())
	assert.False(t, drv.TransferPending(usb.EPIn|1))

	err := drv.SubmitTransfer(usb.EPIn|1, []byte{1}, nil)
	assert.ErrorIs(t, err, device.ErrNotInitialized)

	err = drv.SetStall(usb.EPIn|1, true)
	assert.ErrorIs(t, err, device.ErrNotInitialized)

	_, err = drv.Stalled(usb.EPIn | 1)
	assert.ErrorIs(t, err, device.ErrNotInitialized)
}

func TestBaseBeforeOpen(t *testing.T) {
	port := usbtest.NewPort()
	drv := newStubDriver()
	require.NoError(t, newTestDevice(port, device.Config{}).Init(drv))

	assert.False(t, drv.IsOpen())

	err := drv.SetStall(drv.epAddr, true)
	assert.ErrorIs(t, err, device.ErrNotOpen)

	_, err = drv.Stalled(drv.epAddr)
	assert.ErrorIs(t, err, device.ErrNotOpen)
}

func TestBaseDefaultControlHandlersStall(t *testing.T) {
	drv := newStubDriver()

	data, cont := drv.Base.HandleDeviceControlXfer(usb.StageSetup, usb.SetupPacket{})
	assert.Nil(t, data)
	assert.False(t, cont)

	data, cont = drv.Base.HandleInterfaceControlXfer(usb.StageSetup, usb.SetupPacket{})
	assert.Nil(t, data)
	assert.False(t, cont)

	data, cont = drv.Base.HandleEndpointControlXfer(usb.StageSetup, usb.SetupPacket{})
	assert.Nil(t, data)
	assert.False(t, cont)
}

func TestStringTable(t *testing.T) {
	var table device.StringTable

	assert.Zero(t, table.Len())
	_, ok := table.At(0)
	assert.False(t, ok)

	idx := table.Add("first")
	assert.Equal(t, uint8(0), idx)
	idx = table.Add("second")
	assert.Equal(t, uint8(1), idx)
	assert.Equal(t, 2, table.Len())

	s, ok := table.At(1)
	require.True(t, ok)
	assert.Equal(t, "second", s)

	assert.Equal(t, []string{"first", "second"}, table.Strings())

	// Mutating the copy does not touch the table.
	table.Strings()[0] = "changed"
	s, ok = table.At(0)
	require.True(t, ok)
	assert.Equal(t, "first", s)
}

func TestStringTableReservedPlaceholders(t *testing.T) {
	port := usbtest.NewPort()
	drv := newStubDriver()
	require.NoError(t, newTestDevice(port, device.Config{Product: "Widget"}).Init(drv))

	strs := port.Strings()
	require.Len(t, strs, 4)
	assert.Equal(t, "", strs[0], "index 0 stands in for the language table")
	assert.Equal(t, "", strs[1])
	assert.Equal(t, "Widget", strs[2])
	assert.Equal(t, "", strs[3])
}
