package mouse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/device/mouse"
	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/internal/usbtest"
	"github.com/Alia5/usbd/usb"
)

func openedMouse(t *testing.T) (*usbtest.Port, *mouse.Mouse) {
	t.Helper()
	port := usbtest.NewPort()
	m := mouse.New()
	dev := device.New(port, device.WithLogger(log.Discard()))
	require.NoError(t, dev.Init(m))
	require.NoError(t, port.Enumerate())
	return port, m
}

// lastReport completes the pending transfer on the mouse endpoint and
// returns its bytes.
func lastReport(t *testing.T, port *usbtest.Port, m *mouse.Mouse) []byte {
	t.Helper()
	buf, ok := port.Pending(m.EndpointIn())
	require.True(t, ok)
	require.NoError(t, port.Complete(m.EndpointIn(), usb.ResultSuccess, len(buf)))
	return buf
}

func TestInputStateBuildReport(t *testing.T) {
	st := mouse.InputState{
		Buttons: mouse.ButtonLeft | mouse.ButtonMiddle,
		DX:      -100,
		DY:      127,
	}
	assert.Equal(t, []byte{0x05, 0x9C, 0x7F}, st.BuildReport())
}

func TestMouseDescriptor(t *testing.T) {
	port, m := openedMouse(t)

	cfg := port.ConfigDesc()
	require.Len(t, cfg, 34)
	// Boot interface: class HID, protocol mouse.
	assert.Equal(t, uint8(0x03), cfg[9+5])
	assert.Equal(t, uint8(0x02), cfg[9+7])
	// HID class descriptor advertises the 52-byte report descriptor.
	assert.Equal(t, []byte{0x22, 52, 0}, cfg[24:27])

	assert.Equal(t, uint8(0x81), m.EndpointIn())
}

func TestMoveBy(t *testing.T) {
	port, m := openedMouse(t)

	require.NoError(t, m.MoveBy(-100, 0))
	assert.Equal(t, []byte{0x00, 0x9C, 0x00}, lastReport(t, port, m))

	require.NoError(t, m.MoveBy(5, -3))
	assert.Equal(t, []byte{0x00, 0x05, 0xFD}, lastReport(t, port, m))
}

func TestMoveByRange(t *testing.T) {
	_, m := openedMouse(t)

	assert.ErrorContains(t, m.MoveBy(128, 0), "dx")
	assert.ErrorContains(t, m.MoveBy(-128, 0), "dx")
	assert.ErrorContains(t, m.MoveBy(0, 200), "dy")
	require.NoError(t, m.MoveBy(127, -127))
}

func TestClicks(t *testing.T) {
	port, m := openedMouse(t)

	require.NoError(t, m.ClickRight(true))
	assert.Equal(t, []byte{mouse.ButtonRight, 0, 0}, lastReport(t, port, m))

	// Buttons persist into movement reports.
	require.NoError(t, m.MoveBy(10, 0))
	assert.Equal(t, []byte{mouse.ButtonRight, 10, 0}, lastReport(t, port, m))

	require.NoError(t, m.ClickLeft(true))
	assert.Equal(t, []byte{mouse.ButtonRight | mouse.ButtonLeft, 0, 0}, lastReport(t, port, m))

	require.NoError(t, m.ClickRight(false))
	assert.Equal(t, []byte{mouse.ButtonLeft, 0, 0}, lastReport(t, port, m))

	require.NoError(t, m.ClickMiddle(true))
	assert.Equal(t, []byte{mouse.ButtonLeft | mouse.ButtonMiddle, 0, 0}, lastReport(t, port, m))
}

func TestUpdateInputState(t *testing.T) {
	port, m := openedMouse(t)

	require.NoError(t, m.UpdateInputState(mouse.InputState{
		Buttons: mouse.ButtonLeft,
		DX:      4,
		DY:      -4,
	}))
	assert.Equal(t, []byte{mouse.ButtonLeft, 0x04, 0xFC}, lastReport(t, port, m))

	// Deltas are one-shot, buttons stick.
	require.NoError(t, m.MoveBy(0, 0))
	assert.Equal(t, []byte{mouse.ButtonLeft, 0, 0}, lastReport(t, port, m))
}
