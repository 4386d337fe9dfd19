package keyboard_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/device/keyboard"
	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/internal/usbtest"
	"github.com/Alia5/usbd/usb"
)

func openedKeyboard(t *testing.T) (*usbtest.Port, *keyboard.Keyboard) {
	t.Helper()
	port := usbtest.NewPort()
	kbd := keyboard.New()
	dev := device.New(port, device.WithLogger(log.Discard()))
	require.NoError(t, dev.Init(kbd))
	require.NoError(t, port.Enumerate())
	return port, kbd
}

func TestInputStateBuildReport(t *testing.T) {
	var st keyboard.InputState
	assert.True(t, st.Press(keyboard.KeyLeftShift))
	assert.True(t, st.Press(keyboard.KeyA))
	assert.True(t, st.Press(keyboard.KeyB))

	report := st.BuildReport()
	assert.Equal(t, []byte{
		keyboard.ModLeftShift, 0,
		keyboard.KeyA, keyboard.KeyB, 0, 0, 0, 0,
	}, report)
}

func TestInputStatePress(t *testing.T) {
	var st keyboard.InputState

	keys := []uint8{
		keyboard.KeyA, keyboard.KeyB, keyboard.KeyC,
		keyboard.KeyD, keyboard.KeyE, keyboard.KeyF,
	}
	for _, k := range keys {
		assert.True(t, st.Press(k))
	}
	assert.False(t, st.Press(keyboard.KeyG), "all six slots taken")
	assert.False(t, st.Press(keyboard.KeyA), "already down")

	// Modifiers do not occupy slots.
	assert.True(t, st.Press(keyboard.KeyRightAlt))
	assert.False(t, st.Press(keyboard.KeyRightAlt))
	assert.Equal(t, uint8(keyboard.ModRightAlt), st.Modifiers)
}

func TestInputStateRelease(t *testing.T) {
	var st keyboard.InputState
	st.Press(keyboard.KeyA)
	st.Press(keyboard.KeyLeftCtrl)

	assert.True(t, st.Release(keyboard.KeyA))
	assert.False(t, st.Release(keyboard.KeyA), "not down anymore")
	assert.True(t, st.Release(keyboard.KeyLeftCtrl))
	assert.Zero(t, st.Modifiers)
	assert.Equal(t, [6]uint8{}, st.Keys)

	// A freed slot is reused.
	st.Press(keyboard.KeyB)
	assert.Equal(t, keyboard.KeyB, int(st.Keys[0]))
}

func TestLEDStateUnmarshal(t *testing.T) {
	var st keyboard.LEDState
	require.NoError(t, st.UnmarshalBinary([]byte{keyboard.LEDNumLock | keyboard.LEDScrollLock}))
	assert.True(t, st.NumLock)
	assert.True(t, st.ScrollLock)
	assert.False(t, st.CapsLock)

	assert.Error(t, st.UnmarshalBinary(nil))
}

func TestKeyboardDescriptor(t *testing.T) {
	port, kbd := openedKeyboard(t)

	cfg := port.ConfigDesc()
	require.Len(t, cfg, 34)
	// Boot interface: class HID, subclass 0, protocol keyboard.
	assert.Equal(t, uint8(0x03), cfg[9+5])
	assert.Equal(t, uint8(0x01), cfg[9+7])
	// HID class descriptor advertises the 63-byte report descriptor.
	assert.Equal(t, []byte{0x22, 63, 0}, cfg[24:27])

	assert.Equal(t, uint8(0x81), kbd.EndpointIn())
	assert.True(t, kbd.IsOpen())
}

func TestKeyboardSendState(t *testing.T) {
	port, kbd := openedKeyboard(t)
	var traffic bytes.Buffer
	port.Traffic = log.NewRaw(&traffic)

	assert.True(t, kbd.Press(keyboard.KeyLeftShift))
	assert.True(t, kbd.Press(keyboard.KeyH))
	require.NoError(t, kbd.SendState(0))

	buf, ok := port.Pending(kbd.EndpointIn())
	require.True(t, ok)
	assert.Equal(t, []byte{keyboard.ModLeftShift, 0, keyboard.KeyH, 0, 0, 0, 0, 0}, buf)
	assert.Contains(t, traffic.String(), "ep=0x81 IN 8 bytes: 02 00 0b 00 00 00 00 00")

	require.NoError(t, port.Complete(kbd.EndpointIn(), usb.ResultSuccess, 8))

	kbd.Release(keyboard.KeyH)
	kbd.Release(keyboard.KeyLeftShift)
	require.NoError(t, kbd.SendState(0))
	buf, ok = port.Pending(kbd.EndpointIn())
	require.True(t, ok)
	assert.Equal(t, make([]byte, 8), buf, "release report is all zeroes")
}

func TestKeyboardLEDReport(t *testing.T) {
	port, kbd := openedKeyboard(t)

	var got []keyboard.LEDState
	kbd.SetLEDCallback(func(st keyboard.LEDState) {
		got = append(got, st)
	})

	// Host turns on caps lock via SET_REPORT (output report, ID 0).
	_, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21,
		BRequest:      0x09,
		WValue:        0x0200,
		WIndex:        uint16(kbd.InterfaceNumber()),
		WLength:       1,
	}, []byte{keyboard.LEDCapsLock})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].CapsLock)
	assert.False(t, got[0].NumLock)
	assert.True(t, kbd.GetLEDState().CapsLock)
}

func TestKeyboardUpdateInputState(t *testing.T) {
	port, kbd := openedKeyboard(t)

	kbd.UpdateInputState(keyboard.InputState{
		Modifiers: keyboard.ModLeftCtrl | keyboard.ModLeftAlt,
		Keys:      [6]uint8{keyboard.KeyDelete},
	})
	require.NoError(t, kbd.SendState(0))

	buf, ok := port.Pending(kbd.EndpointIn())
	require.True(t, ok)
	assert.Equal(t, []byte{
		keyboard.ModLeftCtrl | keyboard.ModLeftAlt, 0,
		keyboard.KeyDelete, 0, 0, 0, 0, 0,
	}, buf)
}
