// Package mouse provides a basic three-button boot-protocol HID mouse.
package mouse

import (
	"fmt"
	"sync"
	"time"

	"github.com/Alia5/usbd/device/hid"
)

// sendTimeout bounds how long each report send waits for the interrupt
// endpoint to drain.
const sendTimeout = 100 * time.Millisecond

// Mouse is a three-button relative mouse on a single HID interface.
// Buttons persist across reports until changed; movement is one-shot per
// report.
type Mouse struct {
	*hid.Interface

	stateMu sync.Mutex
	state   InputState
}

// New returns a mouse ready to pass to device.Device.Init.
func New() *Mouse {
	m := &Mouse{}
	m.Interface = hid.New(reportDescriptor,
		hid.WithProtocol(hid.ProtocolMouse),
	)
	return m
}

// MoveBy sends a relative movement report with the current button state.
func (m *Mouse) MoveBy(dx, dy int) error {
	if dx < -127 || dx > 127 {
		return fmt.Errorf("mouse: dx %d out of range -127..127", dx)
	}
	if dy < -127 || dy > 127 {
		return fmt.Errorf("mouse: dy %d out of range -127..127", dy)
	}
	m.stateMu.Lock()
	st := m.state
	m.stateMu.Unlock()
	st.DX, st.DY = int8(dx), int8(dy)
	return m.SendReport(st.BuildReport(), sendTimeout)
}

// ClickLeft presses or releases the left button.
func (m *Mouse) ClickLeft(down bool) error {
	return m.setButton(ButtonLeft, down)
}

// ClickRight presses or releases the right button.
func (m *Mouse) ClickRight(down bool) error {
	return m.setButton(ButtonRight, down)
}

// ClickMiddle presses or releases the middle button.
func (m *Mouse) ClickMiddle(down bool) error {
	return m.setButton(ButtonMiddle, down)
}

func (m *Mouse) setButton(mask uint8, down bool) error {
	m.stateMu.Lock()
	if down {
		m.state.Buttons |= mask
	} else {
		m.state.Buttons &^= mask
	}
	st := m.state
	m.stateMu.Unlock()
	return m.SendReport(st.BuildReport(), sendTimeout)
}

// UpdateInputState replaces the button state. The deltas of the given
// state are sent once with the next report.
func (m *Mouse) UpdateInputState(state InputState) error {
	m.stateMu.Lock()
	m.state = InputState{Buttons: state.Buttons}
	m.stateMu.Unlock()
	return m.SendReport(state.BuildReport(), sendTimeout)
}

// Basic 3-button mouse report descriptor, HID v1.11 appendix E.10.
var reportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xA1, 0x01, // Collection (Application)
	0x09, 0x01, //   Usage (Pointer)
	0xA1, 0x00, //   Collection (Physical)
	0x05, 0x09, //     Usage Page (Buttons)
	0x19, 0x01, //     Usage Minimum (1)
	0x29, 0x03, //     Usage Maximum (3)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x95, 0x03, //     Report Count (3)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Var, Abs), button bits
	0x95, 0x01, //     Report Count (1)
	0x75, 0x05, //     Report Size (5)
	0x81, 0x01, //     Input (Const), padding
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7F, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x02, //     Report Count (2)
	0x81, 0x06, //     Input (Data, Var, Rel), X and Y bytes
	0xC0, //   End Collection
	0xC0, // End Collection
}
