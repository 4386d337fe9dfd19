// Package keyboard implements a boot-protocol USB HID keyboard with LED
// feedback from the host.
package keyboard

import (
	"sync"
	"time"

	"github.com/Alia5/usbd/device/hid"
)

// Keyboard is a boot keyboard on a single HID interface. 8-byte input
// reports carry the key state; the host sets the LED state through a 1-byte
// output report delivered over SET_REPORT.
type Keyboard struct {
	*hid.Interface

	stateMu     sync.Mutex
	state       InputState
	ledState    uint8
	ledCallback func(LEDState)
}

// New returns a keyboard ready to pass to device.Device.Init.
func New() *Keyboard {
	k := &Keyboard{}
	k.Interface = hid.New(reportDescriptor,
		hid.WithProtocol(hid.ProtocolKeyboard),
		hid.WithSetReportBuf(make([]byte, 1)),
		hid.WithOnSetReport(k.handleSetReport),
	)
	return k
}

// SetLEDCallback sets a callback invoked whenever the host changes the LED
// state.
func (k *Keyboard) SetLEDCallback(f func(LEDState)) {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	k.ledCallback = f
}

// GetLEDState returns the LED state last set by the host.
func (k *Keyboard) GetLEDState() LEDState {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	var st LEDState
	_ = st.UnmarshalBinary([]byte{k.ledState})
	return st
}

func (k *Keyboard) handleSetReport(data []byte, _, _ uint8) {
	if len(data) < 1 {
		return
	}
	k.stateMu.Lock()
	k.ledState = data[0]
	cb := k.ledCallback
	k.stateMu.Unlock()

	if cb != nil {
		var st LEDState
		_ = st.UnmarshalBinary(data)
		cb(st)
	}
}

// UpdateInputState replaces the pending input state wholesale.
func (k *Keyboard) UpdateInputState(state InputState) {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	k.state = state
}

// Press marks key down in the pending state. It reports false when the key
// is already down or no report slot is free. The new state is not sent
// until SendState.
func (k *Keyboard) Press(key uint8) bool {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	return k.state.Press(key)
}

// Release marks key up in the pending state.
func (k *Keyboard) Release(key uint8) bool {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	return k.state.Release(key)
}

// SendState sends the pending input state as one report over the interrupt
// endpoint.
func (k *Keyboard) SendState(timeout time.Duration) error {
	k.stateMu.Lock()
	report := k.state.BuildReport()
	k.stateMu.Unlock()
	return k.SendReport(report, timeout)
}

// Boot keyboard report descriptor, HID v1.11 appendix E.6.
var reportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0xE0, //   Usage Minimum (Left Control)
	0x29, 0xE7, //   Usage Maximum (Right GUI)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Var, Abs), modifier byte
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Const), reserved byte
	0x95, 0x05, //   Report Count (5)
	0x75, 0x01, //   Report Size (1)
	0x05, 0x08, //   Usage Page (LEDs)
	0x19, 0x01, //   Usage Minimum (Num Lock)
	0x29, 0x05, //   Usage Maximum (Kana)
	0x91, 0x02, //   Output (Data, Var, Abs), LED report
	0x95, 0x01, //   Report Count (1)
	0x75, 0x03, //   Report Size (3)
	0x91, 0x01, //   Output (Const), LED padding
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x65, //   Logical Maximum (101)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0x00, //   Usage Minimum (0)
	0x29, 0x65, //   Usage Maximum (101)
	0x81, 0x00, //   Input (Data, Array), key slots
	0xC0, // End Collection
}
