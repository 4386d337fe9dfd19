package keyboard

import (
	"io"

	"github.com/Alia5/usbd/device"
)

// InputState represents the boot keyboard state used to build a report: a
// modifier bitmask and up to six concurrently pressed keys.
type InputState struct {
	Modifiers uint8 // bit 0-7: LCtrl, LShift, LAlt, LGui, RCtrl, RShift, RAlt, RGui
	Keys      [6]uint8
}

var _ device.ReportBuilder = InputState{}

// BuildReport encodes an InputState into the 8-byte boot keyboard report.
//
// Report layout (8 bytes):
//
//	Byte 0: Modifiers (8 bits)
//	Byte 1: Reserved (0x00)
//	Bytes 2-7: Usage codes of pressed keys, 0x00 in unused slots
func (st InputState) BuildReport() []byte {
	b := make([]byte, 8)
	b[0] = st.Modifiers
	copy(b[2:], st.Keys[:])
	return b
}

// Press adds key to the state. Modifier usage codes (KeyLeftCtrl through
// KeyRightGUI) set the matching Modifiers bit; any other code takes the
// first free key slot. Returns false when the key is already down or all
// six slots are taken.
func (st *InputState) Press(key uint8) bool {
	if key >= KeyLeftCtrl && key <= KeyRightGUI {
		bit := uint8(1) << (key - KeyLeftCtrl)
		if st.Modifiers&bit != 0 {
			return false
		}
		st.Modifiers |= bit
		return true
	}
	free := -1
	for i, k := range st.Keys {
		if k == key {
			return false
		}
		if k == 0 && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return false
	}
	st.Keys[free] = key
	return true
}

// Release removes key from the state. Returns false when it was not down.
func (st *InputState) Release(key uint8) bool {
	if key >= KeyLeftCtrl && key <= KeyRightGUI {
		bit := uint8(1) << (key - KeyLeftCtrl)
		if st.Modifiers&bit == 0 {
			return false
		}
		st.Modifiers &^= bit
		return true
	}
	for i, k := range st.Keys {
		if k == key {
			st.Keys[i] = 0
			return true
		}
	}
	return false
}

// LEDState represents the keyboard LEDs controlled by the host.
type LEDState struct {
	NumLock    bool
	CapsLock   bool
	ScrollLock bool
	Compose    bool
	Kana       bool
}

// UnmarshalBinary decodes the 1-byte LED output report into LEDState. Bits
// are defined by LEDNumLock through LEDKana.
func (st *LEDState) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return io.ErrUnexpectedEOF
	}
	b := data[0]
	st.NumLock = b&LEDNumLock != 0
	st.CapsLock = b&LEDCapsLock != 0
	st.ScrollLock = b&LEDScrollLock != 0
	st.Compose = b&LEDCompose != 0
	st.Kana = b&LEDKana != 0
	return nil
}
