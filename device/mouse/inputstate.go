package mouse

import (
	"github.com/Alia5/usbd/device"
)

// Button bitmasks of report byte 0.
const (
	ButtonLeft   = 0x01
	ButtonRight  = 0x02
	ButtonMiddle = 0x04
)

// InputState represents the mouse state used to build a report.
type InputState struct {
	// Button bitfield: bit 0=Left, 1=Right, 2=Middle
	Buttons uint8
	// Delta X/Y: signed relative movement
	DX, DY int8
}

var _ device.ReportBuilder = (*InputState)(nil)

// BuildReport encodes an InputState into the 3-byte boot mouse report.
//
// Report layout (3 bytes):
//
//	Byte 0: Button bitfield (bit 0=Left, 1=Right, 2=Middle, bits 3-7=padding)
//	Byte 1: DX (int8, -127 to +127)
//	Byte 2: DY (int8, -127 to +127)
func (m *InputState) BuildReport() []byte {
	return []byte{m.Buttons & 0x07, byte(m.DX), byte(m.DY)}
}
