package usb

import (
	"encoding/binary"
	"fmt"
)

// Standard bRequest values (USB 2.0 section 9.4, table 9-4).
const (
	RequestGetStatus        = 0x00
	RequestClearFeature     = 0x01
	RequestSetFeature       = 0x03
	RequestSetAddress       = 0x05
	RequestGetDescriptor    = 0x06
	RequestSetDescriptor    = 0x07
	RequestGetConfiguration = 0x08
	RequestSetConfiguration = 0x09
	RequestGetInterface     = 0x0A
	RequestSetInterface     = 0x0B
	RequestSynchFrame       = 0x0C
)

// SetupPacketLen is the wire size of a SETUP packet.
const SetupPacketLen = 8

// SetupPacket is the 8-byte control request header sent by the host at the
// start of every control transfer (USB 2.0 section 9.3).
type SetupPacket struct {
	BMRequestType uint8
	BRequest      uint8
	WValue        uint16 // LE
	WIndex        uint16 // LE
	WLength       uint16 // LE
}

// ParseSetup decodes a SETUP packet from the first 8 bytes of data.
func ParseSetup(data []byte) (SetupPacket, error) {
	if len(data) < SetupPacketLen {
		return SetupPacket{}, fmt.Errorf("setup packet too short: %d bytes", len(data))
	}
	return SetupPacket{
		BMRequestType: data[0],
		BRequest:      data[1],
		WValue:        binary.LittleEndian.Uint16(data[2:4]),
		WIndex:        binary.LittleEndian.Uint16(data[4:6]),
		WLength:       binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// Bytes returns the wire representation of the packet.
func (s SetupPacket) Bytes() [SetupPacketLen]byte {
	var b [SetupPacketLen]byte
	b[0] = s.BMRequestType
	b[1] = s.BRequest
	binary.LittleEndian.PutUint16(b[2:4], s.WValue)
	binary.LittleEndian.PutUint16(b[4:6], s.WIndex)
	binary.LittleEndian.PutUint16(b[6:8], s.WLength)
	return b
}

// Recipient extracts the bmRequestType recipient field.
func (s SetupPacket) Recipient() Recipient {
	return Recipient(s.BMRequestType & 0x1F)
}

// Type extracts the bmRequestType type field.
func (s SetupPacket) Type() RequestType {
	return RequestType((s.BMRequestType >> 5) & 0x03)
}

// Direction extracts the bmRequestType direction bit.
func (s SetupPacket) Direction() Direction {
	return Direction((s.BMRequestType >> 7) & 0x01)
}

func (s SetupPacket) String() string {
	return fmt.Sprintf("bmRequestType=0x%02x bRequest=0x%02x wValue=0x%04x wIndex=0x%04x wLength=%d",
		s.BMRequestType, s.BRequest, s.WValue, s.WIndex, s.WLength)
}
