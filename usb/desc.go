// Package usb contains the USB 2.0 protocol vocabulary: descriptor
// structs, the control SETUP packet, and the two-pass configuration
// descriptor builder shared by all device-class drivers.
package usb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeStringDescriptor builds a USB string descriptor from s: the total
// length, the string descriptor type, then the text as UTF-16LE code units.
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	desc := make([]byte, 2, 2+2*len(runes))
	desc[1] = StringDescType
	for _, r := range runes {
		desc = append(desc, uint8(r), uint8(r>>8))
	}
	desc[0] = uint8(len(desc))
	return desc
}

// LangIDDescriptor returns string descriptor zero, announcing US English as
// the only supported language.
func LangIDDescriptor() []byte {
	return []byte{4, StringDescType, 0x09, 0x04}
}

// DeviceDescriptor is the standard 18-byte device descriptor, minus the
// implied length and type bytes which Bytes supplies.
type DeviceDescriptor struct {
	BcdUSB             uint16 // LE
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16 // LE
	IDProduct          uint16 // LE
	BcdDevice          uint16 // LE
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
}

// Bytes encodes the descriptor in wire order.
func (d DeviceDescriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(DeviceDescLen)
	b.WriteByte(DeviceDescType)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdUSB)
	b.WriteByte(d.BDeviceClass)
	b.WriteByte(d.BDeviceSubClass)
	b.WriteByte(d.BDeviceProtocol)
	b.WriteByte(d.BMaxPacketSize0)
	_ = binary.Write(&b, binary.LittleEndian, d.IDVendor)
	_ = binary.Write(&b, binary.LittleEndian, d.IDProduct)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdDevice)
	b.WriteByte(d.IManufacturer)
	b.WriteByte(d.IProduct)
	b.WriteByte(d.ISerialNumber)
	b.WriteByte(d.BNumConfigurations)
	return b.Bytes()
}

// ParseDeviceDescriptor decodes the first 18 bytes of data.
func ParseDeviceDescriptor(data []byte) (DeviceDescriptor, error) {
	if len(data) < DeviceDescLen {
		return DeviceDescriptor{}, fmt.Errorf("device descriptor too short: %d bytes", len(data))
	}
	return DeviceDescriptor{
		BcdUSB:             binary.LittleEndian.Uint16(data[2:4]),
		BDeviceClass:       data[4],
		BDeviceSubClass:    data[5],
		BDeviceProtocol:    data[6],
		BMaxPacketSize0:    data[7],
		IDVendor:           binary.LittleEndian.Uint16(data[8:10]),
		IDProduct:          binary.LittleEndian.Uint16(data[10:12]),
		BcdDevice:          binary.LittleEndian.Uint16(data[12:14]),
		IManufacturer:      data[14],
		IProduct:           data[15],
		ISerialNumber:      data[16],
		BNumConfigurations: data[17],
	}, nil
}

// ConfigHeader is the fixed 9-byte head of a configuration descriptor.
type ConfigHeader struct {
	WTotalLength        uint16 // LE, patched after the interface content is built
	BNumInterfaces      uint8
	BConfigurationValue uint8
	IConfiguration      uint8
	BMAttributes        uint8
	BMaxPower           uint8 // units of 2 mA
}

// Bytes encodes the header in wire order. WTotalLength is whatever the
// struct carries; config builds patch it afterwards.
func (h ConfigHeader) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(ConfigDescLen)
	b.WriteByte(ConfigDescType)
	_ = binary.Write(&b, binary.LittleEndian, h.WTotalLength)
	b.WriteByte(h.BNumInterfaces)
	b.WriteByte(h.BConfigurationValue)
	b.WriteByte(h.IConfiguration)
	b.WriteByte(h.BMAttributes)
	b.WriteByte(h.BMaxPower)
	return b.Bytes()
}

// ParseConfigHeader decodes the first 9 bytes of data.
func ParseConfigHeader(data []byte) (ConfigHeader, error) {
	if len(data) < ConfigDescLen {
		return ConfigHeader{}, fmt.Errorf("config descriptor too short: %d bytes", len(data))
	}
	return ConfigHeader{
		WTotalLength:        binary.LittleEndian.Uint16(data[2:4]),
		BNumInterfaces:      data[4],
		BConfigurationValue: data[5],
		IConfiguration:      data[6],
		BMAttributes:        data[7],
		BMaxPower:           data[8],
	}, nil
}

// InterfaceDescriptor (9 bytes) for one interface alternate setting.
type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (i InterfaceDescriptor) Bytes() []byte {
	return []byte{
		InterfaceDescLen,
		InterfaceDescType,
		i.BInterfaceNumber,
		i.BAlternateSetting,
		i.BNumEndpoints,
		i.BInterfaceClass,
		i.BInterfaceSubClass,
		i.BInterfaceProtocol,
		i.IInterface,
	}
}

// EndpointDescriptor (7 bytes) for one endpoint.
type EndpointDescriptor struct {
	BEndpointAddress uint8
	BMAttributes     uint8
	WMaxPacketSize   uint16 // LE
	BInterval        uint8
}

func (e EndpointDescriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(EndpointDescLen)
	b.WriteByte(EndpointDescType)
	b.WriteByte(e.BEndpointAddress)
	b.WriteByte(e.BMAttributes)
	_ = binary.Write(&b, binary.LittleEndian, e.WMaxPacketSize)
	b.WriteByte(e.BInterval)
	return b.Bytes()
}

// IADescriptor is the Interface Association Descriptor (8 bytes) grouping
// consecutive interfaces into one function.
type IADescriptor struct {
	BFirstInterface   uint8
	BInterfaceCount   uint8
	BFunctionClass    uint8
	BFunctionSubClass uint8
	BFunctionProtocol uint8
	IFunction         uint8
}

func (a IADescriptor) Bytes() []byte {
	return []byte{
		IADescLen,
		IADescType,
		a.BFirstInterface,
		a.BInterfaceCount,
		a.BFunctionClass,
		a.BFunctionSubClass,
		a.BFunctionProtocol,
		a.IFunction,
	}
}
