package usbtest

import (
	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/usb"
)

// BuiltinNone mirrors a port with every builtin class driver disabled.
// Interface and endpoint numbering start at zero and only the standard
// string slots are reserved.
func BuiltinNone() device.BuiltinInfo {
	return device.BuiltinInfo{
		InterfaceMax: 0,
		EndpointMax:  0,
		StringMax:    1,
		DeviceDesc: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    64,
			IDVendor:           0x2E8A,
			IDProduct:          0x0005,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			ISerialNumber:      3,
			BNumConfigurations: 1,
		}.Bytes(),
	}
}

// BuiltinDefault mirrors a port whose builtin CDC-ACM serial driver stays
// active: interfaces 0 and 1, endpoints 1 and 2 and one extra string are
// spoken for, so runtime drivers get numbered after them.
func BuiltinDefault() device.BuiltinInfo {
	return device.BuiltinInfo{
		InterfaceMax: 2,
		EndpointMax:  3,
		StringMax:    5,
		DeviceDesc: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BDeviceClass:       0xEF,
			BDeviceSubClass:    0x02,
			BDeviceProtocol:    0x01,
			BMaxPacketSize0:    64,
			IDVendor:           0x2E8A,
			IDProduct:          0x0005,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			ISerialNumber:      3,
			BNumConfigurations: 1,
		}.Bytes(),
		ConfigDesc: builtinCDCConfig(),
	}
}

// builtinCDCConfig builds the two-interface CDC-ACM function that the
// builtin serial driver contributes to the configuration descriptor.
func builtinCDCConfig() []byte {
	build := func(b *usb.Builder) {
		b.Append(make([]byte, usb.ConfigDescLen))
		b.InterfaceAssoc(usb.IADescriptor{
			BFirstInterface:   0,
			BInterfaceCount:   2,
			BFunctionClass:    0x02,
			BFunctionSubClass: 0x02,
		})
		b.Interface(usb.InterfaceDescriptor{
			BInterfaceNumber:   0,
			BNumEndpoints:      1,
			BInterfaceClass:    0x02,
			BInterfaceSubClass: 0x02,
			IInterface:         4,
		})
		b.Append([]byte{5, 0x24, 0x00, 0x10, 0x01}) // CDC header, bcdCDC 1.10
		b.Append([]byte{5, 0x24, 0x01, 0x00, 0x01}) // call management
		b.Append([]byte{4, 0x24, 0x02, 0x02})       // ACM, line coding + break
		b.Append([]byte{5, 0x24, 0x06, 0x00, 0x01}) // union, itf 0 over itf 1
		b.Endpoint(usb.EndpointDescriptor{
			BEndpointAddress: usb.EPIn | 1,
			BMAttributes:     uint8(usb.TransferInterrupt),
			WMaxPacketSize:   8,
			BInterval:        16,
		})
		b.Interface(usb.InterfaceDescriptor{
			BInterfaceNumber: 1,
			BNumEndpoints:    2,
			BInterfaceClass:  0x0A,
		})
		b.Endpoint(usb.EndpointDescriptor{
			BEndpointAddress: 2,
			BMAttributes:     uint8(usb.TransferBulk),
			WMaxPacketSize:   64,
		})
		b.Endpoint(usb.EndpointDescriptor{
			BEndpointAddress: usb.EPIn | 2,
			BMAttributes:     uint8(usb.TransferBulk),
			WMaxPacketSize:   64,
		})
	}

	sizer := usb.NewSizer()
	build(sizer)
	b := usb.NewBuilder(sizer.Len())
	build(b)
	b.WriteAt(0, usb.ConfigHeader{
		WTotalLength:        uint16(b.Len()),
		BNumInterfaces:      2,
		BConfigurationValue: 1,
		BMAttributes:        1<<7 | 1<<6,
		BMaxPower:           250,
	}.Bytes())
	return b.Bytes()
}
