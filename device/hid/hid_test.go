package hid_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/device/hid"
	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/internal/usbtest"
	"github.com/Alia5/usbd/usb"
)

// Minimal vendor-defined report descriptor with 8-byte input and output
// reports.
var testReportDesc = []byte{
	0x06, 0x00, 0xFF, // Usage Page (Vendor Defined)
	0x09, 0x01, // Usage 1
	0xA1, 0x01, // Collection (Application)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x00, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x08, //   Report Count (8)
	0x09, 0x01, //   Usage 1
	0x81, 0x02, //   Input (Data, Var, Abs)
	0x09, 0x01, //   Usage 1
	0x91, 0x02, //   Output (Data, Var, Abs)
	0xC0, // End Collection
}

func openedHID(t *testing.T, opts ...hid.Option) (*usbtest.Port, *hid.Interface) {
	t.Helper()
	port := usbtest.NewPort()
	itf := hid.New(testReportDesc, opts...)
	dev := device.New(port, device.WithLogger(log.Discard()))
	require.NoError(t, dev.Init(itf))
	require.NoError(t, port.Enumerate())
	return port, itf
}

func TestDescriptor(t *testing.T) {
	itf := hid.New(testReportDesc)

	desc := itf.Descriptor()
	assert.Equal(t, []byte{
		9, 0x21, // bLength, bDescriptorType
		0x11, 0x01, // bcdHID 1.11
		0x00,       // bCountryCode
		0x01,       // bNumDescriptors
		0x22, 25, 0, // report descriptor type and length
	}, desc)
}

func TestDescriptorExtras(t *testing.T) {
	itf := hid.New(testReportDesc, hid.WithExtraDescriptors([]hid.ExtraDescriptor{
		{Type: hid.DescTypePhysical, Data: make([]byte, 17)},
	}))

	desc := itf.Descriptor()
	require.Len(t, desc, 12)
	assert.Equal(t, uint8(12), desc[0])
	assert.Equal(t, uint8(2), desc[5])
	assert.Equal(t, []byte{hid.DescTypePhysical, 17, 0}, desc[9:12])

	itf = hid.New(testReportDesc, hid.WithExtraDescriptors([]hid.ExtraDescriptor{
		{Type: hid.DescTypePhysical, Data: make([]byte, 17)},
		{Type: hid.DescTypePhysical, Data: make([]byte, 300)},
	}))

	desc = itf.Descriptor()
	require.Len(t, desc, 15)
	assert.Equal(t, uint8(3), desc[5])
	assert.Equal(t, []byte{hid.DescTypePhysical, 0x2C, 0x01}, desc[12:15])
}

func TestBuildConfig(t *testing.T) {
	port, itf := openedHID(t, hid.WithProtocol(hid.ProtocolMouse))

	cfg := port.ConfigDesc()
	require.Len(t, cfg, 34)
	assert.Equal(t, []byte{9, 0x04, 0, 0, 1, 0x03, 0x00, 0x02, 0}, cfg[9:18])
	assert.Equal(t, []byte{9, 0x21, 0x11, 0x01, 0, 1, 0x22, 25, 0}, cfg[18:27])
	assert.Equal(t, []byte{7, 0x05, 0x81, 0x03, 8, 0, 8}, cfg[27:34])

	assert.Equal(t, uint8(0), itf.InterfaceNumber())
	assert.Equal(t, uint8(0x81), itf.EndpointIn())
	assert.True(t, itf.IsOpen())
}

func TestInterfaceString(t *testing.T) {
	port, _ := openedHID(t, hid.WithInterfaceString("Data Pipe"))

	strs := port.Strings()
	require.Len(t, strs, 5)
	assert.Equal(t, "Data Pipe", strs[4])
	// iInterface of the interface descriptor points at it.
	assert.Equal(t, uint8(4), port.ConfigDesc()[9+8])
}

func TestGetDescriptorRequests(t *testing.T) {
	type testCase struct {
		name    string
		wValue  uint16
		wLength uint16
		want    []byte
		stall   bool
	}

	testCases := []testCase{
		{
			name:    "report descriptor",
			wValue:  0x2200,
			wLength: 64,
			want:    testReportDesc,
		},
		{
			name:    "report descriptor truncated",
			wValue:  0x2200,
			wLength: 4,
			want:    testReportDesc[:4],
		},
		{
			name:    "hid descriptor",
			wValue:  0x2100,
			wLength: 9,
			want:    []byte{9, 0x21, 0x11, 0x01, 0, 1, 0x22, 25, 0},
		},
		{
			name:    "physical descriptor unsupported",
			wValue:  0x2300,
			wLength: 8,
			stall:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			port, itf := openedHID(t)

			out, err := port.ControlRequest(usb.SetupPacket{
				BMRequestType: 0x81,
				BRequest:      usb.RequestGetDescriptor,
				WValue:        tc.wValue,
				WIndex:        uint16(itf.InterfaceNumber()),
				WLength:       tc.wLength,
			}, nil)
			if tc.stall {
				assert.ErrorIs(t, err, usbtest.ErrStalled)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestIdleAndProtocol(t *testing.T) {
	port, itf := openedHID(t, hid.WithProtocol(hid.ProtocolKeyboard))
	itfIdx := uint16(itf.InterfaceNumber())

	// Fresh interface: idle 0, report protocol 0.
	out, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0xA1, BRequest: 0x02, WIndex: itfIdx, WLength: 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)

	_, err = port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21, BRequest: 0x0A, WValue: 0x7F00, WIndex: itfIdx,
	}, nil)
	require.NoError(t, err)

	out, err = port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0xA1, BRequest: 0x02, WIndex: itfIdx, WLength: 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F}, out)

	// SET_PROTOCOL flips the runtime protocol, not the descriptor one.
	_, err = port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21, BRequest: 0x0B, WValue: 1, WIndex: itfIdx,
	}, nil)
	require.NoError(t, err)

	out, err = port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0xA1, BRequest: 0x03, WIndex: itfIdx, WLength: 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, out)

	// Descriptor still advertises the boot keyboard protocol.
	assert.Equal(t, uint8(hid.ProtocolKeyboard), port.ConfigDesc()[9+7])
}

func TestGetReportStalls(t *testing.T) {
	port, itf := openedHID(t)

	_, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0xA1,
		BRequest:      0x01,
		WValue:        0x0100,
		WIndex:        uint16(itf.InterfaceNumber()),
		WLength:       8,
	}, nil)
	assert.ErrorIs(t, err, usbtest.ErrStalled)
}

func TestSetReport(t *testing.T) {
	type received struct {
		data       []byte
		reportID   uint8
		reportType uint8
	}
	var got []received

	port, itf := openedHID(t,
		hid.WithSetReportBuf(make([]byte, 8)),
		hid.WithOnSetReport(func(data []byte, reportID, reportType uint8) {
			got = append(got, received{
				data:       append([]byte(nil), data...),
				reportID:   reportID,
				reportType: reportType,
			})
		}),
	)

	_, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21,
		BRequest:      0x09,
		WValue:        0x0200, // output report, ID 0
		WIndex:        uint16(itf.InterfaceNumber()),
		WLength:       3,
	}, []byte{0xAA, 0xBB, 0xCC})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, got[0].data, "view truncated to wLength")
	assert.Equal(t, uint8(0), got[0].reportID)
	assert.Equal(t, uint8(2), got[0].reportType)
}

func TestSetReportWithoutBufferStalls(t *testing.T) {
	port, itf := openedHID(t)

	_, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21,
		BRequest:      0x09,
		WValue:        0x0200,
		WIndex:        uint16(itf.InterfaceNumber()),
		WLength:       1,
	}, []byte{1})
	assert.ErrorIs(t, err, usbtest.ErrStalled)
}

func TestSetReportLargerThanBuffer(t *testing.T) {
	var got []byte
	port, itf := openedHID(t,
		hid.WithSetReportBuf(make([]byte, 4)),
		hid.WithOnSetReport(func(data []byte, reportID, reportType uint8) {
			got = append([]byte(nil), data...)
		}),
	)

	// Host offers more bytes than the buffer holds; the transfer is capped
	// at the buffer size.
	_, err := port.ControlRequest(usb.SetupPacket{
		BMRequestType: 0x21,
		BRequest:      0x09,
		WValue:        0x0200,
		WIndex:        uint16(itf.InterfaceNumber()),
		WLength:       16,
	}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestSendReport(t *testing.T) {
	port, itf := openedHID(t)

	report := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, itf.SendReport(report, 0))

	buf, ok := port.Pending(itf.EndpointIn())
	require.True(t, ok)
	assert.Equal(t, report, buf)

	// Endpoint busy and no time to wait.
	err := itf.SendReport(report, 0)
	assert.ErrorIs(t, err, hid.ErrSendTimeout)
	_, stillPending := port.Pending(itf.EndpointIn())
	assert.True(t, stillPending, "timed out send leaves the first report in flight")

	require.NoError(t, port.Complete(itf.EndpointIn(), usb.ResultSuccess, len(report)))
	require.NoError(t, itf.SendReport(report, 0))
}

func TestSendReportWaitsForCompletion(t *testing.T) {
	port, itf := openedHID(t)
	require.NoError(t, itf.SendReport([]byte{1}, 0))

	done := make(chan error, 1)
	go func() { done <- itf.SendReport([]byte{2}, time.Second) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, port.Complete(itf.EndpointIn(), usb.ResultSuccess, 1))
	require.NoError(t, <-done)

	buf, ok := port.Pending(itf.EndpointIn())
	require.True(t, ok)
	assert.Equal(t, []byte{2}, buf)
}

func TestSendReportNotOpen(t *testing.T) {
	port := usbtest.NewPort()
	itf := hid.New(testReportDesc)
	dev := device.New(port, device.WithLogger(log.Discard()))
	require.NoError(t, dev.Init(itf))

	err := itf.SendReport([]byte{1}, 0)
	assert.ErrorIs(t, err, device.ErrNotOpen)
}
