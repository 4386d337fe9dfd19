// Package hid implements a generic USB HID interface driver. Concrete
// devices supply a report descriptor and send input reports over the
// interrupt IN endpoint; output reports from the host arrive through
// SET_REPORT control transfers.
package hid

import (
	"errors"
	"time"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/usb"
)

// HID class descriptor types.
const (
	DescTypeHID      = 0x21
	DescTypeReport   = 0x22
	DescTypePhysical = 0x23
)

// Interface protocols, HID v1.11 section 4.3.
const (
	ProtocolNone     = 0x00
	ProtocolKeyboard = 0x01
	ProtocolMouse    = 0x02
)

// Class-specific bRequest values, HID v1.11 section 7.2.
const (
	reqGetReport   = 0x01
	reqGetIdle     = 0x02
	reqGetProtocol = 0x03
	reqSetReport   = 0x09
	reqSetIdle     = 0x0A
	reqSetProtocol = 0x0B
)

const (
	interfaceClass    = 0x03
	interfaceSubclass = 0x00
)

// sendPoll is how long SendReport sleeps between checks while the interrupt
// endpoint is still busy with the previous report.
const sendPoll = 50 * time.Millisecond

// ErrSendTimeout is returned by SendReport when the interrupt endpoint
// stays busy past the deadline.
var ErrSendTimeout = errors.New("hid: send report timeout")

// ExtraDescriptor is an additional HID class descriptor advertised after
// the mandatory report descriptor. Few devices use these.
type ExtraDescriptor struct {
	Type uint8
	Data []byte
}

// OnSetReport receives output and feature reports the host sends through
// SET_REPORT. data aliases the configured set-report buffer and is only
// valid during the call.
type OnSetReport func(data []byte, reportID, reportType uint8)

// Option configures an Interface.
type Option func(*Interface)

// WithExtraDescriptors advertises additional HID class descriptors after
// the report descriptor.
func WithExtraDescriptors(extra []ExtraDescriptor) Option {
	return func(i *Interface) { i.extra = extra }
}

// WithSetReportBuf sets the buffer SET_REPORT data is received into. It
// must be at least as large as the biggest Output or Feature entry in the
// report descriptor. Without it, SET_REPORT requests are stalled.
func WithSetReportBuf(buf []byte) Option {
	return func(i *Interface) { i.setRepBuf = buf }
}

// WithProtocol sets bInterfaceProtocol, marking a boot keyboard or mouse.
func WithProtocol(protocol uint8) Option {
	return func(i *Interface) { i.protocol = protocol }
}

// WithInterfaceString attaches a string descriptor to the interface.
func WithInterfaceString(s string) Option {
	return func(i *Interface) { i.itfStr = s }
}

// WithOnSetReport installs the hook called when a SET_REPORT data stage
// completes.
func WithOnSetReport(fn OnSetReport) Option {
	return func(i *Interface) { i.onSetRep = fn }
}

// Interface is a single HID interface with one interrupt IN endpoint.
// Pass it to device.Device.Init directly or embed it in a concrete driver.
type Interface struct {
	device.Base

	reportDesc []byte
	extra      []ExtraDescriptor
	setRepBuf  []byte
	protocol   uint8
	itfStr     string
	onSetRep   OnSetReport

	itfNum uint8
	inEp   uint8

	// Runtime state owned by the host, separate from the descriptor
	// protocol above.
	idleRate     uint8
	bootProtocol uint8
}

// New returns a HID interface for the given binary report descriptor (HID
// v1.11 section 6.2.2).
func New(reportDesc []byte, opts ...Option) *Interface {
	itf := &Interface{reportDesc: reportDesc}
	for _, opt := range opts {
		opt(itf)
	}
	return itf
}

// InterfaceNumber returns the interface number assigned during Init.
func (i *Interface) InterfaceNumber() uint8 { return i.itfNum }

// EndpointIn returns the interrupt IN endpoint address assigned during
// Init.
func (i *Interface) EndpointIn() uint8 { return i.inEp }

func (i *Interface) BuildConfig(b *usb.Builder, itfNum, epNum uint8, strs *device.StringTable) {
	var iInterface uint8
	if i.itfStr != "" {
		iInterface = strs.Add(i.itfStr)
	}
	b.Interface(usb.InterfaceDescriptor{
		BInterfaceNumber:   itfNum,
		BNumEndpoints:      1,
		BInterfaceClass:    interfaceClass,
		BInterfaceSubClass: interfaceSubclass,
		BInterfaceProtocol: i.protocol,
		IInterface:         iInterface,
	})

	// HID v1.11 section 7.1: the HID class descriptor sits between the
	// interface descriptor and its endpoint.
	b.Append(i.Descriptor())

	inEp := usb.EPIn | epNum
	b.Endpoint(usb.EndpointDescriptor{
		BEndpointAddress: inEp,
		BMAttributes:     uint8(usb.TransferInterrupt),
		WMaxPacketSize:   8,
		BInterval:        8,
	})

	if !b.Sizing() {
		i.itfNum = itfNum
		i.inEp = inEp
		i.idleRate = 0
		i.bootProtocol = 0
	}
}

func (i *Interface) NumEndpoints() int { return 1 }

// Descriptor returns the HID class descriptor, 9 bytes plus 3 per extra
// descriptor (HID v1.11 section 6.2.1).
func (i *Interface) Descriptor() []byte {
	total := 9 + 3*len(i.extra)
	b := usb.NewBuilder(total)
	b.AppendByte(uint8(total))
	b.AppendByte(DescTypeHID)
	b.AppendUint16(0x0111) // bcdHID
	b.AppendByte(0)        // bCountryCode
	b.AppendByte(uint8(len(i.extra) + 1))
	b.AppendByte(DescTypeReport)
	b.AppendUint16(uint16(len(i.reportDesc)))
	for _, e := range i.extra {
		b.AppendByte(e.Type)
		b.AppendUint16(uint16(len(e.Data)))
	}
	return b.Bytes()
}

func (i *Interface) HandleInterfaceControlXfer(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool) {
	switch stage {
	case usb.StageSetup:
		return i.handleSetup(setup)
	case usb.StageData:
		if setup.Type() == usb.RequestTypeClass && setup.BRequest == reqSetReport && i.setRepBuf != nil {
			data := i.setRepBuf
			if n := int(setup.WLength); n < len(data) {
				data = data[:n]
			}
			if i.onSetRep != nil {
				i.onSetRep(data, uint8(setup.WValue&0xFF), uint8(setup.WValue>>8))
			}
		}
		return nil, true
	default:
		return nil, true
	}
}

func (i *Interface) handleSetup(setup usb.SetupPacket) ([]byte, bool) {
	switch setup.Type() {
	case usb.RequestTypeStandard:
		// HID v1.11 section 7.1 standard requests.
		if setup.BRequest == usb.RequestGetDescriptor {
			switch uint8(setup.WValue >> 8) {
			case DescTypeHID:
				return i.Descriptor(), true
			case DescTypeReport:
				return i.reportDesc, true
			}
		}
	case usb.RequestTypeClass:
		// HID v1.11 section 7.2 class-specific requests.
		switch setup.BRequest {
		case reqGetReport:
			i.Logger().Debug("GET_REPORT not supported", "itf", i.itfNum)
		case reqGetIdle:
			return []byte{i.idleRate}, true
		case reqGetProtocol:
			return []byte{i.bootProtocol}, true
		case reqSetIdle:
			i.idleRate = uint8(setup.WValue >> 8)
			return nil, true
		case reqSetProtocol:
			i.bootProtocol = uint8(setup.WValue)
			return nil, true
		case reqSetReport:
			if i.setRepBuf == nil {
				return nil, false
			}
			if n := int(setup.WLength); n < len(i.setRepBuf) {
				return i.setRepBuf[:n], true
			}
			return i.setRepBuf, true
		}
	}
	return nil, false
}

// SendReport submits an input report on the interrupt endpoint, waiting up
// to timeout for a previous report to drain first.
func (i *Interface) SendReport(data []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for i.IsOpen() && i.TransferPending(i.inEp) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrSendTimeout
		}
		time.Sleep(min(sendPoll, remaining))
	}
	if !i.IsOpen() {
		return device.ErrNotOpen
	}
	return i.SubmitTransfer(i.inEp, data, nil)
}
