package device

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/usb"
)

// TransferCallback is invoked when a transfer submitted with SubmitTransfer
// completes. It may run before SubmitTransfer has returned to the caller.
type TransferCallback func(ep uint8, res usb.Result, n int)

// Interface is implemented by device-class drivers. One Interface object may
// represent multiple consecutive USB interfaces, with or without an
// Interface Association Descriptor prepended (override NumInterfaces when it
// does).
//
// Implementations must embed Base, which supplies every method except
// BuildConfig.
type Interface interface {
	// BuildConfig appends this driver's part of the configuration
	// descriptor: at least one interface descriptor, plus any endpoint,
	// association or class-specific descriptors. Interface numbers are
	// consumed starting at itfNum and endpoint numbers at epNum; the
	// driver should record the values it picked for later use.
	//
	// BuildConfig runs twice per Init. The first run only measures, with
	// dummy zero numbers and a throwaway string table, so it must append
	// exactly the same byte count as the second.
	BuildConfig(b *usb.Builder, itfNum, epNum uint8, strs *StringTable)

	// NumInterfaces returns how many USB interface numbers BuildConfig
	// consumes.
	NumInterfaces() int

	// NumEndpoints returns how many endpoint numbers BuildConfig consumes.
	// Each number may carry both an IN and an OUT endpoint.
	NumEndpoints() int

	// HandleOpen is called when the host accepts the device configuration
	// and the driver's endpoints become usable.
	HandleOpen()

	// HandleReset is called when the host resets the bus. Outstanding
	// transfers are already cancelled.
	HandleReset()

	// HandleDeviceControlXfer handles a control transfer whose recipient
	// is the device and whose wIndex low byte names one of this driver's
	// interfaces. Per stage: return (nil, true) to continue with no data,
	// (buf, true) to supply the data-stage buffer, (nil, false) to stall.
	HandleDeviceControlXfer(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool)

	// HandleInterfaceControlXfer is like HandleDeviceControlXfer for
	// interface-recipient requests. Standard requests can be left
	// unhandled; the port answers those itself.
	HandleInterfaceControlXfer(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool)

	// HandleEndpointControlXfer is like HandleDeviceControlXfer for
	// endpoint-recipient requests, where wIndex names an endpoint address
	// belonging to this driver.
	HandleEndpointControlXfer(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool)

	// attach is implemented only by Base, pinning drivers to embed it.
	attach(d *Device) *Base
}

// Base is the mandatory embedded default implementation of Interface,
// carrying the open flag and the back-reference to the owning Device. The
// zero value is ready to embed; Init wires it up.
type Base struct {
	dev  atomic.Pointer[Device]
	open atomic.Bool
}

func (b *Base) attach(d *Device) *Base {
	b.open.Store(false)
	b.dev.Store(d)
	return b
}

// IsOpen reports whether the host has configured this interface.
func (b *Base) IsOpen() bool {
	return b.open.Load()
}

// Logger returns the owning Device's logger, or a discard logger before
// Init has attached the driver.
func (b *Base) Logger() *slog.Logger {
	if dev := b.dev.Load(); dev != nil {
		return dev.Logger()
	}
	return log.Discard()
}

// HandleOpen marks the interface open. Overriding drivers must call through.
func (b *Base) HandleOpen() {
	b.open.Store(true)
}

// HandleReset marks the interface closed. Overriding drivers must call
// through.
func (b *Base) HandleReset() {
	b.open.Store(false)
}

func (b *Base) NumInterfaces() int { return 1 }

func (b *Base) NumEndpoints() int { return 0 }

func (b *Base) HandleDeviceControlXfer(usb.Stage, usb.SetupPacket) ([]byte, bool) {
	return nil, false
}

func (b *Base) HandleInterfaceControlXfer(usb.Stage, usb.SetupPacket) ([]byte, bool) {
	return nil, false
}

func (b *Base) HandleEndpointControlXfer(usb.Stage, usb.SetupPacket) ([]byte, bool) {
	return nil, false
}

// SubmitTransfer queues a transfer on an endpoint this driver claimed in
// BuildConfig. Only one transfer can be outstanding per endpoint; done (may
// be nil) runs when it completes, possibly before SubmitTransfer returns.
func (b *Base) SubmitTransfer(ep uint8, data []byte, done TransferCallback) error {
	dev := b.dev.Load()
	if dev == nil {
		return ErrNotInitialized
	}
	if !b.open.Load() {
		return ErrNotOpen
	}
	return dev.submitTransfer(ep, data, done)
}

// TransferPending reports whether a transfer is outstanding on ep.
func (b *Base) TransferPending(ep uint8) bool {
	dev := b.dev.Load()
	if dev == nil {
		return false
	}
	return dev.transferPending(ep)
}

// SetStall sets or clears the STALL condition on an endpoint owned by this
// driver. Most class drivers never need this; STALL is normally handled by
// the control layer.
func (b *Base) SetStall(ep uint8, stalled bool) error {
	dev := b.dev.Load()
	if dev == nil {
		return ErrNotInitialized
	}
	if !b.open.Load() {
		return ErrNotOpen
	}
	return dev.setStall(ep, b, stalled)
}

// Stalled reports the STALL condition of an endpoint owned by this driver.
func (b *Base) Stalled(ep uint8) (bool, error) {
	dev := b.dev.Load()
	if dev == nil {
		return false, ErrNotInitialized
	}
	if !b.open.Load() {
		return false, ErrNotOpen
	}
	return dev.stalled(ep, b)
}

// StringTable collects the device's string descriptors in index order.
// Indexes 0 through 3 are reserved (language ID, manufacturer, product,
// serial); drivers append additional strings while building descriptors and
// reference the returned index. Empty entries are reserved placeholders with
// no descriptor.
type StringTable struct {
	entries []string
}

func newStringTable(reserve int, manufacturer, product, serial string) *StringTable {
	t := &StringTable{entries: []string{"", manufacturer, product, serial}}
	for len(t.entries) < reserve {
		t.entries = append(t.entries, "")
	}
	return t
}

// Add appends s and returns its assigned string descriptor index.
func (t *StringTable) Add(s string) uint8 {
	if len(t.entries) > 0xFF {
		panic(fmt.Sprintf("device: string table full adding %q", s))
	}
	i := uint8(len(t.entries))
	t.entries = append(t.entries, s)
	return i
}

// At returns the string at index i. ok is false for reserved placeholders
// and out-of-range indexes.
func (t *StringTable) At(i uint8) (s string, ok bool) {
	if int(i) >= len(t.entries) || t.entries[i] == "" {
		return "", false
	}
	return t.entries[i], true
}

// Len returns the number of allocated indexes, placeholders included.
func (t *StringTable) Len() int {
	return len(t.entries)
}

// Strings returns a copy of the table in index order.
func (t *StringTable) Strings() []string {
	return append([]string(nil), t.entries...)
}
