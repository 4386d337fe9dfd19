package device

import "github.com/Alia5/usbd/usb"

// BuiltinInfo describes the descriptor space already claimed by the
// platform's built-in class drivers. The device manager allocates interface
// numbers, endpoint numbers and string indexes starting after these.
type BuiltinInfo struct {
	InterfaceMax int // first free interface number
	EndpointMax  int // first free endpoint number
	StringMax    int // first free string index
	DeviceDesc   []byte
	ConfigDesc   []byte // nil when the builtin set has no interfaces
}

// Callbacks are invoked by the port while the bus is serviced. They may run
// on the port's own goroutine, concurrently with driver code.
type Callbacks struct {
	// OpenInterface is called once per interface group when the host
	// applies a configuration. desc is the slice of the configuration
	// descriptor from the group's first interface descriptor to the end of
	// the group.
	OpenInterface func(desc []byte)

	// Reset is called when the host resets the bus.
	Reset func()

	// ControlXfer is called once per stage of a control transfer routed to
	// class drivers. Returning (nil, true) continues the transfer with no
	// data, (data, true) supplies the data-stage buffer, (nil, false)
	// stalls. A non-nil error marks a protocol violation the port cannot
	// recover from.
	ControlXfer func(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool, error)

	// TransferComplete reports the outcome of a submitted transfer. It may
	// be invoked synchronously from inside SubmitTransfer.
	TransferComplete func(ep uint8, res usb.Result, n int)
}

// Port is the low-level USB device controller the manager drives. Real
// implementations wrap hardware or an emulated bus; tests use a fake.
type Port interface {
	// SelectBuiltin enables or disables the built-in class drivers and
	// reports the descriptor space they occupy.
	SelectBuiltin(enable bool) BuiltinInfo

	// Configure installs the descriptors, string table and callbacks for
	// the next enumeration. The port must be inactive.
	Configure(deviceDesc, configDesc []byte, strs []string, cb Callbacks) error

	// SetActive connects or disconnects the device from the bus.
	SetActive(on bool) error

	// SubmitTransfer queues a single transfer on a non-control endpoint.
	// Completion is reported through Callbacks.TransferComplete.
	SubmitTransfer(ep uint8, data []byte) error

	// SetStall sets or clears the STALL condition on an endpoint.
	SetStall(ep uint8, stalled bool) error

	// Stalled reports the STALL condition of an endpoint.
	Stalled(ep uint8) bool
}
