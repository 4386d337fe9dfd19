// Package device implements the runtime core of the framework: the contract
// device-class drivers implement, the contract of the low-level USB
// controller port, and the Device manager that binds the two together.
package device

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/usb"
)

// Fixed string descriptor indexes, matching the reserved table slots.
const (
	strIdxManufacturer = 1
	strIdxProduct      = 2
	strIdxSerial       = 3
)

// Offsets shared by all standard descriptors: length, type, then the
// number/address field of interface and endpoint descriptors.
const (
	descOffsLen  = 0
	descOffsType = 1
	descOffsNum  = 2
)

// State is the lifecycle state of a Device.
type State uint8

const (
	// StateUnconfigured: constructed, Init not yet run to completion.
	StateUnconfigured State = iota
	// StateBuilding: Init is assembling descriptors.
	StateBuilding
	// StateConfiguredIdle: descriptors handed to the port, host has not
	// applied a configuration yet.
	StateConfiguredIdle
	// StateEnumerated: the host has applied a configuration.
	StateEnumerated
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateBuilding:
		return "building"
	case StateConfiguredIdle:
		return "configured"
	case StateEnumerated:
		return "enumerated"
	default:
		return "unknown"
	}
}

type registration struct {
	itf  Interface
	base *Base
}

type pendingXfer struct {
	done TransferCallback
}

// Device manages a set of interface drivers on one USB device controller:
// it builds the descriptors, owns the interface and endpoint routing tables
// and dispatches the port's callbacks.
type Device struct {
	port Port
	log  *slog.Logger
	cfg  Config

	mu          sync.Mutex
	state       State
	itfs        map[uint8]registration // interface number -> driver
	eps         map[uint8]registration // endpoint address -> driver
	pending     map[uint8]pendingXfer  // endpoint address -> submitted transfer
	tablesStale bool
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger. Takes precedence over Config.LogLevel.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithConfig sets the identity configuration applied by Init.
func WithConfig(c Config) Option {
	return func(d *Device) { d.cfg = c }
}

// New returns a Device driving the given port. The device stays disconnected
// until Init is called.
func New(port Port, opts ...Option) *Device {
	d := &Device{
		port:    port,
		state:   StateUnconfigured,
		itfs:    make(map[uint8]registration),
		eps:     make(map[uint8]registration),
		pending: make(map[uint8]pendingXfer),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil && d.cfg.LogLevel != "" {
		d.log, _, _ = log.SetupLogger(d.cfg.LogLevel, "")
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// Init builds the device and configuration descriptors from the given
// interface drivers and hands them to the port. Everything is rebuilt from
// scratch on every call, so calling Init again re-enumerates with the new
// driver set.
//
// Unless Config.Inactive is set, the device is connected to the bus before
// Init returns.
func (d *Device) Init(itfs ...Interface) error {
	if err := d.port.SetActive(false); err != nil {
		return fmt.Errorf("deactivate port: %w", err)
	}
	d.setState(StateBuilding)

	builtin := d.port.SelectBuiltin(d.cfg.BuiltinDrivers)
	d.log.Debug("building configuration",
		"interfaces", len(itfs),
		"builtin_itf_max", builtin.InterfaceMax,
		"builtin_ep_max", builtin.EndpointMax)

	maxPower := uint16(50)
	if d.cfg.MaxPower != nil {
		maxPower = *d.cfg.MaxPower
	}
	if maxPower > 0xFF {
		d.setState(StateUnconfigured)
		return fmt.Errorf("max power %d mA does not fit bMaxPower", maxPower)
	}

	strs := newStringTable(builtin.StringMax, d.cfg.Manufacturer, d.cfg.Product, d.cfg.Serial)
	devDesc := d.buildDeviceDescriptor(builtin)

	// Measure the configuration descriptor, then build it for real. Both
	// passes must append identical byte counts.
	sizer := usb.NewSizer()
	appendBuiltinConfig(sizer, builtin)
	for _, itf := range itfs {
		itf.BuildConfig(sizer, 0, 0, &StringTable{})
	}

	b := usb.NewBuilder(sizer.Len())
	appendBuiltinConfig(b, builtin)

	newItfs := make(map[uint8]registration, len(itfs))
	itfNum := uint8(builtin.InterfaceMax)
	epNum := uint8(max(builtin.EndpointMax, 1)) // endpoint 0 reserved for control
	for _, itf := range itfs {
		base := itf.attach(d)
		itf.BuildConfig(b, itfNum, epNum, strs)
		for i := 0; i < itf.NumInterfaces(); i++ {
			newItfs[itfNum] = registration{itf: itf, base: base}
			itfNum++
		}
		epNum += uint8(itf.NumEndpoints())
	}
	if b.Len() != sizer.Len() {
		d.setState(StateUnconfigured)
		return fmt.Errorf("config descriptor size mismatch: sizing pass %d bytes, content pass %d bytes",
			sizer.Len(), b.Len())
	}

	bmAttributes := uint8(1 << 7)
	if maxPower == 0 {
		bmAttributes |= 1 << 6 // self-powered
	}
	var iConfiguration uint8
	if d.cfg.Configuration != "" {
		iConfiguration = strs.Add(d.cfg.Configuration)
	}
	b.WriteAt(0, usb.ConfigHeader{
		WTotalLength:        uint16(b.Len()),
		BNumInterfaces:      itfNum,
		BConfigurationValue: 1,
		IConfiguration:      iConfiguration,
		BMAttributes:        bmAttributes,
		BMaxPower:           uint8(maxPower),
	}.Bytes())

	d.mu.Lock()
	d.itfs = newItfs
	d.eps = make(map[uint8]registration)
	d.pending = make(map[uint8]pendingXfer)
	d.tablesStale = true
	d.mu.Unlock()

	cb := Callbacks{
		OpenInterface:    d.openInterface,
		Reset:            d.handleReset,
		ControlXfer:      d.controlXfer,
		TransferComplete: d.transferComplete,
	}
	if err := d.port.Configure(devDesc.Bytes(), b.Bytes(), strs.Strings(), cb); err != nil {
		d.setState(StateUnconfigured)
		return fmt.Errorf("configure port: %w", err)
	}
	d.setState(StateConfiguredIdle)

	if !d.cfg.Inactive {
		if err := d.port.SetActive(true); err != nil {
			return fmt.Errorf("activate port: %w", err)
		}
	}
	return nil
}

// SetActive connects or disconnects the device from the bus without
// rebuilding the configuration.
func (d *Device) SetActive(on bool) error {
	return d.port.SetActive(on)
}

// State reports the manager's lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Logger returns the logger the device was constructed with.
func (d *Device) Logger() *slog.Logger {
	return d.log
}

func (d *Device) setState(s State) {
	d.mu.Lock()
	old := d.state
	d.state = s
	d.mu.Unlock()
	if old != s {
		d.log.Debug("state changed", "from", old, "to", s)
	}
}

func (d *Device) buildDeviceDescriptor(builtin BuiltinInfo) usb.DeviceDescriptor {
	dd, err := usb.ParseDeviceDescriptor(builtin.DeviceDesc)
	if err != nil {
		// No builtin template, start from a bare full-speed device.
		dd = usb.DeviceDescriptor{BcdUSB: 0x0200, BMaxPacketSize0: 64}
	}
	if v := d.cfg.DeviceClass; v != nil {
		dd.BDeviceClass = *v
	}
	if v := d.cfg.DeviceSubClass; v != nil {
		dd.BDeviceSubClass = *v
	}
	if v := d.cfg.DeviceProtocol; v != nil {
		dd.BDeviceProtocol = *v
	}
	if v := d.cfg.VendorID; v != nil {
		dd.IDVendor = *v
	}
	if v := d.cfg.ProductID; v != nil {
		dd.IDProduct = *v
	}
	if v := d.cfg.BCDDevice; v != nil {
		dd.BcdDevice = *v
	}
	dd.IManufacturer = strIdxManufacturer
	dd.IProduct = strIdxProduct
	dd.ISerialNumber = strIdxSerial
	dd.BNumConfigurations = 1
	return dd
}

func appendBuiltinConfig(b *usb.Builder, builtin BuiltinInfo) {
	if len(builtin.ConfigDesc) > 0 {
		b.Append(builtin.ConfigDesc)
		return
	}
	// Space for the 9-byte header, patched once the content is complete.
	b.Append(make([]byte, usb.ConfigDescLen))
}

// openInterface handles the port's per-group open callback when the host
// applies a configuration. desc runs from the group's first interface
// descriptor to the end of the group; for an association the IAD itself is
// not included.
func (d *Device) openInterface(desc []byte) {
	if len(desc) < usb.InterfaceDescLen {
		d.log.Error("open callback with truncated descriptor", "len", len(desc))
		return
	}
	itfNum := desc[descOffsNum]

	d.mu.Lock()
	if d.tablesStale {
		// First group of a fresh configuration: drop the previous
		// configuration's endpoint routing before merging in the new one.
		d.eps = make(map[uint8]registration)
		d.pending = make(map[uint8]pendingXfer)
		d.tablesStale = false
	}
	reg, ok := d.itfs[itfNum]
	if !ok {
		d.mu.Unlock()
		d.log.Error("open callback for unregistered interface", "itf", itfNum)
		return
	}

	// Scan the group, registering endpoint addresses against the owning
	// driver and tracking the highest interface number seen.
	maxItf := itfNum
	for offs := 0; offs+descOffsNum < len(desc); {
		dl := int(desc[offs+descOffsLen])
		if dl == 0 {
			break
		}
		switch desc[offs+descOffsType] {
		case usb.EndpointDescType:
			d.eps[desc[offs+descOffsNum]] = reg
		case usb.InterfaceDescType:
			maxItf = max(maxItf, desc[offs+descOffsNum])
		}
		offs += dl
	}

	// A driver spanning several interfaces can get this callback more than
	// once. Fire HandleOpen only when the group ends the driver's span, so
	// the hook runs exactly once, after all its endpoints are registered.
	next, nextOk := d.itfs[maxItf+1]
	fire := !nextOk || next.itf != reg.itf
	d.state = StateEnumerated
	d.mu.Unlock()

	d.log.Debug("interface opened", "itf", itfNum, "max_itf", maxItf, "group_bytes", len(desc))
	if fire {
		reg.itf.HandleOpen()
	}
}

// handleReset handles the port's bus reset callback: cancel outstanding
// transfer callbacks first, then let every driver react.
func (d *Device) handleReset() {
	d.mu.Lock()
	clear(d.pending)
	d.tablesStale = true
	if d.state == StateEnumerated {
		d.state = StateConfiguredIdle
	}
	nums := make([]int, 0, len(d.itfs))
	for n := range d.itfs {
		nums = append(nums, int(n))
	}
	slices.Sort(nums)
	targets := make([]Interface, 0, len(nums))
	for _, n := range nums {
		itf := d.itfs[uint8(n)].itf
		if len(targets) == 0 || targets[len(targets)-1] != itf {
			targets = append(targets, itf)
		}
	}
	d.mu.Unlock()

	d.log.Debug("bus reset", "drivers", len(targets))
	for _, itf := range targets {
		itf.HandleReset()
	}
}

// controlXfer routes one stage of a control transfer to the driver named by
// the request's recipient and wIndex.
func (d *Device) controlXfer(stage usb.Stage, setup usb.SetupPacket) ([]byte, bool, error) {
	var reg registration
	var ok bool

	d.mu.Lock()
	switch setup.Recipient() {
	case usb.RecipientDevice, usb.RecipientInterface:
		if setup.WIndex <= 0xFF {
			reg, ok = d.itfs[uint8(setup.WIndex)]
		}
	case usb.RecipientEndpoint:
		if setup.WIndex <= 0xFF {
			reg, ok = d.eps[uint8(setup.WIndex)]
		}
	}
	d.mu.Unlock()

	if !ok {
		// The port only routes class driver requests here, so an
		// unresolved lookup means the request names something that was
		// never registered.
		d.log.Error("unroutable control request", "stage", stage, "setup", setup)
		return nil, false, fmt.Errorf("%w: unexpected control request type 0x%02x", ErrProtocol, setup.BMRequestType)
	}

	var data []byte
	var cont bool
	switch setup.Recipient() {
	case usb.RecipientDevice:
		data, cont = reg.itf.HandleDeviceControlXfer(stage, setup)
	case usb.RecipientInterface:
		data, cont = reg.itf.HandleInterfaceControlXfer(stage, setup)
	case usb.RecipientEndpoint:
		data, cont = reg.itf.HandleEndpointControlXfer(stage, setup)
	}
	return data, cont, nil
}

// transferComplete pops the pending entry for ep and runs its callback.
func (d *Device) transferComplete(ep uint8, res usb.Result, n int) {
	d.mu.Lock()
	p, ok := d.pending[ep]
	delete(d.pending, ep)
	d.mu.Unlock()

	if ok && p.done != nil {
		p.done(ep, res, n)
	}
}

func (d *Device) submitTransfer(ep uint8, data []byte, done TransferCallback) error {
	d.mu.Lock()
	if _, ok := d.eps[ep]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: 0x%02x", ErrInvalidEndpoint, ep)
	}
	if _, ok := d.pending[ep]; ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: 0x%02x", ErrTransferPending, ep)
	}
	// Record the pending entry before handing the transfer to the port:
	// the completion callback can run before SubmitTransfer returns.
	d.pending[ep] = pendingXfer{done: done}
	d.mu.Unlock()

	if err := d.port.SubmitTransfer(ep, data); err != nil {
		d.mu.Lock()
		delete(d.pending, ep)
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPortRejected, err)
	}
	return nil
}

func (d *Device) transferPending(ep uint8) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[ep]
	return ok
}

func (d *Device) setStall(ep uint8, owner *Base, stalled bool) error {
	d.mu.Lock()
	reg, ok := d.eps[ep]
	d.mu.Unlock()
	if !ok || reg.base != owner {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidEndpoint, ep)
	}
	return d.port.SetStall(ep, stalled)
}

func (d *Device) stalled(ep uint8, owner *Base) (bool, error) {
	d.mu.Lock()
	reg, ok := d.eps[ep]
	d.mu.Unlock()
	if !ok || reg.base != owner {
		return false, fmt.Errorf("%w: 0x%02x", ErrInvalidEndpoint, ep)
	}
	return d.port.Stalled(ep), nil
}
