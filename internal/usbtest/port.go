// Package usbtest provides an in-memory device port and host-side helpers
// for exercising device stacks without hardware.
package usbtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Alia5/usbd/device"
	"github.com/Alia5/usbd/internal/log"
	"github.com/Alia5/usbd/usb"
)

// ErrStalled is returned by ControlRequest when the device stalls any stage
// of the transfer.
var ErrStalled = errors.New("control transfer stalled")

// Port is an in-memory device.Port. It records what the device manager
// installs and lets tests play the host: enumerate, complete transfers and
// issue control requests.
type Port struct {
	// BuiltinOn and BuiltinOff are handed out by SelectBuiltin. NewPort
	// seeds them with BuiltinDefault and BuiltinNone.
	BuiltinOn  device.BuiltinInfo
	BuiltinOff device.BuiltinInfo

	// RejectSubmits makes SubmitTransfer fail, standing in for a
	// controller error.
	RejectSubmits bool

	// CompleteInSubmit completes each transfer synchronously inside
	// SubmitTransfer, before it returns.
	CompleteInSubmit bool

	// ConfigureErr makes Configure fail.
	ConfigureErr error

	// Traffic, when set, receives every buffer moved on a non-control
	// endpoint.
	Traffic log.RawLogger

	mu         sync.Mutex
	builtin    device.BuiltinInfo
	active     bool
	configured bool
	deviceDesc []byte
	configDesc []byte
	strs       []string
	cb         device.Callbacks
	stalls     map[uint8]bool
	submitted  map[uint8][]byte
}

var _ device.Port = (*Port)(nil)

// NewPort returns a Port with no builtin drivers selected.
func NewPort() *Port {
	return &Port{
		BuiltinOn:  BuiltinDefault(),
		BuiltinOff: BuiltinNone(),
		builtin:    BuiltinNone(),
		stalls:     make(map[uint8]bool),
		submitted:  make(map[uint8][]byte),
	}
}

func (p *Port) SelectBuiltin(enable bool) device.BuiltinInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enable {
		p.builtin = p.BuiltinOn
	} else {
		p.builtin = p.BuiltinOff
	}
	return p.builtin
}

func (p *Port) Configure(deviceDesc, configDesc []byte, strs []string, cb device.Callbacks) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConfigureErr != nil {
		return p.ConfigureErr
	}
	if p.active {
		return errors.New("usbtest: configure while active")
	}
	p.deviceDesc = append([]byte(nil), deviceDesc...)
	p.configDesc = append([]byte(nil), configDesc...)
	p.strs = append([]string(nil), strs...)
	p.cb = cb
	p.configured = true
	return nil
}

func (p *Port) SetActive(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = on
	return nil
}

func (p *Port) SubmitTransfer(ep uint8, data []byte) error {
	p.mu.Lock()
	if p.RejectSubmits {
		p.mu.Unlock()
		return errors.New("usbtest: submit rejected")
	}
	if _, ok := p.submitted[ep]; ok {
		p.mu.Unlock()
		return fmt.Errorf("usbtest: transfer already queued on ep 0x%02x", ep)
	}
	p.submitted[ep] = data
	cb := p.cb
	complete := p.CompleteInSubmit
	traffic := p.Traffic
	n := len(data)
	p.mu.Unlock()

	if traffic != nil {
		traffic.Log(ep, data)
	}
	if complete {
		p.mu.Lock()
		delete(p.submitted, ep)
		p.mu.Unlock()
		if cb.TransferComplete != nil {
			cb.TransferComplete(ep, usb.ResultSuccess, n)
		}
	}
	return nil
}

func (p *Port) SetStall(ep uint8, stalled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stalled {
		p.stalls[ep] = true
	} else {
		delete(p.stalls, ep)
	}
	return nil
}

func (p *Port) Stalled(ep uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stalls[ep]
}

// Active reports whether the device is connected to the fake bus.
func (p *Port) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// DeviceDesc returns the installed device descriptor.
func (p *Port) DeviceDesc() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.deviceDesc...)
}

// ConfigDesc returns the installed configuration descriptor.
func (p *Port) ConfigDesc() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.configDesc...)
}

// Strings returns the installed string table.
func (p *Port) Strings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.strs...)
}

// Pending returns the buffer of the outstanding transfer on ep, if any.
func (p *Port) Pending(ep uint8) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.submitted[ep]
	return data, ok
}
