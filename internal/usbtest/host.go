package usbtest

import (
	"errors"
	"fmt"

	"github.com/Alia5/usbd/usb"
)

// Enumerate plays the host side of bus enumeration: it walks the installed
// configuration descriptor and fires the open callback once per interface,
// or once per interface association when an IAD groups several interfaces
// into one function. Descriptors contributed by builtin class drivers are
// claimed by those drivers on real hardware and are skipped here.
func (p *Port) Enumerate() error {
	p.mu.Lock()
	cfg := p.configDesc
	cb := p.cb
	active := p.active
	skip := len(p.builtin.ConfigDesc)
	p.mu.Unlock()

	if cb.OpenInterface == nil {
		return errors.New("usbtest: port not configured")
	}
	if !active {
		return errors.New("usbtest: port not active")
	}
	if skip == 0 {
		skip = usb.ConfigDescLen
	}

	for _, group := range splitGroups(cfg, skip) {
		cb.OpenInterface(group)
	}
	return nil
}

// splitGroups slices a configuration descriptor into the per-function views
// handed to the open callback. Each view starts at an interface descriptor
// and runs up to the next function.
func splitGroups(cfg []byte, offs int) [][]byte {
	var groups [][]byte
	for offs+1 < len(cfg) {
		dl := int(cfg[offs])
		if dl == 0 {
			break
		}
		switch cfg[offs+1] {
		case usb.IADescType:
			count := int(cfg[offs+3])
			start := offs + dl
			end := scanGroup(cfg, start, count)
			groups = append(groups, cfg[start:end])
			offs = end
		case usb.InterfaceDescType:
			end := scanGroup(cfg, offs, 1)
			groups = append(groups, cfg[offs:end])
			offs = end
		default:
			offs += dl
		}
	}
	return groups
}

// scanGroup advances from start past count interface descriptors and their
// trailing class and endpoint descriptors.
func scanGroup(cfg []byte, start, count int) int {
	offs, seen := start, 0
	for offs+1 < len(cfg) {
		dl := int(cfg[offs])
		if dl == 0 {
			break
		}
		switch cfg[offs+1] {
		case usb.IADescType:
			return offs
		case usb.InterfaceDescType:
			seen++
			if seen > count {
				return offs
			}
		}
		offs += dl
	}
	return min(offs, len(cfg))
}

// ResetBus simulates a bus reset: outstanding transfers and stall state are
// dropped and the device's reset callback runs.
func (p *Port) ResetBus() {
	p.mu.Lock()
	clear(p.submitted)
	clear(p.stalls)
	cb := p.cb
	p.mu.Unlock()
	if cb.Reset != nil {
		cb.Reset()
	}
}

// Complete finishes the outstanding transfer on ep with the given result
// and transferred byte count, invoking the device's completion callback.
func (p *Port) Complete(ep uint8, res usb.Result, n int) error {
	p.mu.Lock()
	_, ok := p.submitted[ep]
	if ok {
		delete(p.submitted, ep)
	}
	cb := p.cb
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("usbtest: no transfer pending on ep 0x%02x", ep)
	}
	if cb.TransferComplete != nil {
		cb.TransferComplete(ep, res, n)
	}
	return nil
}

// ControlRequest drives a full control transfer through the device's
// control callback, one stage at a time the way the controller hardware
// does. For IN requests the device's response, truncated to wLength, is
// returned. For OUT requests data is copied into the buffer the device
// supplies before the data stage fires. A stall at any stage surfaces as
// ErrStalled.
func (p *Port) ControlRequest(setup usb.SetupPacket, data []byte) ([]byte, error) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb.ControlXfer == nil {
		return nil, errors.New("usbtest: port not configured")
	}

	buf, ok, err := cb.ControlXfer(usb.StageSetup, setup)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStalled
	}

	var out []byte
	if setup.WLength > 0 {
		if setup.Direction() == usb.DirIn {
			n := min(int(setup.WLength), len(buf))
			out = append([]byte(nil), buf[:n]...)
		} else {
			if buf == nil {
				return nil, ErrStalled
			}
			copy(buf, data[:min(len(buf), len(data))])
		}
		if _, ok, err = cb.ControlXfer(usb.StageData, setup); err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrStalled
		}
	}

	if _, ok, err = cb.ControlXfer(usb.StageAck, setup); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStalled
	}
	return out, nil
}
