package usb

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles a configuration descriptor in two passes. A sizing
// builder counts bytes without storing them; a content builder writes into
// a fixed buffer sized by the first pass. Both passes must produce identical
// byte counts for the same interface set.
type Builder struct {
	buf    []byte
	off    int
	sizing bool
}

// NewSizer returns a builder that only measures. Bytes written to it are
// discarded and Len reports what a content pass would produce.
func NewSizer() *Builder {
	return &Builder{sizing: true}
}

// NewBuilder returns a builder backed by a fixed buffer of size bytes,
// normally the Len of a completed sizing pass.
func NewBuilder(size int) *Builder {
	return &Builder{buf: make([]byte, size)}
}

// Sizing reports whether the builder measures instead of storing.
func (d *Builder) Sizing() bool {
	return d.sizing
}

// Len reports the number of bytes appended so far, counting the furthest
// byte any WriteAt has reached.
func (d *Builder) Len() int {
	return d.off
}

// Bytes returns the built descriptor, or nil for a sizing builder.
func (d *Builder) Bytes() []byte {
	if d.sizing {
		return nil
	}
	return d.buf[:d.off]
}

// Append copies data at the current offset.
func (d *Builder) Append(data []byte) {
	d.WriteAt(d.off, data)
}

// AppendByte appends a single byte.
func (d *Builder) AppendByte(v uint8) {
	d.Append([]byte{v})
}

// AppendUint16 appends v in little-endian order.
func (d *Builder) AppendUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	d.Append(tmp[:])
}

// WriteAt copies data at offset offs, extending the length when the write
// runs past the current end. Writing below the end patches bytes in place,
// which is how the configuration header is fixed up once the total length
// and interface count are known.
func (d *Builder) WriteAt(offs int, data []byte) {
	end := offs + len(data)
	if !d.sizing {
		if end > len(d.buf) {
			panic(fmt.Sprintf("usb: descriptor builder overflow: need %d bytes, have %d", end, len(d.buf)))
		}
		copy(d.buf[offs:end], data)
	}
	if end > d.off {
		d.off = end
	}
}

// Interface appends a 9-byte interface descriptor.
func (d *Builder) Interface(itf InterfaceDescriptor) {
	d.Append(itf.Bytes())
}

// Endpoint appends a 7-byte endpoint descriptor.
func (d *Builder) Endpoint(ep EndpointDescriptor) {
	d.Append(ep.Bytes())
}

// InterfaceAssoc appends an 8-byte interface association descriptor.
func (d *Builder) InterfaceAssoc(ia IADescriptor) {
	d.Append(ia.Bytes())
}
