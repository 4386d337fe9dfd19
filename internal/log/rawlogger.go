package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger receives raw endpoint traffic for wire-level debugging.
type RawLogger interface {
	Log(ep uint8, data []byte)
}

// NewRaw returns a RawLogger writing one line per buffer to w. A nil writer
// yields a logger that discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

type rawLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// Log writes a timestamped hex dump of one transfer. Direction comes from
// the endpoint address: bit 7 set is IN (device to host).
func (r *rawLogger) Log(ep uint8, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}
	dir := "OUT"
	if ep&0x80 != 0 {
		dir = "IN"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s ep=0x%02x %s %d bytes: % x\n",
		time.Now().Format("15:04:05.000"), ep, dir, len(data), data)
}
