// Package ring provides a single-producer single-consumer byte buffer that
// hands out windows into its backing array, so callers can read or write in
// place without staging copies.
package ring

import "sync"

// Buffer wraps a fixed backing array laid out as three regions:
//
//   - [0:n]      valid data waiting to be read
//   - [n:w]      unused space
//   - [w:cap]    bytes of a pending write, waiting to be committed
//
// The consumer calls PendRead to borrow the readable region and FinishRead
// to consume from it. The producer calls PendWrite to borrow free space and
// FinishWrite to commit. Pend calls are idempotent on their own side; only
// one producer and one consumer are supported.
//
// Throughput is best when reads and writes are balanced and drain the whole
// buffer, since partial reads shuffle the remainder back to index zero.
type Buffer struct {
	mu sync.Mutex
	b  []byte
	n  int // bytes of valid data, starting at index 0
	w  int // start of the pending write, len(b) when none is pending
}

// New returns a Buffer with a backing array of size bytes.
func New(size int) *Buffer {
	return &Buffer{b: make([]byte, size), w: size}
}

// Cap returns the size of the backing array.
func (r *Buffer) Cap() int {
	return len(r.b)
}

// Writable returns the number of free bytes, assuming no write is pending.
func (r *Buffer) Writable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.b) - r.n
}

// Readable returns the number of valid bytes, assuming no read is pending.
func (r *Buffer) Readable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// PendWrite borrows the free region for the producer to fill, starting at
// the end of the data waiting to be read. If wmax is positive the window is
// capped to at most wmax bytes. The borrow stays valid until the matching
// FinishWrite.
func (r *Buffer) PendWrite(wmax int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w = r.n
	end := len(r.b)
	if wmax > 0 {
		end = min(end, r.w+wmax)
	}
	return r.b[r.w:end]
}

// FinishWrite commits nbytes of the window borrowed by PendWrite. If the
// consumer read data in the meantime, the committed bytes are shuffled back
// toward index zero so the readable region stays contiguous at the front.
// Committing more than was pended panics.
func (r *Buffer) FinishWrite(nbytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nbytes > len(r.b)-r.w {
		panic("ring: committed more bytes than pended")
	}
	if r.n == r.w {
		r.n += nbytes
	} else {
		copy(r.b[r.n:], r.b[r.w:r.w+nbytes])
		r.n += nbytes
	}
	r.w = len(r.b)
}

// Write copies as much of p as fits and commits it, returning the number of
// bytes written.
func (r *Buffer) Write(p []byte) int {
	pw := r.PendWrite(0)
	n := min(len(p), len(pw))
	if n > 0 {
		copy(pw, p[:n])
		r.FinishWrite(n)
	}
	return n
}

// PendRead borrows the readable region. The borrow stays valid until the
// matching FinishRead.
func (r *Buffer) PendRead() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.b[:r.n]
}

// FinishRead consumes nbytes from the front of the readable region. Any
// remainder is shuffled back to index zero. Consuming more than was
// readable panics; consuming zero is a no-op.
func (r *Buffer) FinishRead(nbytes int) {
	if nbytes == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if nbytes > r.n {
		panic("ring: consumed more bytes than readable")
	}
	r.n -= nbytes
	copy(r.b, r.b[nbytes:nbytes+r.n])
}

// ReadInto copies as much readable data as fits into p and consumes it,
// returning the number of bytes read.
func (r *Buffer) ReadInto(p []byte) int {
	pr := r.PendRead()
	n := min(len(pr), len(p))
	if n > 0 {
		copy(p, pr[:n])
		r.FinishRead(n)
	}
	return n
}
