// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"errors"
	"io"
	"unsafe"
)

// minRead is the spare capacity ReadFrom guarantees before each Read call.
const minRead = 512

var errNegativeRead = errors.New("arena: reader returned negative count from Read")

// Buffer is a bytes.Buffer-like byte queue whose storage lives in allocator
// memory. Growth goes through Allocator.Reallocate, so the storage moves
// between the region and the fallback tier as it grows.
// Call Free to hand the storage back to the allocator.
type Buffer struct {
	alloc Allocator
	buf   []byte // buf[off:] is the unread portion
	off   int
}

// NewBuffer creates a new Buffer backed by the given allocator.
// If a is nil, it will fall back to standard Go allocation.
func NewBuffer(a Allocator) *Buffer {
	return &Buffer{alloc: a}
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	m := b.grow(len(p))
	return copy(b.buf[m:], p), nil
}

// WriteByte writes a single byte to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	m := b.grow(1)
	b.buf[m] = c
	return nil
}

// WriteString writes a string to the buffer.
func (b *Buffer) WriteString(s string) (n int, err error) {
	if len(s) == 0 {
		return 0, nil
	}
	m := b.grow(len(s))
	return copy(b.buf[m:], s), nil
}

// WriteTo implements io.WriterTo. It drains the buffer into w.
func (b *Buffer) WriteTo(w io.Writer) (n int64, err error) {
	if b.Len() == 0 {
		return 0, nil
	}
	m, err := w.Write(b.buf[b.off:])
	if m > 0 {
		n = int64(m)
		b.off += m
	}
	if err == nil && b.Len() > 0 {
		err = io.ErrShortWrite
	}
	if b.Len() == 0 {
		b.Reset()
	}
	return n, err
}

// Read reads up to len(p) bytes from the buffer into p.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if b.Len() == 0 {
		b.Reset()
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n = copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

// ReadByte reads and returns the next byte from the buffer.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() == 0 {
		b.Reset()
		return 0, io.EOF
	}
	c := b.buf[b.off]
	b.off++
	return c, nil
}

// Next returns a slice containing the next n bytes from the buffer,
// advancing the buffer as if the bytes had been returned by Read.
// The slice is valid only until the next buffer modification.
func (b *Buffer) Next(n int) []byte {
	if n < 0 {
		n = 0
	}
	if m := b.Len(); n > m {
		n = m
	}
	data := b.buf[b.off : b.off+n]
	b.off += n
	return data
}

// Bytes returns a slice of length b.Len() holding the unread portion of the buffer.
// The slice is valid for use only until the next buffer modification.
func (b *Buffer) Bytes() []byte {
	if b.buf == nil {
		return []byte{}
	}
	return b.buf[b.off:]
}

// String returns the contents of the unread portion of the buffer as a string.
func (b *Buffer) String() string {
	return string(b.buf[b.off:])
}

// Len returns the number of bytes of the unread portion of the buffer.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Cap returns the size of the block currently backing the buffer.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Reset resets the buffer to be empty but keeps its storage.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
}

// Truncate discards all but the first n unread bytes from the buffer.
// It panics if n is negative or greater than the length of the buffer.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > b.Len() {
		panic("arena: truncation out of range")
	}
	b.buf = b.buf[:b.off+n]
}

// ReadFrom implements io.ReaderFrom. It reads from r until EOF, reading
// directly into the buffer's spare capacity.
func (b *Buffer) ReadFrom(r io.Reader) (n int64, err error) {
	for {
		i := b.grow(minRead)
		b.buf = b.buf[:i]
		m, e := r.Read(b.buf[i:cap(b.buf)])
		if m < 0 {
			panic(errNegativeRead)
		}
		b.buf = b.buf[:i+m]
		n += int64(m)
		if e == io.EOF {
			return n, nil
		}
		if e != nil {
			return n, e
		}
	}
}

// Free returns the buffer's storage to the allocator and empties the buffer.
// The buffer may be written to again afterwards.
func (b *Buffer) Free() {
	if cap(b.buf) > 0 && b.alloc != nil {
		b.alloc.Deallocate(unsafe.Pointer(unsafe.SliceData(b.buf)), uintptr(cap(b.buf)))
	}
	b.buf = nil
	b.off = 0
}

// grow makes room for n more bytes and returns the index where they go.
func (b *Buffer) grow(n int) int {
	m := b.Len()
	if m == 0 && b.off != 0 {
		b.Reset()
	}
	if l := len(b.buf); n <= cap(b.buf)-l {
		b.buf = b.buf[:l+n]
		return l
	}
	if b.off > 0 && m+n <= cap(b.buf) {
		// Slide the unread bytes down instead of growing.
		copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:m+n]
		b.off = 0
		return m
	}

	newCap := cap(b.buf)
	if newCap == 0 {
		newCap = n
	}
	for m+n > newCap {
		if newCap < growThreshold {
			newCap *= 2
		} else {
			newCap += newCap / 4
		}
	}
	b.buf = b.move(newCap)
	b.off = 0
	b.buf = b.buf[:m+n]
	return m
}

// move relocates the unread bytes into a block of newCap bytes.
func (b *Buffer) move(newCap int) []byte {
	unread := b.buf[b.off:]
	if b.alloc == nil {
		nb := make([]byte, len(unread), newCap)
		copy(nb, unread)
		return nb
	}
	if cap(b.buf) == 0 {
		ptr := b.alloc.Allocate(uintptr(newCap))
		return unsafe.Slice((*byte)(ptr), newCap)[:0]
	}
	if b.off > 0 {
		copy(b.buf, unread)
	}
	ptr := b.alloc.Reallocate(unsafe.Pointer(unsafe.SliceData(b.buf)), uintptr(cap(b.buf)), uintptr(newCap))
	return unsafe.Slice((*byte)(ptr), newCap)[:len(unread)]
}
