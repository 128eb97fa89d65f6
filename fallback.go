// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"fmt"
	"unsafe"
)

// FallbackAllocator hands out blocks from the Go heap. Every live block is
// referenced from the allocator itself, so a block stays valid until it is
// deallocated even when the only other copy of its address lives in memory
// the garbage collector does not scan, such as a region or a mapping.
type FallbackAllocator struct {
	blocks     map[unsafe.Pointer][]byte
	limit      uintptr // 0 means unlimited
	live       uintptr
	peak       uintptr
	windowPeak uintptr // peak since the last resetWindow
	allocs     uint64
	frees      uint64
}

// FallbackOption represents a configuration option for a fallback allocator.
type FallbackOption func(*FallbackAllocator)

// WithFallbackLimit caps the number of live bytes the fallback allocator may
// hand out. A request over the cap panics with ErrOutOfMemory.
func WithFallbackLimit(bytes int) FallbackOption {
	return func(f *FallbackAllocator) {
		f.limit = uintptr(bytes)
	}
}

// NewFallbackAllocator creates a heap-backed allocator.
func NewFallbackAllocator(opts ...FallbackOption) *FallbackAllocator {
	f := &FallbackAllocator{blocks: make(map[unsafe.Pointer][]byte)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FallbackAllocator) sealed() {}

// Allocate satisfies the Allocator interface. Exactly size bytes are
// requested from the heap; no alignment beyond the runtime's is promised.
func (f *FallbackAllocator) Allocate(size uintptr) unsafe.Pointer {
	if size == 0 {
		panic(fmt.Errorf("%w: zero-size allocation", ErrContractViolation))
	}
	if f.limit > 0 && size > f.limit-f.live {
		panic(fmt.Errorf("%w: fallback request of %d bytes exceeds limit of %d (%d live)",
			ErrOutOfMemory, size, f.limit, f.live))
	}
	buf := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	f.blocks[ptr] = buf
	f.live += size
	if f.live > f.peak {
		f.peak = f.live
	}
	if f.live > f.windowPeak {
		f.windowPeak = f.live
	}
	f.allocs++
	return ptr
}

// Deallocate satisfies the Allocator interface. The block is dropped for the
// garbage collector. Pointers this allocator did not hand out are rejected.
func (f *FallbackAllocator) Deallocate(ptr unsafe.Pointer, oldSize uintptr) {
	if ptr == nil {
		panic(fmt.Errorf("%w: deallocate of nil pointer", ErrContractViolation))
	}
	buf, ok := f.blocks[ptr]
	if !ok {
		panic(fmt.Errorf("%w: deallocate of unknown pointer %p (%d bytes)", ErrContractViolation, ptr, oldSize))
	}
	delete(f.blocks, ptr)
	f.live -= uintptr(len(buf))
	f.frees++
}

// Reallocate satisfies the Allocator interface.
func (f *FallbackAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	return moveBlock(f, ptr, oldSize, newSize)
}

// Owns reports whether ptr is a live block of this allocator.
func (f *FallbackAllocator) Owns(ptr unsafe.Pointer) bool {
	_, ok := f.blocks[ptr]
	return ok
}

// resetWindow starts a new observation window for WindowPeak.
func (f *FallbackAllocator) resetWindow() {
	f.windowPeak = f.live
}

// Stats returns a snapshot of the fallback allocator's accounting.
func (f *FallbackAllocator) Stats() FallbackStats {
	return FallbackStats{
		Live:       int(f.live),
		Peak:       int(f.peak),
		WindowPeak: int(f.windowPeak),
		Blocks:     len(f.blocks),
		Allocs:     f.allocs,
		Frees:      f.frees,
	}
}

// FallbackStats contains statistical information about a fallback allocator.
type FallbackStats struct {
	Live       int    // Bytes handed out and not yet deallocated
	Peak       int    // High-water mark of Live over the allocator's lifetime
	WindowPeak int    // High-water mark of Live since the owning region allocator's last Reset
	Blocks     int    // Blocks handed out and not yet deallocated
	Allocs     uint64 // Number of Allocate calls served
	Frees      uint64 // Number of Deallocate calls served
}
