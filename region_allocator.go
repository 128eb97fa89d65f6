// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"fmt"
	"unsafe"
)

// RegionAllocator allocates from a fixed, caller-owned byte region.
//
// Requests are rounded up to MinBlockSize and carved from the region with a
// bump cursor. Freed pool blocks are threaded onto an intrusive free list and
// handed back to the next request of at most MinBlockSize bytes. Requests the
// region cannot hold go to the owned FallbackAllocator.
//
// The region is never freed by the allocator and must outlive it.
// A RegionAllocator is not safe for concurrent use.
type RegionAllocator struct {
	region   []byte // keeps the backing memory reachable
	base     unsafe.Pointer
	size     uintptr
	cursor   uintptr // offset of the next free byte
	head     uintptr // offset+1 of the first free block, 0 when empty
	free     int
	peak     uintptr
	fallback *FallbackAllocator
	fbOpts   []FallbackOption
}

// RegionOption represents a configuration option for a region allocator.
type RegionOption func(*RegionAllocator)

// WithFallback configures the fallback allocator the region allocator creates
// for requests the region cannot serve.
func WithFallback(opts ...FallbackOption) RegionOption {
	return func(a *RegionAllocator) {
		a.fbOpts = append(a.fbOpts, opts...)
	}
}

// NewRegionAllocator creates an allocator over region. An empty region is
// valid; every request is then served by the fallback.
func NewRegionAllocator(region []byte, opts ...RegionOption) *RegionAllocator {
	a := &RegionAllocator{
		region: region,
		base:   unsafe.Pointer(unsafe.SliceData(region)),
		size:   uintptr(len(region)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.fallback = NewFallbackAllocator(a.fbOpts...)
	a.fbOpts = nil
	a.Reset()
	return a
}

func (a *RegionAllocator) sealed() {}

// Allocate satisfies the Allocator interface.
func (a *RegionAllocator) Allocate(size uintptr) unsafe.Pointer {
	if size == 0 {
		panic(fmt.Errorf("%w: zero-size allocation", ErrContractViolation))
	}
	n := blockSize(size)

	if n <= MinBlockSize && a.head != 0 {
		off := a.head - 1
		a.head = a.loadLink(off)
		a.free--
		return unsafe.Add(a.base, off)
	}

	off := a.alignedCursor()
	if off <= a.size && n <= a.size-off {
		a.cursor = off + n
		if a.cursor > a.peak {
			a.peak = a.cursor
		}
		return unsafe.Add(a.base, off)
	}

	return a.fallback.Allocate(size)
}

// Deallocate satisfies the Allocator interface. Pool blocks go onto the free
// list; anything else is returned to the fallback.
func (a *RegionAllocator) Deallocate(ptr unsafe.Pointer, oldSize uintptr) {
	if ptr == nil {
		panic(fmt.Errorf("%w: deallocate of nil pointer", ErrContractViolation))
	}
	off, ok := a.offsetOf(ptr)
	if !ok {
		a.fallback.Deallocate(ptr, oldSize)
		return
	}
	a.storeLink(off, a.head)
	a.head = off + 1
	a.free++
}

// Reallocate satisfies the Allocator interface. The new block is placed
// independently of the old one and the old block is freed by its own address.
func (a *RegionAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	return moveBlock(a, ptr, oldSize, newSize)
}

// Reset reclaims the whole region in O(1) by emptying the free list and
// rewinding the cursor. Nothing in the region is cleared or finalized, so no
// pointer into the region may be used after Reset. Fallback blocks are not
// freed, but the fallback's WindowPeak restarts from its current live bytes.
func (a *RegionAllocator) Reset() {
	a.head = 0
	a.free = 0
	a.cursor = 0
	a.fallback.resetWindow()
}

// Owns reports whether ptr lies inside the region.
func (a *RegionAllocator) Owns(ptr unsafe.Pointer) bool {
	_, ok := a.offsetOf(ptr)
	return ok
}

// Len returns the number of region bytes consumed by the cursor, including
// alignment padding and blocks sitting on the free list.
func (a *RegionAllocator) Len() int {
	return int(a.cursor)
}

// Cap returns the size of the region.
func (a *RegionAllocator) Cap() int {
	return int(a.size)
}

// Peak returns the highest cursor position reached. It is not reset by Reset.
func (a *RegionAllocator) Peak() int {
	return int(a.peak)
}

// FreeBlocks returns the number of blocks on the free list.
func (a *RegionAllocator) FreeBlocks() int {
	return a.free
}

// Fallback returns the allocator serving requests the region cannot hold.
func (a *RegionAllocator) Fallback() *FallbackAllocator {
	return a.fallback
}

// Stats returns a snapshot of the allocator's state.
func (a *RegionAllocator) Stats() Stats {
	return Stats{
		Len:        a.Len(),
		Cap:        a.Cap(),
		Peak:       a.Peak(),
		FreeBlocks: a.free,
		Fallback:   a.fallback.Stats(),
	}
}

// Stats contains statistical information about a region allocator.
type Stats struct {
	Len        int // Region bytes consumed by the cursor
	Cap        int // Region size
	Peak       int // High-water mark of Len across resets
	FreeBlocks int // Blocks waiting on the free list
	Fallback   FallbackStats
}

// Utilization returns the ratio of consumed to total region bytes (0.0 to 1.0).
func (s Stats) Utilization() float64 {
	if s.Cap == 0 {
		return 0
	}
	return float64(s.Len) / float64(s.Cap)
}

// blockSize normalizes a request so that every pool block can later hold a
// free-list link.
func blockSize(size uintptr) uintptr {
	return max(size, MinBlockSize)
}

// alignUp rounds addr up to the next multiple of Alignment.
func alignUp(addr uintptr) uintptr {
	return (addr + Alignment - 1) &^ (Alignment - 1)
}

// alignedCursor returns the cursor offset moved forward so that the address
// it designates is aligned. The result may exceed the region size.
func (a *RegionAllocator) alignedCursor() uintptr {
	addr := uintptr(a.base) + a.cursor
	return a.cursor + (alignUp(addr) - addr)
}

func (a *RegionAllocator) offsetOf(ptr unsafe.Pointer) (uintptr, bool) {
	if ptr == nil || a.size == 0 {
		return 0, false
	}
	off := uintptr(ptr) - uintptr(a.base)
	return off, off < a.size
}

// loadLink reads the free-list link stored in the first word of the block at off.
func (a *RegionAllocator) loadLink(off uintptr) uintptr {
	return *(*uintptr)(unsafe.Add(a.base, off))
}

// storeLink writes a free-list link into the first word of the block at off.
func (a *RegionAllocator) storeLink(off, next uintptr) {
	*(*uintptr)(unsafe.Add(a.base, off)) = next
}
