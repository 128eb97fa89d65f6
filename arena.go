// SPDX-License-Identifier: Apache-2.0

// Package arena implements a fixed-region allocator for embeddable
// interpreters that route all of their heap traffic through one
// substitutable allocation hook.
//
// A RegionAllocator carves blocks out of a caller-owned byte region with a
// bump cursor, recycles freed minimum-size blocks through an intrusive free
// list, and hands requests to a FallbackAllocator on the Go heap once the
// region is exhausted. None of the allocators are safe for concurrent use.
package arena

import (
	"fmt"
	"unsafe"
)

const (
	// Alignment is the alignment of every block carved from a region.
	Alignment = 8

	// MinBlockSize is the smallest block the region allocator hands out.
	// Every pool block must be able to hold a free-list link once freed.
	MinBlockSize = 8 * Alignment
)

// Allocator is the contract shared by the region and fallback allocators.
type Allocator interface {
	// Allocate returns a pointer to at least size usable bytes.
	// A zero size is a contract violation.
	Allocate(size uintptr) unsafe.Pointer

	// Deallocate makes the block at ptr eligible for reuse. ptr must have been
	// returned by this allocator and not freed since. oldSize is the size it
	// was requested with.
	Deallocate(ptr unsafe.Pointer, oldSize uintptr)

	// Reallocate moves the block at ptr into a new block of newSize bytes,
	// copying min(oldSize, newSize) bytes. There is no in-place path.
	Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer

	sealed()
}

var (
	_ Allocator = (*RegionAllocator)(nil)
	_ Allocator = (*FallbackAllocator)(nil)
)

// AllocFunc is the callback shape an interpreter host invokes for all of its
// memory traffic. See Dispatch for its semantics.
type AllocFunc func(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer

// Dispatch multiplexes allocate, deallocate and reallocate over a single
// entry point:
//
//   - newSize == 0: free ptr (if non-nil) and return nil
//   - ptr == nil: allocate newSize bytes
//   - otherwise: reallocate ptr from oldSize to newSize bytes
func Dispatch(a Allocator, ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	if newSize == 0 {
		if ptr != nil {
			a.Deallocate(ptr, oldSize)
		}
		return nil
	}
	if ptr == nil {
		return a.Allocate(newSize)
	}
	return a.Reallocate(ptr, oldSize, newSize)
}

// Hook binds a to the host callback shape.
func Hook(a Allocator) AllocFunc {
	if a == nil {
		panic(fmt.Errorf("%w: nil allocator", ErrContractViolation))
	}
	return func(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
		return Dispatch(a, ptr, oldSize, newSize)
	}
}

// moveBlock implements the allocate-copy-free sequence shared by both
// allocators.
func moveBlock(a Allocator, ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		panic(fmt.Errorf("%w: reallocate of nil pointer", ErrContractViolation))
	}
	n := min(oldSize, newSize)
	newPtr := a.Allocate(newSize)
	if n > 0 {
		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
	}
	a.Deallocate(ptr, oldSize)
	return newPtr
}
