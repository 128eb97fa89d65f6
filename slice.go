// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"unsafe"
)

const growThreshold = 256

// The helpers below place typed values in allocator memory. The memory is
// invisible to the garbage collector, so T must not contain Go pointers
// (pointers, slices, strings, maps, channels, funcs or interfaces).
// Allocator memory is not zeroed.

// New allocates memory for a value of type T using the provided Allocator.
// If a is nil, or T needs stricter alignment than Alignment, it falls back to
// Go's built-in new function.
func New[T any](a Allocator) *T {
	var x T
	size, align := unsafe.Sizeof(x), unsafe.Alignof(x)
	if a == nil || size == 0 || align > Alignment {
		return new(T)
	}
	ptr := a.Allocate(size)
	if uintptr(ptr)%align != 0 {
		a.Deallocate(ptr, size)
		return new(T)
	}
	return (*T)(ptr)
}

// Free releases a value obtained from New with the same allocator.
func Free[T any](a Allocator, v *T) {
	var x T
	if a == nil || v == nil || unsafe.Sizeof(x) == 0 || unsafe.Alignof(x) > Alignment {
		return
	}
	a.Deallocate(unsafe.Pointer(v), unsafe.Sizeof(x))
}

// AllocateSlice creates a slice of type T with a given length and capacity,
// using the provided Allocator for memory allocation.
// If a is nil, it returns a slice using Go's built-in make function.
func AllocateSlice[T any](a Allocator, len, cap int) []T {
	var x T
	size, align := unsafe.Sizeof(x), unsafe.Alignof(x)
	if a == nil || cap == 0 || size == 0 || align > Alignment {
		return make([]T, len, cap)
	}
	bufSize := size * uintptr(cap)
	ptr := a.Allocate(bufSize)
	if uintptr(ptr)%align != 0 {
		a.Deallocate(ptr, bufSize)
		return make([]T, len, cap)
	}
	return unsafe.Slice((*T)(ptr), cap)[:len]
}

// FreeSlice releases the backing array of a slice obtained from
// AllocateSlice or SliceAppend with the same allocator.
func FreeSlice[T any](a Allocator, s []T) {
	var x T
	if a == nil || cap(s) == 0 || unsafe.Sizeof(x) == 0 || unsafe.Alignof(x) > Alignment {
		return
	}
	a.Deallocate(unsafe.Pointer(unsafe.SliceData(s)), unsafe.Sizeof(x)*uintptr(cap(s)))
}

// SliceAppend appends elements to a slice of type T, growing its backing
// array through the allocator. s must be empty or obtained from the same
// allocator. When the slice has to grow, its old backing array is released,
// so s must not be used after the call.
func SliceAppend[T any](a Allocator, s []T, data ...T) []T {
	if a == nil {
		return append(s, data...)
	}
	s = growSlice(a, s, len(data))
	return append(s, data...)
}

func growSlice[T any](a Allocator, s []T, dataLen int) []T {
	newLen := len(s) + dataLen
	newCap := cap(s)

	if newCap > 0 {
		for newLen > newCap {
			if newCap < growThreshold {
				newCap *= 2
			} else {
				newCap += newCap / 4
			}
		}
	} else {
		newCap = dataLen
	}
	if newCap == cap(s) {
		return s
	}
	if cap(s) == 0 {
		return AllocateSlice[T](a, len(s), newCap)
	}

	var x T
	size, align := unsafe.Sizeof(x), unsafe.Alignof(x)
	if size == 0 || align > Alignment {
		s2 := make([]T, len(s), newCap)
		copy(s2, s)
		return s2
	}
	ptr := a.Reallocate(unsafe.Pointer(unsafe.SliceData(s)), size*uintptr(cap(s)), size*uintptr(newCap))
	return unsafe.Slice((*T)(ptr), newCap)[:len(s)]
}
