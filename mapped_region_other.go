// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin && !freebsd

package arena

import (
	"errors"
	"fmt"
)

// MappedRegion is a region of memory for a RegionAllocator. On this platform
// it lives on the Go heap.
type MappedRegion struct {
	data []byte
}

// MapRegion allocates size bytes of zeroed memory.
func MapRegion(size int) (*MappedRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: invalid region size %d", size)
	}
	return &MappedRegion{data: make([]byte, size)}, nil
}

// Bytes returns the region memory. It is nil after Close.
func (r *MappedRegion) Bytes() []byte {
	return r.data
}

// Close drops the region. Any allocator over it must not be used afterwards.
func (r *MappedRegion) Close() error {
	if r.data == nil {
		return errors.New("arena: region already closed")
	}
	r.data = nil
	return nil
}
