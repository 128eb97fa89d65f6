// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin || freebsd

package arena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// MappedRegion is a region of anonymous memory mapped outside the Go heap.
// It must be closed once every allocator using it has been dropped.
type MappedRegion struct {
	data []byte
}

// MapRegion maps size bytes of zeroed, private, read-write memory.
func MapRegion(size int) (*MappedRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: invalid region size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	return &MappedRegion{data: data}, nil
}

// Bytes returns the mapped memory. It is nil after Close.
func (r *MappedRegion) Bytes() []byte {
	return r.data
}

// Close unmaps the region. Any allocator over it must not be used afterwards.
func (r *MappedRegion) Close() error {
	if r.data == nil {
		return errors.New("arena: region already closed")
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("arena: munmap: %w", err)
	}
	return nil
}
