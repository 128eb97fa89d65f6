// SPDX-License-Identifier: Apache-2.0

package arena

import "errors"

var (
	// ErrContractViolation is carried by the panic raised when a caller breaks
	// the allocator contract, such as freeing a nil pointer or allocating zero bytes.
	ErrContractViolation = errors.New("arena: allocator contract violation")

	// ErrOutOfMemory is carried by the panic raised when the region is
	// exhausted and the fallback tier cannot satisfy a request either.
	ErrOutOfMemory = errors.New("arena: out of memory")
)
