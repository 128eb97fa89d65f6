// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"sync"
	"weak"
)

// Pool keeps region allocators around for hosts that create many short-lived
// interpreter instances, so each instance does not start from a fresh heap
// region.
//
// Idle items are held through weak pointers: the GC may reclaim an idle item
// together with its region at any time, which lets the pool shrink under
// memory pressure. Acquire turns an idle item back into a strong reference.
//
// New regions are sized from the average demand observed for the same key,
// where demand is the region bytes consumed plus the fallback high-water mark
// since the allocator's last Reset.
//
// The pool itself is safe for concurrent use. The allocators it hands out
// are not; each must be used by one goroutine until it is released.
type Pool struct {
	pool        []weak.Pointer[PoolItem]
	sizes       map[uint64]*poolItemSize
	defaultSize int
	mu          sync.Mutex
}

// poolItemSize tracks the demand across the last 50 releases for one key.
type poolItemSize struct {
	count      int
	totalBytes int
}

// PoolItem is a region allocator on loan from a Pool.
type PoolItem struct {
	Allocator *RegionAllocator
	Key       uint64
}

// PoolOption represents a configuration option for a pool.
type PoolOption func(*Pool)

// WithDefaultRegionSize sets the region size used for keys with no recorded demand.
func WithDefaultRegionSize(size int) PoolOption {
	return func(p *Pool) {
		p.defaultSize = size
	}
}

const defaultRegionSize = 1024 * 1024 // 1MB

// NewPool creates a new Pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		sizes:       make(map[uint64]*poolItemSize),
		defaultSize: defaultRegionSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns an idle allocator from the pool or creates a new one.
// key identifies the use case so that region sizes can be tuned per key.
func (p *Pool) Acquire(key uint64) *PoolItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pool) > 0 {
		lastIdx := len(p.pool) - 1
		wp := p.pool[lastIdx]
		p.pool = p.pool[:lastIdx]

		if v := wp.Value(); v != nil {
			v.Key = key
			return v
		}
	}

	return &PoolItem{
		Allocator: NewRegionAllocator(make([]byte, p.regionSize(key))),
		Key:       key,
	}
}

// Release resets the item's allocator and returns it to the pool. The caller
// must not touch memory obtained from the allocator afterwards.
func (p *Pool) Release(item *PoolItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release(item)
}

// ReleaseMany releases several items under a single lock acquisition.
func (p *Pool) ReleaseMany(items []*PoolItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range items {
		p.release(item)
	}
}

// Idle returns the number of items waiting in the pool, including ones the
// GC may already have reclaimed.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pool)
}

func (p *Pool) release(item *PoolItem) {
	demand := item.Allocator.Len() + item.Allocator.Fallback().Stats().WindowPeak
	item.Allocator.Reset()

	if size, ok := p.sizes[item.Key]; ok {
		if size.count == 50 {
			size.count = 1
			size.totalBytes = size.totalBytes / 50
		}
		size.count++
		size.totalBytes += demand
	} else {
		p.sizes[item.Key] = &poolItemSize{
			count:      1,
			totalBytes: demand,
		}
	}

	item.Key = 0
	p.pool = append(p.pool, weak.Make(item))
}

// regionSize returns the region size for a new allocator serving key.
func (p *Pool) regionSize(key uint64) int {
	if size, ok := p.sizes[key]; ok && size.totalBytes > 0 {
		return size.totalBytes / size.count
	}
	return p.defaultSize
}
