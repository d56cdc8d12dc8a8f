package shim

import (
	"math"
	"sync/atomic"
)

// Block is a zero-initialized memory region owned by whoever received it from
// Allocate. The zero Block is an empty, valid block.
type Block struct {
	buf []byte
}

// Bytes returns the block's memory. Writes through the slice mutate the block.
func (b Block) Bytes() []byte {
	return b.buf
}

// Len returns the block size in bytes.
func (b Block) Len() int {
	return len(b.buf)
}

// Allocator hands out caller-owned blocks.
//
// Allocate returns a block of exactly size bytes, all zero, and true; or the
// zero Block and false when the request cannot be satisfied. A zero size
// always succeeds while capacity is not exhausted by earlier requests.
type Allocator interface {
	Allocate(size int) (Block, bool)
}

// MaxBlockSize is the largest block any allocator hands out. Guest sizes are
// 32-bit, so nothing larger can be asked for through the runtime.
const MaxBlockSize = math.MaxInt32

// HeapAllocator allocates from the Go heap. Limit caps the total bytes handed
// out over the allocator's lifetime; capacity is never returned because
// blocks are never freed here.
type HeapAllocator struct {
	limit int64
	used  atomic.Int64
}

// NewHeapAllocator creates an allocator with a lifetime budget of limit bytes.
// A limit of 0 or less means no budget beyond what the Go runtime can provide.
func NewHeapAllocator(limit int64) *HeapAllocator {
	if limit <= 0 {
		limit = math.MaxInt64
	}
	return &HeapAllocator{limit: limit}
}

// Allocate implements Allocator.
func (a *HeapAllocator) Allocate(size int) (Block, bool) {
	if size < 0 || size > MaxBlockSize {
		return Block{}, false
	}

	n := int64(size)
	for {
		used := a.used.Load()
		if n > a.limit-used {
			return Block{}, false
		}
		if a.used.CompareAndSwap(used, used+n) {
			break
		}
	}

	// make zero-fills; the empty non-nil slice keeps zero-size blocks distinct
	// from the failure value.
	return Block{buf: make([]byte, size)}, true
}

// Used returns the bytes handed out so far.
func (a *HeapAllocator) Used() int64 {
	return a.used.Load()
}

// Limit returns the lifetime budget, or math.MaxInt64 when unbounded.
func (a *HeapAllocator) Limit() int64 {
	return a.limit
}

var defaultAllocator Allocator = NewHeapAllocator(0)

// Allocate allocates from the default unbounded heap allocator.
func Allocate(size int) (Block, bool) {
	return defaultAllocator.Allocate(size)
}

var _ Allocator = (*HeapAllocator)(nil)
