package engine

import (
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt"
)

const (
	// HeapBaseGlobal is the exported global linkers use to mark the first
	// address past static data.
	HeapBaseGlobal = "__heap_base"

	pageSize  = 65536
	heapAlign = 8
	maxAddr   = uint64(1) << 32
)

// Heap is a bump allocator over a guest's linear memory. Blocks are never
// reused or freed. Address 0 is never returned for a successful allocation,
// so the guest can treat it as null.
//
// A Heap is NOT safe for concurrent use; guests are single-threaded.
type Heap struct {
	mem   api.Memory
	base  uint64
	next  uint64
	limit uint64
	grown uint32
}

// NewHeap creates a heap for mod. Allocation starts at the exported
// __heap_base global when present, otherwise at the end of the memory the
// module was instantiated with. limit bounds the total bytes handed out;
// 0 means only linear memory limits apply.
func NewHeap(mod api.Module, limit uint64) *Heap {
	h := &Heap{mem: moduleMemory(mod), limit: limit}
	if h.mem == nil {
		return h
	}

	var base uint64
	if g := mod.ExportedGlobal(HeapBaseGlobal); g != nil {
		base = uint64(api.DecodeU32(g.Get()))
	} else {
		base = uint64(h.mem.Size())
	}
	base = alignUp(base)
	if base == 0 {
		base = heapAlign
	}
	h.base = base
	h.next = base
	return h
}

func alignUp(n uint64) uint64 {
	return (n + heapAlign - 1) &^ (heapAlign - 1)
}

// Alloc returns the address of a zero-filled block of size bytes. A size of 0
// still consumes one aligned slot so every success has a distinct address.
// On failure it returns 0 and false: no memory, budget exhausted, or linear
// memory could not grow.
func (h *Heap) Alloc(size uint32) (uint32, bool) {
	if h.mem == nil {
		return 0, false
	}

	span := alignUp(uint64(size))
	if span == 0 {
		span = heapAlign
	}
	if h.limit > 0 && h.Used()+span > h.limit {
		return 0, false
	}

	ptr := h.next
	end := ptr + span
	if end > maxAddr {
		return 0, false
	}

	if cur := uint64(h.mem.Size()); end > cur {
		delta := (end - cur + pageSize - 1) / pageSize
		if _, ok := h.mem.Grow(uint32(delta)); !ok {
			Logger().Debug("guest heap exhausted",
				zap.Uint64("requested", uint64(size)),
				zap.Uint64("memory", cur))
			return 0, false
		}
		h.grown += uint32(delta)
		Logger().Debug("guest memory grown",
			zap.Uint64("pages", delta),
			zap.Uint64("size", uint64(h.mem.Size())))
	}

	if size > 0 {
		buf, ok := h.mem.Read(uint32(ptr), size)
		if !ok {
			return 0, false
		}
		clear(buf)
	}

	h.next = end
	return uint32(ptr), true
}

// Base returns the first address the heap hands out.
func (h *Heap) Base() uint32 {
	return uint32(h.base)
}

// Used returns the bytes consumed, including alignment padding.
func (h *Heap) Used() uint64 {
	return h.next - h.base
}

// Limit returns the byte budget, or 0 if unbounded.
func (h *Heap) Limit() uint64 {
	return h.limit
}

// GrownPages returns how many pages the heap added to linear memory.
func (h *Heap) GrownPages() uint32 {
	return h.grown
}

var _ mjrt.Allocator = (*Heap)(nil)
