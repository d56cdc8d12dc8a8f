package runtime

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/shim"
)

// DefaultNamespace is the import module generated programs link against.
const DefaultNamespace = "env"

// ShimHost exposes the shim primitives to guests:
//
//	allocate(size i32) -> i32
//	system_println(v i32)
//	system_write(c i32)
//	system_flush()
//	system_read() -> i32
//
// Output and input go to the console carried by the call context, falling
// back to the runtime's console. Each guest instance gets its own heap.
type ShimHost struct {
	console   *shim.Console
	heaps     map[api.Module]*engine.Heap
	namespace string
	heapLimit uint64
	mu        sync.Mutex
}

// NewShimHost creates a shim host serving namespace with console as the
// default stream pair. heapLimit bounds each guest heap in bytes; 0 is unbounded.
func NewShimHost(namespace string, console *shim.Console, heapLimit uint64) *ShimHost {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &ShimHost{
		console:   console,
		heaps:     make(map[api.Module]*engine.Heap),
		namespace: namespace,
		heapLimit: heapLimit,
	}
}

func (s *ShimHost) Namespace() string {
	return s.namespace
}

// Allocate returns the guest address of a zero-filled block, or 0 if the
// block cannot be provided.
func (s *ShimHost) Allocate(_ context.Context, mod api.Module, size int32) int32 {
	if size < 0 {
		return 0
	}
	ptr, ok := s.heapFor(mod).Alloc(uint32(size))
	if !ok {
		return 0
	}
	return int32(ptr)
}

func (s *ShimHost) SystemPrintln(ctx context.Context, v int32) {
	s.consoleFor(ctx).EmitLine(v)
}

func (s *ShimHost) SystemWrite(ctx context.Context, c int32) {
	s.consoleFor(ctx).EmitChar(c)
}

func (s *ShimHost) SystemFlush(ctx context.Context) {
	s.consoleFor(ctx).Flush()
}

func (s *ShimHost) SystemRead(ctx context.Context) int32 {
	return s.consoleFor(ctx).ReadChar()
}

func (s *ShimHost) consoleFor(ctx context.Context) *shim.Console {
	if c, ok := shim.ConsoleFrom(ctx); ok {
		return c
	}
	return s.console
}

// heapFor returns the heap of mod, creating it on first use.
func (s *ShimHost) heapFor(mod api.Module) *engine.Heap {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.heaps[mod]
	if !ok {
		h = engine.NewHeap(mod, s.heapLimit)
		s.heaps[mod] = h
	}
	return h
}

func (s *ShimHost) release(mod api.Module) {
	s.mu.Lock()
	delete(s.heaps, mod)
	s.mu.Unlock()
}
