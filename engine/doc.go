// Package engine provides the low-level WebAssembly execution layer.
//
// This package wraps wazero: it compiles guest modules, defines host modules
// that guests import, instantiates guests with their standard streams, and
// manages a guest heap inside linear memory.
//
// # Architecture
//
//	Engine     - Owns a wazero runtime and the host modules defined in it
//	Module     - A compiled guest, can create instances
//	Instance   - A running guest with exports and linear memory
//	HostModule - Go functions exported to guests under one namespace
//	Heap       - Bump allocator over an instance's linear memory
//
// # Instantiation Flow
//
//  1. Engine.DefineHostModule() instantiates each host namespace once
//  2. Engine.LoadModule() compiles the guest binary
//  3. Module.MissingImports() reports imports no host module satisfies
//  4. Module.Instantiate() creates an Instance without calling _start,
//     so callers can attach a heap and streams first
//  5. Instance.Call() invokes exports with raw core values
//
// # Guest Heap
//
// Guests that import an allocator get blocks from a Heap. The heap begins at
// the __heap_base global if the guest exports one, otherwise at the end of
// its initial memory, and grows memory a page at a time. Blocks are 8-byte
// aligned, zero-filled and never reclaimed. Address 0 means failure.
//
// # WASI
//
// InitWASI adds WASI preview1 for guests built against wasi-libc. Stdio for
// those guests comes from InstanceConfig.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use.
// Instance and Heap are NOT thread-safe and should be used by a single goroutine.
//
// Most users should use the runtime package for a simpler API.
package engine
