// Package shim implements the runtime primitives that generated programs link
// against: heap allocation, decimal and single-byte output, output flushing, and
// single-byte input.
//
// The primitives are deliberately thin. None of them log, retry, or return
// errors:
//
//   - Allocate reports exhaustion through its boolean result.
//   - ReadChar reports end of input with the EOF sentinel.
//   - Output failures are absorbed; Console.Err exposes the first one for
//     hosts that want to report it after the guest finishes.
//
// # Ownership
//
// A Block returned by Allocate belongs to the caller. The allocator keeps no
// reference to it, attaches no finalizer, and never reuses its capacity.
//
// # Streams
//
// Consoles are built from explicit Streams rather than reaching for os.Stdin and
// os.Stdout, so tests and embedders can substitute their own readers and
// writers. Stdio returns the process streams with C stdio buffering defaults:
// line-buffered when stdout is a terminal, fully buffered otherwise.
//
// Hosts that dispatch calls from guest code carry the active console in a
// context.Context with WithConsole and recover it with ConsoleFrom.
//
// # Thread Safety
//
// Nothing here is synchronized. A Console must be used from one goroutine at a
// time; callers sharing one across goroutines supply their own locking.
// HeapAllocator accounting is atomic, so concurrent Allocate calls are safe.
package shim
