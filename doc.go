// Package mjrt hosts programs produced by a compiler backend that target a
// tiny native runtime: heap allocation, printing an integer line, writing and
// reading single characters, and flushing output.
//
// Generated programs are WebAssembly modules. They import the runtime's
// functions from the "env" module and run on wazero.
//
// # Architecture Overview
//
//	mjrt/          Root package with Memory and Allocator interfaces
//	├── shim/      The runtime primitives over explicit streams and the Go heap
//	├── engine/    wazero integration: modules, instances, guest heap, WASI
//	├── runtime/   High-level API: host registry, shim imports, running guests
//	├── wasm/      WebAssembly binary builder for generated programs
//	├── testbed/   Golden input/output harness for guest programs
//	├── errors/    Structured error types
//	└── cmd/run/   Command-line runner with an interactive console
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadWASM(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	if err := inst.Run(ctx); err != nil {
//	    os.Exit(runtime.ExitCode(err))
//	}
//
// # Guest Interface
//
// A guest imports any subset of:
//
//	(import "env" "allocate"       (func (param i32) (result i32)))
//	(import "env" "system_println" (func (param i32)))
//	(import "env" "system_write"   (func (param i32)))
//	(import "env" "system_flush"   (func))
//	(import "env" "system_read"    (func (result i32)))
//
// allocate returns 0 when the guest heap is exhausted. system_read returns -1
// at end of input.
//
// # Memory Model
//
// Guest allocations are never freed. The guest heap is a bump allocator in the
// guest's own linear memory that only grows, which matches the runtime's
// caller-owned, never-reclaimed allocation contract.
package mjrt
