// Package wasm builds WebAssembly binaries for programs that run on the mjrt
// runtime.
//
// It covers the part of the binary format a simple code generator needs:
// function types, function and memory imports, one linear memory, i32 globals,
// exports, a start function, function bodies, and active data segments.
//
// # Building a Module
//
//	b := wasm.NewBuilder()
//	println := b.ImportFunc("env", "system_println", []wasm.ValType{wasm.ValI32}, nil)
//
//	main := b.Func(nil, nil, nil, wasm.NewCode().
//	    I32Const(42).
//	    Call(println))
//	b.Export("main", main)
//
//	bin, err := b.Bytes()
//
// Imports take the low function indices, so all ImportFunc calls come before
// the first Func. Func appends the closing end opcode to each body.
//
// # Instructions
//
// Code emits instructions with their immediates already encoded (LEB128 for
// indices and constants, alignment and offset for memory access).
package wasm
