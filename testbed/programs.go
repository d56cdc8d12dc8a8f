package testbed

import (
	"github.com/wippyai/mjrt/runtime"
	"github.com/wippyai/mjrt/wasm"
)

var (
	i32  = []wasm.ValType{wasm.ValI32}
	none []wasm.ValType
)

// Imports holds the function indices of the shim imports.
type Imports struct {
	Allocate uint32
	Println  uint32
	Write    uint32
	Flush    uint32
	Read     uint32
}

// ImportShim declares the shim functions under namespace in b.
func ImportShim(b *wasm.Builder, namespace string) Imports {
	return Imports{
		Allocate: b.ImportFunc(namespace, "allocate", i32, i32),
		Println:  b.ImportFunc(namespace, "system_println", i32, none),
		Write:    b.ImportFunc(namespace, "system_write", i32, none),
		Flush:    b.ImportFunc(namespace, "system_flush", none, none),
		Read:     b.ImportFunc(namespace, "system_read", none, i32),
	}
}

// program builds a guest with the shim under "env", one page of memory and
// a main function produced by body.
func program(locals []wasm.ValType, result []wasm.ValType, body func(Imports) *wasm.Code) []byte {
	b := wasm.NewBuilder()
	imp := ImportShim(b, runtime.DefaultNamespace)
	b.Memory(1, nil)
	b.ExportMemory("memory")
	b.ExportGlobal("__heap_base", b.Global(1024, false))
	b.Export("main", b.Func(nil, result, locals, body(imp)))
	bin, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return bin
}

// Println prints each value on its own line.
func Println(values ...int32) []byte {
	return program(nil, nil, func(imp Imports) *wasm.Code {
		c := wasm.NewCode()
		for _, v := range values {
			c.I32Const(v).Call(imp.Println)
		}
		return c
	})
}

// Print writes s byte by byte and flushes.
func Print(s string) []byte {
	return program(nil, nil, func(imp Imports) *wasm.Code {
		c := wasm.NewCode()
		for i := 0; i < len(s); i++ {
			c.I32Const(int32(s[i])).Call(imp.Write)
		}
		return c.Call(imp.Flush)
	})
}

// Echo copies input to output until end of input.
func Echo() []byte {
	return program(i32, nil, func(imp Imports) *wasm.Code {
		return wasm.NewCode().
			Block().
			Loop().
			Call(imp.Read).LocalTee(0).
			I32Const(-1).I32Eq().BrIf(1).
			LocalGet(0).Call(imp.Write).
			Br(0).
			End().
			End()
	})
}

// Uppercase copies input to output with ASCII letters upper-cased, flushing
// after every newline.
func Uppercase() []byte {
	return program(i32, nil, func(imp Imports) *wasm.Code {
		return wasm.NewCode().
			Block().
			Loop().
			Call(imp.Read).LocalTee(0).
			I32Const(-1).I32Eq().BrIf(1).
			// 'a' <= c && c <= 'z'
			LocalGet(0).I32Const('a').I32GeS().
			LocalGet(0).I32Const('z' + 1).I32LtS().
			I32And().
			If().
			LocalGet(0).I32Const('a' - 'A').I32Sub().LocalSet(0).
			End().
			LocalGet(0).Call(imp.Write).
			LocalGet(0).I32Const('\n').I32Eq().
			If().
			Call(imp.Flush).
			End().
			Br(0).
			End().
			End()
	})
}

// SumInput reads decimal digits until end of input and prints their sum.
// Other bytes are skipped.
func SumInput() []byte {
	// locals: 0 = current byte, 1 = sum
	return program([]wasm.ValType{wasm.ValI32, wasm.ValI32}, nil, func(imp Imports) *wasm.Code {
		return wasm.NewCode().
			Block().
			Loop().
			Call(imp.Read).LocalTee(0).
			I32Const(-1).I32Eq().BrIf(1).
			LocalGet(0).I32Const('0').I32GeS().
			LocalGet(0).I32Const('9' + 1).I32LtS().
			I32And().
			If().
			LocalGet(1).LocalGet(0).I32Const('0').I32Sub().I32Add().LocalSet(1).
			End().
			Br(0).
			End().
			End().
			LocalGet(1).Call(imp.Println)
	})
}

// Fibonacci allocates an array of n ints, fills it with the Fibonacci
// sequence, and prints it. If allocation fails it prints -1.
func Fibonacci(n int32) []byte {
	// locals: 0 = array, 1 = i, 2 = cursor
	return program([]wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}, nil, func(imp Imports) *wasm.Code {
		c := wasm.NewCode().
			I32Const(n * 4).Call(imp.Allocate).LocalTee(0).
			I32Eqz().
			If().
			I32Const(-1).Call(imp.Println).
			Return().
			End()

		// a[0] = 0 (already zero), a[1] = 1
		if n > 1 {
			c.LocalGet(0).I32Const(1).I32Store(4)
		}

		// for i = 2; i < n; i++ { a[i] = a[i-1] + a[i-2] }
		// local 2 points at a[i-2].
		c.I32Const(2).LocalSet(1).
			Block().
			Loop().
			LocalGet(1).I32Const(n).I32GeS().BrIf(1).
			LocalGet(0).LocalGet(1).I32Const(2).I32Sub().I32Const(4).I32Mul().I32Add().LocalTee(2).
			LocalGet(2).I32Load(0).
			LocalGet(2).I32Load(4).
			I32Add().
			I32Store(8).
			LocalGet(1).I32Const(1).I32Add().LocalSet(1).
			Br(0).
			End().
			End()

		// for i = 0; i < n; i++ { println(a[i]) }
		return c.I32Const(0).LocalSet(1).
			Block().
			Loop().
			LocalGet(1).I32Const(n).I32GeS().BrIf(1).
			LocalGet(0).LocalGet(1).I32Const(4).I32Mul().I32Add().I32Load(0).
			Call(imp.Println).
			LocalGet(1).I32Const(1).I32Add().LocalSet(1).
			Br(0).
			End().
			End()
	})
}

// Exit prints nothing and returns code from main.
func Exit(code int32) []byte {
	return program(nil, i32, func(Imports) *wasm.Code {
		return wasm.NewCode().I32Const(code)
	})
}

// Spin loops forever.
func Spin() []byte {
	return program(nil, nil, func(Imports) *wasm.Code {
		return wasm.NewCode().Loop().Br(0).End()
	})
}

// Trap writes s and then traps.
func Trap(s string) []byte {
	return program(nil, nil, func(imp Imports) *wasm.Code {
		c := wasm.NewCode()
		for i := 0; i < len(s); i++ {
			c.I32Const(int32(s[i])).Call(imp.Write)
		}
		return c.Unreachable()
	})
}
