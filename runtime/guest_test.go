package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/mjrt/wasm"
)

var (
	i32  = []wasm.ValType{wasm.ValI32}
	none []wasm.ValType
)

// shimFuncs holds the function indices of the shim imports in a test guest.
type shimFuncs struct {
	allocate uint32
	println  uint32
	write    uint32
	flush    uint32
	read     uint32
}

func importShim(b *wasm.Builder, ns string) shimFuncs {
	return shimFuncs{
		allocate: b.ImportFunc(ns, "allocate", i32, i32),
		println:  b.ImportFunc(ns, "system_println", i32, none),
		write:    b.ImportFunc(ns, "system_write", i32, none),
		flush:    b.ImportFunc(ns, "system_flush", none, none),
		read:     b.ImportFunc(ns, "system_read", none, i32),
	}
}

// guest builds a module importing the shim from "env" with one page of
// memory, __heap_base at 1024, and an exported main built by body.
func guest(t *testing.T, locals []wasm.ValType, body func(f shimFuncs) *wasm.Code) []byte {
	t.Helper()
	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	b.Memory(1, nil)
	b.ExportMemory("memory")
	b.ExportGlobal("__heap_base", b.Global(1024, false))
	b.Export("main", b.Func(nil, nil, locals, body(f)))
	bin, err := b.Bytes()
	require.NoError(t, err)
	return bin
}

// writeString emits s one byte at a time through system_write.
func writeString(c *wasm.Code, write uint32, s string) *wasm.Code {
	for i := 0; i < len(s); i++ {
		c.I32Const(int32(s[i])).Call(write)
	}
	return c
}

// echoBody copies stdin to stdout until EOF using local 0.
func echoBody(f shimFuncs) *wasm.Code {
	return wasm.NewCode().
		Block().
		Loop().
		Call(f.read).LocalTee(0).
		I32Const(-1).I32Eq().BrIf(1).
		LocalGet(0).Call(f.write).
		Br(0).
		End().
		End()
}
