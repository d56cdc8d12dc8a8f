package runtime

import (
	"bytes"
	"context"
	stderrors "errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/shim"
	"github.com/wippyai/mjrt/wasm"
)

// run executes bin with stdin and returns stdout and the Run error.
func run(t *testing.T, cfg Config, bin []byte, stdin string) (string, error) {
	t.Helper()
	ctx := context.Background()

	var out bytes.Buffer
	cfg.Stdin = strings.NewReader(stdin)
	cfg.Stdout = &out

	rt, err := NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)

	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	err = inst.Run(ctx)
	return out.String(), err
}

func TestShim_Println(t *testing.T) {
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			I32Const(42).Call(f.println).
			I32Const(-7).Call(f.println).
			I32Const(0).Call(f.println).
			I32Const(math.MinInt32).Call(f.println).
			I32Const(math.MaxInt32).Call(f.println)
	})

	out, err := run(t, Config{}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "42\n-7\n0\n-2147483648\n2147483647\n", out)
}

func TestShim_Write(t *testing.T) {
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		c := writeString(wasm.NewCode(), f.write, "Hi")
		return c.
			I32Const(0x141).Call(f.write).
			I32Const('\n').Call(f.write).
			Call(f.flush).
			Call(f.flush)
	})

	out, err := run(t, Config{}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "HiA\n", out)
}

func TestShim_ReadEcho(t *testing.T) {
	bin := guest(t, i32, echoBody)

	tests := []struct {
		name  string
		stdin string
	}{
		{"empty", ""},
		{"line", "hello\n"},
		{"high bytes", "\x00\xff\x80"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := run(t, Config{}, bin, tc.stdin)
			require.NoError(t, err)
			require.Equal(t, tc.stdin, out)
		})
	}
}

func TestShim_ReadEOFIsSticky(t *testing.T) {
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			Call(f.read).Call(f.println).
			Call(f.read).Call(f.println).
			Call(f.read).Call(f.println)
	})

	out, err := run(t, Config{}, bin, "A")
	require.NoError(t, err)
	require.Equal(t, "65\n-1\n-1\n", out)
}

func TestShim_Allocate(t *testing.T) {
	// p = allocate(16); print p, the word at p, allocate(0) != 0, and whether
	// two zero-size blocks differ.
	bin := guest(t, []wasm.ValType{wasm.ValI32}, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			I32Const(16).Call(f.allocate).LocalTee(0).Call(f.println).
			LocalGet(0).I32Load(0).Call(f.println).
			LocalGet(0).I32Load(12).Call(f.println).
			I32Const(0).Call(f.allocate).I32Const(0).I32Ne().Call(f.println).
			I32Const(0).Call(f.allocate).I32Const(0).Call(f.allocate).I32Ne().Call(f.println)
	})

	out, err := run(t, Config{}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "1024\n0\n0\n1\n1\n", out)
}

func TestShim_AllocateFailure(t *testing.T) {
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			I32Const(-1).Call(f.allocate).Call(f.println).
			I32Const(32).Call(f.allocate).Call(f.println).
			I32Const(8).Call(f.allocate).Call(f.println)
	})

	out, err := run(t, Config{HeapLimit: 16}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "0\n0\n1024\n", out)
}

func TestShim_AllocateWithoutMemory(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().
		I32Const(16).Call(f.allocate).Call(f.println).
		I32Const(0).Call(f.allocate).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	out, err := run(t, Config{}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "0\n0\n", out)

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Nil(t, inst.Memory())
	require.Zero(t, inst.Heap().Used())
}

func TestShim_AllocateGrowsMemory(t *testing.T) {
	ctx := context.Background()
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			I32Const(100000).Call(f.allocate).Call(f.println)
	})

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.NoError(t, inst.Run(ctx))
	require.Equal(t, "1024\n", out.String())
	require.Equal(t, uint64(100000), inst.Heap().Used())
	require.Equal(t, uint32(1), inst.Heap().GrownPages())
	require.Equal(t, uint32(2*65536), inst.Memory().Size())
}

func TestShim_MemoryLimit(t *testing.T) {
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().
			I32Const(65536).Call(f.allocate).Call(f.println)
	})

	out, err := run(t, Config{MemoryLimitPages: 1}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "0\n", out)
}

func TestShim_HeapsArePerInstance(t *testing.T) {
	ctx := context.Background()
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
		return wasm.NewCode().I32Const(8).Call(f.allocate).Call(f.println)
	})

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		inst, err := mod.Instantiate(ctx)
		require.NoError(t, err)
		require.NoError(t, inst.Run(ctx))
		require.NoError(t, inst.Close(ctx))
	}
	require.Equal(t, "1024\n1024\n1024\n", out.String())
}

func TestBuffering(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	b.Memory(1, nil)
	b.Export("emit", b.Func(nil, nil, nil, writeString(wasm.NewCode(), f.write, "x\ny")))
	b.Export("flush", b.Func(nil, nil, nil, wasm.NewCode().Call(f.flush)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	tests := []struct {
		name      string
		buffering Buffering
		afterEmit string
	}{
		{"full", BufferFull, ""},
		{"line", BufferLine, "x\n"},
		{"auto on a buffer is full", BufferAuto, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			rt, err := NewWithConfig(ctx, Config{Stdout: &out, Buffering: tc.buffering})
			require.NoError(t, err)
			defer rt.Close(ctx)

			mod, err := rt.LoadWASM(ctx, bin)
			require.NoError(t, err)
			inst, err := mod.Instantiate(ctx)
			require.NoError(t, err)
			defer inst.Close(ctx)

			_, err = inst.Call(ctx, "emit")
			require.NoError(t, err)
			require.Equal(t, tc.afterEmit, out.String())

			_, err = inst.Call(ctx, "flush")
			require.NoError(t, err)
			require.Equal(t, "x\ny", out.String())
		})
	}
}

func TestConsoleFromContext(t *testing.T) {
	ctx := context.Background()
	bin := guest(t, i32, echoBody)

	var def bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdin: strings.NewReader("default"), Stdout: &def})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	var other bytes.Buffer
	console := shim.NewConsole(shim.Streams{Stdin: strings.NewReader("override"), Stdout: &other})
	_, err = inst.Call(shim.WithConsole(ctx, console), "main")
	require.NoError(t, err)
	console.Flush()

	require.Equal(t, "override", other.String())
	require.Empty(t, def.String())
}

func TestInstanceConsole(t *testing.T) {
	ctx := context.Background()
	bin := guest(t, i32, echoBody)

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)

	var out bytes.Buffer
	console := shim.NewConsole(shim.Streams{Stdin: strings.NewReader("mine"), Stdout: &out})
	inst, err := mod.InstantiateWithConfig(ctx, InstanceConfig{Console: console})
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Same(t, console, inst.Console())
	require.NoError(t, inst.Run(ctx))
	require.Equal(t, "mine", out.String())
}

func TestLoadWASM_MissingImports(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	b.ImportFunc("env", "system_println", i32, none)
	b.ImportFunc("env", "system_beep", none, none)
	b.ImportFunc("other", "thing", none, none)
	bin, err := b.Bytes()
	require.NoError(t, err)

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.LoadWASM(ctx, bin)
	var missing *errors.MissingImportsError
	require.True(t, stderrors.As(err, &missing))
	require.Len(t, missing.Imports, 2)
	require.Contains(t, err.Error(), "system_beep")
	require.Contains(t, err.Error(), "thing")
	require.NotContains(t, err.Error(), "system_println")
}

func TestLoadWASM_Invalid(t *testing.T) {
	ctx := context.Background()
	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.LoadWASM(ctx, []byte{0x00, 0x61, 0x73})
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData})
}

func TestCustomNamespace(t *testing.T) {
	b := wasm.NewBuilder()
	f := importShim(b, "mj")
	b.Memory(1, nil)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().I32Const(5).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	out, err := run(t, Config{Namespace: "mj"}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "5\n", out)
}

func TestRun_ExitStatus(t *testing.T) {
	t.Run("main returns status", func(t *testing.T) {
		b := wasm.NewBuilder()
		f := importShim(b, DefaultNamespace)
		b.Memory(1, nil)
		b.Export("main", b.Func(nil, i32, nil, wasm.NewCode().
			I32Const(9).Call(f.println).
			I32Const(3)))
		bin, err := b.Bytes()
		require.NoError(t, err)

		out, err := run(t, Config{}, bin, "")
		require.Equal(t, "9\n", out)
		var exit *ExitError
		require.True(t, stderrors.As(err, &exit))
		require.Equal(t, uint32(3), exit.Code)
		require.Equal(t, 3, ExitCode(err))
	})

	t.Run("main returns zero", func(t *testing.T) {
		b := wasm.NewBuilder()
		b.Export("main", b.Func(nil, i32, nil, wasm.NewCode().I32Const(0)))
		bin, err := b.Bytes()
		require.NoError(t, err)

		_, err = run(t, Config{}, bin, "")
		require.NoError(t, err)
		require.Equal(t, 0, ExitCode(err))
	})

	t.Run("trap flushes output", func(t *testing.T) {
		bin := guest(t, nil, func(f shimFuncs) *wasm.Code {
			return writeString(wasm.NewCode(), f.write, "before").Unreachable()
		})

		out, err := run(t, Config{Buffering: BufferFull}, bin, "")
		require.Equal(t, "before", out)
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindTrap})
		require.Equal(t, 1, ExitCode(err))
	})

	t.Run("context deadline is not an exit status", func(t *testing.T) {
		b := wasm.NewBuilder()
		b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().Loop().Br(0).End()))
		bin, err := b.Bytes()
		require.NoError(t, err)

		ctx := context.Background()
		rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}, CloseOnContextDone: true})
		require.NoError(t, err)
		defer rt.Close(ctx)

		mod, err := rt.LoadWASM(ctx, bin)
		require.NoError(t, err)
		inst, err := mod.Instantiate(ctx)
		require.NoError(t, err)
		defer inst.Close(ctx)

		runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err = inst.Run(runCtx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindTrap})
		var exit *ExitError
		require.False(t, stderrors.As(err, &exit))
		require.Equal(t, 1, ExitCode(err))
	})

	t.Run("context cancel is not an exit status", func(t *testing.T) {
		b := wasm.NewBuilder()
		b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().Loop().Br(0).End()))
		bin, err := b.Bytes()
		require.NoError(t, err)

		ctx := context.Background()
		rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}, CloseOnContextDone: true})
		require.NoError(t, err)
		defer rt.Close(ctx)

		mod, err := rt.LoadWASM(ctx, bin)
		require.NoError(t, err)
		inst, err := mod.Instantiate(ctx)
		require.NoError(t, err)
		defer inst.Close(ctx)

		runCtx, cancel := context.WithCancel(ctx)
		time.AfterFunc(50*time.Millisecond, cancel)

		err = inst.Run(runCtx)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, ExitCode(err))
	})

	t.Run("no entry point", func(t *testing.T) {
		bin, err := wasm.NewBuilder().Bytes()
		require.NoError(t, err)

		_, err = run(t, Config{}, bin, "")
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindNotFound})
	})
}

func TestRun_PrefersStart(t *testing.T) {
	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	b.Memory(1, nil)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().I32Const(1).Call(f.println)))
	b.Export("_start", b.Func(nil, nil, nil, wasm.NewCode().I32Const(2).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	out, err := run(t, Config{}, bin, "")
	require.NoError(t, err)
	require.Equal(t, "2\n", out)
}

func TestInstantiate_DoesNotRunStart(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	b.Memory(1, nil)
	b.Export("_start", b.Func(nil, nil, nil, wasm.NewCode().I32Const(2).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	require.Equal(t, "_start", mod.Entry())

	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	rt.Console().Flush()
	require.Empty(t, out.String())

	require.NoError(t, inst.Run(ctx))
	require.Equal(t, "2\n", out.String())
}

func TestWASI_SharesConsole(t *testing.T) {
	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	fdWrite := b.ImportFunc(engine.WASINamespace, "fd_write",
		[]wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValI32}, i32)
	procExit := b.ImportFunc(engine.WASINamespace, "proc_exit", i32, none)
	b.Memory(1, nil)
	b.ExportMemory("memory")
	b.Data(16, []byte("two\n"))
	b.Data(0, []byte{16, 0, 0, 0, 4, 0, 0, 0})

	c := writeString(wasm.NewCode(), f.write, "one\n")
	c.I32Const(1).I32Const(0).I32Const(1).I32Const(8).Call(fdWrite).Drop()
	writeString(c, f.write, "three\n")
	c.I32Const(5).Call(procExit)
	b.Export("_start", b.Func(nil, nil, nil, c))
	bin, err := b.Bytes()
	require.NoError(t, err)

	out, err := run(t, Config{EnableWASI: true, Buffering: BufferFull}, bin, "")
	require.Equal(t, "one\ntwo\nthree\n", out)
	require.Equal(t, 5, ExitCode(err))
}

func TestWASI_ProcExitZero(t *testing.T) {
	b := wasm.NewBuilder()
	procExit := b.ImportFunc(engine.WASINamespace, "proc_exit", i32, none)
	b.Memory(1, nil)
	b.ExportMemory("memory")
	b.Export("_start", b.Func(nil, nil, nil, wasm.NewCode().I32Const(0).Call(procExit)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	_, err = run(t, Config{EnableWASI: true}, bin, "")
	require.NoError(t, err)
}

func TestWASI_DisabledIsMissing(t *testing.T) {
	ctx := context.Background()
	b := wasm.NewBuilder()
	b.ImportFunc(engine.WASINamespace, "proc_exit", i32, none)
	bin, err := b.Bytes()
	require.NoError(t, err)

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.LoadWASM(ctx, bin)
	var missing *errors.MissingImportsError
	require.True(t, stderrors.As(err, &missing))
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 7, ExitCode(&ExitError{Code: 7}))
	require.Equal(t, 1, ExitCode(stderrors.New("boom")))
	require.Equal(t, "guest exited with code 7", (&ExitError{Code: 7}).Error())
}

func TestInstance_CloseTwice(t *testing.T) {
	ctx := context.Background()
	bin := guest(t, nil, func(f shimFuncs) *wasm.Code { return wasm.NewCode() })

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))
	require.Nil(t, inst.Memory())

	_, err = inst.Call(ctx, "main")
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindClosed})
}
