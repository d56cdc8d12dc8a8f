package runtime

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/wasm"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Allocate", "allocate"},
		{"SystemPrintln", "system_println"},
		{"SystemRead", "system_read"},
		{"ReadHTTPBody", "read_http_body"},
		{"ReadURL", "read_url"},
		{"HTTPServer", "http_server"},
		{"GetA", "get_a"},
		{"already_snake", "already_snake"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, toSnakeCase(tc.in))
		})
	}
}

// mathHost is registered through RegisterHost.
type mathHost struct {
	calls int
}

func (h *mathHost) Namespace() string { return "math" }

func (h *mathHost) AddMul(ctx context.Context, a, b, c int32) int32 {
	h.calls++
	return (a + b) * c
}

func (h *mathHost) Neg(v int64) int64 { return -v }

func (h *mathHost) Half(v float64) float64 { return v / 2 }

func (h *mathHost) IsZero(v uint32) bool { return v == 0 }

func TestRegisterHost_Reflective(t *testing.T) {
	ctx := context.Background()
	host := &mathHost{}

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	addMul := b.ImportFunc("math", "add_mul", []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}, i32)
	isZero := b.ImportFunc("math", "is_zero", i32, i32)
	b.Memory(1, nil)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().
		I32Const(2).I32Const(-5).I32Const(4).Call(addMul).Call(f.println).
		I32Const(0).Call(isZero).Call(f.println).
		I32Const(3).Call(isZero).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	require.NoError(t, rt.RegisterHost(host))
	require.True(t, rt.Hosts().Has("math", "add_mul"))
	require.True(t, rt.Hosts().Has("math", "neg"))
	require.True(t, rt.Hosts().Has("math", "half"))
	require.Equal(t, []string{DefaultNamespace, "math"}, rt.Hosts().Namespaces())

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.NoError(t, inst.Run(ctx))
	require.Equal(t, "-12\n1\n0\n", out.String())
	require.Equal(t, 1, host.calls)
}

func TestRegisterFunc(t *testing.T) {
	ctx := context.Background()

	var sawModule bool
	var got []uint64

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	mix := b.ImportFunc("host", "mix", []wasm.ValType{wasm.ValI32, wasm.ValI64}, []wasm.ValType{wasm.ValI64})
	b.Memory(1, nil)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().
		I32Const(-1).I64Const(1<<40).Call(mix).Drop().
		I32Const(1).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	err = rt.RegisterFunc("host", "mix", func(ctx context.Context, mod api.Module, a uint32, b int64) uint64 {
		sawModule = mod != nil && ctx != nil
		got = append(got, uint64(a), uint64(b))
		return uint64(a) + uint64(b)
	})
	require.NoError(t, err)

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.NoError(t, inst.Run(ctx))
	require.True(t, sawModule)
	require.Equal(t, []uint64{0xFFFFFFFF, 1 << 40}, got)
	require.Equal(t, "1\n", out.String())
}

func TestRegisterRaw(t *testing.T) {
	ctx := context.Background()

	b := wasm.NewBuilder()
	f := importShim(b, DefaultNamespace)
	seven := b.ImportFunc("raw", "seven", none, i32)
	b.Memory(1, nil)
	b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().Call(seven).Call(f.println)))
	bin, err := b.Bytes()
	require.NoError(t, err)

	var out bytes.Buffer
	rt, err := NewWithConfig(ctx, Config{Stdout: &out})
	require.NoError(t, err)
	defer rt.Close(ctx)

	require.NoError(t, rt.RegisterRaw("raw", "seven", nil, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeI32(7)
		}))

	mod, err := rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.NoError(t, inst.Run(ctx))
	require.Equal(t, "7\n", out.String())
}

type stringHost struct{}

func (stringHost) Namespace() string    { return "str" }
func (stringHost) Echo(s string) string { return s }

type emptyHost struct{}

func (emptyHost) Namespace() string { return "" }

type noFuncsHost struct{}

func (noFuncsHost) Namespace() string { return "nothing" }

func TestRegistration_Errors(t *testing.T) {
	r := NewHostRegistry()

	tests := []struct {
		err  error
		name string
		kind errors.Kind
	}{
		{r.RegisterFunc("", "f", func() {}), "empty namespace", errors.KindInvalidInput},
		{r.RegisterFunc("ns", "", func() {}), "empty name", errors.KindInvalidInput},
		{r.RegisterFunc("ns", "f", 42), "not a function", errors.KindTypeMismatch},
		{r.RegisterFunc("ns", "f", func(string) {}), "string param", errors.KindRegistration},
		{r.RegisterFunc("ns", "f", func() int { return 0 }), "int result", errors.KindRegistration},
		{r.RegisterRaw("ns", "f", nil, nil, nil), "nil raw", errors.KindRegistration},
		{r.RegisterHost(stringHost{}), "host with string method", errors.KindRegistration},
		{r.RegisterHost(emptyHost{}), "host without namespace", errors.KindInvalidInput},
		{r.RegisterHost(noFuncsHost{}), "host without functions", errors.KindRegistration},
		{r.RegisterHost(nil), "nil host", errors.KindInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.err, &errors.Error{Phase: errors.PhaseHost, Kind: tc.kind})
		})
	}
	require.Empty(t, r.Namespaces())
}

func TestRegistration_AfterBind(t *testing.T) {
	ctx := context.Background()

	rt, err := NewWithConfig(ctx, Config{Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close(ctx)

	bin, err := wasm.NewBuilder().Bytes()
	require.NoError(t, err)
	_, err = rt.LoadWASM(ctx, bin)
	require.NoError(t, err)

	err = rt.RegisterFunc(DefaultNamespace, "late", func() {})
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})

	// New namespaces can still be added and are bound on the next load.
	require.NoError(t, rt.RegisterFunc("later", "f", func() {}))

	b := wasm.NewBuilder()
	b.ImportFunc("later", "f", none, none)
	bin, err = b.Bytes()
	require.NoError(t, err)
	_, err = rt.LoadWASM(ctx, bin)
	require.NoError(t, err)
}

type clashingHost struct{}

func (clashingHost) Namespace() string { return "clash" }
func (clashingHost) ReadURL() int32    { return 1 }
func (clashingHost) ReadUrl() int32    { return 2 }

func TestRegistration_Duplicates(t *testing.T) {
	ctx := context.Background()

	t.Run("same function twice", func(t *testing.T) {
		r := NewHostRegistry()
		require.NoError(t, r.RegisterFunc("ns", "f", func() int32 { return 1 }))

		err := r.RegisterFunc("ns", "f", func() int32 { return 2 })
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})

		err = r.RegisterRaw("ns", "f", nil, nil, func(context.Context, api.Module, []uint64) {})
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})
	})

	t.Run("methods with the same import name", func(t *testing.T) {
		r := NewHostRegistry()
		err := r.RegisterHost(clashingHost{})
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})
		require.False(t, r.Has("clash", "read_url"))
	})

	t.Run("shim function cannot be replaced", func(t *testing.T) {
		var out bytes.Buffer
		rt, err := NewWithConfig(ctx, Config{Stdout: &out})
		require.NoError(t, err)
		defer rt.Close(ctx)

		err = rt.RegisterFunc(DefaultNamespace, "system_println", func(int32) {})
		require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})

		// The original println still serves the guest.
		b := wasm.NewBuilder()
		f := importShim(b, DefaultNamespace)
		b.Memory(1, nil)
		b.Export("main", b.Func(nil, nil, nil, wasm.NewCode().I32Const(5).Call(f.println)))
		bin, err := b.Bytes()
		require.NoError(t, err)

		mod, err := rt.LoadWASM(ctx, bin)
		require.NoError(t, err)
		inst, err := mod.Instantiate(ctx)
		require.NoError(t, err)
		defer inst.Close(ctx)

		require.NoError(t, inst.Run(ctx))
		require.Equal(t, "5\n", out.String())
	})

	t.Run("new names in an existing namespace", func(t *testing.T) {
		r := NewHostRegistry()
		require.NoError(t, r.RegisterFunc("ns", "a", func() {}))
		require.NoError(t, r.RegisterFunc("ns", "b", func() {}))
		require.True(t, r.Has("ns", "a"))
		require.True(t, r.Has("ns", "b"))
	})
}

func TestRegisterFunc_Variadic(t *testing.T) {
	r := NewHostRegistry()
	err := r.RegisterFunc("ns", "sum", func(xs ...int32) int32 { return 0 })
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration})
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindUnsupported})
	require.False(t, r.Has("ns", "sum"))
}
