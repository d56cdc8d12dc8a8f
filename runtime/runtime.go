package runtime

import (
	"context"
	"io"
	"os"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/shim"
)

// Buffering selects how guest output reaches the underlying writer.
type Buffering int

const (
	// BufferAuto line-buffers when stdout is a terminal and fully buffers otherwise.
	BufferAuto Buffering = iota
	// BufferLine flushes after every newline and before blocking reads.
	BufferLine
	// BufferFull flushes when the buffer fills, on system_flush, and when
	// the guest finishes.
	BufferFull
)

// Config holds configuration for runtime creation. The zero value runs
// guests against the process streams with the shim under "env".
type Config struct {
	// Stdin and Stdout are the guest's console. Both nil means the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr receives WASI stderr. Defaults to os.Stderr.
	Stderr io.Writer

	// Logger is installed for the runtime and engine packages when set.
	Logger *zap.Logger

	// Namespace is the import module of the shim functions. Defaults to "env".
	Namespace string

	// HeapLimit bounds the bytes each guest can allocate. 0 is unbounded.
	HeapLimit uint64

	// MemoryLimitPages caps guest linear memory in 64KB pages. 0 is the wazero default.
	MemoryLimitPages uint32

	Buffering Buffering

	// EnableWASI makes WASI preview1 available to guests.
	EnableWASI bool

	// CloseOnContextDone stops running guests when their context is done.
	CloseOnContextDone bool
}

type Runtime struct {
	engine  *engine.Engine
	hosts   *HostRegistry
	shim    *ShimHost
	console *shim.Console
	stderr  io.Writer
}

// New creates a runtime with the default configuration.
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, Config{})
}

// NewWithConfig creates a runtime. The shim host is registered before it returns.
func NewWithConfig(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
		engine.SetLogger(cfg.Logger)
	}

	eng, err := engine.NewEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages:   cfg.MemoryLimitPages,
		CloseOnContextDone: cfg.CloseOnContextDone,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "create engine")
	}

	console := newConsole(cfg)
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	r := &Runtime{
		engine:  eng,
		hosts:   NewHostRegistry(),
		shim:    NewShimHost(cfg.Namespace, console, cfg.HeapLimit),
		console: console,
		stderr:  stderr,
	}

	if err := r.hosts.RegisterHost(r.shim); err != nil {
		eng.Close(ctx)
		return nil, err
	}

	if cfg.EnableWASI {
		if err := eng.InitWASI(ctx); err != nil {
			eng.Close(ctx)
			return nil, err
		}
	}

	Logger().Debug("runtime created",
		zap.String("namespace", r.shim.Namespace()),
		zap.Uint64("heap_limit", cfg.HeapLimit),
		zap.Bool("line_buffered", console.LineBuffered()),
		zap.Bool("wasi", cfg.EnableWASI))

	return r, nil
}

func newConsole(cfg Config) *shim.Console {
	streams := shim.Streams{Stdin: cfg.Stdin, Stdout: cfg.Stdout}
	if cfg.Stdin == nil && cfg.Stdout == nil {
		streams = shim.Stdio()
	}

	var line bool
	switch cfg.Buffering {
	case BufferLine:
		line = true
	case BufferFull:
		line = false
	default:
		f, _ := streams.Stdout.(*os.File)
		line = shim.IsTerminal(f)
	}
	return shim.NewConsole(streams, shim.WithLineBuffering(line))
}

// Close flushes the console and releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	r.console.Flush()
	return r.engine.Close(ctx)
}

// Console returns the default console guests write to and read from.
func (r *Runtime) Console() *shim.Console {
	return r.console
}

func (r *Runtime) Engine() *engine.Engine {
	return r.engine
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// Shim returns the host serving the shim imports.
func (r *Runtime) Shim() *ShimHost {
	return r.shim
}

// RegisterHost registers all exported methods of h as host functions.
// Must be called BEFORE loading modules that import these functions.
// Method names are converted from PascalCase to snake_case (GetValue -> get_value).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

func (r *Runtime) RegisterRaw(namespace, name string, params, results []api.ValueType, fn api.GoModuleFunc) error {
	return r.hosts.RegisterRaw(namespace, name, params, results, fn)
}

// LoadWASM compiles a guest and checks that every import it declares is
// provided by a registered host or WASI.
func (r *Runtime) LoadWASM(ctx context.Context, wasm []byte) (*Module, error) {
	mod, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}

	if err := r.hosts.Bind(ctx, r.engine); err != nil {
		return nil, errors.Wrap(errors.PhaseLinking, errors.KindRegistration, err, "bind hosts")
	}

	if missing := mod.MissingImports(); len(missing) > 0 {
		Logger().Warn("guest has unresolved imports", zap.Strings("imports", missing))
		return nil, errors.NewMissingImportsError(missing)
	}

	return &Module{runtime: r, mod: mod}, nil
}
