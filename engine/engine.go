package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/errors"
)

// Engine owns a wazero runtime and the host modules instantiated into it.
type Engine struct {
	runtime  wazero.Runtime
	hosts    map[string]api.Module
	hostsMu  sync.RWMutex
	wasiMu   sync.Mutex
	wasiDone atomic.Bool
	closed   atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone terminates running guest code when the call's
	// context is cancelled or its deadline passes.
	CloseOnContextDone bool
}

// NewEngine creates an engine with default configuration.
func NewEngine(ctx context.Context) (*Engine, error) {
	return NewEngineWithConfig(ctx, nil)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			if cfg.MemoryLimitPages > 65536 {
				return nil, errors.InvalidInput(errors.PhaseConfig, "MemoryLimitPages exceeds 65536")
			}
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		hosts:   make(map[string]api.Module),
	}, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// LoadModule compiles a guest binary.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	if e.closed.Load() {
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}

	Logger().Debug("module compiled",
		zap.Int("size", len(wasmBytes)),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))

	return &Module{engine: e, compiled: compiled}, nil
}

// HasHostModule reports whether a host module with the namespace is instantiated.
func (e *Engine) HasHostModule(namespace string) bool {
	e.hostsMu.RLock()
	defer e.hostsMu.RUnlock()
	_, ok := e.hosts[namespace]
	return ok
}

// Close releases the runtime and every module instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.hostsMu.Lock()
	e.hosts = map[string]api.Module{}
	e.hostsMu.Unlock()
	return e.runtime.Close(ctx)
}
