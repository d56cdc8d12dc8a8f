package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/mjrt/errors"
)

// WASINamespace is the import module name of WASI preview1.
const WASINamespace = wasi_snapshot_preview1.ModuleName

// InstantiateWASI instantiates WASI preview1 into r. Guest stdio comes from
// each guest's module config, so one instance serves every guest.
func InstantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(WASINamespace)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

// InitWASI instantiates WASI preview1 for this engine once.
// Safe for concurrent calls.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiDone.Load() {
		return nil
	}

	e.wasiMu.Lock()
	defer e.wasiMu.Unlock()

	if e.wasiDone.Load() {
		return nil
	}

	if e.runtime.Module(WASINamespace) == nil {
		mod, err := InstantiateWASI(ctx, e.runtime)
		if err != nil {
			return errors.New(errors.PhaseHost, errors.KindRegistration).
				Module(WASINamespace).
				Detail("instantiate WASI").
				Cause(err).
				Build()
		}
		e.hostsMu.Lock()
		e.hosts[WASINamespace] = mod
		e.hostsMu.Unlock()
	}

	e.wasiDone.Store(true)
	return nil
}

// WASIEnabled reports whether InitWASI has completed.
func (e *Engine) WASIEnabled() bool {
	return e.wasiDone.Load()
}
