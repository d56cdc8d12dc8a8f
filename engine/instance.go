package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mjrt/errors"
)

// Instance is a running guest.
// It is NOT safe for concurrent use from multiple goroutines.
type Instance struct {
	module    api.Module
	memory    *WazeroMemory
	funcCache map[string]api.Function
}

// Module returns the wazero module instance.
func (i *Instance) Module() api.Module {
	return i.module
}

// Function returns an exported function, or nil.
func (i *Instance) Function(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	if i.module == nil {
		return nil
	}
	fn := i.module.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// Call invokes an exported function with raw core values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.module == nil {
		return nil, errors.Closed(errors.PhaseRuntime, "instance")
	}
	fn := i.Function(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	if want := len(fn.Definition().ParamTypes()); want != len(args) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Name(name).
			Detail("expected %d arguments, got %d", want, len(args)).
			Build()
	}
	return fn.Call(ctx, args...)
}

// Memory returns the guest's linear memory, or nil if it has none.
func (i *Instance) Memory() *WazeroMemory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *Instance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Close closes the guest instance.
func (i *Instance) Close(ctx context.Context) error {
	if i.module == nil {
		return nil
	}
	err := i.module.Close(ctx)
	i.module = nil
	i.memory = nil
	i.funcCache = nil
	return err
}
