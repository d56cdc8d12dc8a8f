package runtime

import (
	"context"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/shim"
)

type Module struct {
	runtime *Runtime
	mod     *engine.Module
}

// InstanceConfig holds per-instance settings.
type InstanceConfig struct {
	// Console overrides the runtime console for this instance.
	Console *shim.Console
	// Name registers the instance under a module name; empty is anonymous.
	Name string
	// Args are the WASI arguments.
	Args []string
}

// Imports returns the guest's function imports in declaration order.
func (m *Module) Imports() []engine.Import {
	return m.mod.Imports()
}

// Exports returns the guest's exported function names, sorted.
func (m *Module) Exports() []string {
	return m.mod.Exports()
}

// Entry returns the export Run would call, or "" if there is none.
func (m *Module) Entry() string {
	for _, name := range entryPoints {
		if m.mod.HasExport(name) {
			return name
		}
	}
	return ""
}

func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.InstantiateWithConfig(ctx, InstanceConfig{})
}

// InstantiateWithConfig creates an instance. Nothing runs until Run or Call.
func (m *Module) InstantiateWithConfig(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	console := cfg.Console
	if console == nil {
		console = m.runtime.console
	}

	inst, err := m.mod.Instantiate(ctx, engine.InstanceConfig{
		Name:   cfg.Name,
		Args:   cfg.Args,
		Stdin:  console,
		Stdout: console,
		Stderr: m.runtime.stderr,
	})
	if err != nil {
		return nil, err
	}

	return &Instance{
		module:  m,
		inst:    inst,
		console: console,
		heap:    m.runtime.shim.heapFor(inst.Module()),
	}, nil
}

// Close releases the compiled guest.
func (m *Module) Close(ctx context.Context) error {
	return m.mod.Close(ctx)
}
