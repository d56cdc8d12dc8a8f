package engine

import (
	"context"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/errors"
)

// Module is a compiled guest. It can be instantiated many times.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Import describes a function the guest imports.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Key returns the import as "module.name".
func (i Import) Key() string {
	return errors.ImportKey(i.Module, i.Name)
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Name registers the instance under a module name; empty keeps it anonymous
	// so the same module can be instantiated in parallel.
	Name string
	Args []string
}

// Imports returns the guest's function imports in declaration order.
func (m *Module) Imports() []Import {
	defs := m.compiled.ImportedFunctions()
	out := make([]Import, 0, len(defs))
	for _, def := range defs {
		mod, name, _ := def.Import()
		out = append(out, Import{
			Module:  mod,
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	return out
}

// Exports returns the names of the guest's exported functions, sorted.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasExport reports whether the guest exports a function called name.
func (m *Module) HasExport(name string) bool {
	_, ok := m.compiled.ExportedFunctions()[name]
	return ok
}

// MissingImports returns the "module.name" keys of imports that no host
// module in the engine satisfies.
func (m *Module) MissingImports() []string {
	var missing []string
	for _, imp := range m.Imports() {
		host := m.engine.runtime.Module(imp.Module)
		// ExportedFunction panics on host modules; definitions are safe.
		if host == nil || host.ExportedFunctionDefinitions()[imp.Name] == nil {
			missing = append(missing, imp.Key())
		}
	}
	return missing
}

// Instantiate creates an instance. An exported _start is not run; the caller
// invokes the entry point once the instance is wired up. A start section, if
// the guest has one, still runs during instantiation.
func (m *Module) Instantiate(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	if m.engine.closed.Load() {
		return nil, errors.Closed(errors.PhaseInstantiate, "engine")
	}

	if missing := m.MissingImports(); len(missing) > 0 {
		return nil, errors.NewMissingImportsError(missing)
	}

	modConfig := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions()
	if cfg.Stdin != nil {
		modConfig = modConfig.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(cfg.Stderr)
	}
	if len(cfg.Args) > 0 {
		modConfig = modConfig.WithArgs(cfg.Args...)
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &Instance{
		module:    mod,
		funcCache: make(map[string]api.Function),
	}
	if mem := moduleMemory(mod); mem != nil {
		inst.memory = &WazeroMemory{mem: mem}
	}

	Logger().Debug("module instantiated",
		zap.String("name", cfg.Name),
		zap.Bool("memory", inst.memory != nil))

	return inst, nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
