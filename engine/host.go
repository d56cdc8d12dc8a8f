package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/errors"
)

// HostFunc is a host function exported to guests with a fixed core signature.
type HostFunc struct {
	Fn      api.GoModuleFunc
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// HostModule groups host functions under one import namespace.
type HostModule struct {
	Namespace string
	Funcs     []HostFunc
}

// NewHostModule creates an empty host module for namespace.
func NewHostModule(namespace string) *HostModule {
	return &HostModule{Namespace: namespace}
}

// Func adds a function and returns the module for chaining.
func (h *HostModule) Func(name string, params, results []api.ValueType, fn api.GoModuleFunc) *HostModule {
	h.Funcs = append(h.Funcs, HostFunc{Name: name, Params: params, Results: results, Fn: fn})
	return h
}

// Names returns the exported function names in definition order.
func (h *HostModule) Names() []string {
	names := make([]string, len(h.Funcs))
	for i, f := range h.Funcs {
		names[i] = f.Name
	}
	return names
}

// DefineHostModule instantiates h into the engine. Each namespace can be
// defined once per engine; guests instantiated afterwards link against it.
func (e *Engine) DefineHostModule(ctx context.Context, h *HostModule) error {
	if h == nil || h.Namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "host module needs a namespace")
	}
	if e.closed.Load() {
		return errors.Closed(errors.PhaseHost, "engine")
	}

	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	if _, exists := e.hosts[h.Namespace]; exists {
		return errors.New(errors.PhaseHost, errors.KindRegistration).
			Module(h.Namespace).
			Detail("host module already defined").
			Build()
	}

	seen := make(map[string]bool, len(h.Funcs))
	builder := e.runtime.NewHostModuleBuilder(h.Namespace)
	for _, f := range h.Funcs {
		if f.Fn == nil {
			return errors.Registration(h.Namespace, f.Name, errors.InvalidInput(errors.PhaseHost, "nil function"))
		}
		if seen[f.Name] {
			return errors.Registration(h.Namespace, f.Name, errors.InvalidInput(errors.PhaseHost, "duplicate function"))
		}
		seen[f.Name] = true
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Fn, f.Params, f.Results).
			WithName(f.Name).
			Export(f.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.New(errors.PhaseHost, errors.KindRegistration).
			Module(h.Namespace).
			Detail("instantiate host module").
			Cause(err).
			Build()
	}
	e.hosts[h.Namespace] = mod

	Logger().Debug("host module defined",
		zap.String("namespace", h.Namespace),
		zap.Strings("functions", h.Names()))
	return nil
}
