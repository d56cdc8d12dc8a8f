package runtime

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as host functions.
type Host interface {
	// Namespace returns the import module name guests use (e.g., "env").
	Namespace() string
}

// HostRegistry collects host functions by namespace until they are bound
// to an engine. A namespace is frozen once bound.
type HostRegistry struct {
	funcs map[string]map[string]*engine.HostFunc
	bound map[string]bool
	mu    sync.RWMutex
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]*engine.HostFunc),
		bound: make(map[string]bool),
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
)

// RegisterHost registers all exported methods of h as host functions.
// Method names are converted from PascalCase to snake_case (SystemPrintln -> system_println).
func (r *HostRegistry) RegisterHost(h Host) error {
	if h == nil {
		return errors.InvalidInput(errors.PhaseHost, "host cannot be nil")
	}
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	funcs := make([]*engine.HostFunc, 0, rt.NumMethod())
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}

		name := toSnakeCase(method.Name)
		hf, err := wrapFunc(name, rv.Method(i))
		if err != nil {
			return errors.Registration(ns, name, err)
		}
		funcs = append(funcs, hf)
	}
	if len(funcs) == 0 {
		return errors.Registration(ns, "", errors.InvalidInput(errors.PhaseHost, "host has no exported functions"))
	}

	return r.add(ns, funcs...)
}

// RegisterFunc registers a Go function as namespace.name. Parameters and
// results must be fixed-size numbers or bool; a leading context.Context and
// then api.Module are passed through when declared.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Module(namespace).
			Name(name).
			Detail("handler must be a function, got %T", fn).
			Build()
	}

	hf, err := wrapFunc(name, rv)
	if err != nil {
		return errors.Registration(namespace, name, err)
	}
	return r.add(namespace, hf)
}

// RegisterRaw registers a function that works on the raw value stack.
func (r *HostRegistry) RegisterRaw(namespace, name string, params, results []api.ValueType, fn api.GoModuleFunc) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	if fn == nil {
		return errors.Registration(namespace, name, errors.InvalidInput(errors.PhaseHost, "nil function"))
	}
	return r.add(namespace, &engine.HostFunc{Name: name, Params: params, Results: results, Fn: fn})
}

func (r *HostRegistry) add(ns string, funcs ...*engine.HostFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound[ns] {
		return errors.New(errors.PhaseHost, errors.KindRegistration).
			Module(ns).
			Detail("namespace already bound to the engine").
			Build()
	}
	seen := make(map[string]bool, len(funcs))
	for _, hf := range funcs {
		if _, exists := r.funcs[ns][hf.Name]; exists || seen[hf.Name] {
			return errors.New(errors.PhaseHost, errors.KindRegistration).
				Module(ns).
				Name(hf.Name).
				Detail("function already registered").
				Build()
		}
		seen[hf.Name] = true
	}

	if r.funcs[ns] == nil {
		r.funcs[ns] = make(map[string]*engine.HostFunc)
	}
	for _, hf := range funcs {
		r.funcs[ns][hf.Name] = hf
	}
	return nil
}

// Has reports whether namespace.name is registered.
func (r *HostRegistry) Has(namespace, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[namespace][name]
	return ok
}

// Namespaces returns the registered namespaces, sorted.
func (r *HostRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Bind defines every namespace not yet bound as a host module in e.
func (r *HostRegistry) Bind(ctx context.Context, e *engine.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	namespaces := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		if !r.bound[ns] {
			namespaces = append(namespaces, ns)
		}
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		names := make([]string, 0, len(r.funcs[ns]))
		for name := range r.funcs[ns] {
			names = append(names, name)
		}
		sort.Strings(names)

		hm := engine.NewHostModule(ns)
		for _, name := range names {
			hf := r.funcs[ns][name]
			hm.Func(hf.Name, hf.Params, hf.Results, hf.Fn)
		}
		if err := e.DefineHostModule(ctx, hm); err != nil {
			return err
		}
		r.bound[ns] = true
	}
	return nil
}

// wrapFunc adapts a reflected Go function to the raw stack calling convention.
func wrapFunc(name string, fn reflect.Value) (*engine.HostFunc, error) {
	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, errors.Unsupported(errors.PhaseHost, "variadic host functions")
	}

	in := 0
	withCtx, withMod := false, false
	if in < ft.NumIn() && ft.In(in) == contextType {
		withCtx = true
		in++
	}
	if in < ft.NumIn() && ft.In(in) == moduleType {
		withMod = true
		in++
	}

	paramTypes := make([]reflect.Type, 0, ft.NumIn()-in)
	params := make([]api.ValueType, 0, ft.NumIn()-in)
	for ; in < ft.NumIn(); in++ {
		t := ft.In(in)
		vt, ok := valueType(t)
		if !ok {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Name(name).
				Detail("unsupported parameter type %s", t).
				Build()
		}
		paramTypes = append(paramTypes, t)
		params = append(params, vt)
	}

	results := make([]api.ValueType, 0, ft.NumOut())
	for i := 0; i < ft.NumOut(); i++ {
		t := ft.Out(i)
		vt, ok := valueType(t)
		if !ok {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Name(name).
				Detail("unsupported result type %s", t).
				Build()
		}
		results = append(results, vt)
	}

	call := func(ctx context.Context, mod api.Module, stack []uint64) {
		args := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		if withMod {
			args = append(args, reflect.ValueOf(&mod).Elem())
		}
		for i, t := range paramTypes {
			args = append(args, decodeValue(t, stack[i]))
		}
		out := fn.Call(args)
		for i, v := range out {
			stack[i] = encodeValue(v)
		}
	}

	return &engine.HostFunc{
		Name:    name,
		Params:  params,
		Results: results,
		Fn:      api.GoModuleFunc(call),
	}, nil
}

func valueType(t reflect.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return api.ValueTypeI32, true
	case reflect.Int64, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	default:
		return 0, false
	}
}

func decodeValue(t reflect.Type, raw uint64) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		v.SetBool(uint32(raw) != 0)
	case reflect.Int8, reflect.Int16, reflect.Int32:
		v.SetInt(int64(api.DecodeI32(raw)))
	case reflect.Int64:
		v.SetInt(int64(raw))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		v.SetUint(uint64(api.DecodeU32(raw)))
	case reflect.Uint64:
		v.SetUint(raw)
	case reflect.Float32:
		v.SetFloat(float64(api.DecodeF32(raw)))
	case reflect.Float64:
		v.SetFloat(api.DecodeF64(raw))
	}
	return v
}

func encodeValue(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	}
	return 0
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: ReadHTTPBody -> read_http_body
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		end := i + 1
		for end < len(runes) && unicode.IsUpper(runes[end]) {
			end++
		}
		// The last capital of a run starts the next word.
		if end > i+1 && end < len(runes) && unicode.IsLower(runes[end]) {
			end--
		}

		if i > 0 {
			result.WriteByte('_')
		}
		for j := i; j < end; j++ {
			result.WriteRune(unicode.ToLower(runes[j]))
		}
		i = end - 1
	}
	return result.String()
}
