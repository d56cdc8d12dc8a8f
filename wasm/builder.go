package wasm

import (
	"fmt"

	"github.com/wippyai/mjrt/wasm/internal/binary"
)

// Builder assembles a Module incrementally. Function imports must be declared
// before any defined function, because imported functions occupy the low end
// of the function index space.
//
// Errors are sticky: the first misuse is remembered and reported by Bytes.
type Builder struct {
	err     error
	mod     Module
	imports uint32
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// typeIndex returns the index of ft, adding it when new.
func (b *Builder) typeIndex(ft FuncType) uint32 {
	for i, t := range b.mod.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	b.mod.Types = append(b.mod.Types, ft)
	return uint32(len(b.mod.Types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(b.mod.Funcs) > 0 && b.err == nil {
		b.err = fmt.Errorf("import %s.%s declared after defined functions", module, name)
	}
	idx := b.typeIndex(FuncType{Params: params, Results: results})
	b.mod.Imports = append(b.mod.Imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindFunc, TypeIdx: idx},
	})
	b.imports++
	return b.imports - 1
}

// Func defines a function and returns its function index. The trailing end
// opcode is appended to body.
func (b *Builder) Func(params, results []ValType, locals []ValType, body *Code) uint32 {
	typeIdx := b.typeIndex(FuncType{Params: params, Results: results})
	b.mod.Funcs = append(b.mod.Funcs, typeIdx)

	var entries []LocalEntry
	for _, l := range locals {
		if n := len(entries); n > 0 && entries[n-1].Type == l {
			entries[n-1].Count++
			continue
		}
		entries = append(entries, LocalEntry{Count: 1, Type: l})
	}

	code := append([]byte(nil), body.Bytes()...)
	code = append(code, OpEnd)
	b.mod.Code = append(b.mod.Code, FuncBody{Locals: entries, Code: code})

	return b.imports + uint32(len(b.mod.Funcs)) - 1
}

// Memory defines memory 0 with min pages and an optional maximum.
func (b *Builder) Memory(min uint32, max *uint32) {
	if len(b.mod.Memories) > 0 && b.err == nil {
		b.err = fmt.Errorf("memory already defined")
	}
	b.mod.Memories = append(b.mod.Memories, MemoryType{Limits: Limits{Min: min, Max: max}})
}

// Global defines an i32 global initialized to v and returns its index.
func (b *Builder) Global(v int32, mutable bool) uint32 {
	b.mod.Globals = append(b.mod.Globals, Global{
		Type: GlobalType{ValType: ValI32, Mutable: mutable},
		Init: constExpr(v),
	})
	return uint32(len(b.mod.Globals) - 1)
}

// Data places init at offset in memory 0 at instantiation.
func (b *Builder) Data(offset uint32, init []byte) {
	b.mod.Data = append(b.mod.Data, DataSegment{
		Offset: constExpr(int32(offset)),
		Init:   append([]byte(nil), init...),
	})
}

// Export exports a function by name.
func (b *Builder) Export(name string, fn uint32) {
	b.export(name, KindFunc, fn)
}

// ExportMemory exports memory 0.
func (b *Builder) ExportMemory(name string) {
	b.export(name, KindMemory, 0)
}

// ExportGlobal exports a global.
func (b *Builder) ExportGlobal(name string, idx uint32) {
	b.export(name, KindGlobal, idx)
}

// Start marks fn to run during instantiation.
func (b *Builder) Start(fn uint32) {
	b.mod.Start = &fn
}

func (b *Builder) export(name string, kind byte, idx uint32) {
	for _, e := range b.mod.Exports {
		if e.Name == name && b.err == nil {
			b.err = fmt.Errorf("duplicate export %q", name)
		}
	}
	b.mod.Exports = append(b.mod.Exports, Export{Name: name, Kind: kind, Idx: idx})
}

// Module returns the module built so far.
func (b *Builder) Module() *Module {
	return &b.mod
}

// Bytes encodes the module, or reports the first builder misuse.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.mod.Encode(), nil
}

func constExpr(v int32) []byte {
	w := binary.NewWriter()
	w.Byte(OpI32Const)
	w.WriteS32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}
