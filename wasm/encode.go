package wasm

import (
	"github.com/wippyai/mjrt/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format. Empty sections are
// omitted; sections appear in the order the format requires.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		w.Section(SectionType, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Types)))
			for _, ft := range m.Types {
				sec.Byte(FuncTypeByte)
				writeValTypes(sec, ft.Params)
				writeValTypes(sec, ft.Results)
			}
		})
	}

	if len(m.Imports) > 0 {
		w.Section(SectionImport, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Imports)))
			for _, imp := range m.Imports {
				sec.WriteName(imp.Module)
				sec.WriteName(imp.Name)
				sec.Byte(imp.Desc.Kind)
				switch imp.Desc.Kind {
				case KindFunc:
					sec.WriteU32(imp.Desc.TypeIdx)
				case KindMemory:
					if imp.Desc.Memory != nil {
						writeLimits(sec, imp.Desc.Memory.Limits)
					}
				}
			}
		})
	}

	if len(m.Funcs) > 0 {
		w.Section(SectionFunction, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Funcs)))
			for _, typeIdx := range m.Funcs {
				sec.WriteU32(typeIdx)
			}
		})
	}

	if len(m.Memories) > 0 {
		w.Section(SectionMemory, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Memories)))
			for _, mem := range m.Memories {
				writeLimits(sec, mem.Limits)
			}
		})
	}

	if len(m.Globals) > 0 {
		w.Section(SectionGlobal, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Globals)))
			for _, g := range m.Globals {
				sec.Byte(byte(g.Type.ValType))
				sec.Byte(boolByte(g.Type.Mutable))
				sec.WriteBytes(g.Init)
			}
		})
	}

	if len(m.Exports) > 0 {
		w.Section(SectionExport, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Exports)))
			for _, exp := range m.Exports {
				sec.WriteName(exp.Name)
				sec.Byte(exp.Kind)
				sec.WriteU32(exp.Idx)
			}
		})
	}

	if m.Start != nil {
		w.Section(SectionStart, func(sec *binary.Writer) {
			sec.WriteU32(*m.Start)
		})
	}

	if len(m.Code) > 0 {
		w.Section(SectionCode, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Code)))
			for _, body := range m.Code {
				sec.Sized(func(fn *binary.Writer) {
					fn.WriteU32(uint32(len(body.Locals)))
					for _, l := range body.Locals {
						fn.WriteU32(l.Count)
						fn.Byte(byte(l.Type))
					}
					fn.WriteBytes(body.Code)
				})
			}
		})
	}

	if len(m.Data) > 0 {
		w.Section(SectionData, func(sec *binary.Writer) {
			sec.WriteU32(uint32(len(m.Data)))
			for _, d := range m.Data {
				sec.WriteU32(0) // active, memory 0
				sec.WriteBytes(d.Offset)
				sec.WriteU32(uint32(len(d.Init)))
				sec.WriteBytes(d.Init)
			}
		})
	}

	return w.Bytes()
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

// writeLimits writes a memory limit: flag 0 is min only, flag 1 is min and max.
func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(0x00)
		w.WriteU32(l.Min)
		return
	}
	w.Byte(0x01)
	w.WriteU32(l.Min)
	w.WriteU32(*l.Max)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
