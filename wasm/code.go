package wasm

import (
	"github.com/wippyai/mjrt/wasm/internal/binary"
)

// Code accumulates an instruction stream. Methods return the receiver so
// sequences read in stack order:
//
//	NewCode().I32Const(42).Call(println)
type Code struct {
	w *binary.Writer
}

// NewCode creates an empty instruction stream.
func NewCode() *Code {
	return &Code{w: binary.NewWriter()}
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}

// Op appends a bare opcode.
func (c *Code) Op(op byte) *Code {
	c.w.Byte(op)
	return c
}

func (c *Code) opU32(op byte, imm uint32) *Code {
	c.w.Byte(op)
	c.w.WriteU32(imm)
	return c
}

func (c *Code) memOp(op byte, align, offset uint32) *Code {
	c.w.Byte(op)
	c.w.WriteU32(align)
	c.w.WriteU32(offset)
	return c
}

// Block opens a block with no result.
func (c *Code) Block() *Code {
	c.w.Byte(OpBlock)
	c.w.Byte(BlockVoid)
	return c
}

// Loop opens a loop with no result.
func (c *Code) Loop() *Code {
	c.w.Byte(OpLoop)
	c.w.Byte(BlockVoid)
	return c
}

// If opens an if with no result.
func (c *Code) If() *Code {
	c.w.Byte(OpIf)
	c.w.Byte(BlockVoid)
	return c
}

// IfResult opens an if producing one value of type t.
func (c *Code) IfResult(t ValType) *Code {
	c.w.Byte(OpIf)
	c.w.Byte(byte(t))
	return c
}

func (c *Code) Else() *Code        { return c.Op(OpElse) }
func (c *Code) End() *Code         { return c.Op(OpEnd) }
func (c *Code) Return() *Code      { return c.Op(OpReturn) }
func (c *Code) Unreachable() *Code { return c.Op(OpUnreachable) }
func (c *Code) Drop() *Code        { return c.Op(OpDrop) }

// Br branches to the label depth levels out.
func (c *Code) Br(depth uint32) *Code { return c.opU32(OpBr, depth) }

// BrIf branches to the label depth levels out when the top of stack is non-zero.
func (c *Code) BrIf(depth uint32) *Code { return c.opU32(OpBrIf, depth) }

// Call calls the function at index fn.
func (c *Code) Call(fn uint32) *Code { return c.opU32(OpCall, fn) }

func (c *Code) LocalGet(idx uint32) *Code  { return c.opU32(OpLocalGet, idx) }
func (c *Code) LocalSet(idx uint32) *Code  { return c.opU32(OpLocalSet, idx) }
func (c *Code) LocalTee(idx uint32) *Code  { return c.opU32(OpLocalTee, idx) }
func (c *Code) GlobalGet(idx uint32) *Code { return c.opU32(OpGlobalGet, idx) }
func (c *Code) GlobalSet(idx uint32) *Code { return c.opU32(OpGlobalSet, idx) }

// I32Load loads a 32-bit value from address+offset.
func (c *Code) I32Load(offset uint32) *Code { return c.memOp(OpI32Load, 2, offset) }

// I32Load8U loads one byte from address+offset, zero-extended.
func (c *Code) I32Load8U(offset uint32) *Code { return c.memOp(OpI32Load8U, 0, offset) }

// I32Store stores a 32-bit value at address+offset.
func (c *Code) I32Store(offset uint32) *Code { return c.memOp(OpI32Store, 2, offset) }

// I32Store8 stores the low byte of a value at address+offset.
func (c *Code) I32Store8(offset uint32) *Code { return c.memOp(OpI32Store8, 0, offset) }

// MemorySize pushes the size of memory 0 in pages.
func (c *Code) MemorySize() *Code {
	c.w.Byte(OpMemorySize)
	c.w.Byte(0)
	return c
}

// I32Const pushes v.
func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.WriteS32(v)
	return c
}

// I64Const pushes v.
func (c *Code) I64Const(v int64) *Code {
	c.w.Byte(OpI64Const)
	c.w.WriteS64(v)
	return c
}

func (c *Code) I32Eqz() *Code  { return c.Op(OpI32Eqz) }
func (c *Code) I32Eq() *Code   { return c.Op(OpI32Eq) }
func (c *Code) I32Ne() *Code   { return c.Op(OpI32Ne) }
func (c *Code) I32LtS() *Code  { return c.Op(OpI32LtS) }
func (c *Code) I32LtU() *Code  { return c.Op(OpI32LtU) }
func (c *Code) I32GtS() *Code  { return c.Op(OpI32GtS) }
func (c *Code) I32GeS() *Code  { return c.Op(OpI32GeS) }
func (c *Code) I32Add() *Code  { return c.Op(OpI32Add) }
func (c *Code) I32Sub() *Code  { return c.Op(OpI32Sub) }
func (c *Code) I32Mul() *Code  { return c.Op(OpI32Mul) }
func (c *Code) I32DivS() *Code { return c.Op(OpI32DivS) }
func (c *Code) I32RemS() *Code { return c.Op(OpI32RemS) }
func (c *Code) I32And() *Code  { return c.Op(OpI32And) }
func (c *Code) I32Or() *Code   { return c.Op(OpI32Or) }
