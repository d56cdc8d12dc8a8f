package engine

import (
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mjrt"
	"github.com/wippyai/mjrt/errors"
)

// WazeroMemory wraps wazero memory to implement mjrt.Memory
type WazeroMemory struct {
	mem api.Memory
}

// NewMemory wraps mem.
func NewMemory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

// moduleMemory returns mod's linear memory, or nil when it has none. wazero
// reports a missing memory as a typed nil pointer inside the interface.
func moduleMemory(mod api.Module) api.Memory {
	mem := mod.Memory()
	if mem == nil {
		return nil
	}
	if v := reflect.ValueOf(mem); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return mem
}

func outOfBounds(op string, offset uint32, length int) error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
		Detail("%s out of bounds: offset=%d, length=%d", op, offset, length).
		Build()
}

// Read returns a view of guest memory. The slice aliases linear memory and
// is invalidated by growth.
func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, int(length))
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds("write", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 1)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 4)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return outOfBounds("write", offset, 1)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return outOfBounds("write", offset, 4)
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var _ mjrt.Memory = (*WazeroMemory)(nil)
var _ mjrt.MemorySizer = (*WazeroMemory)(nil)
