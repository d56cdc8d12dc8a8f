package mjrt

// Memory represents guest linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of guest linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates zero-filled blocks in guest linear memory.
// A failed allocation returns ok == false and ptr == 0, the guest's null.
type Allocator interface {
	Alloc(size uint32) (ptr uint32, ok bool)
}
