// Package binary appends the primitive encodings of the WebAssembly binary
// format: LEB128 integers, names, and length-prefixed regions.
package binary

import "encoding/binary"

// Writer accumulates encoded bytes. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes data as is.
func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteU32 writes v as unsigned LEB128.
func (w *Writer) WriteU32(v uint32) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

// WriteS32 writes v as signed LEB128.
func (w *Writer) WriteS32(v int32) {
	w.WriteS64(int64(v))
}

// WriteS64 writes v as signed LEB128.
func (w *Writer) WriteS64(v int64) {
	for {
		b := byte(v & 0x7f)
		sign := b & 0x40
		v >>= 7
		if (v == 0 && sign == 0) || (v == -1 && sign != 0) {
			w.buf = append(w.buf, b)
			return
		}
		w.buf = append(w.buf, b|0x80)
	}
}

// WriteName writes s prefixed with its byte length.
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteU32LE writes v as four little-endian bytes.
func (w *Writer) WriteU32LE(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Sized writes whatever fill produces, prefixed with its byte length.
func (w *Writer) Sized(fill func(*Writer)) {
	var inner Writer
	fill(&inner)
	w.WriteU32(uint32(len(inner.buf)))
	w.buf = append(w.buf, inner.buf...)
}

// Section writes a section with the given id whose contents are produced by fill.
func (w *Writer) Section(id byte, fill func(*Writer)) {
	w.Byte(id)
	w.Sized(fill)
}
