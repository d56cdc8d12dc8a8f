package shim

import (
	"bufio"
	"io"
	"strconv"
)

// EOF is the value ReadChar returns once input is exhausted or unreadable.
const EOF int32 = -1

// DefaultBufferSize matches glibc's BUFSIZ.
const DefaultBufferSize = 8192

// Streams are the byte streams a Console reads from and writes to.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithLineBuffering makes the console flush after every newline written and
// before any read that has to wait on Stdin.
func WithLineBuffering(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.lineBuffered = enabled
	}
}

// WithBufferSize sets the output and input buffer sizes.
func WithBufferSize(n int) ConsoleOption {
	return func(c *Console) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// Console is the character I/O half of the shim: buffered output to Stdout and
// byte-at-a-time input from Stdin.
type Console struct {
	in           *bufio.Reader
	out          *bufio.Writer
	err          error
	scratch      []byte
	bufSize      int
	lineBuffered bool
}

// NewConsole creates a console over s. A nil Stdin behaves as an empty stream
// and a nil Stdout discards output.
func NewConsole(s Streams, opts ...ConsoleOption) *Console {
	c := &Console{bufSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(c)
	}

	in := s.Stdin
	if in == nil {
		in = eofReader{}
	}
	out := s.Stdout
	if out == nil {
		out = io.Discard
	}

	c.in = bufio.NewReaderSize(in, c.bufSize)
	c.out = bufio.NewWriterSize(out, c.bufSize)
	c.scratch = make([]byte, 0, 16)
	return c
}

// LineBuffered reports whether the console flushes at newlines.
func (c *Console) LineBuffered() bool {
	return c.lineBuffered
}

// EmitLine writes the decimal form of v followed by a newline.
func (c *Console) EmitLine(v int32) {
	c.scratch = strconv.AppendInt(c.scratch[:0], int64(v), 10)
	c.scratch = append(c.scratch, '\n')
	c.note(c.out.Write(c.scratch))
	if c.lineBuffered {
		c.Flush()
	}
}

// EmitChar writes the low byte of v.
func (c *Console) EmitChar(v int32) {
	b := byte(v)
	c.note(0, c.out.WriteByte(b))
	if c.lineBuffered && b == '\n' {
		c.Flush()
	}
}

// Flush pushes buffered output to Stdout. Flushing an empty buffer writes nothing.
func (c *Console) Flush() {
	if c.out.Buffered() == 0 {
		return
	}
	c.note(0, c.out.Flush())
}

// ReadChar returns the next input byte as 0..255, or EOF. It blocks until a
// byte is available or Stdin reports an error.
func (c *Console) ReadChar() int32 {
	if c.lineBuffered && c.in.Buffered() == 0 {
		c.Flush()
	}
	b, err := c.in.ReadByte()
	if err != nil {
		return EOF
	}
	return int32(b)
}

// Err returns the first output error the console absorbed, if any.
func (c *Console) Err() error {
	return c.err
}

// Write appends p to the output buffer so other host layers can share the
// console's ordering and buffering. It always reports len(p) written.
func (c *Console) Write(p []byte) (int, error) {
	c.note(c.out.Write(p))
	if c.lineBuffered {
		c.Flush()
	}
	return len(p), nil
}

// Read reads buffered input, sharing the console's read position.
func (c *Console) Read(p []byte) (int, error) {
	if c.lineBuffered && c.in.Buffered() == 0 {
		c.Flush()
	}
	return c.in.Read(p)
}

func (c *Console) note(_ int, err error) {
	if err != nil && c.err == nil {
		c.err = err
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}

var (
	_ io.Writer = (*Console)(nil)
	_ io.Reader = (*Console)(nil)
)
