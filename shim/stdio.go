package shim

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// Stdio returns the process standard input and output.
func Stdio() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout}
}

// IsTerminal reports whether f refers to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

var (
	stdioConsole     *Console
	stdioConsoleOnce sync.Once
)

// StdioConsole returns the process-wide console over Stdio. Output is
// line-buffered when stdout is a terminal and fully buffered otherwise.
func StdioConsole() *Console {
	stdioConsoleOnce.Do(func() {
		stdioConsole = NewConsole(Stdio(), WithLineBuffering(IsTerminal(os.Stdout)))
	})
	return stdioConsole
}
