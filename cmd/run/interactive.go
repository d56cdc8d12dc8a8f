package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	inputEchoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chrome is the number of lines around the output viewport.
const chrome = 6

type outputMsg string

type exitedMsg struct {
	err error
}

type stdinErrMsg struct {
	err error
}

type interactiveModel struct {
	err      error
	stdin    *io.PipeWriter
	filename string
	output   strings.Builder
	viewport viewport.Model
	input    textinput.Model
	exitCode int
	exited   bool
	eof      bool
}

func newInteractiveModel(filename string, stdin *io.PipeWriter) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "input"
	ti.Prompt = "> "
	ti.Focus()

	return &interactiveModel{
		filename: filename,
		stdin:    stdin,
		viewport: viewport.New(80, 20),
		input:    ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-4, 1)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.exited {
				return m, tea.Quit
			}

		case "enter":
			if m.exited || m.eof {
				break
			}
			line := m.input.Value()
			m.input.Reset()
			m.appendOutput(inputEchoStyle.Render(line) + "\n")
			return m, m.send(line + "\n")

		case "ctrl+d":
			if !m.exited && !m.eof {
				m.eof = true
				m.input.Blur()
				return m, m.closeStdin
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case outputMsg:
		m.appendOutput(string(msg))

	case stdinErrMsg:
		m.err = msg.err

	case exitedMsg:
		m.exited = true
		m.exitCode = runtime.ExitCode(msg.err)
		var exit *runtime.ExitError
		if msg.err != nil && !stderrors.As(msg.err, &exit) {
			m.err = msg.err
		}
		m.input.Blur()
	}

	if !m.exited && !m.eof {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) appendOutput(s string) {
	m.output.WriteString(s)
	m.viewport.SetContent(m.output.String())
	m.viewport.GotoBottom()
}

// send writes to the guest's stdin off the update loop; the write blocks
// until the guest reads.
func (m *interactiveModel) send(s string) tea.Cmd {
	w := m.stdin
	return func() tea.Msg {
		if _, err := io.WriteString(w, s); err != nil && !stderrors.Is(err, io.ErrClosedPipe) {
			return stdinErrMsg{err: err}
		}
		return nil
	}
}

func (m *interactiveModel) closeStdin() tea.Msg {
	if err := m.stdin.Close(); err != nil {
		return stdinErrMsg{err: err}
	}
	return nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mjrt"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	switch {
	case m.exited && m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.exited:
		b.WriteString(resultStyle.Render(fmt.Sprintf("exited with code %d", m.exitCode)))
	case m.eof:
		b.WriteString(helpStyle.Render("stdin closed"))
	default:
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")

	if m.exited {
		b.WriteString(helpStyle.Render("pgup/pgdn scroll • q quit"))
	} else {
		b.WriteString(helpStyle.Render("enter send line • ctrl+d end input • pgup/pgdn scroll • ctrl+c quit"))
	}
	return b.String()
}

// programWriter forwards guest output to the TUI.
type programWriter struct {
	p *tea.Program
}

func (w programWriter) Write(b []byte) (int, error) {
	w.p.Send(outputMsg(string(b)))
	return len(b), nil
}

// runInteractive runs the guest under a TUI. Logging is discarded so it
// cannot tear the screen.
func runInteractive(ctx context.Context, opts options) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	model := newInteractiveModel(opts.wasmFile, pw)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	cfg := opts.config(zap.NewNop())
	cfg.Stdin = pr
	cfg.Stdout = programWriter{p: p}
	cfg.Buffering = runtime.BufferLine

	done := make(chan error, 1)
	go func() {
		err := run(ctx, opts, cfg)
		done <- err
		p.Send(exitedMsg{err: err})
	}()

	_, tuiErr := p.Run()

	// Unblock a guest still waiting for input, then stop it.
	pw.CloseWithError(io.EOF)
	cancel()
	err := <-done

	if tuiErr != nil && !stderrors.Is(tuiErr, tea.ErrProgramKilled) {
		return 1, tuiErr
	}
	if !model.exited {
		return 1, nil
	}
	return runtime.ExitCode(err), nil
}
