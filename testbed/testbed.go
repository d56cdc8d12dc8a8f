// Package testbed runs guest programs against expected output.
//
// A Case pairs a guest binary with its input and the output and exit status
// it must produce. Cases run on a fresh runtime with in-memory streams, so
// they are independent of each other and of the terminal.
//
// Cases can also be loaded from a directory laid out as:
//
//	name.wasm                 run once, compared with name.wasm.out
//	name.input.wasm           run once per name.*.inputc file, each compared
//	                          with <inputc file>.out
//	name.inf.wasm             must still be running when the timeout expires
//
// A missing .out file means only the exit status is checked.
package testbed

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/runtime"
)

// DefaultTimeout bounds a case that sets no timeout.
const DefaultTimeout = 30 * time.Second

// Case is one guest run and its expected result.
type Case struct {
	Name  string
	Wasm  []byte
	Stdin string
	// Want is the expected stdout. Leading and trailing whitespace is ignored
	// and CRLF is treated as LF unless Exact is set.
	Want     string
	ExitCode int
	// CheckOutput enables comparison with Want.
	CheckOutput bool
	Exact       bool
	// Infinite expects the guest to still be running at Timeout.
	Infinite bool
	Timeout  time.Duration
	Config   runtime.Config
}

// Result is the outcome of running a Case.
type Result struct {
	Err      error
	Stdout   []byte
	ExitCode int
	TimedOut bool
}

// Execute runs c on a fresh runtime.
func Execute(ctx context.Context, c Case) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cfg := c.Config
	cfg.Stdin = strings.NewReader(normalizeLineEndings(c.Stdin))
	cfg.Stdout = &out
	cfg.CloseOnContextDone = true
	if cfg.Buffering == runtime.BufferAuto {
		cfg.Buffering = runtime.BufferFull
	}

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return Result{Err: err, ExitCode: 1}
	}
	defer rt.Close(context.Background())

	mod, err := rt.LoadWASM(ctx, c.Wasm)
	if err != nil {
		return Result{Err: err, ExitCode: 1}
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return Result{Err: err, ExitCode: 1}
	}
	defer inst.Close(context.Background())

	err = inst.Run(ctx)
	res := Result{Stdout: out.Bytes(), ExitCode: runtime.ExitCode(err)}
	if stderrors.Is(err, context.DeadlineExceeded) {
		res.TimedOut = true
		return res
	}
	var exit *runtime.ExitError
	if err != nil && !stderrors.As(err, &exit) {
		res.Err = err
	}
	return res
}

// Run executes each case as a subtest.
func Run(t *testing.T, cases []Case) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			if err := Check(context.Background(), c); err != nil {
				t.Error(err)
			}
		})
	}
}

// Check executes c and describes the first way it differs from expectations.
func Check(ctx context.Context, c Case) error {
	res := Execute(ctx, c)

	if c.Infinite {
		if !res.TimedOut {
			return fmt.Errorf("expected timeout, but got exit code %d (err: %v)", res.ExitCode, res.Err)
		}
		return nil
	}
	if res.TimedOut {
		return fmt.Errorf("expected exit, but timed out")
	}
	if res.Err != nil {
		return fmt.Errorf("run failed: %w", res.Err)
	}
	if res.ExitCode != c.ExitCode {
		return fmt.Errorf("exit code: expected %d, got %d", c.ExitCode, res.ExitCode)
	}
	if !c.CheckOutput {
		return nil
	}

	want, got := c.Want, string(res.Stdout)
	if !c.Exact {
		want = strings.TrimSpace(normalizeLineEndings(want))
		got = strings.TrimSpace(got)
	}
	if want != got {
		return fmt.Errorf("output does not match\nexpected: <%s>\n  actual: <%s>\nexpected bytes: %s\n  actual bytes: %s",
			want, got, display([]byte(want)), display([]byte(got)))
	}
	return nil
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func display(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// LoadDir builds cases from the golden files in dir.
func LoadDir(dir string) ([]Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.wasm"))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "list "+dir)
	}
	sort.Strings(paths)

	var cases []Case
	for _, path := range paths {
		bin, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Load("read "+path, err)
		}
		file := filepath.Base(path)

		switch {
		case strings.HasSuffix(file, ".inf.wasm"):
			cases = append(cases, Case{
				Name:     strings.TrimSuffix(file, ".wasm"),
				Wasm:     bin,
				Infinite: true,
				Timeout:  10 * time.Second,
			})

		case strings.HasSuffix(file, ".input.wasm"):
			base := strings.TrimSuffix(file, ".input.wasm")
			inputs, err := filepath.Glob(filepath.Join(dir, base+".*.inputc"))
			if err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "list inputs of "+file)
			}
			sort.Strings(inputs)
			for _, in := range inputs {
				stdin, err := os.ReadFile(in)
				if err != nil {
					return nil, errors.Load("read "+in, err)
				}
				c := Case{Name: filepath.Base(in), Wasm: bin, Stdin: string(stdin)}
				if err := loadWant(&c, in+".out"); err != nil {
					return nil, err
				}
				cases = append(cases, c)
			}

		default:
			c := Case{Name: strings.TrimSuffix(file, ".wasm"), Wasm: bin}
			if err := loadWant(&c, path+".out"); err != nil {
				return nil, err
			}
			cases = append(cases, c)
		}
	}
	return cases, nil
}

func loadWant(c *Case, path string) error {
	want, err := os.ReadFile(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Load("read "+path, err)
	}
	c.Want = string(want)
	c.CheckOutput = true
	return nil
}
