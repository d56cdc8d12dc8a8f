package runtime

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/shim"
)

// entryPoints are tried in order by Run.
var entryPoints = []string{"_start", "main"}

// ExitError reports a guest that exited with a non-zero status.
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("guest exited with code %d", e.Code)
}

// ExitCode maps the result of Run to a process exit status: 0 for nil, the
// guest's code for *ExitError, and 1 for anything else, including a guest
// stopped by its context.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if stderrors.As(err, &exit) {
		return int(exit.Code)
	}
	return 1
}

// Instance is NOT thread-safe. Each goroutine should have its own
// Instance, or access must be synchronized externally.
type Instance struct {
	module  *Module
	inst    *engine.Instance
	console *shim.Console
	heap    *engine.Heap
}

// Run calls the guest entry point (_start, else main) and flushes the
// console afterwards. An i32 returned by the entry point is its exit status.
func (i *Instance) Run(ctx context.Context) error {
	entry := i.module.Entry()
	if entry == "" {
		return errors.NotFound(errors.PhaseRuntime, "entry point", "_start or main")
	}
	return i.RunEntry(ctx, entry)
}

// RunEntry is Run with an explicit entry point taking no arguments.
func (i *Instance) RunEntry(ctx context.Context, name string) error {
	res, err := i.Call(ctx, name)
	i.console.Flush()
	if err != nil {
		Logger().Debug("guest stopped", zap.String("entry", name), zap.Error(err))
		return err
	}
	if len(res) == 1 {
		if code := api.DecodeU32(res[0]); code != 0 {
			return &ExitError{Code: code}
		}
	}
	return nil
}

// Call invokes an exported function with raw core values. The instance
// console is attached to ctx unless ctx already carries one.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.inst == nil {
		return nil, errors.Closed(errors.PhaseRuntime, "instance")
	}
	if _, ok := shim.ConsoleFrom(ctx); !ok {
		ctx = shim.WithConsole(ctx, i.console)
	}

	res, err := i.inst.Call(ctx, name, args...)
	if err == nil {
		return res, nil
	}

	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		switch exit.ExitCode() {
		case 0:
			return nil, nil
		case sys.ExitCodeContextCanceled:
			return nil, stopped(name, context.Canceled)
		case sys.ExitCodeDeadlineExceeded:
			return nil, stopped(name, context.DeadlineExceeded)
		}
		return nil, &ExitError{Code: exit.ExitCode()}
	}
	var rtErr *errors.Error
	if stderrors.As(err, &rtErr) {
		return nil, err
	}
	return nil, errors.Trap(name, err)
}

// stopped reports a guest terminated because its context was done. The
// result matches cause under errors.Is.
func stopped(name string, cause error) error {
	return errors.New(errors.PhaseRuntime, errors.KindTrap).
		Name(name).
		Detail("guest stopped by its context").
		Cause(cause).
		Build()
}

// Console returns the console this instance reads and writes.
func (i *Instance) Console() *shim.Console {
	return i.console
}

// Heap returns the guest heap serving allocate.
func (i *Instance) Heap() *engine.Heap {
	return i.heap
}

// Memory returns the guest's linear memory, or nil if it has none.
func (i *Instance) Memory() *engine.WazeroMemory {
	if i.inst == nil {
		return nil
	}
	return i.inst.Memory()
}

// Close flushes the console and closes the guest.
func (i *Instance) Close(ctx context.Context) error {
	if i.inst == nil {
		return nil
	}
	i.console.Flush()
	if err := i.console.Err(); err != nil {
		Logger().Warn("guest output was lost", zap.Error(err))
	}

	mod := i.inst.Module()
	err := i.inst.Close(ctx)
	i.module.runtime.shim.release(mod)
	i.inst = nil
	i.heap = nil
	return err
}
