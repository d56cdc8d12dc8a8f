// Package runtime provides the high-level API for running generated programs.
//
// A runtime registers the shim host under the "env" namespace, so a guest
// compiled against the shim imports runs without further setup.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadWASM(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err) // *errors.MissingImportsError lists unresolved imports
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	os.Exit(runtime.ExitCode(inst.Run(ctx)))
//
// # Shim Imports
//
//	allocate(size i32) -> i32   zero-filled block in guest memory, 0 on failure
//	system_println(v i32)       decimal text of v and a newline
//	system_write(c i32)         the low byte of c
//	system_flush()              make pending output visible
//	system_read() -> i32        next input byte 0..255, or -1 at end of input
//
// Output is line-buffered when stdout is a terminal and fully buffered
// otherwise; Config.Buffering overrides the choice. Run flushes pending output
// when the entry point returns, traps, or exits.
//
// # Streams
//
// Config.Stdin and Config.Stdout replace the process streams for every
// instance. InstanceConfig.Console replaces them for one instance, and a
// console attached with shim.WithConsole replaces them for one call. WASI
// guests share the same console, so output from fd_write and system_write
// stays in order.
//
// # Host Functions
//
// Register Go functions as additional imports:
//
//	// Register a typed function
//	rt.RegisterFunc("env", "system_time", func(ctx context.Context) int64 {
//	    return time.Now().Unix()
//	})
//
//	// Or implement the Host interface for a full namespace
//	rt.RegisterHost(myHost)
//
// Host methods become snake_case imports (ReadLine -> read_line). Parameters
// and results map to core types:
//
//	Go Type                          Core Type
//	───────────────────────────────────────────
//	bool, int8-int32, uint8-uint32   i32
//	int64, uint64                    i64
//	float32                          f32
//	float64                          f64
//
// A namespace is bound to the engine by the first LoadWASM after it is
// registered and cannot gain functions afterwards.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. You can call
// Module.Instantiate() from multiple goroutines concurrently, giving each
// instance its own console.
//
// Instance is NOT thread-safe. Each goroutine should have its own
// Instance, or access must be synchronized externally.
//
// # Memory
//
// Guest memory handed out by allocate is never reclaimed. Config.HeapLimit
// and Config.MemoryLimitPages bound how much a guest can take.
package runtime
