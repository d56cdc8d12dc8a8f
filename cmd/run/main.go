package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/mjrt/engine"
	"github.com/wippyai/mjrt/errors"
	"github.com/wippyai/mjrt/runtime"
)

type options struct {
	wasmFile    string
	entry       string
	stdin       string
	namespace   string
	argv        string
	heapLimit   uint64
	memPages    uint
	wasi        bool
	list        bool
	verbose     bool
	interactive bool
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var opts options
	flag.StringVar(&opts.wasmFile, "wasm", "", "Path to wasm file")
	flag.StringVar(&opts.entry, "entry", "", "Function to run (default _start, then main)")
	flag.StringVar(&opts.stdin, "stdin", "", "Stdin data instead of the process stdin")
	flag.StringVar(&opts.namespace, "namespace", runtime.DefaultNamespace, "Import module of the shim functions")
	flag.StringVar(&opts.argv, "argv", "", "WASI arguments (comma-separated)")
	flag.Uint64Var(&opts.heapLimit, "heap-limit", 0, "Bytes a guest may allocate (0 = unbounded)")
	flag.UintVar(&opts.memPages, "mem-limit-pages", 0, "Linear memory limit in 64KB pages")
	flag.BoolVar(&opts.wasi, "wasi", false, "Provide WASI preview1 imports")
	flag.BoolVar(&opts.list, "list", false, "List imports and exports and exit")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging to stderr")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if opts.wasmFile == "" && flag.NArg() > 0 {
		opts.wasmFile = flag.Arg(0)
	}
	if opts.wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-entry name] [-stdin data] [-wasi]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		return 1
	}

	logger := newLogger(opts.verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case opts.interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			return 1
		}
		code, err := runInteractive(ctx, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return code

	case opts.list:
		if err := list(ctx, opts, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	logger.Debug("running guest", zap.String("file", opts.wasmFile), zap.String("entry", opts.entry))
	err := run(ctx, opts, opts.config(logger))
	var exit *runtime.ExitError
	if err != nil && !stderrors.As(err, &exit) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return runtime.ExitCode(err)
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (o options) config(logger *zap.Logger) runtime.Config {
	cfg := runtime.Config{
		Logger:             logger,
		Namespace:          o.namespace,
		HeapLimit:          o.heapLimit,
		MemoryLimitPages:   uint32(o.memPages),
		EnableWASI:         o.wasi,
		CloseOnContextDone: true,
	}
	if o.stdin != "" {
		cfg.Stdin = strings.NewReader(o.stdin)
		cfg.Stdout = os.Stdout
	}
	return cfg
}

func (o options) args() []string {
	args := []string{o.wasmFile}
	if o.argv != "" {
		args = append(args, strings.Split(o.argv, ",")...)
	}
	return args
}

func run(ctx context.Context, opts options, cfg runtime.Config) error {
	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(context.Background())

	mod, err := rt.LoadWASM(ctx, data)
	if err != nil {
		return err
	}
	defer mod.Close(context.Background())

	inst, err := mod.InstantiateWithConfig(ctx, runtime.InstanceConfig{Args: opts.args()})
	if err != nil {
		return err
	}
	defer inst.Close(context.Background())

	if opts.entry != "" {
		return inst.RunEntry(ctx, opts.entry)
	}
	return inst.Run(ctx)
}

func list(ctx context.Context, opts options, logger *zap.Logger) error {
	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.NewWithConfig(ctx, opts.config(logger))
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.Engine().LoadModule(ctx, data)
	if err != nil {
		return err
	}
	defer mod.Close(ctx)
	if err := rt.Hosts().Bind(ctx, rt.Engine()); err != nil {
		return err
	}

	missing := make(map[string]bool)
	for _, key := range mod.MissingImports() {
		missing[key] = true
	}

	fmt.Printf("Module: %s\n", opts.wasmFile)
	fmt.Printf("\nImports:\n")
	for _, imp := range mod.Imports() {
		mark := "ok"
		if missing[imp.Key()] {
			mark = "missing"
		}
		fmt.Printf("  %-8s %s%s\n", mark, imp.Key(), signature(imp))
	}

	fmt.Printf("\nExports:\n")
	for _, name := range mod.Exports() {
		fmt.Printf("  %s\n", name)
	}

	if len(missing) > 0 {
		return errors.NewMissingImportsError(mod.MissingImports())
	}
	return nil
}

func signature(imp engine.Import) string {
	params := make([]string, len(imp.Params))
	for i, p := range imp.Params {
		params[i] = api.ValueTypeName(p)
	}
	s := "(" + strings.Join(params, ", ") + ")"
	if len(imp.Results) > 0 {
		results := make([]string, len(imp.Results))
		for i, r := range imp.Results {
			results[i] = api.ValueTypeName(r)
		}
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}
