package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sambeau/tslisp/config"
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
	"github.com/sambeau/tslisp/pkg/tslisp/oracle"
	"github.com/sambeau/tslisp/pkg/tslisp/parser"
	"github.com/sambeau/tslisp/pkg/tslisp/repl"
	"github.com/sambeau/tslisp/pkg/tslisp/tslisp"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

// exitError carries a process exit code out of run.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintf(os.Stderr, "error: %s\n", exit.msg)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("tsl", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath   = flags.String("config", "", "Path to config file")
		evalCode     = flags.String("eval", "", "Evaluate code string")
		checkMode    = flags.Bool("check", false, "Check syntax without executing")
		watchMode    = flags.Bool("watch", false, "Re-run the script when it changes")
		sharedFrames = flags.Bool("shared-frames", false, "Bind parameters into the closure's capture environment")
		showVersion  = flags.Bool("version", false, "Show version")
		showHelp     = flags.Bool("help", false, "Show help")
	)
	flags.StringVar(evalCode, "e", "", "Alias for --eval")
	flags.BoolVar(showVersion, "V", false, "Alias for --version")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "tsl version %s (%s)\n", Version, Commit)
		return nil
	}

	if *checkMode {
		if flags.NArg() == 0 {
			return &exitError{code: 2, msg: "--check requires at least one file"}
		}
		return checkFiles(flags.Args(), stderr)
	}

	cfg, _, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *sharedFrames {
		cfg.Interpreter.SharedFrames = true
	}

	logger, closeLog, err := openLogger(cfg.Logging.Output, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	build := interpreterFactory(ctx, cfg, logger)

	switch {
	case *evalCode != "":
		return evalInline(build, *evalCode, flags.Args(), stdout, stderr)
	case *watchMode:
		if flags.NArg() == 0 {
			return &exitError{code: 2, msg: "--watch requires a file"}
		}
		return watchFile(ctx, cfg, build, flags.Arg(0), stdout, stderr)
	case flags.NArg() > 0:
		return executeFile(build, flags.Arg(0), flags.Args()[1:], stderr)
	default:
		repl.Start(stdout, Version, func() *tslisp.Interpreter {
			interp, _ := build(nil, stderr)
			return interp
		})
		return nil
	}
}

// interpreterFactory returns a constructor for interpreters configured from
// cfg. Each interpreter has the prelude already evaluated and args bound.
func interpreterFactory(ctx context.Context, cfg *config.Config, logger tslisp.Logger) func(args []string, stderr io.Writer) (*tslisp.Interpreter, error) {
	opts := []tslisp.Option{
		tslisp.WithLogger(logger),
		tslisp.WithContext(ctx),
		tslisp.WithLoader(&evaluator.FileLoader{Roots: cfg.Import.Roots}),
		tslisp.WithOptions(evaluator.Options{
			SharedFrames:    cfg.Interpreter.SharedFrames,
			CopyClassTables: cfg.Interpreter.CopyClassTables,
			MaxDepth:        cfg.Interpreter.MaxDepth,
		}),
	}
	if cfg.LLM.APIKey != "" {
		opts = append(opts, tslisp.WithTextService(oracle.New(oracle.Config{
			Endpoint: cfg.LLM.Endpoint,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLM.Timeout,
			System:   cfg.LLM.System,
		})))
	}

	return func(args []string, stderr io.Writer) (*tslisp.Interpreter, error) {
		interp := tslisp.New(opts...)

		elems := make([]evaluator.Object, len(args))
		for i, a := range args {
			elems[i] = &evaluator.String{Value: a}
		}
		interp.Env().Define("args", &evaluator.List{Elements: elems})

		for _, path := range cfg.Interpreter.Prelude {
			_, errs, err := interp.RunFile(path)
			if err != nil {
				return interp, fmt.Errorf("prelude: %w", err)
			}
			if len(errs) > 0 {
				printErrors(path, errs, stderr)
				return interp, fmt.Errorf("prelude %s failed", path)
			}
		}
		return interp, nil
	}
}

// openLogger picks the display sink named by the logging.output setting.
func openLogger(output string, stdout, stderr io.Writer) (tslisp.Logger, func(), error) {
	switch output {
	case "", "stdout":
		return tslisp.WriterLogger(stdout), func() {}, nil
	case "stderr":
		return tslisp.WriterLogger(stderr), func() {}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output: %w", err)
	}
	return tslisp.WriterLogger(f), func() { f.Close() }, nil
}

// evalInline evaluates code given with -e and prints the result
func evalInline(build func([]string, io.Writer) (*tslisp.Interpreter, error), code string, args []string, stdout, stderr io.Writer) error {
	interp, err := build(args, stderr)
	if err != nil {
		return err
	}

	result, errs := interp.Run(code, "<eval>")
	if len(errs) > 0 {
		printErrors("<eval>", errs, stderr, code)
		return &exitError{code: 1}
	}
	if status, exiting := interp.ExitRequested(); exiting {
		return exitCode(status)
	}
	if result != nil {
		fmt.Fprintln(stdout, result.Inspect())
	}
	return nil
}

// executeFile runs a script file
func executeFile(build func([]string, io.Writer) (*tslisp.Interpreter, error), filename string, args []string, stderr io.Writer) error {
	interp, err := build(args, stderr)
	if err != nil {
		return err
	}

	_, errs, err := interp.RunFile(filename)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		printErrors(filename, errs, stderr)
		return &exitError{code: 1}
	}
	if status, exiting := interp.ExitRequested(); exiting {
		return exitCode(status)
	}
	return nil
}

// watchFile runs the watch harness until the context is cancelled
func watchFile(ctx context.Context, cfg *config.Config, build func([]string, io.Writer) (*tslisp.Interpreter, error), filename string, stdout, stderr io.Writer) error {
	w, err := tslisp.NewWatcher(filename, cfg.Watch.Dirs, cfg.Watch.Debounce, stdout, stderr)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	w.NewInterpreter = func() *tslisp.Interpreter {
		interp, err := build(nil, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "[WATCH ERROR] %v\n", err)
		}
		return interp
	}
	return w.Run(ctx)
}

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}

// checkFiles checks the syntax of one or more files without executing them
func checkFiles(files []string, stderr io.Writer) error {
	hasErrors := false

	for _, filename := range files {
		content, err := os.ReadFile(filename)
		if err != nil {
			return &exitError{code: 2, msg: fmt.Sprintf("reading %s: %v", filename, err)}
		}

		src := string(content)
		_, errs := parser.Parse(lexer.Expand(src, nil), filename)
		if len(errs) > 0 {
			printErrors(filename, errs, stderr, src)
			hasErrors = true
		}
	}

	if hasErrors {
		return &exitError{code: 1}
	}
	return nil
}

// printErrors prints parse and runtime errors with source context. When
// source is not given it is read from the error's file.
func printErrors(filename string, errs []*perrors.LispError, stderr io.Writer, source ...string) {
	for _, err := range errs {
		displayFile := filename
		if err.File != "" {
			displayFile = err.File
		}

		var src string
		if len(source) > 0 && displayFile == filename {
			src = source[0]
		} else if content, readErr := os.ReadFile(displayFile); readErr == nil {
			src = string(content)
		}

		if err.IsParseError() {
			fmt.Fprintln(stderr, err.PrettyString())
		} else {
			printRuntimeError(displayFile, err, stderr)
		}
		if err.Line > 0 {
			printSourceContext(strings.Split(src, "\n"), err.Line, err.Column, stderr)
		}
	}
}

// printRuntimeError prints a runtime error header, message and hints
func printRuntimeError(displayFile string, err *perrors.LispError, stderr io.Writer) {
	fmt.Fprint(stderr, "Runtime error")
	if err.Line > 0 {
		fmt.Fprintf(stderr, " in %s: line %d, column %d\n", displayFile, err.Line, err.Column)
	} else if displayFile != "" {
		fmt.Fprintf(stderr, " in %s\n", displayFile)
	} else {
		fmt.Fprintln(stderr)
	}
	fmt.Fprintf(stderr, "  %s\n", err.Message)

	for _, hint := range err.Hints {
		fmt.Fprintf(stderr, "  hint: %s\n", hint)
	}
}

// printSourceContext prints the source line and error pointer
func printSourceContext(lines []string, lineNum, colNum int, stderr io.Writer) {
	if lineNum <= 0 || lineNum > len(lines) {
		return
	}

	sourceLine := lines[lineNum-1]

	// Calculate how many columns to trim from the left
	trimCount := 0
	for i := 0; i < len(sourceLine); i++ {
		if sourceLine[i] == ' ' {
			trimCount++
		} else if sourceLine[i] == '\t' {
			trimCount += 8
		} else {
			break
		}
	}

	fmt.Fprintf(stderr, "    %s\n", strings.TrimLeft(sourceLine, " \t"))

	if colNum > 0 {
		// Tabs count as 8 columns
		visualCol := 0
		for i := 0; i < colNum-1 && i < len(sourceLine); i++ {
			if sourceLine[i] == '\t' {
				visualCol += 8
			} else {
				visualCol++
			}
		}

		adjustedCol := max(visualCol-trimCount, 0)
		fmt.Fprintf(stderr, "    %s^\n", strings.Repeat(" ", adjustedCol))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `tsl - tslisp language interpreter version %s

Usage:
  tsl [options] [file] [args...]
  tsl -e "code" [args...]
  tsl --check <file>...
  tsl --watch <file>

Options:
  -h, --help            Show this help message
  -V, --version         Show version information
  -e, --eval <code>     Evaluate code string and print the result
  --check               Check syntax without executing (can specify multiple files)
  --watch               Re-run the script whenever it or its directory changes
  --config <path>       Path to config file (default: tslisp.yaml)
  --shared-frames       Bind closure parameters into the capture environment

Examples:
  tsl                        Start interactive REPL
  tsl script.tsl             Execute a script
  tsl -e "(+ 1 2)"           Evaluate inline code (outputs: [Int] 3)
  tsl --check *.tsl          Check multiple files
  tsl --watch app.tsl        Re-run app.tsl on every save

Script arguments are bound to the list args.
`, Version)
}
