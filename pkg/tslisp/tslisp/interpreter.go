// Package tslisp provides the public API for embedding the interpreter.
//
// Basic usage:
//
//	interp := tslisp.New(tslisp.WithLogger(tslisp.NullLogger()))
//	result, errs := interp.Run(`(+ 1 2)`, "inline")
//	if len(errs) > 0 {
//	    // handle errors
//	}
//	fmt.Println(result.Inspect()) // [Int] 3
package tslisp

import (
	"context"
	"fmt"
	"os"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
	"github.com/sambeau/tslisp/pkg/tslisp/parser"
)

// Option configures an Interpreter.
type Option func(*config)

type config struct {
	logger  Logger
	text    evaluator.TextService
	loader  evaluator.SourceLoader
	options evaluator.Options
	ctx     context.Context
}

// WithLogger sets the sink used by display.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTextService sets the client used by LLM and AI.
func WithTextService(s evaluator.TextService) Option {
	return func(c *config) { c.text = s }
}

// WithLoader sets the loader used by import.
func WithLoader(l evaluator.SourceLoader) Option {
	return func(c *config) { c.loader = l }
}

// WithOptions sets the evaluator switches.
func WithOptions(o evaluator.Options) Option {
	return func(c *config) { c.options = o }
}

// WithContext sets the context passed to external calls.
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// Interpreter is one root environment plus the pipeline around it.
// Definitions persist across Run calls.
type Interpreter struct {
	env *evaluator.Environment
}

// New creates an interpreter.
func New(opts ...Option) *Interpreter {
	cfg := &config{logger: StdoutLogger(), ctx: context.Background()}
	for _, opt := range opts {
		opt(cfg)
	}

	env := evaluator.NewEnvironmentWithOptions(cfg.options)
	env.SetLogger(cfg.logger)
	env.SetContext(cfg.ctx)
	if cfg.text != nil {
		env.SetTextService(cfg.text)
	}
	if cfg.loader != nil {
		env.SetLoader(cfg.loader)
	}
	return &Interpreter{env: env}
}

// Env returns the root environment.
func (i *Interpreter) Env() *evaluator.Environment { return i.env }

// Run expands macros, parses and evaluates src. Parse errors stop before
// evaluation. Runtime errors from every top-level expression are collected;
// the result is the value of the last expression.
func (i *Interpreter) Run(src, filename string) (evaluator.Object, []*perrors.LispError) {
	expanded := lexer.Expand(src, i.env.Macros())
	exprs, errs := parser.Parse(expanded, filename)
	if len(errs) > 0 {
		for _, e := range errs {
			if e.File == "" {
				e.File = filename
			}
		}
		return nil, errs
	}

	i.env.Filename = filename
	var runtimeErrs []*perrors.LispError
	result := evaluator.EvalTopLevel(exprs, i.env, func(_ ast.Expr, r evaluator.Object) {
		if err, ok := r.(*evaluator.Error); ok && err.Raised() {
			runtimeErrs = append(runtimeErrs, err.ToLispError())
		}
	})
	return result, runtimeErrs
}

// RunFile reads and runs a script.
func (i *Interpreter) RunFile(path string) (evaluator.Object, []*perrors.LispError, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	result, errs := i.Run(string(src), path)
	return result, errs, nil
}

// ExitRequested reports whether a script called exit, and its code.
func (i *Interpreter) ExitRequested() (int, bool) {
	return i.env.ExitRequested()
}
