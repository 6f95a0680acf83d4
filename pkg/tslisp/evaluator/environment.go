package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
)

// DefaultMaxDepth bounds closure call nesting when Options.MaxDepth is unset.
const DefaultMaxDepth = 10000

// Options are interpreter-wide switches fixed at environment creation.
type Options struct {
	// SharedFrames binds parameters straight into the closure's capture
	// environment instead of a fresh frame per call.
	SharedFrames bool
	// CopyClassTables gives subclasses and instances their own property
	// table instead of sharing the class table.
	CopyClassTables bool
	MaxDepth        int
}

// Logger is the output sink for display.
type Logger interface {
	Log(values ...interface{})
	LogLine(values ...interface{})
}

// defaultStdoutLogger is the default logger that writes to stdout
type defaultStdoutLogger struct{}

func (l *defaultStdoutLogger) Log(values ...interface{}) {
	fmt.Print(joinValues(values))
}

func (l *defaultStdoutLogger) LogLine(values ...interface{}) {
	fmt.Println(joinValues(values))
}

func joinValues(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

// DefaultLogger is the default stdout logger
var DefaultLogger Logger = &defaultStdoutLogger{}

type thisEntry struct {
	label string
	value Object
}

type literalHook struct {
	pattern *regexp.Regexp
	body    []ast.Expr
	env     *Environment
}

// runtime is the state shared by every environment of one interpreter.
type runtime struct {
	options Options
	logger  Logger
	text    TextService
	loader  SourceLoader
	ctx     context.Context

	thisStack []thisEntry
	classes   map[string]*ClassDef
	consts    map[string]bool
	hooks     []literalHook
	firing    bool
	macros    []lexer.Macro
	aliases   map[string]string

	failures []*perrors.LispError
	thrown   Object

	depth       int
	importStack []string

	exitRequested bool
	exitCode      int
}

// Environment is a name table with a parent link.
type Environment struct {
	store    map[string]Object
	outer    *Environment
	rt       *runtime
	Filename string

	// callFrame marks a closure call frame: parameters live here, other
	// definitions go to the closure's capture environment.
	callFrame bool
}

// NewEnvironment creates a root environment with default options.
func NewEnvironment() *Environment {
	return NewEnvironmentWithOptions(Options{})
}

// NewEnvironmentWithOptions creates a root environment.
func NewEnvironmentWithOptions(opts Options) *Environment {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	rt := &runtime{
		options:   opts,
		logger:    DefaultLogger,
		ctx:       context.Background(),
		thisStack: []thisEntry{{label: "", value: NONE}},
		classes:   make(map[string]*ClassDef),
		consts:    make(map[string]bool),
		aliases:   make(map[string]string),
	}
	return &Environment{store: make(map[string]Object), rt: rt}
}

// NewEnclosedEnvironment creates a new environment with outer reference
func NewEnclosedEnvironment(outer *Environment) *Environment {
	return &Environment{
		store:    make(map[string]Object),
		outer:    outer,
		rt:       outer.rt,
		Filename: outer.Filename,
	}
}

// Options returns the interpreter options.
func (e *Environment) Options() Options { return e.rt.options }

// Logger returns the display sink.
func (e *Environment) Logger() Logger { return e.rt.logger }

// SetLogger replaces the display sink.
func (e *Environment) SetLogger(l Logger) { e.rt.logger = l }

// TextService returns the configured language-model client, or nil.
func (e *Environment) TextService() TextService { return e.rt.text }

// SetTextService installs the client used by LLM and AI.
func (e *Environment) SetTextService(s TextService) { e.rt.text = s }

// Loader returns the import loader, or nil for the default file loader.
func (e *Environment) Loader() SourceLoader { return e.rt.loader }

// SetLoader installs the loader used by import.
func (e *Environment) SetLoader(l SourceLoader) { e.rt.loader = l }

// Context returns the context used for external calls.
func (e *Environment) Context() context.Context { return e.rt.ctx }

// SetContext replaces the context used for external calls.
func (e *Environment) SetContext(ctx context.Context) { e.rt.ctx = ctx }

// Get retrieves a value from the environment: the scope chain first, then
// the alias table.
func (e *Environment) Get(name string) (Object, bool) {
	if v, ok := e.lookupChain(name); ok {
		return v, true
	}
	if target, ok := e.rt.aliases[name]; ok {
		if b, ok := builtins[target]; ok {
			return b, true
		}
		return e.lookupChain(target)
	}
	return nil, false
}

func (e *Environment) lookupChain(name string) (Object, bool) {
	for env := e; env != nil; env = env.outer {
		if v, ok := env.store[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Lookup is Get returning an Undefined sentinel for unbound names.
func (e *Environment) Lookup(name string) Object {
	if v, ok := e.Get(name); ok {
		return v
	}
	return &Undefined{Name: name}
}

// Locate returns the nearest environment that binds name, or nil.
func (e *Environment) Locate(name string) *Environment {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.store[name]; ok {
			return env
		}
	}
	return nil
}

func (e *Environment) getLocal(name string) (Object, bool) {
	v, ok := e.store[name]
	return v, ok
}

// Set stores a value in this environment without any checks.
func (e *Environment) Set(name string, val Object) Object {
	e.store[name] = val
	return val
}

// checkLocalName refuses names that resolve before any scope is consulted.
// Parameters and loop variables go through it as well as definitions.
func checkLocalName(name string) *perrors.LispError {
	if _, ok := builtins[name]; ok {
		return perrors.New("STATE-0001", map[string]any{"Name": name})
	}
	if _, ok := literalNames[name]; ok {
		return perrors.New("STATE-0001", map[string]any{"Name": name})
	}
	return nil
}

// checkBindable refuses builtin, literal and const names.
func (e *Environment) checkBindable(name string) *perrors.LispError {
	if err := checkLocalName(name); err != nil {
		return err
	}
	if e.rt.consts[name] {
		return perrors.New("STATE-0002", map[string]any{"Name": name})
	}
	return nil
}

// Define binds name in the current scope and fires literal hooks. Inside a
// call frame only parameters are frame-local; other names are defined in
// the closure's capture environment.
func (e *Environment) Define(name string, val Object) *perrors.LispError {
	if err := e.checkBindable(name); err != nil {
		return err
	}
	target := e
	if e.callFrame {
		if _, own := e.store[name]; !own {
			target = e.outer
		}
	}
	target.store[name] = val
	e.fireHooks(name)
	return nil
}

// Assign rebinds an existing name wherever it is bound.
func (e *Environment) Assign(fn, name string, val Object) *perrors.LispError {
	target := e.Locate(name)
	if target == nil {
		return perrors.New("UNDEF-0003", map[string]any{"Function": fn, "Name": name})
	}
	if err := e.checkBindable(name); err != nil {
		return err
	}
	target.store[name] = val
	e.fireHooks(name)
	return nil
}

// Update rebinds name where it is bound, or defines it here.
func (e *Environment) Update(name string, val Object) *perrors.LispError {
	if e.Locate(name) == nil {
		return e.Define(name, val)
	}
	return e.Assign("update", name, val)
}

// Identifiers returns every name visible from this environment.
func (e *Environment) Identifiers() []string {
	seen := make(map[string]bool)
	var names []string
	for env := e; env != nil; env = env.outer {
		for name := range env.store {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for name := range e.rt.aliases {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Bindings returns a copy of this environment's own table.
func (e *Environment) Bindings() map[string]Object {
	out := make(map[string]Object, len(e.store))
	for k, v := range e.store {
		out[k] = v
	}
	return out
}

// SetError raises the error latch. Messages accumulate until drained.
func (e *Environment) SetError(err *perrors.LispError) {
	e.rt.failures = append(e.rt.failures, err)
}

// HasError reports whether the latch is raised.
func (e *Environment) HasError() bool { return len(e.rt.failures) > 0 }

// DrainError returns the accumulated failure and resets the latch.
func (e *Environment) DrainError() *perrors.LispError {
	failures := e.rt.failures
	if len(failures) == 0 {
		return nil
	}
	e.rt.failures = nil
	if len(failures) == 1 {
		return failures[0]
	}
	merged := *failures[0]
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Message
		if i > 0 {
			merged.Hints = append(merged.Hints, f.Hints...)
		}
	}
	merged.Message = strings.Join(msgs, "; ")
	return &merged
}

// PushThis makes value the current receiver.
func (e *Environment) PushThis(label string, value Object) {
	e.rt.thisStack = append(e.rt.thisStack, thisEntry{label: label, value: value})
}

// PopThis removes the current receiver. The bottom None entry stays.
func (e *Environment) PopThis() {
	if len(e.rt.thisStack) > 1 {
		e.rt.thisStack = e.rt.thisStack[:len(e.rt.thisStack)-1]
	}
}

// This returns the current receiver, None outside any method.
func (e *Environment) This() Object {
	return e.rt.thisStack[len(e.rt.thisStack)-1].value
}

// ThisLabel returns the label pushed with the current receiver.
func (e *Environment) ThisLabel() string {
	return e.rt.thisStack[len(e.rt.thisStack)-1].label
}

// SetThrown records a pending throw payload.
func (e *Environment) SetThrown(payload Object) { e.rt.thrown = payload }

// Thrown returns the pending throw payload.
func (e *Environment) Thrown() (Object, bool) {
	return e.rt.thrown, e.rt.thrown != nil
}

// ClearThrown drops the pending throw.
func (e *Environment) ClearThrown() { e.rt.thrown = nil }

// SetConst marks name as constant for the whole interpreter.
func (e *Environment) SetConst(name string) { e.rt.consts[name] = true }

// IsConst reports whether name was declared with const.
func (e *Environment) IsConst(name string) bool { return e.rt.consts[name] }

// Alias makes name resolve to target when name itself is unbound.
func (e *Environment) Alias(name, target string) { e.rt.aliases[name] = target }

// AddMacro registers a source rewrite applied before tokenizing.
func (e *Environment) AddMacro(m lexer.Macro) { e.rt.macros = append(e.rt.macros, m) }

// Macros returns the registered macros in registration order.
func (e *Environment) Macros() []lexer.Macro { return e.rt.macros }

// AddHook registers body to run in env whenever a name matching pattern is
// bound.
func (e *Environment) AddHook(pattern *regexp.Regexp, body []ast.Expr) {
	e.rt.hooks = append(e.rt.hooks, literalHook{pattern: pattern, body: body, env: e})
}

func (e *Environment) fireHooks(name string) {
	if e.rt.firing || len(e.rt.hooks) == 0 {
		return
	}
	e.rt.firing = true
	defer func() { e.rt.firing = false }()
	for _, h := range e.rt.hooks {
		if h.pattern.MatchString(name) {
			hookEnv := NewEnclosedEnvironment(h.env)
			hookEnv.Set("name", &String{Value: name})
			evalBody(h.body, hookEnv)
		}
	}
}

// DefineClass registers a class definition.
func (e *Environment) DefineClass(def *ClassDef) { e.rt.classes[def.Name] = def }

// Class returns a registered class definition.
func (e *Environment) Class(name string) (*ClassDef, bool) {
	def, ok := e.rt.classes[name]
	return def, ok
}

// Depth returns the current closure call depth.
func (e *Environment) Depth() int { return e.rt.depth }

func (e *Environment) enterCall() bool {
	if e.rt.depth >= e.rt.options.MaxDepth {
		return false
	}
	e.rt.depth++
	return true
}

func (e *Environment) leaveCall() { e.rt.depth-- }

// RequestExit records an exit request from the exit builtin.
func (e *Environment) RequestExit(code int) {
	e.rt.exitRequested = true
	e.rt.exitCode = code
}

// ExitRequested reports whether exit was called and with which code.
func (e *Environment) ExitRequested() (int, bool) {
	return e.rt.exitCode, e.rt.exitRequested
}
