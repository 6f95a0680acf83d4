// Package evaluator implements the tree-walking interpreter: the value model,
// environments, special-form dispatch and the builtin operator library.
//
// Failures inside builtins raise the environment's error latch and return an
// empty *Error marker. Eval drains the latch after every expression and turns
// it into a positioned *Error value, so callers only ever see values.
package evaluator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
)

// literalNames are the atoms that evaluate to singletons.
var literalNames = map[string]Object{
	"#t":    TRUE,
	"true":  TRUE,
	"#f":    FALSE,
	"false": FALSE,
	"None":  NONE,
	"nil":   NONE,
}

var templateSpan = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Eval evaluates one expression. A failure raised anywhere below is returned
// as an *Error carrying the accumulated message.
func Eval(expr ast.Expr, env *Environment) Object {
	result := evalExpr(expr, env)
	if err := env.DrainError(); err != nil {
		if err.Line == 0 && expr != nil {
			err.Line, err.Column = expr.Pos()
		}
		if err.File == "" {
			err.File = env.Filename
		}
		return errorFromLisp(err)
	}
	return result
}

func evalExpr(expr ast.Expr, env *Environment) Object {
	switch node := expr.(type) {
	case *ast.Atom:
		return evalAtom(node, env)
	case *ast.StringLiteral:
		return &String{Value: node.Value}
	case *ast.TemplateLiteral:
		return evalTemplate(node, env)
	case *ast.ParseError:
		line, col := node.Pos()
		return &Error{
			Message: node.Message,
			Line:    line,
			Column:  col,
			Class:   perrors.ClassParse,
			Code:    node.Code,
			File:    env.Filename,
		}
	case *ast.List:
		return evalList(node, env)
	case nil:
		return NONE
	}
	return NONE
}

func evalAtom(node *ast.Atom, env *Environment) Object {
	name := node.Value
	if isNumeral(name) {
		if i, err := strconv.ParseInt(name, 10, 64); err == nil {
			return &Integer{Value: i}
		}
		if f, err := strconv.ParseFloat(name, 64); err == nil {
			return &Float{Value: f}
		}
	}
	if b, ok := builtins[name]; ok {
		if name == "this" {
			return env.This()
		}
		return b
	}
	if v, ok := literalNames[name]; ok {
		return v
	}
	return env.Lookup(name)
}

// isNumeral is a cheap filter so identifiers like "inf" or "nan" stay names.
func isNumeral(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c == '-' || c == '+' || c == '.' {
		if len(s) == 1 {
			return false
		}
		c = s[1]
		if c == '.' && len(s) > 2 {
			c = s[2]
		}
	}
	return c >= '0' && c <= '9'
}

func evalTemplate(node *ast.TemplateLiteral, env *Environment) Object {
	text := templateSpan.ReplaceAllStringFunc(node.Text, func(span string) string {
		name := strings.TrimSpace(span[1 : len(span)-1])
		if v, ok := env.Get(name); ok {
			return Text(v)
		}
		return span
	})
	return &String{Value: text}
}

func evalList(node *ast.List, env *Environment) Object {
	if len(node.Elements) == 0 {
		return NONE
	}

	var head Object
	if name, ok := ast.AtomName(node.Head()); ok {
		if b, ok := builtins[name]; ok {
			head = b
		}
	}
	if head == nil {
		head = Eval(node.Head(), env)
		if isSignal(head) {
			return head
		}
	}

	switch fn := head.(type) {
	case *Builtin:
		if fn.Special != nil {
			return fn.Special(env, node.Tail())
		}
		args, sig := evalArgs(node.Tail(), env)
		if sig != nil {
			return sig
		}
		return fn.Fn(env, args...)
	case *Closure:
		args, sig := evalArgs(node.Tail(), env)
		if sig != nil {
			return sig
		}
		return applyClosure(fn, args, env)
	case *Undefined:
		env.SetError(perrors.NewUndefinedName(fn.Name, candidateNames(env)))
		return &Error{}
	default:
		return newError(env, "TYPE-0003", map[string]any{"Got": head.Type()})
	}
}

// evalArgs evaluates left to right. The first Error, ReturnValue or Thrown
// is returned as the signal and stops evaluation.
func evalArgs(exprs []ast.Expr, env *Environment) ([]Object, Object) {
	args := make([]Object, 0, len(exprs))
	for _, e := range exprs {
		v := Eval(e, env)
		if isSignal(v) {
			return nil, v
		}
		args = append(args, v)
	}
	return args, nil
}

// evalBody evaluates expressions in order and returns the last value. A
// ReturnValue, Error or Thrown stops the body and is returned unchanged.
func evalBody(exprs []ast.Expr, env *Environment) Object {
	var result Object = NONE
	for _, e := range exprs {
		result = Eval(e, env)
		if isSignal(result) {
			return result
		}
	}
	return result
}

// applyClosure runs a closure call. Parameters bind into a fresh frame whose
// parent is the capture environment, unless SharedFrames is set.
func applyClosure(fn *Closure, args []Object, env *Environment) Object {
	name := fn.Name
	if name == "" {
		name = "lambda"
	}
	if len(args) != len(fn.Params) {
		return newArityError(env, name, len(args), len(fn.Params))
	}

	frame := fn.Env
	if !env.Options().SharedFrames {
		frame = NewEnclosedEnvironment(fn.Env)
		frame.callFrame = true
	}

	for i, p := range fn.Params {
		v := args[i]
		if p.Kind != "" && string(v.Type()) != p.Kind {
			return newError(env, "TYPE-0005", map[string]any{
				"Param":    p.Name,
				"Function": name,
				"Expected": p.Kind,
				"Got":      v.Type(),
			})
		}
		if p.Copy {
			v = deepCopy(v)
		}
		frame.Set(p.Name, v)
	}

	if !env.enterCall() {
		return newError(env, "STATE-0003", map[string]any{"Max": env.Options().MaxDepth})
	}
	defer env.leaveCall()

	if fn.Owner != nil {
		env.PushThis(name, fn.Owner)
		defer env.PopThis()
	}

	result := evalBody(fn.Body, frame)
	if rv, ok := result.(*ReturnValue); ok {
		return rv.Value
	}
	return result
}

// callFunction applies a procedure value to already evaluated arguments.
func callFunction(env *Environment, fn Object, args ...Object) Object {
	switch fn := fn.(type) {
	case *Closure:
		return applyClosure(fn, args, env)
	case *Builtin:
		if fn.Special != nil {
			return newError(env, "TYPE-0004", map[string]any{"Function": fn.Name})
		}
		return fn.Fn(env, args...)
	default:
		return newError(env, "TYPE-0003", map[string]any{"Got": fn.Type()})
	}
}

// EvalTopLevel evaluates each top-level expression in turn and reports its
// result. A failed expression does not stop the ones after it.
func EvalTopLevel(exprs []ast.Expr, env *Environment, each func(expr ast.Expr, result Object)) Object {
	var result Object = NONE
	for _, e := range exprs {
		result = Eval(e, env)
		switch r := result.(type) {
		case *ReturnValue:
			result = r.Value
		case *Thrown:
			env.ClearThrown()
			line, col := e.Pos()
			err := perrors.NewWithPosition("THROW-0001", line, col, map[string]any{"Payload": repr(r.Payload)})
			err.File = env.Filename
			result = errorFromLisp(err)
		}
		if each != nil {
			each(e, result)
		}
		if _, exiting := env.ExitRequested(); exiting {
			break
		}
	}
	return result
}

// EvalProgram evaluates a parsed program and returns the last value.
func EvalProgram(exprs []ast.Expr, env *Environment) Object {
	return EvalTopLevel(exprs, env, nil)
}

func candidateNames(env *Environment) []string {
	names := env.Identifiers()
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

// parseParams reads a lambda parameter list: x, *x or (x Type).
func parseParams(env *Environment, fn string, expr ast.Expr) ([]Param, bool) {
	list, ok := expr.(*ast.List)
	if !ok {
		newError(env, "TYPE-0009", map[string]any{"Function": fn, "Reason": "parameters must be a list"})
		return nil, false
	}
	params := make([]Param, 0, len(list.Elements))
	for _, el := range list.Elements {
		var p Param
		switch el := el.(type) {
		case *ast.Atom:
			p.Name = el.Value
		case *ast.List:
			if len(el.Elements) != 2 {
				newError(env, "TYPE-0009", map[string]any{"Function": fn, "Reason": "typed parameter must be (name Type)"})
				return nil, false
			}
			name, ok1 := ast.AtomName(el.Elements[0])
			kind, ok2 := ast.AtomName(el.Elements[1])
			if !ok1 || !ok2 {
				newError(env, "TYPE-0009", map[string]any{"Function": fn, "Reason": "typed parameter must be (name Type)"})
				return nil, false
			}
			p.Name, p.Kind = name, kind
		default:
			newError(env, "TYPE-0009", map[string]any{"Function": fn, "Reason": "parameter must be a name, got " + el.String()})
			return nil, false
		}
		if strings.HasPrefix(p.Name, "*") && len(p.Name) > 1 {
			p.Name = p.Name[1:]
			p.Copy = true
		}
		if err := checkLocalName(p.Name); err != nil {
			env.SetError(err)
			return nil, false
		}
		params = append(params, p)
	}
	return params, true
}
