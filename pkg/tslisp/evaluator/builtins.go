package evaluator

import (
	"sort"
	"strings"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
	"github.com/sambeau/tslisp/pkg/tslisp/parser"
)

// builtins is the operator table. It is filled from init so entries can
// refer back to Eval without an initialization cycle.
var builtins = map[string]*Builtin{}

func registerBuiltin(name string, fn BuiltinFunction) {
	builtins[name] = &Builtin{Name: name, Fn: fn}
}

func registerSpecial(name string, fn SpecialFunction) {
	builtins[name] = &Builtin{Name: name, Special: fn}
}

func init() {
	registerCoreBuiltins()
	registerMathBuiltins()
	registerCollectionBuiltins()
	registerSpecialForms()
	registerObjectForms()
	registerTextBuiltins()
	registerDatabaseBuiltins()
	registerExternalBuiltins()
}

// BuiltinNames returns every operator name in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is a reserved operator.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func registerCoreBuiltins() {
	registerBuiltin("display", builtinDisplay)
	registerBuiltin("type", builtinType)
	registerBuiltin("begin", builtinBegin)
	registerBuiltin("eval", builtinEval)
	registerBuiltin("str", builtinStr)
	registerBuiltin("exit", builtinExit)
	registerBuiltin("return", builtinReturn)
	registerBuiltin("throw", builtinThrow)
	registerBuiltin("_displayFuncDepth", builtinDisplayFuncDepth)
	registerBuiltin("macro", builtinMacro)
	registerBuiltin("car", builtinCar)
	registerBuiltin("cdr", builtinCdr)
	registerBuiltin("cons", builtinCons)
	registerBuiltin("child", builtinChild)
	registerBuiltin("get-child", builtinGetChild)
	registerBuiltin("child-method", builtinChildMethod)
}

func builtinDisplay(env *Environment, args ...Object) Object {
	parts := make([]interface{}, len(args))
	for i, a := range args {
		parts[i] = Text(a)
	}
	env.Logger().LogLine(parts...)
	if len(args) == 0 {
		return NONE
	}
	return args[len(args)-1]
}

func builtinType(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "type", len(args), 1)
	}
	return &String{Value: string(args[0].Type())}
}

func builtinBegin(env *Environment, args ...Object) Object {
	if len(args) == 0 {
		return NONE
	}
	return args[len(args)-1]
}

func builtinEval(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "eval", len(args), 1)
	}
	switch arg := args[0].(type) {
	case *Quoted:
		return Eval(arg.Expr, env)
	case *String:
		src := lexer.Expand(arg.Value, env.Macros())
		exprs, errs := parser.Parse(src, env.Filename)
		if len(errs) > 0 {
			return raise(env, errs[0])
		}
		var result Object = NONE
		for _, e := range exprs {
			result = Eval(e, env)
			if isSignal(result) {
				return result
			}
		}
		return result
	default:
		return arg
	}
}

func builtinStr(env *Environment, args ...Object) Object {
	if len(args) < 1 {
		return newArityErrorMin(env, "str", len(args), 1)
	}
	sep := Text(args[0])
	parts := make([]string, len(args)-1)
	for i, a := range args[1:] {
		parts[i] = Text(a)
	}
	return &String{Value: strings.Join(parts, sep)}
}

func builtinExit(env *Environment, args ...Object) Object {
	code := 0
	if len(args) > 0 {
		n, ok := toInt(args[0])
		if !ok {
			return newTypeError(env, "exit", "an integer", args[0])
		}
		code = int(n)
	}
	env.RequestExit(code)
	return NONE
}

func builtinReturn(env *Environment, args ...Object) Object {
	switch len(args) {
	case 0:
		return &ReturnValue{Value: NONE}
	case 1:
		return &ReturnValue{Value: args[0]}
	default:
		return newArityErrorRange(env, "return", len(args), 0, 1)
	}
}

func builtinThrow(env *Environment, args ...Object) Object {
	var payload Object = NONE
	if len(args) > 0 {
		payload = args[0]
	}
	env.SetThrown(payload)
	return &Thrown{Payload: payload}
}

func builtinDisplayFuncDepth(env *Environment, args ...Object) Object {
	depth := &Integer{Value: int64(env.Depth())}
	env.Logger().LogLine("depth:", depth.Value)
	return depth
}

func builtinMacro(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "macro", len(args), 2)
	}
	pattern, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "macro", "a String pattern", args[0])
	}
	m, err := lexer.NewMacro(pattern.Value, Text(args[1]))
	if err != nil {
		return newError(env, "PARSE-0005", map[string]any{"Pattern": pattern.Value, "Err": err.Error()})
	}
	env.AddMacro(m)
	return NONE
}

// quotedList returns the list node behind a quoted list expression.
func quotedList(obj Object) (*ast.List, bool) {
	q, ok := obj.(*Quoted)
	if !ok {
		return nil, false
	}
	l, ok := q.Expr.(*ast.List)
	return l, ok
}

func builtinCar(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "car", len(args), 1)
	}
	if l, ok := quotedList(args[0]); ok {
		if len(l.Elements) == 0 {
			return newEmptyError(env, "car")
		}
		return &Quoted{Expr: l.Elements[0]}
	}
	if l, ok := args[0].(*List); ok {
		if len(l.Elements) == 0 {
			return newEmptyError(env, "car")
		}
		return l.Elements[0]
	}
	return newTypeError(env, "car", "a quoted list or List", args[0])
}

func builtinCdr(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "cdr", len(args), 1)
	}
	if l, ok := quotedList(args[0]); ok {
		if len(l.Elements) == 0 {
			return newEmptyError(env, "cdr")
		}
		rest := append([]ast.Expr(nil), l.Elements[1:]...)
		return &Quoted{Expr: ast.NewList(l.Token, rest...)}
	}
	if l, ok := args[0].(*List); ok {
		if len(l.Elements) == 0 {
			return newEmptyError(env, "cdr")
		}
		return &List{Elements: append([]Object(nil), l.Elements[1:]...)}
	}
	return newTypeError(env, "cdr", "a quoted list or List", args[0])
}

func builtinCons(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "cons", len(args), 2)
	}
	if l, ok := quotedList(args[1]); ok {
		head, ok := valueToExpr(args[0])
		if !ok {
			return newTypeError(env, "cons", "a quotable value", args[0])
		}
		elems := append([]ast.Expr{head}, l.Elements...)
		return &Quoted{Expr: ast.NewList(l.Token, elems...)}
	}
	if l, ok := args[1].(*List); ok {
		elems := append([]Object{args[0]}, l.Elements...)
		return &List{Elements: elems}
	}
	return newTypeError(env, "cons", "a quoted list or List", args[1])
}

// valueToExpr turns a value back into syntax for cons onto quoted lists.
func valueToExpr(obj Object) (ast.Expr, bool) {
	switch obj := obj.(type) {
	case *Quoted:
		return obj.Expr, true
	case *String:
		return &ast.StringLiteral{Token: lexer.Token{Type: lexer.STRING, Literal: obj.Value}, Value: obj.Value}, true
	case *Integer, *Float, *Boolean, *None:
		text := repr(obj)
		return &ast.Atom{Token: lexer.Token{Type: lexer.ATOM, Literal: text}, Value: text}, true
	}
	return nil, false
}

func builtinChild(env *Environment, args ...Object) Object {
	if len(args) != 3 {
		return newArityError(env, "child", len(args), 3)
	}
	target, ok := args[0].(Composite)
	if !ok {
		return newError(env, "STATE-0005", map[string]any{"Type": args[0].Type()})
	}
	target.Slots().SetChild(Text(args[1]), args[2])
	return args[2]
}

func builtinGetChild(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "get-child", len(args), 2)
	}
	target, ok := args[0].(Composite)
	if !ok {
		return newError(env, "UNDEF-0006", map[string]any{"Name": Text(args[1]), "Type": args[0].Type()})
	}
	child, ok := target.Slots().Child(Text(args[1]))
	if !ok {
		return newError(env, "UNDEF-0006", map[string]any{"Name": Text(args[1]), "Type": args[0].Type()})
	}
	return child
}

func builtinChildMethod(env *Environment, args ...Object) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "child-method", len(args), 2)
	}
	method := builtinGetChild(env, args[0], args[1])
	if isError(method) {
		return method
	}
	env.PushThis(Text(args[1]), args[0])
	defer env.PopThis()
	return callFunction(env, method, args[2:]...)
}
