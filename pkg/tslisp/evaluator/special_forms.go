package evaluator

import (
	"regexp"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
)

func registerSpecialForms() {
	registerSpecial("quote", evalQuote)
	registerSpecial("define", evalDefine)
	registerSpecial("set!", evalSetBang)
	registerSpecial("update", evalUpdate)
	registerSpecial("const", evalConst)
	registerSpecial("?=", evalDefault)
	registerSpecial("enum", evalEnum)
	registerSpecial("bind", evalBind)
	registerSpecial("alias", evalAlias)
	registerSpecial("++", stepper("++", 1))
	registerSpecial("--", stepper("--", -1))
	registerSpecial("+=", compoundAssign("+=", builtinAdd))
	registerSpecial("-=", compoundAssign("-=", builtinSub))
	registerSpecial("*=", compoundAssign("*=", builtinMul))
	registerSpecial("/=", compoundAssign("/=", builtinDiv))

	registerSpecial("lambda", evalLambda("lambda"))
	registerSpecial("fn", evalLambda("fn"))

	registerSpecial("if", evalIf)
	registerSpecial("switch", evalSwitch)
	registerSpecial("while", evalWhile)
	registerSpecial("for", evalFor)
	registerSpecial("foreach", evalForeach)
	registerSpecial("let", evalLet)
	registerSpecial("try", evalTry)
	registerSpecial("literal", evalLiteral)
}

// nameArg reads a binding name from a special form argument.
func nameArg(env *Environment, fn string, expr ast.Expr) (string, bool) {
	name, ok := ast.AtomName(expr)
	if !ok {
		newSyntaxError(env, fn, "expected a name, got "+expr.String())
	}
	return name, ok
}

func evalQuote(env *Environment, args []ast.Expr) Object {
	switch len(args) {
	case 0:
		return newArityErrorMin(env, "quote", 0, 1)
	case 1:
		return &Quoted{Expr: args[0]}
	default:
		line, col := args[0].Pos()
		tok := lexer.Token{Type: lexer.LPAREN, Literal: "(", Line: line, Column: col}
		return &Quoted{Expr: ast.NewList(tok, args...)}
	}
}

func evalDefine(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "define", len(args), 2)
	}

	// (define (f a b) body...)
	if sig, ok := args[0].(*ast.List); ok {
		if len(sig.Elements) == 0 {
			return newSyntaxError(env, "define", "empty function signature")
		}
		name, ok := nameArg(env, "define", sig.Elements[0])
		if !ok {
			return &Error{}
		}
		params, ok := parseParams(env, "define", ast.NewList(sig.Token, sig.Elements[1:]...))
		if !ok {
			return &Error{}
		}
		fn := &Closure{Name: name, Params: params, Body: args[1:], Env: NewEnclosedEnvironment(env)}
		if err := env.Define(name, fn); err != nil {
			return raise(env, err)
		}
		return fn
	}

	if len(args) != 2 {
		return newArityError(env, "define", len(args), 2)
	}
	name, ok := nameArg(env, "define", args[0])
	if !ok {
		return &Error{}
	}
	val := Eval(args[1], env)
	if isSignal(val) {
		return val
	}
	if fn, ok := val.(*Closure); ok && fn.Name == "" {
		fn.Name = name
	}
	if err := env.Define(name, val); err != nil {
		return raise(env, err)
	}
	return val
}

func evalSetBang(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "set!", len(args), 2)
	}
	name, ok := nameArg(env, "set!", args[0])
	if !ok {
		return &Error{}
	}
	val := Eval(args[1], env)
	if isSignal(val) {
		return val
	}
	if err := env.Assign("set!", name, val); err != nil {
		return raise(env, err)
	}
	return val
}

func evalUpdate(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "update", len(args), 2)
	}
	name, ok := nameArg(env, "update", args[0])
	if !ok {
		return &Error{}
	}
	val := Eval(args[1], env)
	if isSignal(val) {
		return val
	}
	if err := env.Update(name, val); err != nil {
		return raise(env, err)
	}
	return val
}

func evalConst(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "const", len(args), 2)
	}
	name, ok := nameArg(env, "const", args[0])
	if !ok {
		return &Error{}
	}
	val := Eval(args[1], env)
	if isSignal(val) {
		return val
	}
	if err := env.Define(name, val); err != nil {
		return raise(env, err)
	}
	env.SetConst(name)
	return val
}

// evalDefault binds name only when it is unbound or None.
func evalDefault(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "?=", len(args), 2)
	}
	name, ok := nameArg(env, "?=", args[0])
	if !ok {
		return &Error{}
	}
	if cur, ok := env.Get(name); ok && cur != NONE {
		return cur
	}
	val := Eval(args[1], env)
	if isSignal(val) {
		return val
	}
	if err := env.Define(name, val); err != nil {
		return raise(env, err)
	}
	return val
}

func evalEnum(env *Environment, args []ast.Expr) Object {
	for i, a := range args {
		name, ok := nameArg(env, "enum", a)
		if !ok {
			return &Error{}
		}
		if err := env.Define(name, &Integer{Value: int64(i)}); err != nil {
			return raise(env, err)
		}
	}
	return &Integer{Value: int64(len(args))}
}

// evalBind binds name to the body's value and defines _update_<name>, a
// thunk that re-evaluates the body and rebinds name.
func evalBind(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "bind", len(args), 2)
	}
	name, ok := nameArg(env, "bind", args[0])
	if !ok {
		return &Error{}
	}
	body := args[1:]

	val := evalBody(body, NewEnclosedEnvironment(env))
	if isSignal(val) {
		return val
	}
	if err := env.Define(name, val); err != nil {
		return raise(env, err)
	}

	line, col := args[0].Pos()
	tok := lexer.Token{Type: lexer.LPAREN, Literal: "(", Line: line, Column: col}
	atom := func(s string) ast.Expr {
		return &ast.Atom{Token: lexer.Token{Type: lexer.ATOM, Literal: s, Line: line, Column: col}, Value: s}
	}
	rebind := ast.NewList(tok, atom("update"), atom(name), ast.NewList(tok, append([]ast.Expr{atom("let")}, body...)...))

	thunk := &Closure{Name: "_update_" + name, Body: []ast.Expr{rebind}, Env: NewEnclosedEnvironment(env)}
	if err := env.Define(thunk.Name, thunk); err != nil {
		return raise(env, err)
	}
	return val
}

func evalAlias(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "alias", len(args), 2)
	}
	name, ok := nameArg(env, "alias", args[0])
	if !ok {
		return &Error{}
	}
	target, ok := nameArg(env, "alias", args[1])
	if !ok {
		return &Error{}
	}
	if err := env.checkBindable(name); err != nil {
		return raise(env, err)
	}
	env.Alias(name, target)
	return NONE
}

// stepper implements ++ and --.
func stepper(fn string, delta float64) SpecialFunction {
	return func(env *Environment, args []ast.Expr) Object {
		if len(args) != 1 {
			return newArityError(env, fn, len(args), 1)
		}
		name, ok := nameArg(env, fn, args[0])
		if !ok {
			return &Error{}
		}
		cur, ok := env.Get(name)
		if !ok {
			return newError(env, "UNDEF-0003", map[string]any{"Function": fn, "Name": name})
		}
		n, ok := toNumber(cur)
		if !ok {
			return newError(env, "TYPE-0008", map[string]any{"Function": fn, "Name": name, "Got": typeName(cur)})
		}
		next := makeNumber(n + delta)
		if err := env.Assign(fn, name, next); err != nil {
			return raise(env, err)
		}
		return next
	}
}

// compoundAssign implements += -= *= /= on top of the arithmetic operator.
// Every operand after the name is folded in, so (+= s a b) is (set! s (+ s a b)).
func compoundAssign(fn string, op BuiltinFunction) SpecialFunction {
	return func(env *Environment, args []ast.Expr) Object {
		if len(args) < 2 {
			return newArityErrorMin(env, fn, len(args), 2)
		}
		name, ok := nameArg(env, fn, args[0])
		if !ok {
			return &Error{}
		}
		cur, ok := env.Get(name)
		if !ok {
			return newError(env, "UNDEF-0003", map[string]any{"Function": fn, "Name": name})
		}
		operands := make([]Object, 0, len(args))
		operands = append(operands, cur)
		for _, a := range args[1:] {
			v := Eval(a, env)
			if isSignal(v) {
				return v
			}
			operands = append(operands, v)
		}
		next := op(env, operands...)
		if isError(next) {
			return next
		}
		if err := env.Assign(fn, name, next); err != nil {
			return raise(env, err)
		}
		return next
	}
}

func evalLambda(fn string) SpecialFunction {
	return func(env *Environment, args []ast.Expr) Object {
		if len(args) < 1 {
			return newArityErrorMin(env, fn, 0, 1)
		}
		params, ok := parseParams(env, fn, args[0])
		if !ok {
			return &Error{}
		}
		return &Closure{Params: params, Body: args[1:], Env: NewEnclosedEnvironment(env)}
	}
}

func evalIf(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 || len(args) > 3 {
		return newArityErrorRange(env, "if", len(args), 2, 3)
	}
	cond := Eval(args[0], env)
	if isSignal(cond) {
		return cond
	}
	if isTruthy(cond) {
		return Eval(args[1], env)
	}
	if len(args) == 3 {
		return Eval(args[2], env)
	}
	return NONE
}

// evalSwitch compares the subject with each clause key using ==. A clause
// headed by default or else always matches.
func evalSwitch(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 {
		return newArityErrorMin(env, "switch", 0, 1)
	}
	subject := Eval(args[0], env)
	if isSignal(subject) {
		return subject
	}
	for _, c := range args[1:] {
		clause, ok := c.(*ast.List)
		if !ok || len(clause.Elements) == 0 {
			return newSyntaxError(env, "switch", "each clause must be (key body...)")
		}
		if name, ok := ast.AtomName(clause.Head()); ok && (name == "default" || name == "else") {
			return evalBody(clause.Tail(), env)
		}
		key := Eval(clause.Head(), env)
		if isSignal(key) {
			return key
		}
		if objectsEqual(subject, key) {
			return evalBody(clause.Tail(), env)
		}
	}
	return NONE
}

func evalWhile(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 {
		return newArityErrorMin(env, "while", 0, 1)
	}
	loopEnv := NewEnclosedEnvironment(env)
	var result Object = NONE
	for {
		cond := Eval(args[0], loopEnv)
		if isSignal(cond) {
			return cond
		}
		if !isTruthy(cond) {
			return result
		}
		result = evalBody(args[1:], NewEnclosedEnvironment(loopEnv))
		if isSignal(result) {
			return result
		}
	}
}

func evalFor(env *Environment, args []ast.Expr) Object {
	if len(args) < 3 {
		return newArityErrorMin(env, "for", len(args), 3)
	}
	loopEnv := NewEnclosedEnvironment(env)
	if init := Eval(args[0], loopEnv); isSignal(init) {
		return init
	}
	var result Object = NONE
	for {
		cond := Eval(args[1], loopEnv)
		if isSignal(cond) {
			return cond
		}
		if !isTruthy(cond) {
			return result
		}
		result = evalBody(args[3:], NewEnclosedEnvironment(loopEnv))
		if isSignal(result) {
			return result
		}
		if step := Eval(args[2], loopEnv); isSignal(step) {
			return step
		}
	}
}

// foreachPair is one iteration's (index-or-key, value).
type foreachPair struct {
	key   Object
	value Object
}

func iterationPairs(env *Environment, coll Object) ([]foreachPair, bool) {
	var pairs []foreachPair
	switch c := coll.(type) {
	case *List:
		for i, e := range append([]Object{}, c.Elements...) {
			pairs = append(pairs, foreachPair{&Integer{Value: int64(i)}, e})
		}
	case *Array:
		for i, e := range c.Elements {
			pairs = append(pairs, foreachPair{&Integer{Value: int64(i)}, e})
		}
	case *Dict:
		for _, k := range append([]string{}, c.Keys...) {
			pairs = append(pairs, foreachPair{&String{Value: k}, c.Pairs[k]})
		}
	case *String:
		i := 0
		for _, r := range c.Value {
			pairs = append(pairs, foreachPair{&Integer{Value: int64(i)}, &String{Value: string(r)}})
			i++
		}
	default:
		newError(env, "TYPE-0007", map[string]any{"Got": typeName(coll)})
		return nil, false
	}
	return pairs, true
}

// evalForeach iterates (foreach x coll body...) or (foreach (i x) coll body...).
// A single name over a Dict binds the key.
func evalForeach(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "foreach", len(args), 2)
	}

	var keyName, valueName string
	switch v := args[0].(type) {
	case *ast.Atom:
		valueName = v.Value
	case *ast.List:
		if len(v.Elements) != 2 {
			return newSyntaxError(env, "foreach", "expected (key value) names")
		}
		k, ok1 := ast.AtomName(v.Elements[0])
		val, ok2 := ast.AtomName(v.Elements[1])
		if !ok1 || !ok2 {
			return newSyntaxError(env, "foreach", "expected (key value) names")
		}
		keyName, valueName = k, val
	default:
		return newSyntaxError(env, "foreach", "expected a loop variable")
	}
	for _, name := range []string{keyName, valueName} {
		if name == "" {
			continue
		}
		if err := checkLocalName(name); err != nil {
			return raise(env, err)
		}
	}

	coll := Eval(args[1], env)
	if isSignal(coll) {
		return coll
	}
	pairs, ok := iterationPairs(env, coll)
	if !ok {
		return &Error{}
	}
	_, isDict := coll.(*Dict)

	loopEnv := NewEnclosedEnvironment(env)
	var result Object = NONE
	for _, p := range pairs {
		iterEnv := NewEnclosedEnvironment(loopEnv)
		switch {
		case keyName != "":
			iterEnv.Set(keyName, p.key)
			iterEnv.Set(valueName, p.value)
		case isDict:
			iterEnv.Set(valueName, p.key)
		default:
			iterEnv.Set(valueName, p.value)
		}
		result = evalBody(args[2:], iterEnv)
		if isSignal(result) {
			return result
		}
	}
	return result
}

func evalLet(env *Environment, args []ast.Expr) Object {
	return evalBody(args, NewEnclosedEnvironment(env))
}

// evalTry catches throws and runtime errors from body. The handler runs in
// a child environment with the payload bound to error.
func evalTry(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 || len(args) > 2 {
		return newArityErrorRange(env, "try", len(args), 1, 2)
	}
	result := Eval(args[0], env)

	var payload Object
	switch r := result.(type) {
	case *Thrown:
		payload = r.Payload
		if pending, ok := env.Thrown(); ok {
			payload = pending
		}
		env.ClearThrown()
	case *Error:
		if !r.Raised() {
			return result
		}
		caught := *r
		caught.Caught = true
		payload = &caught
	default:
		return result
	}

	if len(args) == 1 {
		return NONE
	}
	handlerEnv := NewEnclosedEnvironment(env)
	handlerEnv.Set("error", payload)
	return Eval(args[1], handlerEnv)
}

// evalLiteral registers a hook: (literal "regex" body...) runs body whenever
// a matching name is bound. The bound name is visible as `name`.
func evalLiteral(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "literal", len(args), 2)
	}
	var pattern string
	switch p := args[0].(type) {
	case *ast.StringLiteral:
		pattern = p.Value
	case *ast.Atom:
		pattern = p.Value
	default:
		return newSyntaxError(env, "literal", "pattern must be a string")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return newError(env, "PARSE-0005", map[string]any{"Pattern": pattern, "Err": err.Error()})
	}
	env.AddHook(re, args[1:])
	return NONE
}
