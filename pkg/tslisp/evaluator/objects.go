package evaluator

import (
	"github.com/sambeau/tslisp/pkg/tslisp/ast"
)

// The three object systems: class/instance tables, structs with their own
// environment, and prototype children. They share the this-stack and the
// closure call path but never read each other's storage.

func registerObjectForms() {
	registerSpecial("class", evalClass)
	registerSpecial("subclass", evalSubclass)
	registerSpecial("instance", evalInstance)
	registerSpecial("getItem", evalGetItem)
	registerSpecial("setItem", evalSetItem)
	registerSpecial("setMethod", evalSetMethod)
	registerSpecial("callMethod", evalCallMethod)
	registerSpecial("this", evalThis)
	registerSpecial("struct", evalStruct)
	registerSpecial("::", evalStructAccess)
	registerSpecial("object-create", evalObjectCreate)
}

func fieldNames(env *Environment, fn string, exprs []ast.Expr) ([]string, bool) {
	names := make([]string, 0, len(exprs))
	for _, e := range exprs {
		name, ok := nameArg(env, fn, e)
		if !ok {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}

func evalClass(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 {
		return newArityErrorMin(env, "class", 0, 1)
	}
	name, ok := nameArg(env, "class", args[0])
	if !ok {
		return &Error{}
	}
	fields, ok := fieldNames(env, "class", args[1:])
	if !ok {
		return &Error{}
	}
	def := &ClassDef{Name: name, Props: make(map[string]Object, len(fields))}
	for _, f := range fields {
		def.Props[f] = NONE
	}
	return bindClass(env, def)
}

func bindClass(env *Environment, def *ClassDef) Object {
	cls := &Class{Def: def}
	if err := env.Define(def.Name, cls); err != nil {
		return raise(env, err)
	}
	env.DefineClass(def)
	return cls
}

// resolveClass accepts a registered class name or an expression producing
// a Class value.
func resolveClass(env *Environment, fn string, expr ast.Expr) (*ClassDef, bool) {
	if name, ok := ast.AtomName(expr); ok {
		if def, ok := env.Class(name); ok {
			return def, true
		}
	}
	v := Eval(expr, env)
	if cls, ok := v.(*Class); ok {
		return cls.Def, true
	}
	name := expr.String()
	if isError(v) {
		name = v.(*Error).Message
	}
	newError(env, "UNDEF-0002", map[string]any{"Name": name})
	return nil, false
}

func evalSubclass(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "subclass", len(args), 2)
	}
	parent, ok := resolveClass(env, "subclass", args[0])
	if !ok {
		return &Error{}
	}
	name, ok := nameArg(env, "subclass", args[1])
	if !ok {
		return &Error{}
	}
	fields, ok := fieldNames(env, "subclass", args[2:])
	if !ok {
		return &Error{}
	}

	props := parent.Props
	if env.Options().CopyClassTables {
		props = copyProps(parent.Props)
	}
	for _, f := range fields {
		if _, exists := props[f]; !exists {
			props[f] = NONE
		}
	}
	return bindClass(env, &ClassDef{Name: name, Parent: parent, Props: props})
}

func evalInstance(env *Environment, args []ast.Expr) Object {
	if len(args) != 2 {
		return newArityError(env, "instance", len(args), 2)
	}
	def, ok := resolveClass(env, "instance", args[0])
	if !ok {
		return &Error{}
	}
	name, ok := nameArg(env, "instance", args[1])
	if !ok {
		return &Error{}
	}
	props := def.Props
	if env.Options().CopyClassTables {
		props = copyProps(def.Props)
	}
	inst := &Instance{Class: def, Props: props}
	if err := env.Define(name, inst); err != nil {
		return raise(env, err)
	}
	return inst
}

// propertyName reads a property name given as an atom or a string literal.
func propertyName(env *Environment, fn string, expr ast.Expr) (string, bool) {
	if s, ok := expr.(*ast.StringLiteral); ok {
		return s.Value, true
	}
	return nameArg(env, fn, expr)
}

// propertyTable returns the table written by setItem and setMethod.
func propertyTable(env *Environment, fn string, target Object) (map[string]Object, bool) {
	switch t := target.(type) {
	case *Instance:
		return t.Props, true
	case *Class:
		return t.Def.Props, true
	}
	newTypeError(env, fn, "an Instance or Class", target)
	return nil, false
}

func readProperty(target Object, name string) (Object, bool) {
	switch t := target.(type) {
	case *Instance:
		return t.lookup(name)
	case *Class:
		return t.Def.lookup(name)
	}
	return nil, false
}

func evalGetItem(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "getItem", len(args), 2)
	}
	target := Eval(args[0], env)
	if isSignal(target) {
		return target
	}
	if _, ok := propertyTable(env, "getItem", target); !ok {
		return &Error{}
	}
	prop, ok := propertyName(env, "getItem", args[1])
	if !ok {
		return &Error{}
	}
	v, ok := readProperty(target, prop)
	if !ok {
		return newError(env, "UNDEF-0004", map[string]any{"Type": target.Type(), "Name": prop})
	}
	if fn, ok := v.(*Closure); ok && len(args) > 2 {
		callArgs, sig := evalArgs(args[2:], env)
		if sig != nil {
			return sig
		}
		env.PushThis(prop, target)
		defer env.PopThis()
		return applyClosure(fn, callArgs, env)
	}
	return v
}

func evalSetItem(env *Environment, args []ast.Expr) Object {
	if len(args) != 3 {
		return newArityError(env, "setItem", len(args), 3)
	}
	target := Eval(args[0], env)
	if isSignal(target) {
		return target
	}
	table, ok := propertyTable(env, "setItem", target)
	if !ok {
		return &Error{}
	}
	prop, ok := propertyName(env, "setItem", args[1])
	if !ok {
		return &Error{}
	}

	env.PushThis(prop, target)
	v := Eval(args[2], env)
	env.PopThis()
	if isSignal(v) {
		return v
	}
	table[prop] = v
	return v
}

func evalSetMethod(env *Environment, args []ast.Expr) Object {
	if len(args) != 3 {
		return newArityError(env, "setMethod", len(args), 3)
	}
	var target Object
	if name, ok := ast.AtomName(args[0]); ok {
		if def, ok := env.Class(name); ok {
			target = &Class{Def: def}
		}
	}
	if target == nil {
		target = Eval(args[0], env)
		if isSignal(target) {
			return target
		}
	}
	table, ok := propertyTable(env, "setMethod", target)
	if !ok {
		return &Error{}
	}
	name, ok := propertyName(env, "setMethod", args[1])
	if !ok {
		return &Error{}
	}

	env.PushThis(name, target)
	v := Eval(args[2], env)
	env.PopThis()
	if isSignal(v) {
		return v
	}
	fn, ok := v.(*Closure)
	if !ok {
		return newTypeError(env, "setMethod", "a Lambda", v)
	}
	if fn.Name == "" {
		fn.Name = name
	}
	table[name] = fn
	return fn
}

func evalCallMethod(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "callMethod", len(args), 2)
	}
	target := Eval(args[0], env)
	if isSignal(target) {
		return target
	}
	if _, ok := propertyTable(env, "callMethod", target); !ok {
		return &Error{}
	}
	name, ok := propertyName(env, "callMethod", args[1])
	if !ok {
		return &Error{}
	}
	v, _ := readProperty(target, name)
	fn, ok := v.(*Closure)
	if !ok {
		return newError(env, "UNDEF-0005", map[string]any{"Type": target.Type(), "Name": name})
	}
	callArgs, sig := evalArgs(args[2:], env)
	if sig != nil {
		return sig
	}
	env.PushThis(name, target)
	defer env.PopThis()
	return applyClosure(fn, callArgs, env)
}

func evalThis(env *Environment, args []ast.Expr) Object {
	if len(args) != 0 {
		return newArityError(env, "this", len(args), 0)
	}
	return env.This()
}

// evalStruct builds (struct Name (private a ...) (public b ...) field val ...).
// Field values are evaluated in order inside the struct's own environment.
func evalStruct(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 {
		return newArityErrorMin(env, "struct", 0, 1)
	}
	name, ok := nameArg(env, "struct", args[0])
	if !ok {
		return &Error{}
	}

	s := &Struct{Name: name, Private: make(map[string]bool), Env: NewEnclosedEnvironment(env)}
	rest := args[1:]
	for len(rest) > 0 {
		list, ok := rest[0].(*ast.List)
		if !ok || len(list.Elements) == 0 {
			break
		}
		head, _ := ast.AtomName(list.Head())
		if head != "private" && head != "public" {
			break
		}
		names, ok := fieldNames(env, "struct", list.Tail())
		if !ok {
			return &Error{}
		}
		if head == "private" {
			for _, n := range names {
				s.Private[n] = true
			}
		}
		rest = rest[1:]
	}

	if len(rest)%2 != 0 {
		return newError(env, "ARITY-0004", map[string]any{"Function": "struct", "Got": len(rest)})
	}
	for i := 0; i < len(rest); i += 2 {
		field, ok := nameArg(env, "struct", rest[i])
		if !ok {
			return &Error{}
		}
		v := Eval(rest[i+1], s.Env)
		if isSignal(v) {
			return v
		}
		if fn, ok := v.(*Closure); ok {
			fn.Owner = s
			if fn.Name == "" {
				fn.Name = field
			}
		}
		if _, seen := s.Env.getLocal(field); !seen {
			s.Fields = append(s.Fields, field)
		}
		s.Env.Set(field, v)
	}

	if err := env.Define(name, s); err != nil {
		return raise(env, err)
	}
	if init, ok := s.Env.getLocal("init"); ok {
		if fn, ok := init.(*Closure); ok {
			if r := applyClosure(fn, nil, env); isSignal(r) {
				return r
			}
		}
	}
	return s
}

// evalStructAccess reads a struct field: (:: s field args...). A private
// field is readable only while this is the same struct. A closure field is
// called with the remaining arguments.
func evalStructAccess(env *Environment, args []ast.Expr) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "::", len(args), 2)
	}
	target := Eval(args[0], env)
	if isSignal(target) {
		return target
	}
	s, ok := target.(*Struct)
	if !ok {
		return newTypeError(env, "::", "a Struct", target)
	}
	field, ok := propertyName(env, "::", args[1])
	if !ok {
		return &Error{}
	}
	v, ok := s.Env.getLocal(field)
	if !ok {
		return newError(env, "UNDEF-0004", map[string]any{"Type": "struct " + s.Name, "Name": field})
	}
	if s.Private[field] && env.This() != Object(s) {
		return newError(env, "STATE-0004", map[string]any{"Name": field, "Struct": s.Name})
	}
	fn, ok := v.(*Closure)
	if !ok || len(args) == 2 && len(fn.Params) > 0 {
		return v
	}
	callArgs, sig := evalArgs(args[2:], env)
	if sig != nil {
		return sig
	}
	env.PushThis(field, s)
	defer env.PopThis()
	return applyClosure(fn, callArgs, env)
}

// evalObjectCreate copies a prototype's children into a fresh object:
// (object-create name proto) or (object-create proto).
func evalObjectCreate(env *Environment, args []ast.Expr) Object {
	if len(args) < 1 || len(args) > 2 {
		return newArityErrorRange(env, "object-create", len(args), 1, 2)
	}
	name := ""
	protoExpr := args[0]
	if len(args) == 2 {
		n, ok := nameArg(env, "object-create", args[0])
		if !ok {
			return &Error{}
		}
		name, protoExpr = n, args[1]
	}
	proto := Eval(protoExpr, env)
	if isSignal(proto) {
		return proto
	}
	src, ok := proto.(Composite)
	if !ok {
		return newError(env, "STATE-0005", map[string]any{"Type": proto.Type()})
	}
	rec := &Record{Children: copyChildren(src.Slots())}
	if name != "" {
		if err := env.Define(name, rec); err != nil {
			return raise(env, err)
		}
	}
	return rec
}
