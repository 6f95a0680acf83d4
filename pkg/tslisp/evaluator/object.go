package evaluator

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
)

// ObjectType is the tag reported by `type` and used by typed parameters.
type ObjectType string

const (
	INTEGER_OBJ       = "Int"
	FLOAT_OBJ         = "Float"
	BOOLEAN_OBJ       = "Bool"
	NONE_OBJ          = "None"
	STRING_OBJ        = "String"
	LIST_OBJ          = "List"
	DICT_OBJ          = "Dict"
	ARRAY_OBJ         = "Array"
	BUILTIN_OBJ       = "Procedure"
	CLOSURE_OBJ       = "Lambda"
	CLASS_OBJ         = "Class"
	INSTANCE_OBJ      = "Instance"
	STRUCT_OBJ        = "Struct"
	ERROR_OBJ         = "Error"
	UNDEFINED_OBJ     = "Undefined"
	QUOTED_OBJ        = "Expr"
	RECORD_OBJ        = "Object"
	DB_CONNECTION_OBJ = "Connection"
	RETURN_OBJ        = "ReturnValue"
	THROWN_OBJ        = "Thrown"
)

// Object represents all values in the language
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Children is the prototype slot table carried by every non-singleton value.
type Children struct {
	subObjs map[string]Object
}

// Slots returns the receiver so embedding types satisfy Composite.
func (c *Children) Slots() *Children { return c }

// Child returns the named child.
func (c *Children) Child(name string) (Object, bool) {
	obj, ok := c.subObjs[name]
	return obj, ok
}

// SetChild attaches or replaces a named child.
func (c *Children) SetChild(name string, obj Object) {
	if c.subObjs == nil {
		c.subObjs = make(map[string]Object)
	}
	c.subObjs[name] = obj
}

// ChildNames returns the child names in sorted order.
func (c *Children) ChildNames() []string {
	names := make([]string, 0, len(c.subObjs))
	for name := range c.subObjs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Composite is implemented by every value that can carry children.
type Composite interface {
	Object
	Slots() *Children
}

// Integer represents integer objects
type Integer struct {
	Children
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return "[Int] " + strconv.FormatInt(i.Value, 10) }

// Float represents floating-point objects
type Float struct {
	Children
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string  { return "[Float] " + formatFloat(f.Value) }

// Boolean represents the two boolean singletons
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return "[Bool] " + strconv.FormatBool(b.Value) }

// None represents the absence of a value
type None struct{}

func (n *None) Type() ObjectType { return NONE_OBJ }
func (n *None) Inspect() string  { return "None" }

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
	NONE  = &None{}
)

// String represents string objects
type String struct {
	Children
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return "[String] " + s.Value }

// List is a mutable, growable sequence.
type List struct {
	Children
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string  { return reprElements(l.Elements) }

// Dict maps string keys to values and remembers insertion order.
type Dict struct {
	Children
	Pairs map[string]Object
	Keys  []string
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{Pairs: make(map[string]Object)}
}

func (d *Dict) Type() ObjectType { return DICT_OBJ }
func (d *Dict) Inspect() string  { return reprDict(d) }

// Get returns the value stored under key.
func (d *Dict) Get(key string) (Object, bool) {
	v, ok := d.Pairs[key]
	return v, ok
}

// Set inserts or overwrites key.
func (d *Dict) Set(key string, v Object) {
	if _, exists := d.Pairs[key]; !exists {
		d.Keys = append(d.Keys, key)
	}
	d.Pairs[key] = v
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.Keys) }

// Array is a fixed-shape nested array; inner dimensions are Arrays themselves.
type Array struct {
	Children
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }
func (a *Array) Inspect() string  { return "[Array] " + reprElements(a.Elements) }

// BuiltinFunction is an ordinary operator receiving evaluated arguments.
type BuiltinFunction func(env *Environment, args ...Object) Object

// SpecialFunction is a special form receiving unevaluated argument syntax.
type SpecialFunction func(env *Environment, args []ast.Expr) Object

// Builtin is a named procedure from the operator table. Exactly one of Fn
// and Special is set.
type Builtin struct {
	Name    string
	Fn      BuiltinFunction
	Special SpecialFunction
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return "[Procedure] " + b.Name }

// Param is one closure parameter.
type Param struct {
	Name string
	Copy bool   // *name: bind a deep copy
	Kind string // (name Type): required tag, empty when untyped
}

func (p Param) String() string {
	name := p.Name
	if p.Copy {
		name = "*" + name
	}
	if p.Kind != "" {
		return "(" + name + " " + p.Kind + ")"
	}
	return name
}

// Closure is a user-defined function. Env is the closure's own capture
// environment, a child of the environment it was created in.
type Closure struct {
	Children
	Name   string
	Params []Param
	Body   []ast.Expr
	Env    *Environment
	Owner  *Struct
}

func (c *Closure) Type() ObjectType { return CLOSURE_OBJ }
func (c *Closure) Inspect() string {
	params := make([]string, len(c.Params))
	for i, p := range c.Params {
		params[i] = p.String()
	}
	name := c.Name
	if name == "" {
		name = "lambda"
	}
	return fmt.Sprintf("[Lambda] %s (%s)", name, strings.Join(params, " "))
}

// ClassDef is a class registry entry. Props may be shared with the parent
// class and with instances, depending on Options.CopyClassTables.
type ClassDef struct {
	Name   string
	Parent *ClassDef
	Props  map[string]Object
}

// lookup walks the class chain for a property.
func (c *ClassDef) lookup(name string) (Object, bool) {
	for def := c; def != nil; def = def.Parent {
		if v, ok := def.Props[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Class is the value bound to a class name.
type Class struct {
	Children
	Def *ClassDef
}

func (c *Class) Type() ObjectType { return CLASS_OBJ }
func (c *Class) Inspect() string  { return "[Class] " + c.Def.Name + reprProps(c.Def.Props) }

// Instance is an object made by `instance`.
type Instance struct {
	Children
	Class *ClassDef
	Props map[string]Object
}

func (i *Instance) Type() ObjectType { return INSTANCE_OBJ }
func (i *Instance) Inspect() string  { return "[Instance] " + i.Class.Name + reprProps(i.Props) }

// lookup reads a property from the instance table, then the class chain.
func (i *Instance) lookup(name string) (Object, bool) {
	if v, ok := i.Props[name]; ok {
		return v, true
	}
	return i.Class.lookup(name)
}

// Struct is a record with its own environment and field visibility.
type Struct struct {
	Children
	Name    string
	Fields  []string
	Private map[string]bool
	Env     *Environment
}

func (s *Struct) Type() ObjectType { return STRUCT_OBJ }
func (s *Struct) Inspect() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if s.Private[f] {
			parts = append(parts, f+":<private>")
			continue
		}
		v, _ := s.Env.getLocal(f)
		parts = append(parts, f+":"+repr(v))
	}
	return "[Struct] " + s.Name + "{" + strings.Join(parts, ", ") + "}"
}

// Error is a runtime or parse failure surfaced as a value.
type Error struct {
	Message string
	Line    int
	Column  int
	Class   perrors.ErrorClass
	Code    string
	Hints   []string
	File    string
	Data    map[string]any
	// Caught marks an error bound by try. It is an ordinary value from then
	// on and no longer unwinds bodies.
	Caught bool
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }

// Raised reports whether the error is still propagating.
func (e *Error) Raised() bool { return !e.Caught }
func (e *Error) Inspect() string {
	if e.Line > 0 {
		return fmt.Sprintf("[Error] line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "[Error] " + e.Message
}

// ToLispError converts the value back into the structured error shape.
func (e *Error) ToLispError() *perrors.LispError {
	class := e.Class
	if class == "" {
		class = perrors.ClassType
	}
	return &perrors.LispError{
		Class:   class,
		Code:    e.Code,
		Message: e.Message,
		Hints:   e.Hints,
		Line:    e.Line,
		Column:  e.Column,
		File:    e.File,
		Data:    e.Data,
	}
}

func errorFromLisp(err *perrors.LispError) *Error {
	return &Error{
		Message: err.Message,
		Line:    err.Line,
		Column:  err.Column,
		Class:   err.Class,
		Code:    err.Code,
		Hints:   err.Hints,
		File:    err.File,
		Data:    err.Data,
	}
}

// Undefined is the result of looking up an unbound name.
type Undefined struct {
	Name string
}

func (u *Undefined) Type() ObjectType { return UNDEFINED_OBJ }
func (u *Undefined) Inspect() string  { return "[Undefined] " + u.Name }

// Quoted holds an unevaluated expression.
type Quoted struct {
	Children
	Expr ast.Expr
}

func (q *Quoted) Type() ObjectType { return QUOTED_OBJ }
func (q *Quoted) Inspect() string  { return "[Expr] " + q.Expr.String() }

// Record is a bare prototype object made by object-create.
type Record struct {
	Children
}

func (r *Record) Type() ObjectType { return RECORD_OBJ }
func (r *Record) Inspect() string {
	parts := make([]string, 0, len(r.subObjs))
	for _, name := range r.ChildNames() {
		parts = append(parts, name+":"+repr(r.subObjs[name]))
	}
	return "[Object] {" + strings.Join(parts, ", ") + "}"
}

// DBConnection is an open database handle.
type DBConnection struct {
	Children
	DB     *sql.DB
	Driver string
	DSN    string
	closed bool
}

func (c *DBConnection) Type() ObjectType { return DB_CONNECTION_OBJ }
func (c *DBConnection) Inspect() string {
	if c.closed {
		return "[Connection] " + c.Driver + " (closed)"
	}
	return "[Connection] " + c.Driver
}

// ReturnValue carries a `return` out of nested bodies up to the call boundary.
type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Type() ObjectType { return RETURN_OBJ }
func (rv *ReturnValue) Inspect() string  { return rv.Value.Inspect() }

// Thrown unwinds bodies until a try catches it.
type Thrown struct {
	Payload Object
}

func (t *Thrown) Type() ObjectType { return THROWN_OBJ }
func (t *Thrown) Inspect() string  { return "[Thrown] " + repr(t.Payload) }

// Text returns the plain textual form used by display, concatenation and
// templates.
func Text(obj Object) string {
	switch obj := obj.(type) {
	case nil:
		return "None"
	case *String:
		return obj.Value
	case *Error:
		return obj.Message
	case *Undefined:
		return obj.Name
	case *Quoted:
		return obj.Expr.String()
	case *Closure, *Builtin, *Class, *Instance, *Struct, *Record, *DBConnection:
		return obj.Inspect()
	default:
		return repr(obj)
	}
}

// repr renders a value as it appears inside a container.
func repr(obj Object) string {
	switch obj := obj.(type) {
	case nil:
		return "None"
	case *Integer:
		return strconv.FormatInt(obj.Value, 10)
	case *Float:
		return formatFloat(obj.Value)
	case *Boolean:
		return strconv.FormatBool(obj.Value)
	case *None:
		return "None"
	case *String:
		return strconv.Quote(obj.Value)
	case *List:
		return reprElements(obj.Elements)
	case *Array:
		return reprElements(obj.Elements)
	case *Dict:
		return reprDict(obj)
	default:
		return obj.Inspect()
	}
}

func reprElements(elements []Object) string {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = repr(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func reprDict(d *Dict) string {
	parts := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		parts[i] = k + ":" + repr(d.Pairs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func reprProps(props map[string]Object) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + repr(props[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// makeNumber tags an arithmetic result: Int when integral and in range.
func makeNumber(f float64) Object {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && f >= math.MinInt64 && f < math.MaxInt64 {
		return &Integer{Value: int64(f)}
	}
	return &Float{Value: f}
}

func nativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// isTruthy reports truthiness: false, None and numeric zero are falsy.
func isTruthy(obj Object) bool {
	switch obj := obj.(type) {
	case *Boolean:
		return obj.Value
	case *None:
		return false
	case *Integer:
		return obj.Value != 0
	case *Float:
		return obj.Value != 0
	default:
		return obj != nil
	}
}

func isError(obj Object) bool {
	err, ok := obj.(*Error)
	return ok && err.Raised()
}

// isSignal reports values that stop a body and propagate unchanged.
func isSignal(obj Object) bool {
	switch obj := obj.(type) {
	case *Error:
		return obj.Raised()
	case *ReturnValue, *Thrown:
		return true
	}
	return false
}

func toNumber(obj Object) (float64, bool) {
	switch obj := obj.(type) {
	case *Integer:
		return float64(obj.Value), true
	case *Float:
		return obj.Value, true
	}
	return 0, false
}

func toInt(obj Object) (int64, bool) {
	switch obj := obj.(type) {
	case *Integer:
		return obj.Value, true
	case *Float:
		if obj.Value == math.Trunc(obj.Value) {
			return int64(obj.Value), true
		}
	}
	return 0, false
}

// objectsEqual compares numbers numerically, strings by value and
// everything else by identity.
func objectsEqual(a, b Object) bool {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return x == y
		}
		return false
	}
	if x, ok := a.(*String); ok {
		if y, ok := b.(*String); ok {
			return x.Value == y.Value
		}
		return false
	}
	return a == b
}
