package evaluator

import (
	"strings"
)

func registerCollectionBuiltins() {
	registerBuiltin("list", builtinList)
	registerBuiltin("dict", builtinDict)
	registerBuiltin("get", builtinGet)
	registerBuiltin("set", builtinSet)
	registerBuiltin("push", builtinPush)
	registerBuiltin("pop", builtinPop)
	registerBuiltin("shift", builtinShift)
	registerBuiltin("unshift", builtinUnshift)
	registerBuiltin("splice", builtinSplice)
	registerBuiltin("slice", builtinSlice)
	registerBuiltin("concat", builtinConcat)
	registerBuiltin("includes", builtinIncludes)
	registerBuiltin("index", builtinIndex)
	registerBuiltin("length", builtinLength)
	registerBuiltin("keys", builtinKeys)
	registerBuiltin("values", builtinValues)

	registerBuiltin("array", builtinArray)
	registerBuiltin("getArr", builtinGetArr)
	registerBuiltin("setArr", builtinSetArr)

	registerBuiltin("map", builtinMap)
	registerBuiltin("filter", builtinFilter)
	registerBuiltin("reduce", builtinReduce)
}

func builtinList(env *Environment, args ...Object) Object {
	return &List{Elements: append([]Object{}, args...)}
}

func builtinDict(env *Environment, args ...Object) Object {
	if len(args)%2 != 0 {
		return newError(env, "ARITY-0004", map[string]any{"Function": "dict", "Got": len(args)})
	}
	d := NewDict()
	for i := 0; i < len(args); i += 2 {
		k, ok := args[i].(*String)
		if !ok {
			return newError(env, "TYPE-0006", map[string]any{"Function": "dict", "Got": typeName(args[i])})
		}
		d.Set(k.Value, args[i+1])
	}
	return d
}

// checkIndex validates 0 <= i < length.
func checkIndex(env *Environment, fn string, idx Object, length int) (int, bool) {
	i, ok := toInt(idx)
	if !ok {
		newTypeError(env, fn, "an Int index", idx)
		return 0, false
	}
	if i < 0 || i >= int64(length) {
		newIndexError(env, fn, i, length)
		return 0, false
	}
	return int(i), true
}

func dictKey(env *Environment, fn string, key Object) (string, bool) {
	k, ok := key.(*String)
	if !ok {
		newError(env, "TYPE-0006", map[string]any{"Function": fn, "Got": typeName(key)})
		return "", false
	}
	return k.Value, true
}

func builtinGet(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "get", len(args), 2)
	}
	switch c := args[0].(type) {
	case *List:
		i, ok := checkIndex(env, "get", args[1], len(c.Elements))
		if !ok {
			return &Error{}
		}
		return c.Elements[i]
	case *Array:
		i, ok := checkIndex(env, "get", args[1], len(c.Elements))
		if !ok {
			return &Error{}
		}
		return c.Elements[i]
	case *String:
		runes := []rune(c.Value)
		i, ok := checkIndex(env, "get", args[1], len(runes))
		if !ok {
			return &Error{}
		}
		return &String{Value: string(runes[i])}
	case *Dict:
		k, ok := dictKey(env, "get", args[1])
		if !ok {
			return &Error{}
		}
		v, ok := c.Get(k)
		if !ok {
			return newKeyError(env, "get", k)
		}
		return v
	default:
		return newUnsupportedError(env, "get", args[0])
	}
}

func builtinSet(env *Environment, args ...Object) Object {
	if len(args) != 3 {
		return newArityError(env, "set", len(args), 3)
	}
	switch c := args[0].(type) {
	case *List:
		i, ok := checkIndex(env, "set", args[1], len(c.Elements))
		if !ok {
			return &Error{}
		}
		c.Elements[i] = args[2]
	case *Array:
		i, ok := checkIndex(env, "set", args[1], len(c.Elements))
		if !ok {
			return &Error{}
		}
		c.Elements[i] = args[2]
	case *Dict:
		k, ok := dictKey(env, "set", args[1])
		if !ok {
			return &Error{}
		}
		c.Set(k, args[2])
	default:
		return newUnsupportedError(env, "set", args[0])
	}
	return args[2]
}

func listArg(env *Environment, fn string, obj Object) (*List, bool) {
	l, ok := obj.(*List)
	if !ok {
		newTypeError(env, fn, "a List", obj)
	}
	return l, ok
}

func builtinPush(env *Environment, args ...Object) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "push", len(args), 2)
	}
	l, ok := listArg(env, "push", args[0])
	if !ok {
		return &Error{}
	}
	l.Elements = append(l.Elements, args[1:]...)
	return args[len(args)-1]
}

func builtinPop(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "pop", len(args), 1)
	}
	l, ok := listArg(env, "pop", args[0])
	if !ok {
		return &Error{}
	}
	if len(l.Elements) == 0 {
		return newEmptyError(env, "pop")
	}
	last := l.Elements[len(l.Elements)-1]
	l.Elements = l.Elements[:len(l.Elements)-1]
	return last
}

func builtinShift(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "shift", len(args), 1)
	}
	l, ok := listArg(env, "shift", args[0])
	if !ok {
		return &Error{}
	}
	if len(l.Elements) == 0 {
		return newEmptyError(env, "shift")
	}
	first := l.Elements[0]
	l.Elements = append([]Object{}, l.Elements[1:]...)
	return first
}

func builtinUnshift(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "unshift", len(args), 2)
	}
	l, ok := listArg(env, "unshift", args[0])
	if !ok {
		return &Error{}
	}
	l.Elements = append([]Object{args[1]}, l.Elements...)
	return args[1]
}

// clampIndex resolves a possibly negative position against length.
func clampIndex(i int64, length int) int {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 {
		return 0
	}
	if i > int64(length) {
		return length
	}
	return int(i)
}

func builtinSplice(env *Environment, args ...Object) Object {
	if len(args) < 3 {
		return newArityErrorMin(env, "splice", len(args), 3)
	}
	l, ok := listArg(env, "splice", args[0])
	if !ok {
		return &Error{}
	}
	start, ok := toInt(args[1])
	if !ok {
		return newTypeError(env, "splice", "an Int start", args[1])
	}
	count, ok := toInt(args[2])
	if !ok {
		return newTypeError(env, "splice", "an Int count", args[2])
	}

	from := clampIndex(start, len(l.Elements))
	n := int(max(0, min(count, int64(len(l.Elements)-from))))

	removed := append([]Object{}, l.Elements[from:from+n]...)
	rest := append([]Object{}, l.Elements[from+n:]...)
	l.Elements = append(append(l.Elements[:from], args[3:]...), rest...)
	return &List{Elements: removed}
}

func builtinSlice(env *Environment, args ...Object) Object {
	if len(args) < 2 || len(args) > 3 {
		return newArityErrorRange(env, "slice", len(args), 2, 3)
	}
	var length int
	var runes []rune
	isString := false
	switch c := args[0].(type) {
	case *List:
		length = len(c.Elements)
	case *String:
		runes = []rune(c.Value)
		length = len(runes)
		isString = true
	default:
		return newTypeError(env, "slice", "a List or String", args[0])
	}

	start, ok := toInt(args[1])
	if !ok {
		return newTypeError(env, "slice", "an Int start", args[1])
	}
	end := int64(length)
	if len(args) == 3 {
		end, ok = toInt(args[2])
		if !ok {
			return newTypeError(env, "slice", "an Int end", args[2])
		}
	}
	from, to := clampIndex(start, length), clampIndex(end, length)
	if to < from {
		to = from
	}

	if isString {
		return &String{Value: string(runes[from:to])}
	}
	l := args[0].(*List)
	return &List{Elements: append([]Object{}, l.Elements[from:to]...)}
}

func builtinConcat(env *Environment, args ...Object) Object {
	if len(args) == 0 {
		return &List{}
	}
	if _, ok := args[0].(*List); ok {
		var out []Object
		for _, a := range args {
			l, ok := listArg(env, "concat", a)
			if !ok {
				return &Error{}
			}
			out = append(out, l.Elements...)
		}
		return &List{Elements: out}
	}
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(Text(a))
	}
	return &String{Value: sb.String()}
}

func builtinIncludes(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "includes", len(args), 2)
	}
	switch c := args[0].(type) {
	case *List:
		return nativeBool(indexOf(c.Elements, args[1]) >= 0)
	case *Array:
		return nativeBool(indexOf(c.Elements, args[1]) >= 0)
	case *String:
		return nativeBool(strings.Contains(c.Value, Text(args[1])))
	case *Dict:
		_, ok := c.Get(Text(args[1]))
		return nativeBool(ok)
	default:
		return newUnsupportedError(env, "includes", args[0])
	}
}

func indexOf(elements []Object, target Object) int {
	for i, e := range elements {
		if objectsEqual(e, target) {
			return i
		}
	}
	return -1
}

func builtinIndex(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "index", len(args), 2)
	}
	switch c := args[0].(type) {
	case *List:
		return &Integer{Value: int64(indexOf(c.Elements, args[1]))}
	case *String:
		pos := strings.Index(c.Value, Text(args[1]))
		if pos < 0 {
			return &Integer{Value: -1}
		}
		return &Integer{Value: int64(len([]rune(c.Value[:pos])))}
	default:
		return newUnsupportedError(env, "index", args[0])
	}
}

func builtinLength(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "length", len(args), 1)
	}
	switch c := args[0].(type) {
	case *String:
		return &Integer{Value: int64(len([]rune(c.Value)))}
	case *List:
		return &Integer{Value: int64(len(c.Elements))}
	case *Array:
		return &Integer{Value: int64(len(c.Elements))}
	case *Dict:
		return &Integer{Value: int64(c.Len())}
	default:
		return newUnsupportedError(env, "length", args[0])
	}
}

func builtinKeys(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "keys", len(args), 1)
	}
	d, ok := args[0].(*Dict)
	if !ok {
		return newTypeError(env, "keys", "a Dict", args[0])
	}
	out := make([]Object, len(d.Keys))
	for i, k := range d.Keys {
		out[i] = &String{Value: k}
	}
	return &List{Elements: out}
}

func builtinValues(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "values", len(args), 1)
	}
	d, ok := args[0].(*Dict)
	if !ok {
		return newTypeError(env, "values", "a Dict", args[0])
	}
	out := make([]Object, len(d.Keys))
	for i, k := range d.Keys {
		out[i] = d.Pairs[k]
	}
	return &List{Elements: out}
}

func builtinArray(env *Environment, args ...Object) Object {
	if len(args) == 0 {
		return newArityErrorMin(env, "array", 0, 1)
	}
	dims := make([]int, len(args))
	for i, a := range args {
		n, ok := toInt(a)
		if !ok {
			return newTypeError(env, "array", "an Int dimension", a)
		}
		if n <= 0 {
			return newError(env, "OP-0002", map[string]any{"Function": "array", "Reason": "dimensions must be positive"})
		}
		dims[i] = int(n)
	}
	return makeArray(dims)
}

func makeArray(dims []int) *Array {
	elems := make([]Object, dims[0])
	for i := range elems {
		if len(dims) > 1 {
			elems[i] = makeArray(dims[1:])
		} else {
			elems[i] = NONE
		}
	}
	return &Array{Elements: elems}
}

// walkArray follows all but the last index and returns the innermost array
// with the final position, bounds-checking every level.
func walkArray(env *Environment, fn string, target Object, indices []Object) (*Array, int, bool) {
	cur := target
	for dim, idx := range indices {
		arr, ok := cur.(*Array)
		if !ok {
			newTypeError(env, fn, "an Array", cur)
			return nil, 0, false
		}
		i, ok := toInt(idx)
		if !ok {
			newTypeError(env, fn, "an Int index", idx)
			return nil, 0, false
		}
		if i < 0 || i >= int64(len(arr.Elements)) {
			newError(env, "INDEX-0002", map[string]any{"Function": fn, "Index": i, "Dim": dim, "Length": len(arr.Elements)})
			return nil, 0, false
		}
		if dim == len(indices)-1 {
			return arr, int(i), true
		}
		cur = arr.Elements[i]
	}
	return nil, 0, false
}

func builtinGetArr(env *Environment, args ...Object) Object {
	if len(args) < 2 {
		return newArityErrorMin(env, "getArr", len(args), 2)
	}
	arr, i, ok := walkArray(env, "getArr", args[0], args[1:])
	if !ok {
		return &Error{}
	}
	return arr.Elements[i]
}

func builtinSetArr(env *Environment, args ...Object) Object {
	if len(args) < 3 {
		return newArityErrorMin(env, "setArr", len(args), 3)
	}
	value := args[len(args)-1]
	arr, i, ok := walkArray(env, "setArr", args[0], args[1:len(args)-1])
	if !ok {
		return &Error{}
	}
	arr.Elements[i] = value
	return value
}

func builtinMap(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "map", len(args), 2)
	}
	l, ok := listArg(env, "map", args[1])
	if !ok {
		return &Error{}
	}
	out := make([]Object, 0, len(l.Elements))
	for _, e := range l.Elements {
		r := callFunction(env, args[0], e)
		if isSignal(r) {
			return r
		}
		out = append(out, r)
	}
	return &List{Elements: out}
}

func builtinFilter(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "filter", len(args), 2)
	}
	l, ok := listArg(env, "filter", args[1])
	if !ok {
		return &Error{}
	}
	var out []Object
	for _, e := range l.Elements {
		r := callFunction(env, args[0], e)
		if isSignal(r) {
			return r
		}
		if isTruthy(r) {
			out = append(out, e)
		}
	}
	return &List{Elements: out}
}

func builtinReduce(env *Environment, args ...Object) Object {
	if len(args) != 3 {
		return newArityError(env, "reduce", len(args), 3)
	}
	l, ok := listArg(env, "reduce", args[2])
	if !ok {
		return &Error{}
	}
	acc := args[1]
	for _, e := range l.Elements {
		acc = callFunction(env, args[0], acc, e)
		if isSignal(acc) {
			return acc
		}
	}
	return acc
}
