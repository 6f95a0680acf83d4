package evaluator

import (
	"math"
	"math/rand"
	"strings"
)

func registerMathBuiltins() {
	registerBuiltin("+", builtinAdd)
	registerBuiltin("-", builtinSub)
	registerBuiltin("*", builtinMul)
	registerBuiltin("/", builtinDiv)
	registerBuiltin("**", builtinPow)
	registerBuiltin("%", builtinMod)
	registerBuiltin("abs", mathUnary("abs", math.Abs))
	registerBuiltin("floor", mathUnary("floor", math.Floor))
	registerBuiltin("ceil", mathUnary("ceil", math.Ceil))
	registerBuiltin("sqrt", builtinSqrt)
	registerBuiltin("min", mathExtreme("min", func(a, b float64) bool { return a < b }))
	registerBuiltin("max", mathExtreme("max", func(a, b float64) bool { return a > b }))

	registerBuiltin(">", comparison(">", func(c int) bool { return c > 0 }))
	registerBuiltin("<", comparison("<", func(c int) bool { return c < 0 }))
	registerBuiltin(">=", comparison(">=", func(c int) bool { return c >= 0 }))
	registerBuiltin("<=", comparison("<=", func(c int) bool { return c <= 0 }))
	registerBuiltin("=", equality("=", false))
	registerBuiltin("==", equality("==", false))
	registerBuiltin("!=", equality("!=", true))

	registerBuiltin("and", builtinAnd)
	registerBuiltin("or", builtinOr)
	registerBuiltin("not", builtinNot)

	registerBuiltin("random", builtinRandom)
	registerBuiltin("randInt", builtinRandInt)
	registerBuiltin("randChoice", builtinRandChoice)
}

// numericArgs converts every argument or raises a type error naming the
// offending position.
func numericArgs(env *Environment, fn string, args []Object) ([]float64, bool) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := toNumber(a)
		if !ok {
			newTypeError(env, fn, "a number", a)
			return nil, false
		}
		nums[i] = n
	}
	return nums, true
}

func builtinAdd(env *Environment, args ...Object) Object {
	if len(args) > 0 {
		if s, ok := args[0].(*String); ok {
			var sb strings.Builder
			sb.WriteString(s.Value)
			for _, a := range args[1:] {
				sb.WriteString(Text(a))
			}
			return &String{Value: sb.String()}
		}
	}
	nums, ok := numericArgs(env, "+", args)
	if !ok {
		return &Error{}
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return makeNumber(sum)
}

func builtinSub(env *Environment, args ...Object) Object {
	if len(args) == 0 {
		return newArityErrorMin(env, "-", 0, 1)
	}
	nums, ok := numericArgs(env, "-", args)
	if !ok {
		return &Error{}
	}
	if len(nums) == 1 {
		return makeNumber(-nums[0])
	}
	result := nums[0]
	for _, n := range nums[1:] {
		result -= n
	}
	return makeNumber(result)
}

func builtinMul(env *Environment, args ...Object) Object {
	nums, ok := numericArgs(env, "*", args)
	if !ok {
		return &Error{}
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return makeNumber(product)
}

func builtinDiv(env *Environment, args ...Object) Object {
	if len(args) == 0 {
		return newArityErrorMin(env, "/", 0, 1)
	}
	nums, ok := numericArgs(env, "/", args)
	if !ok {
		return &Error{}
	}
	if len(nums) == 1 {
		nums = []float64{1, nums[0]}
	}
	result := nums[0]
	for _, n := range nums[1:] {
		if n == 0 {
			return newDivisionByZeroError(env, "/")
		}
		result /= n
	}
	return makeNumber(result)
}

func builtinPow(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "**", len(args), 2)
	}
	nums, ok := numericArgs(env, "**", args)
	if !ok {
		return &Error{}
	}
	return makeNumber(math.Pow(nums[0], nums[1]))
}

func builtinMod(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "%", len(args), 2)
	}
	a, ok := args[0].(*Integer)
	if !ok {
		return newTypeError(env, "%", "an Int", args[0])
	}
	b, ok := args[1].(*Integer)
	if !ok {
		return newTypeError(env, "%", "an Int", args[1])
	}
	if b.Value == 0 {
		return newDivisionByZeroError(env, "%")
	}
	return &Integer{Value: a.Value % b.Value}
}

func mathUnary(name string, f func(float64) float64) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) != 1 {
			return newArityError(env, name, len(args), 1)
		}
		n, ok := toNumber(args[0])
		if !ok {
			return newTypeError(env, name, "a number", args[0])
		}
		return makeNumber(f(n))
	}
}

func builtinSqrt(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "sqrt", len(args), 1)
	}
	n, ok := toNumber(args[0])
	if !ok {
		return newTypeError(env, "sqrt", "a number", args[0])
	}
	if n < 0 {
		return newError(env, "OP-0002", map[string]any{"Function": "sqrt", "Reason": "negative argument"})
	}
	return makeNumber(math.Sqrt(n))
}

func mathExtreme(name string, better func(a, b float64) bool) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) == 0 {
			return newArityErrorMin(env, name, 0, 1)
		}
		nums, ok := numericArgs(env, name, args)
		if !ok {
			return &Error{}
		}
		best := 0
		for i := 1; i < len(nums); i++ {
			if better(nums[i], nums[best]) {
				best = i
			}
		}
		return args[best]
	}
}

// compareObjects orders two numbers or two strings.
func compareObjects(a, b Object) (int, bool) {
	if x, ok := toNumber(a); ok {
		y, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if x, ok := a.(*String); ok {
		y, ok := b.(*String)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Value, y.Value), true
	}
	return 0, false
}

func comparison(name string, holds func(int) bool) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) < 2 {
			return newArityErrorMin(env, name, len(args), 2)
		}
		for i := 0; i+1 < len(args); i++ {
			c, ok := compareObjects(args[i], args[i+1])
			if !ok {
				return newError(env, "TYPE-0001", map[string]any{
					"Function": name,
					"Expected": "two numbers or two strings",
					"Got":      typeName(args[i]) + " and " + typeName(args[i+1]),
				})
			}
			if !holds(c) {
				return FALSE
			}
		}
		return TRUE
	}
}

func equality(name string, negate bool) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) != 2 {
			return newArityError(env, name, len(args), 2)
		}
		return nativeBool(objectsEqual(args[0], args[1]) != negate)
	}
}

func builtinAnd(env *Environment, args ...Object) Object {
	for _, a := range args {
		if !isTruthy(a) {
			return FALSE
		}
	}
	return TRUE
}

func builtinOr(env *Environment, args ...Object) Object {
	for _, a := range args {
		if isTruthy(a) {
			return TRUE
		}
	}
	return FALSE
}

func builtinNot(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "not", len(args), 1)
	}
	return nativeBool(!isTruthy(args[0]))
}

// intRange reads the two integer bounds shared by random and randInt.
func intRange(env *Environment, name string, args []Object) (int64, int64, bool) {
	lo, ok := toInt(args[0])
	if !ok {
		newTypeError(env, name, "an Int", args[0])
		return 0, 0, false
	}
	hi, ok := toInt(args[1])
	if !ok {
		newTypeError(env, name, "an Int", args[1])
		return 0, 0, false
	}
	return lo, hi, true
}

func builtinRandom(env *Environment, args ...Object) Object {
	switch len(args) {
	case 0:
		return &Float{Value: rand.Float64()}
	case 2:
		lo, hi, ok := intRange(env, "random", args)
		if !ok {
			return &Error{}
		}
		if hi <= lo {
			return newError(env, "OP-0002", map[string]any{"Function": "random", "Reason": "empty range"})
		}
		return &Integer{Value: lo + rand.Int63n(hi-lo)}
	default:
		return newError(env, "ARITY-0001", map[string]any{"Function": "random", "Got": len(args), "Want": "0 or 2"})
	}
}

func builtinRandInt(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "randInt", len(args), 2)
	}
	lo, hi, ok := intRange(env, "randInt", args)
	if !ok {
		return &Error{}
	}
	if hi < lo {
		return newError(env, "OP-0002", map[string]any{"Function": "randInt", "Reason": "empty range"})
	}
	return &Integer{Value: lo + rand.Int63n(hi-lo+1)}
}

func builtinRandChoice(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "randChoice", len(args), 1)
	}
	l, ok := args[0].(*List)
	if !ok {
		return newTypeError(env, "randChoice", "a List", args[0])
	}
	if len(l.Elements) == 0 {
		return newEmptyError(env, "randChoice")
	}
	return l.Elements[rand.Intn(len(l.Elements))]
}
