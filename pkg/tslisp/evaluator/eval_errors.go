// eval_errors.go - Error creation helpers for the evaluator
//
// Every helper raises the environment's error latch with a catalog error and
// returns the empty *Error marker. Eval replaces the marker with the drained,
// positioned error.

package evaluator

import (
	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
)

// newError raises the latch with a catalog error.
func newError(env *Environment, code string, data map[string]any) *Error {
	env.SetError(perrors.New(code, data))
	return &Error{}
}

// newArityError creates an error for wrong argument count.
func newArityError(env *Environment, fn string, got, want int) *Error {
	return newError(env, "ARITY-0001", map[string]any{"Function": fn, "Got": got, "Want": want})
}

// newArityErrorMin creates an error for too few arguments.
func newArityErrorMin(env *Environment, fn string, got, min int) *Error {
	return newError(env, "ARITY-0002", map[string]any{"Function": fn, "Got": got, "Min": min})
}

// newArityErrorRange creates an error for an argument count outside [min, max].
func newArityErrorRange(env *Environment, fn string, got, min, max int) *Error {
	return newError(env, "ARITY-0003", map[string]any{"Function": fn, "Got": got, "Min": min, "Max": max})
}

// newTypeError creates an error for an argument of the wrong type.
func newTypeError(env *Environment, fn, expected string, got Object) *Error {
	return newError(env, "TYPE-0001", map[string]any{"Function": fn, "Expected": expected, "Got": typeName(got)})
}

// newUnsupportedError creates an error for an argument the operator cannot handle.
func newUnsupportedError(env *Environment, fn string, got Object) *Error {
	return newError(env, "TYPE-0002", map[string]any{"Function": fn, "Got": typeName(got)})
}

// newSyntaxError reports a malformed special form.
func newSyntaxError(env *Environment, fn, reason string) *Error {
	return newError(env, "TYPE-0009", map[string]any{"Function": fn, "Reason": reason})
}

// newIndexError creates an error for an out-of-range index.
func newIndexError(env *Environment, fn string, index int64, length int) *Error {
	return newError(env, "INDEX-0001", map[string]any{"Function": fn, "Index": index, "Length": length})
}

// newEmptyError creates an error for an operation on an empty list.
func newEmptyError(env *Environment, fn string) *Error {
	return newError(env, "INDEX-0003", map[string]any{"Function": fn})
}

// newKeyError creates an error for a missing dictionary key.
func newKeyError(env *Environment, fn, key string) *Error {
	return newError(env, "KEY-0001", map[string]any{"Function": fn, "Key": key})
}

// newDivisionByZeroError creates an error for division or modulo by zero.
func newDivisionByZeroError(env *Environment, fn string) *Error {
	return newError(env, "OP-0001", map[string]any{"Function": fn})
}

// raise records an existing structured error.
func raise(env *Environment, err *perrors.LispError) *Error {
	env.SetError(err)
	return &Error{}
}

func typeName(obj Object) string {
	if obj == nil {
		return NONE_OBJ
	}
	if u, ok := obj.(*Undefined); ok {
		return "undefined name " + u.Name
	}
	return string(obj.Type())
}
