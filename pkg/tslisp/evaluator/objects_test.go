package evaluator

import "testing"

func TestClassesAndMethods(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{`
(class Counter n)
(instance Counter c)
(setItem c n 0)
(setMethod Counter inc (lambda () (setItem this n (+ (getItem this n) 1))))
(callMethod c inc)
(callMethod c inc)
(getItem c n)`, 2},
		{`
(class Shape sides)
(setMethod Shape scaled (lambda (k) (* k 10)))
(instance Shape s)
(getItem s scaled 4)`, 40},
		{`
(class A x)
(subclass A B y)
(instance B b)
(setItem b y 3)
(getItem b y)`, 3},
		{`
(class A x)
(define K A)
(instance K k)
(setItem k "x" 6)
(getItem k "x")`, 6},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(tt.input), tt.expected)
	}

	if result := testEval("(class A x) (subclass A B y) (instance B b) (getItem b x)"); result != NONE {
		t.Errorf("inherited field should be None, got %s", result.Inspect())
	}
}

func TestClassErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"(instance Missing m)", "UNDEF-0002"},
		{"(class A x) (instance A a) (getItem a zzz)", "UNDEF-0004"},
		{"(class A x) (instance A a) (callMethod a nothing)", "UNDEF-0005"},
		{"(class A x) (setMethod A m 5)", "TYPE-0001"},
		{"(getItem 5 x)", "TYPE-0001"},
	}

	for _, tt := range tests {
		testErrorCode(t, tt.input, testEval(tt.input), tt.code)
	}
}

func TestCopiedClassTables(t *testing.T) {
	input := `
(class A x)
(subclass A B y)
(setItem B x 1)
(getItem A x)`
	if result := testEvalWith(input, Options{CopyClassTables: true}); result != NONE {
		t.Errorf("copied subclass table should not write through, got %s", result.Inspect())
	}
	testIntegerObject(t, input, testEval(input), 1)
}

func TestThisOutsideMethods(t *testing.T) {
	if testEval("(this)") != NONE {
		t.Error("(this) at top level should be None")
	}
	if testEval("this") != NONE {
		t.Error("this at top level should be None")
	}
	input := `(class A x) (instance A a) (setItem a x (type (this))) (getItem a x)`
	testStringObject(t, input, testEval(input), "Instance")
}

const pointStruct = `
(struct Point (private secret) (public x y)
  x 1
  y 2
  secret 42
  getSecret (lambda () (:: this secret))
  sum (lambda (k) (+ x y k))
  init (lambda () (update x 10)))
`

func TestStructs(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{pointStruct + "(:: Point y)", 2},
		{pointStruct + "(:: Point x)", 10},
		{pointStruct + "(:: Point getSecret)", 42},
		{pointStruct + "(:: Point sum 3)", 15},
	}

	for _, tt := range tests {
		testIntegerObject(t, tt.input, testEval(tt.input), tt.expected)
	}

	if _, ok := testEval(pointStruct + "(:: Point sum)").(*Closure); !ok {
		t.Error("closure field with parameters and no arguments should be returned, not called")
	}

	want := "[Struct] Point{x:10, y:2, secret:<private>, getSecret:[Lambda] getSecret (), sum:[Lambda] sum (k), init:[Lambda] init ()}"
	if got := testEval(pointStruct + "Point").Inspect(); got != want {
		t.Errorf("Inspect() = %q, want %q", got, want)
	}
}

func TestStructErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{pointStruct + "(:: Point secret)", "STATE-0004"},
		{pointStruct + "(:: Point missing)", "UNDEF-0004"},
		{"(struct S a)", "ARITY-0004"},
		{"(:: 5 a)", "TYPE-0001"},
	}

	for _, tt := range tests {
		testErrorCode(t, tt.input, testEval(tt.input), tt.code)
	}
}

func TestPrototypeChildren(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`(define base (list)) (child base "greet" "hi") (object-create o base) (get-child o "greet")`, "hi"},
		{`(define proto (list)) (child proto "m" (lambda () (type this))) (child-method proto "m")`, "List"},
		{`(define n 5) (child n "unit" "kg") (get-child n "unit")`, "kg"},
		{`(define o (object-create (dict))) (child o "k" "v") (type o)`, "Object"},
	}

	for _, tt := range tests {
		testStringObject(t, tt.input, testEval(tt.input), tt.expected)
	}

	copied := `
(define base (list))
(child base "v" 1)
(object-create o base)
(child base "v" 2)
(get-child o "v")`
	testIntegerObject(t, copied, testEval(copied), 1)

	testErrorCode(t, "child on None", testEval(`(child None "a" 1)`), "STATE-0005")
	testErrorCode(t, "missing child", testEval(`(get-child (list) "nope")`), "UNDEF-0006")
	testErrorCode(t, "create from None", testEval(`(object-create None)`), "STATE-0005")
}

func TestDeepCopy(t *testing.T) {
	inner := &List{Elements: []Object{&Integer{Value: 1}}}
	outer := &List{Elements: []Object{inner}}
	outer.SetChild("tag", &String{Value: "t"})

	copied, ok := deepCopy(outer).(*List)
	if !ok {
		t.Fatalf("deepCopy returned %T", deepCopy(outer))
	}
	copied.Elements[0].(*List).Elements[0] = &Integer{Value: 99}

	if inner.Elements[0].(*Integer).Value != 1 {
		t.Error("deepCopy shared nested list storage")
	}
	if _, ok := copied.Child("tag"); !ok {
		t.Error("deepCopy dropped children")
	}
	if deepCopy(TRUE) != TRUE || deepCopy(NONE) != NONE {
		t.Error("singletons should not be copied")
	}
}
