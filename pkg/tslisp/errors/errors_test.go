package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLispError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *LispError
		expected string
	}{
		{
			name:     "message only",
			err:      &LispError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with line and column",
			err:      &LispError{Message: "unexpected ')'", Line: 5, Column: 10},
			expected: "line 5, column 10: unexpected ')'",
		},
		{
			name:     "with file",
			err:      &LispError{Message: "parse error", File: "test.tsl", Line: 3, Column: 1},
			expected: "test.tsl: line 3, column 1: parse error",
		},
		{
			name: "with hints",
			err: &LispError{
				Message: "identifier not found: lenght",
				Hints:   []string{"Did you mean `length`?"},
			},
			expected: "identifier not found: lenght\n  Did you mean `length`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.String()
			if got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestLispError_PrettyString(t *testing.T) {
	tests := []struct {
		name     string
		err      *LispError
		contains []string
	}{
		{
			name:     "parser error",
			err:      &LispError{Class: ClassParse, Message: "unexpected ')'", Line: 2, Column: 4},
			contains: []string{"Parser error", "line 2, column 4", "unexpected ')'"},
		},
		{
			name:     "runtime error with file",
			err:      &LispError{Class: ClassIndex, Message: "get: index 3 out of range [0, 3)", File: "x.tsl", Line: 1, Column: 1},
			contains: []string{"Runtime error", "in: x.tsl", "at: line 1, column 1"},
		},
		{
			name:     "hints",
			err:      &LispError{Class: ClassThrow, Message: "uncaught throw: boom", Hints: []string{"a", "b"}},
			contains: []string{"Use: a", " or: b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.PrettyString()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("PrettyString() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		data      map[string]any
		wantClass ErrorClass
		wantMsg   string
		wantHints int
	}{
		{
			name:      "index error",
			code:      "INDEX-0001",
			data:      map[string]any{"Function": "get", "Index": 5, "Length": 3},
			wantClass: ClassIndex,
			wantMsg:   "get: index 5 out of range [0, 3)",
		},
		{
			name:      "division by zero",
			code:      "OP-0001",
			data:      map[string]any{"Function": "/"},
			wantClass: ClassOperator,
			wantMsg:   "/: division by zero",
		},
		{
			name:      "arity",
			code:      "ARITY-0001",
			data:      map[string]any{"Function": "%", "Got": 3, "Want": 2},
			wantClass: ClassArity,
			wantMsg:   "wrong number of arguments to `%`. got=3, want=2",
		},
		{
			name:      "hint rendering",
			code:      "UNDEF-0003",
			data:      map[string]any{"Function": "set!", "Name": "x"},
			wantClass: ClassUndefined,
			wantMsg:   "set!: no binding for x in scope",
			wantHints: 1,
		},
		{
			name:      "unknown code",
			code:      "NOPE-9999",
			data:      map[string]any{"message": "custom"},
			wantClass: ClassType,
			wantMsg:   "custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.data)
			if err.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", err.Class, tt.wantClass)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if len(err.Hints) != tt.wantHints {
				t.Errorf("len(Hints) = %d, want %d", len(err.Hints), tt.wantHints)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestWithPositionDoesNotMutate(t *testing.T) {
	orig := NewSimple(ClassParse, "x")
	moved := orig.WithPosition(4, 2).WithFile("a.tsl")

	if orig.Line != 0 || orig.File != "" {
		t.Errorf("original mutated: %+v", orig)
	}
	if moved.Line != 4 || moved.Column != 2 || moved.File != "a.tsl" {
		t.Errorf("moved = %+v", moved)
	}
}

func TestToJSON(t *testing.T) {
	err := New("KEY-0001", map[string]any{"Function": "get", "Key": `"missing"`})
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON: %v", jerr)
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if decoded["class"] != "key" {
		t.Errorf("class = %v, want key", decoded["class"])
	}
	if decoded["code"] != "KEY-0001" {
		t.Errorf("code = %v, want KEY-0001", decoded["code"])
	}
}

func TestFindClosestMatch(t *testing.T) {
	candidates := []string{"length", "list", "lambda", "define", "display"}

	tests := []struct {
		input string
		want  string
	}{
		{"lenght", "length"},
		{"defin", "define"},
		{"dispaly", "display"},
		{"length", ""}, // exact match is not a suggestion
		{"zzzzzz", ""}, // too far
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FindClosestMatch(tt.input, candidates); got != tt.want {
				t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewUndefinedName(t *testing.T) {
	err := NewUndefinedName("fo", []string{"foo", "bar"})
	if err.Message != "identifier not found: fo" {
		t.Errorf("Message = %q", err.Message)
	}
	if len(err.Hints) != 1 || !strings.Contains(err.Hints[0], "foo") {
		t.Errorf("Hints = %v", err.Hints)
	}
}
