package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sambeau/tslisp/pkg/tslisp/tslisp"
)

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"(+ 1 2)", false},
		{"(define (f x)", true},
		{"(define (f x)\n  (* x 2))", false},
		{`(display "(")`, false},
		{`(display "unterminated`, true},
		{`(display "esc \" (")`, false},
		{"(+ 1 2) ; trailing (", false},
		{"(list ; open (\n 1", true},
		{"{hello (name", true},
		{"{hello (name}", false},
		{"(define s {a \"b\" (c})", false},
	}

	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func newTestSession() (*Session, *bytes.Buffer) {
	var out bytes.Buffer
	s := NewSession(&out, func() *tslisp.Interpreter {
		return tslisp.New(tslisp.WithLogger(tslisp.WriterLogger(&out)))
	})
	return s, &out
}

func TestFeed(t *testing.T) {
	s, out := newTestSession()

	if complete, quit := s.Feed("(define (sq x)"); complete != "" || quit {
		t.Fatalf("partial input should be buffered, got %q %v", complete, quit)
	}
	if s.Prompt() != CONTINUATION_PROMPT {
		t.Errorf("Prompt() = %q while pending", s.Prompt())
	}

	complete, _ := s.Feed("  (* x x))")
	if complete != "(define (sq x)\n  (* x x))" {
		t.Errorf("complete = %q", complete)
	}
	if s.Prompt() != PROMPT {
		t.Errorf("Prompt() = %q after completion", s.Prompt())
	}

	out.Reset()
	s.Feed("(sq 7)")
	if out.String() != "[Int] 49\n" {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.Feed("(car 1)")
	if !strings.Contains(out.String(), "Runtime error") {
		t.Errorf("expected a runtime error, got %q", out.String())
	}

	out.Reset()
	s.Feed(`(display "hi")`)
	if !strings.HasPrefix(out.String(), "hi\n") {
		t.Errorf("display output = %q", out.String())
	}
}

func TestFeedQuit(t *testing.T) {
	for _, input := range []string{"exit", "quit", " quit "} {
		s, _ := newTestSession()
		if _, quit := s.Feed(input); !quit {
			t.Errorf("Feed(%q) did not quit", input)
		}
	}

	s, out := newTestSession()
	if _, quit := s.Feed("(exit 3)"); !quit {
		t.Error("(exit 3) did not end the session")
	}
	if !strings.Contains(out.String(), "exit 3") {
		t.Errorf("output = %q", out.String())
	}
}

func TestAbort(t *testing.T) {
	s, _ := newTestSession()
	s.Feed("(list 1")
	if !s.Pending() {
		t.Fatal("expected pending input")
	}
	s.Abort()
	if s.Pending() {
		t.Error("Abort() left input buffered")
	}
}

func TestCommands(t *testing.T) {
	s, out := newTestSession()

	s.Feed(":help")
	if !strings.Contains(out.String(), "REPL Commands:") {
		t.Errorf(":help output = %q", out.String())
	}

	out.Reset()
	s.Feed(":env")
	if !strings.Contains(out.String(), "(no user variables)") {
		t.Errorf(":env output = %q", out.String())
	}

	s.Feed("(define answer 42)")
	out.Reset()
	s.Feed(":env")
	if !strings.Contains(out.String(), "answer: Int = [Int] 42") {
		t.Errorf(":env output = %q", out.String())
	}

	out.Reset()
	s.Feed(":clear")
	if !strings.Contains(out.String(), "Environment cleared") {
		t.Errorf(":clear output = %q", out.String())
	}
	if _, ok := s.Interpreter().Env().Get("answer"); ok {
		t.Error("answer survived :clear")
	}

	out.Reset()
	s.Feed(":bogus")
	if !strings.Contains(out.String(), "Unknown command: :bogus") {
		t.Errorf("unknown command output = %q", out.String())
	}
}

func TestComplete(t *testing.T) {
	s, _ := newTestSession()
	s.Feed("(define display-count 1)")

	got := s.Complete("(displ")
	want := []string{"(display", "(display-count"}
	if len(got) != len(want) {
		t.Fatalf("Complete() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Complete()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := s.Complete("(car "); got != nil {
		t.Errorf("Complete after space = %q", got)
	}
	if got := s.Complete(""); got != nil {
		t.Errorf("Complete on empty line = %q", got)
	}
}
