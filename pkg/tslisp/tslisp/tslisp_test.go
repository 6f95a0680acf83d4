package tslisp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
)

func TestRun(t *testing.T) {
	logger := NewBufferedLogger()
	interp := New(WithLogger(logger))

	result, errs := interp.Run(`(define x 20) (display "x is" x) (+ x 1)`, "inline")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if result.Inspect() != "[Int] 21" {
		t.Errorf("result = %s", result.Inspect())
	}
	if logger.String() != "x is 20\n" {
		t.Errorf("output = %q", logger.String())
	}

	// definitions persist across runs
	result, _ = interp.Run("(* x 2)", "inline")
	if result.Inspect() != "[Int] 40" {
		t.Errorf("second run = %s", result.Inspect())
	}
}

func TestRunErrors(t *testing.T) {
	interp := New(WithLogger(NullLogger()))

	_, errs := interp.Run("(define x", "broken.tsl")
	if len(errs) == 0 || !errs[0].IsParseError() {
		t.Fatalf("expected a parse error, got %v", errs)
	}
	if errs[0].File != "broken.tsl" {
		t.Errorf("File = %q", errs[0].File)
	}

	result, errs := interp.Run("(car 1)\n(pop (list))\n(+ 2 2)", "rt.tsl")
	if len(errs) != 2 {
		t.Fatalf("expected 2 runtime errors, got %d", len(errs))
	}
	if errs[1].Code != "INDEX-0003" || errs[1].Line != 2 {
		t.Errorf("second error = %s (%s)", errs[1], errs[1].Code)
	}
	if errs[0].File != "rt.tsl" {
		t.Errorf("File = %q", errs[0].File)
	}
	if result.Inspect() != "[Int] 4" {
		t.Errorf("evaluation should continue after errors, got %s", result.Inspect())
	}
}

func TestRunCaughtErrorsNotReported(t *testing.T) {
	tests := []struct {
		input   string
		wantErr int
	}{
		{"(try (pop (list)) error)", 0},
		{"(define e (try (car 1) error))\ne", 0},
		{"(try (pop (list)) error)\n(car 1)", 1},
	}

	for _, tt := range tests {
		interp := New(WithLogger(NullLogger()))
		_, errs := interp.Run(tt.input, "caught.tsl")
		if len(errs) != tt.wantErr {
			t.Errorf("%q: expected %d errors, got %v", tt.input, tt.wantErr, errs)
		}
	}
}

func TestRunMacrosApplyToLaterRuns(t *testing.T) {
	interp := New(WithLogger(NullLogger()))
	interp.Run(`(macro "\\bdouble\\b" "twice") (define (twice x) (* x 2))`, "m.tsl")

	result, errs := interp.Run("(double 21)", "m.tsl")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if result.Inspect() != "[Int] 42" {
		t.Errorf("result = %s", result.Inspect())
	}
}

func TestOptions(t *testing.T) {
	interp := New(
		WithLogger(NullLogger()),
		WithOptions(evaluator.Options{SharedFrames: true, MaxDepth: 20}),
	)
	opts := interp.Env().Options()
	if !opts.SharedFrames || opts.MaxDepth != 20 {
		t.Errorf("options not applied: %+v", opts)
	}

	_, errs := interp.Run("(define (f n) (f n)) (f 1)", "deep.tsl")
	if len(errs) != 1 || errs[0].Code != "STATE-0003" {
		t.Errorf("expected depth error, got %v", errs)
	}
}

type staticService string

func (s staticService) Complete(ctx context.Context, prompt string) (string, error) {
	return string(s), nil
}

type mapLoader map[string]string

func (m mapLoader) Load(name, from string) (string, string, error) {
	src, ok := m[name]
	if !ok {
		return "", "", errors.New("not found")
	}
	return src, "mem:" + name, nil
}

func TestServices(t *testing.T) {
	interp := New(
		WithLogger(NullLogger()),
		WithTextService(staticService("ok")),
		WithLoader(mapLoader{"lib": "(define answer 42)"}),
	)

	result, errs := interp.Run(`(import "lib") (+ (LLM "q") answer)`, "main.tsl")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if result.Inspect() != "[String] ok42" {
		t.Errorf("result = %s", result.Inspect())
	}
}

func TestRunFileAndExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exit.tsl")
	if err := os.WriteFile(path, []byte("(display 1) (exit 4) (display 2)"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := NewBufferedLogger()
	interp := New(WithLogger(logger))
	if _, _, err := interp.RunFile(path); err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
	code, exiting := interp.ExitRequested()
	if !exiting || code != 4 {
		t.Errorf("ExitRequested() = %d, %v", code, exiting)
	}
	if got := logger.Lines(); len(got) != 1 || got[0] != "1" {
		t.Errorf("lines = %q", got)
	}

	if _, _, err := interp.RunFile(filepath.Join(dir, "missing.tsl")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoggers(t *testing.T) {
	var buf bytes.Buffer
	w := WriterLogger(&buf)
	w.Log("a", 1)
	w.LogLine(" b")
	if buf.String() != "a 1 b\n" {
		t.Errorf("WriterLogger wrote %q", buf.String())
	}

	b := NewBufferedLogger()
	b.Log("partial")
	if b.String() != "partial" {
		t.Errorf("String() = %q", b.String())
	}
	b.LogLine("-line")
	b.LogLine("next")
	if lines := b.Lines(); len(lines) != 2 || lines[0] != "partial-line" {
		t.Errorf("Lines() = %q", lines)
	}
	b.Reset()
	if b.String() != "" {
		t.Errorf("Reset left %q", b.String())
	}

	NullLogger().LogLine("ignored")
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.tsl")
	if err := os.WriteFile(script, []byte(`(display "v1")`), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr syncBuffer
	w, err := NewWatcher(script, nil, 20*time.Millisecond, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	done := make(chan []*perrors.LispError, 4)
	w.AfterRun = func(_ evaluator.Object, errs []*perrors.LispError) { done <- errs }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Close()

	<-done
	if !strings.Contains(stdout.String(), "v1") {
		t.Fatalf("first run output = %q", stdout.String())
	}

	if err := os.WriteFile(script, []byte(`(display "v2") (car 1)`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case errs := <-done:
		if len(errs) != 1 {
			t.Errorf("expected 1 runtime error, got %d", len(errs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not re-run the script")
	}

	if !strings.Contains(stdout.String(), "v2") {
		t.Errorf("second run output = %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "[WATCH] watching:") {
		t.Errorf("missing watch log in %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "[WATCH ERROR]") {
		t.Errorf("missing error log in %q", stderr.String())
	}
}

// startWatcher runs a watcher on script and returns the channel AfterRun
// reports to, once the first run has finished.
func startWatcher(t *testing.T, script string, stdout, stderr io.Writer) chan []*perrors.LispError {
	t.Helper()
	w, err := NewWatcher(script, nil, 30*time.Millisecond, stdout, stderr)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	done := make(chan []*perrors.LispError, 16)
	w.AfterRun = func(_ evaluator.Object, errs []*perrors.LispError) { done <- errs }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-done
	return done
}

// waitForOutput waits for runs until stdout contains want.
func waitForOutput(t *testing.T, done chan []*perrors.LispError, stdout *syncBuffer, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !strings.Contains(stdout.String(), want) {
		select {
		case <-done:
		case <-deadline:
			t.Fatalf("no run printed %q, output = %q", want, stdout.String())
		}
	}
}

func TestWatcherBurstOfSaves(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.tsl")
	if err := os.WriteFile(script, []byte(`(display "v1")`), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr syncBuffer
	done := startWatcher(t, script, &stdout, &stderr)

	for _, v := range []string{"v2", "v3", "v4"} {
		src := fmt.Sprintf(`(display "%s")`, v)
		if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	waitForOutput(t, done, &stdout, "v4")
}

func TestWatcherNewDirectories(t *testing.T) {
	tests := []struct {
		name string
		sub  string
	}{
		{"direct child", "lib"},
		{"nested", filepath.Join("lib", "deep")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			script := filepath.Join(dir, "main.tsl")
			if err := os.WriteFile(script, []byte(`(display "main")`), 0o644); err != nil {
				t.Fatal(err)
			}

			var stdout, stderr syncBuffer
			done := startWatcher(t, script, &stdout, &stderr)
			runs := strings.Count(stdout.String(), "[WATCH] run")

			sub := filepath.Join(dir, tt.sub)
			if err := os.MkdirAll(sub, 0o755); err != nil {
				t.Fatal(err)
			}
			waitForLog(t, &stdout, "watching: "+filepath.Join(dir, "lib"))
			if err := os.WriteFile(filepath.Join(sub, "extra.tsl"), []byte("1"), 0o644); err != nil {
				t.Fatal(err)
			}

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("no re-run after writing into %s, output = %q", tt.sub, stdout.String())
			}
			if got := strings.Count(stdout.String(), "[WATCH] run"); got <= runs {
				t.Errorf("expected another run, output = %q", stdout.String())
			}
		})
	}
}

func waitForLog(t *testing.T, stdout *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stdout.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("missing %q in %q", want, stdout.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	w := &Watcher{script: "/tmp/app/main.tsl"}
	tests := []struct {
		path string
		want bool
	}{
		{"/tmp/app/main.tsl", true},
		{"/tmp/app/lib.tsl", true},
		{"/tmp/app/notes.txt", false},
		{"/tmp/app/main.tsl.swp", false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.path); got != tt.want {
			t.Errorf("relevant(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
