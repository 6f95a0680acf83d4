package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

// runTSL runs the CLI in a scratch directory so no stray tslisp.yaml is found.
func runTSL(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := run(context.Background(), args, stdout, stderr, noEnv)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func exitCodeOf(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestRunVersion(t *testing.T) {
	for _, flag := range []string{"--version", "-V"} {
		stdout, _, err := runTSL(t, flag)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "tsl version") {
			t.Errorf("expected version output, got %q", stdout)
		}
	}
}

func TestRunHelp(t *testing.T) {
	for _, flag := range []string{"--help", "-h"} {
		stdout, _, err := runTSL(t, flag)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "tsl - tslisp language interpreter") {
			t.Errorf("expected help output, got %q", stdout)
		}
		if !strings.Contains(stdout, "--watch") {
			t.Errorf("expected --watch in help, got %q", stdout)
		}
	}
}

func TestRunInvalidFlag(t *testing.T) {
	_, stderr, err := runTSL(t, "--invalid-flag")
	if err == nil {
		t.Error("expected error for invalid flag")
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("expected usage on stderr, got %q", stderr)
	}
}

func TestEvalInline(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"integer", []string{"-e", "(+ 1 2)"}, "[Int] 3\n"},
		{"float division", []string{"--eval", "(/ 7 2)"}, "[Float] 3.5\n"},
		{"string", []string{"-e", `(+ "a" "b")`}, "[String] ab\n"},
		{"display then value", []string{"-e", `(display "hi") 5`}, "hi\n[Int] 5\n"},
		{"script args", []string{"-e", "(car args)", "first", "second"}, "[String] first\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := runTSL(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
			}
			if stdout != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, stdout)
			}
		})
	}
}

func TestEvalInlineErrors(t *testing.T) {
	_, stderr, err := runTSL(t, "-e", "(+ 1")
	if exitCodeOf(err) != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(stderr, "Parser error") || !strings.Contains(stderr, "^") {
		t.Errorf("expected parse error with caret, got %q", stderr)
	}

	_, stderr, err = runTSL(t, "-e", "(car 1)")
	if exitCodeOf(err) != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(stderr, "Runtime error in <eval>") {
		t.Errorf("expected runtime error, got %q", stderr)
	}
}

func TestExecuteFile(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "hello.tsl", `(display "hello" (car args))`)

	stdout, stderr, err := runTSL(t, script, "world")
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
	}
	if stdout != "hello world\n" {
		t.Errorf("expected %q, got %q", "hello world\n", stdout)
	}
}

func TestExecuteFileErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "bad.tsl", "(display 1)\n(pop (list))\n")

	stdout, stderr, err := runTSL(t, script)
	if exitCodeOf(err) != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
	if stdout != "1\n" {
		t.Errorf("expected output before the error, got %q", stdout)
	}
	if !strings.Contains(stderr, "Runtime error in "+script+": line 2") {
		t.Errorf("expected runtime error header, got %q", stderr)
	}
	if !strings.Contains(stderr, "(pop (list))") {
		t.Errorf("expected source context, got %q", stderr)
	}

	if _, _, err := runTSL(t, filepath.Join(dir, "missing.tsl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExitCode(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "exit.tsl", "(display 1) (exit 3) (display 2)")

	stdout, _, err := runTSL(t, script)
	if exitCodeOf(err) != 3 {
		t.Errorf("expected exit code 3, got %v", err)
	}
	if stdout != "1\n" {
		t.Errorf("expected evaluation to stop at exit, got %q", stdout)
	}

	if _, _, err := runTSL(t, "-e", "(exit 0)"); err != nil {
		t.Errorf("exit 0 should not be an error: %v", err)
	}
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.tsl", "(define x 1)\n(display x)\n")
	bad := writeFile(t, dir, "bad.tsl", "(define x 1)\n(display x\n")

	stdout, _, err := runTSL(t, "--check", good)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if stdout != "" {
		t.Errorf("--check should not run the script, got %q", stdout)
	}

	_, stderr, err := runTSL(t, "--check", good, bad)
	if exitCodeOf(err) != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(stderr, "Parser error") {
		t.Errorf("expected parse error, got %q", stderr)
	}

	if _, _, err := runTSL(t, "--check"); exitCodeOf(err) != 2 {
		t.Errorf("expected exit code 2 without files, got %v", err)
	}
	if _, _, err := runTSL(t, "--check", filepath.Join(dir, "missing.tsl")); exitCodeOf(err) != 2 {
		t.Errorf("expected exit code 2 for missing file, got %v", err)
	}
}

func TestConfigPrelude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prelude.tsl", "(define (sq x) (* x x))")
	configPath := writeFile(t, dir, "tslisp.yaml", `
interpreter:
  prelude: [prelude.tsl]
  max_depth: 50
`)

	stdout, stderr, err := runTSL(t, "--config", configPath, "-e", "(sq 9)")
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
	}
	if stdout != "[Int] 81\n" {
		t.Errorf("expected prelude definition, got %q", stdout)
	}

	_, stderr, err = runTSL(t, "--config", configPath, "-e", "(define (f n) (f n)) (f 1)")
	if exitCodeOf(err) != 1 {
		t.Errorf("expected depth error, got %v", err)
	}
	if !strings.Contains(stderr, "Runtime error") {
		t.Errorf("expected runtime error, got %q", stderr)
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := runTSL(t, "--config", filepath.Join(dir, "nope.yaml"), "-e", "1"); err == nil {
		t.Error("expected error for missing config")
	}

	brokenPrelude := writeFile(t, dir, "broken.yaml", "interpreter:\n  prelude: [missing.tsl]\n")
	if _, _, err := runTSL(t, "--config", brokenPrelude, "-e", "1"); err == nil || !strings.Contains(err.Error(), "prelude") {
		t.Errorf("expected prelude error, got %v", err)
	}
}

func TestLoggingOutput(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "tslisp.yaml", "logging:\n  output: stderr\n")

	stdout, stderr, err := runTSL(t, "--config", configPath, "-e", `(display "to stderr") 1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "[Int] 1\n" {
		t.Errorf("expected only the result on stdout, got %q", stdout)
	}
	if stderr != "to stderr\n" {
		t.Errorf("expected display output on stderr, got %q", stderr)
	}
}

func TestPrintSourceContext(t *testing.T) {
	var buf bytes.Buffer
	printSourceContext([]string{"(a)", "    (car 1)"}, 2, 5, &buf)
	expected := "    (car 1)\n    ^\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}

	buf.Reset()
	printSourceContext([]string{"x"}, 3, 1, &buf)
	if buf.Len() != 0 {
		t.Errorf("out of range line should print nothing, got %q", buf.String())
	}
}
