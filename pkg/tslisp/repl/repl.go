// Package repl implements the interactive read-eval-print loop.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
	"github.com/sambeau/tslisp/pkg/tslisp/tslisp"
)

const PROMPT = ">> "
const CONTINUATION_PROMPT = ".. "

const LOGO = `
▀█▀ █▀ █░░ █ █▀ █▀█
░█░ ▄█ █▄▄ █ ▄█ █▀▀ `

// HistoryFile is where line history is kept between sessions.
var HistoryFile = filepath.Join(os.TempDir(), ".tslisp_history")

// Session holds the state of one REPL: the interpreter and any buffered
// multi-line input. It is separate from the terminal so it can be driven
// line by line.
type Session struct {
	out    io.Writer
	newFn  func() *tslisp.Interpreter
	interp *tslisp.Interpreter
	buf    strings.Builder
}

// NewSession creates a session. newInterp is also used by :clear.
func NewSession(out io.Writer, newInterp func() *tslisp.Interpreter) *Session {
	return &Session{out: out, newFn: newInterp, interp: newInterp()}
}

// Interpreter returns the current interpreter.
func (s *Session) Interpreter() *tslisp.Interpreter { return s.interp }

// Pending reports whether a multi-line expression is being collected.
func (s *Session) Pending() bool { return s.buf.Len() > 0 }

// Prompt returns the prompt for the next line.
func (s *Session) Prompt() string {
	if s.Pending() {
		return CONTINUATION_PROMPT
	}
	return PROMPT
}

// Abort drops any buffered input.
func (s *Session) Abort() { s.buf.Reset() }

// Feed processes one input line. It returns the complete input that was
// evaluated (for history), and quit=true when the session should end.
func (s *Session) Feed(input string) (complete string, quit bool) {
	trimmed := strings.TrimSpace(input)
	if !s.Pending() {
		switch {
		case trimmed == "exit" || trimmed == "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return "", true
		case strings.HasPrefix(trimmed, ":"):
			s.handleCommand(trimmed)
			return "", false
		case trimmed == "":
			return "", false
		}
	}

	if s.Pending() {
		s.buf.WriteString("\n")
	}
	s.buf.WriteString(input)

	full := s.buf.String()
	if needsMoreInput(full) {
		return "", false
	}
	s.buf.Reset()

	result, errs := s.interp.Run(full, "<repl>")
	for _, err := range errs {
		io.WriteString(s.out, err.PrettyString())
		io.WriteString(s.out, "\n")
	}
	if len(errs) == 0 && result != nil {
		if result == evaluator.NONE {
			io.WriteString(s.out, "OK\n")
		} else {
			io.WriteString(s.out, result.Inspect()+"\n")
		}
	}

	if code, exiting := s.interp.ExitRequested(); exiting {
		fmt.Fprintf(s.out, "Goodbye! (exit %d)\n", code)
		return full, true
	}
	return full, false
}

// handleCommand handles REPL meta-commands that start with ':'
func (s *Session) handleCommand(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(s.out, "  :env            Show variables in scope")
		fmt.Fprintln(s.out, "  :clear          Clear all user variables")
		fmt.Fprintln(s.out, "  exit, quit      Exit the REPL")

	case ":env":
		printEnvironment(s.interp.Env(), s.out)

	case ":clear":
		s.interp = s.newFn()
		fmt.Fprintln(s.out, "Environment cleared")

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// Complete returns completion suggestions for the word being typed. Each
// suggestion is the whole line with the word completed, as liner expects.
func (s *Session) Complete(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	cut := strings.LastIndexAny(line, " \t()")
	prefix, word := line[:cut+1], line[cut+1:]
	if word == "" {
		return nil
	}

	seen := make(map[string]bool)
	var matches []string
	candidates := append(evaluator.BuiltinNames(), s.interp.Env().Identifiers()...)
	for _, name := range candidates {
		if strings.HasPrefix(name, word) && !seen[name] {
			seen[name] = true
			matches = append(matches, prefix+name)
		}
	}
	sort.Strings(matches)
	return matches
}

// Start runs the REPL on the terminal with line editing, history and tab
// completion.
func Start(out io.Writer, version string, newInterp func() *tslisp.Interpreter) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	session := NewSession(out, newInterp)
	line.SetCompleter(session.Complete)

	if f, err := os.Open(HistoryFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(HistoryFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s", LOGO)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Use Tab for completion, ↑↓ for history")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	for {
		input, err := line.Prompt(session.Prompt())
		if err != nil {
			if err == liner.ErrPromptAborted {
				if session.Pending() {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				session.Abort()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		complete, quit := session.Feed(input)
		if complete != "" {
			line.AppendHistory(complete)
		}
		if quit {
			return
		}
	}
}

// printEnvironment displays the bindings of the root environment
func printEnvironment(env *evaluator.Environment, out io.Writer) {
	vars := env.Bindings()
	if len(vars) == 0 {
		fmt.Fprintln(out, "(no user variables)")
		return
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obj := vars[name]
		value := obj.Inspect()
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		fmt.Fprintf(out, "  %s: %s = %s\n", name, obj.Type(), value)
	}
}

// needsMoreInput reports unclosed parentheses or template braces, ignoring
// strings and ; comments.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	parenCount := 0
	braceCount := 0
	inString := false
	inComment := false

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if inComment {
			if ch == '\n' {
				inComment = false
			}
			continue
		}
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if braceCount == 0 {
				inString = true
			}
		case ';':
			if braceCount == 0 {
				inComment = true
			}
		case '{':
			braceCount++
		case '}':
			braceCount--
		case '(':
			if braceCount == 0 {
				parenCount++
			}
		case ')':
			if braceCount == 0 {
				parenCount--
			}
		}
	}

	return parenCount > 0 || braceCount > 0 || inString
}
