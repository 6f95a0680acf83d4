package tslisp

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
)

// Logger receives display output. Log writes without a newline, LogLine
// ends the line.
type Logger = evaluator.Logger

// StdoutLogger returns the logger used when none is configured.
func StdoutLogger() Logger {
	return evaluator.DefaultLogger
}

// WriterLogger returns a logger that writes display output to w.
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

type writerLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *writerLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, joinValues(values))
}

func (l *writerLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, joinValues(values)+"\n")
}

// BufferedLogger keeps a transcript of display output, for tests and for
// hosts that show output after a run.
type BufferedLogger struct {
	mu  sync.Mutex
	out strings.Builder
}

func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{}
}

func (l *BufferedLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.WriteString(joinValues(values))
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.WriteString(joinValues(values))
	l.out.WriteByte('\n')
}

// String returns the transcript, including any unterminated last line.
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.String()
}

// Lines returns the completed lines of the transcript.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	text := l.out.String()
	end := strings.LastIndexByte(text, '\n')
	if end < 0 {
		return []string{}
	}
	return strings.Split(text[:end], "\n")
}

func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Reset()
}

type nullLogger struct{}

func (nullLogger) Log(values ...any)     {}
func (nullLogger) LogLine(values ...any) {}

// NullLogger discards display output.
func NullLogger() Logger {
	return nullLogger{}
}

// joinValues renders display arguments separated by single spaces.
func joinValues(values []any) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprint(&sb, v)
	}
	return sb.String()
}
