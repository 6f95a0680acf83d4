package lexer

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens
type TokenType int

const (
	ILLEGAL  TokenType = iota
	EOF
	LPAREN   // (
	RPAREN   // )
	STRING   // "foobar"
	TEMPLATE // {hello [name]}
	ATOM     // define, 42, 3.5, +, set!
)

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type, t.Literal, t.Line, t.Column)
}

func (tt TokenType) String() string {
	switch tt {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case STRING:
		return "STRING"
	case TEMPLATE:
		return "TEMPLATE"
	case ATOM:
		return "ATOM"
	default:
		return fmt.Sprintf("TokenType(%d)", int(tt))
	}
}

// Lexer splits macro-expanded source into tokens.
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

// New creates a new lexer for input.
func New(input string) *Lexer {
	return NewWithFilename(input, "<input>")
}

// NewWithFilename creates a new lexer instance with a specific filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    input,
		line:     1,
		column:   0,
	}
	l.readChar()
	return l
}

// Filename returns the name used in error positions.
func (l *Lexer) Filename() string {
	return l.filename
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}

	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// NextToken returns the next token, or an EOF token at end of input.
func (l *Lexer) NextToken() Token {
	l.skipTrivia()

	if l.atEOF() {
		return Token{Type: EOF, Line: l.line, Column: l.column}
	}

	line, col := l.line, l.column

	switch l.ch {
	case '(':
		l.readChar()
		return Token{Type: LPAREN, Literal: "(", Line: line, Column: col}
	case ')':
		l.readChar()
		return Token{Type: RPAREN, Literal: ")", Line: line, Column: col}
	case '"':
		lit, ok := l.readString()
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Line: line, Column: col}
		}
		return Token{Type: STRING, Literal: lit, Line: line, Column: col}
	case '{':
		lit, ok := l.readTemplate()
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated template", Line: line, Column: col}
		}
		return Token{Type: TEMPLATE, Literal: lit, Line: line, Column: col}
	case '}':
		l.readChar()
		return Token{Type: ILLEGAL, Literal: "unexpected '}'", Line: line, Column: col}
	}

	return Token{Type: ATOM, Literal: l.readAtom(), Line: line, Column: col}
}

// skipTrivia skips whitespace and ; comments.
func (l *Lexer) skipTrivia() {
	for !l.atEOF() {
		switch {
		case isSpace(l.ch):
			l.readChar()
		case l.ch == ';':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a "..." literal, decoding escapes. The opening quote is
// the current char.
func (l *Lexer) readString() (string, bool) {
	var sb strings.Builder
	l.readChar()
	for {
		if l.atEOF() {
			return sb.String(), false
		}
		switch l.ch {
		case '"':
			l.readChar()
			return sb.String(), true
		case '\\':
			l.readChar()
			if l.atEOF() {
				return sb.String(), false
			}
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				// \" and \\ and any unknown escape keep the char itself
				sb.WriteByte(l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
}

// readTemplate reads the raw text between { and }, allowing nested braces.
func (l *Lexer) readTemplate() (string, bool) {
	l.readChar()
	start := l.position
	depth := 1
	for !l.atEOF() {
		switch l.ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				lit := l.input[start:l.position]
				l.readChar()
				return lit, true
			}
		}
		l.readChar()
	}
	return l.input[start:], false
}

func (l *Lexer) readAtom() string {
	start := l.position
	for !l.atEOF() && !isDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '"', '{', '}', ';':
		return true
	}
	return isSpace(ch)
}

// Tokenize returns every token of input up to and excluding EOF.
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}
