package ast

import (
	"strconv"
	"strings"

	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
)

// Kind tags the five expression node shapes.
type Kind int

const (
	AtomKind Kind = iota
	ListKind
	StringKind
	TemplateKind
	ParseErrorKind
)

func (k Kind) String() string {
	switch k {
	case AtomKind:
		return "Atom"
	case ListKind:
		return "List"
	case StringKind:
		return "StringLiteral"
	case TemplateKind:
		return "TemplateLiteral"
	case ParseErrorKind:
		return "ParseError"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Expr represents any node in the expression tree
type Expr interface {
	Kind() Kind
	TokenLiteral() string
	String() string
	Pos() (line, column int)
}

// Atom is a single unparenthesized token: identifier, numeral or operator.
type Atom struct {
	Token lexer.Token
	Value string
}

func (a *Atom) Kind() Kind              { return AtomKind }
func (a *Atom) TokenLiteral() string    { return a.Token.Literal }
func (a *Atom) String() string          { return a.Value }
func (a *Atom) Pos() (line, column int) { return a.Token.Line, a.Token.Column }

// List is a parenthesized sequence of expressions.
type List struct {
	Token    lexer.Token // the ( token
	Elements []Expr
}

func (l *List) Kind() Kind              { return ListKind }
func (l *List) TokenLiteral() string    { return l.Token.Literal }
func (l *List) Pos() (line, column int) { return l.Token.Line, l.Token.Column }
func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Head returns the first element, or nil for an empty list.
func (l *List) Head() Expr {
	if len(l.Elements) == 0 {
		return nil
	}
	return l.Elements[0]
}

// Tail returns every element after the head.
func (l *List) Tail() []Expr {
	if len(l.Elements) == 0 {
		return nil
	}
	return l.Elements[1:]
}

// StringLiteral is a "..." literal with escapes already decoded.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (s *StringLiteral) Kind() Kind              { return StringKind }
func (s *StringLiteral) TokenLiteral() string    { return s.Token.Literal }
func (s *StringLiteral) String() string          { return strconv.Quote(s.Value) }
func (s *StringLiteral) Pos() (line, column int) { return s.Token.Line, s.Token.Column }

// TemplateLiteral is {text} whose [name] spans are interpolated at evaluation.
type TemplateLiteral struct {
	Token lexer.Token
	Text  string
}

func (t *TemplateLiteral) Kind() Kind              { return TemplateKind }
func (t *TemplateLiteral) TokenLiteral() string    { return t.Token.Literal }
func (t *TemplateLiteral) String() string          { return "{" + t.Text + "}" }
func (t *TemplateLiteral) Pos() (line, column int) { return t.Token.Line, t.Token.Column }

// ParseError marks a malformed region so evaluation can report it instead
// of the parser aborting.
type ParseError struct {
	Token   lexer.Token
	Code    string
	Message string
}

func (p *ParseError) Kind() Kind              { return ParseErrorKind }
func (p *ParseError) TokenLiteral() string    { return p.Token.Literal }
func (p *ParseError) String() string          { return "<parse error: " + p.Message + ">" }
func (p *ParseError) Pos() (line, column int) { return p.Token.Line, p.Token.Column }

// NewList builds a synthetic list node, used by quote and define shorthand.
func NewList(tok lexer.Token, elems ...Expr) *List {
	return &List{Token: tok, Elements: elems}
}

// AtomName returns the atom's text when e is an Atom.
func AtomName(e Expr) (string, bool) {
	a, ok := e.(*Atom)
	if !ok {
		return "", false
	}
	return a.Value, true
}
