package parser

import (
	"github.com/sambeau/tslisp/pkg/tslisp/ast"
	"github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
)

// Parser builds expression trees from a token stream.
type Parser struct {
	l      *lexer.Lexer
	errors []*errors.LispError

	curToken lexer.Token
}

// New creates a parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.l.NextToken()
}

// Errors returns the structured errors recorded while parsing.
func (p *Parser) Errors() []*errors.LispError {
	return p.errors
}

// ParseProgram parses every top-level expression until EOF. Malformed input
// produces ParseError nodes in place rather than stopping the parse.
func (p *Parser) ParseProgram() []ast.Expr {
	var exprs []ast.Expr
	for p.curToken.Type != lexer.EOF {
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}

func (p *Parser) parseExpr() ast.Expr {
	tok := p.curToken

	switch tok.Type {
	case lexer.LPAREN:
		return p.parseList()
	case lexer.RPAREN:
		p.nextToken()
		return p.parseError(tok, "PARSE-0002", map[string]any{"Token": ")"})
	case lexer.STRING:
		p.nextToken()
		return &ast.StringLiteral{Token: tok, Value: tok.Literal}
	case lexer.TEMPLATE:
		p.nextToken()
		return &ast.TemplateLiteral{Token: tok, Text: tok.Literal}
	case lexer.ILLEGAL:
		p.nextToken()
		return p.illegal(tok)
	default:
		p.nextToken()
		return &ast.Atom{Token: tok, Value: tok.Literal}
	}
}

func (p *Parser) parseList() ast.Expr {
	list := &ast.List{Token: p.curToken}
	p.nextToken()

	for p.curToken.Type != lexer.RPAREN {
		if p.curToken.Type == lexer.EOF {
			return p.parseError(list.Token, "PARSE-0001", nil)
		}
		list.Elements = append(list.Elements, p.parseExpr())
	}

	p.nextToken()
	return list
}

func (p *Parser) illegal(tok lexer.Token) ast.Expr {
	switch tok.Literal {
	case "unterminated string":
		return p.parseError(tok, "PARSE-0003", nil)
	case "unterminated template":
		return p.parseError(tok, "PARSE-0004", nil)
	default:
		return p.parseError(tok, "PARSE-0002", map[string]any{"Token": "}"})
	}
}

func (p *Parser) parseError(tok lexer.Token, code string, data map[string]any) *ast.ParseError {
	err := errors.NewWithPosition(code, tok.Line, tok.Column, data)
	err.File = p.l.Filename()
	p.errors = append(p.errors, err)
	return &ast.ParseError{Token: tok, Code: code, Message: err.Message}
}

// Parse is a convenience wrapper: tokenize and parse src in one call.
func Parse(src, filename string) ([]ast.Expr, []*errors.LispError) {
	p := New(lexer.NewWithFilename(src, filename))
	exprs := p.ParseProgram()
	return exprs, p.Errors()
}
