package asm

import (
	"fmt"
	"unicode"
)

// TokenType classifies listing tokens
type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	IDENT  // mnemonics, labels, directives, symbols
	REG    // %rax, %v12
	IMM    // $42
	NUMBER // displacements and directive arguments
	LPAREN
	RPAREN
	COMMA
	COLON
	ILLEGAL
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "end of file"
	case NEWLINE:
		return "newline"
	case IDENT:
		return "identifier"
	case REG:
		return "register"
	case IMM:
		return "immediate"
	case NUMBER:
		return "number"
	case LPAREN:
		return "'('"
	case RPAREN:
		return "')'"
	case COMMA:
		return "','"
	case COLON:
		return "':'"
	}
	return "illegal token"
}

// Token is one lexeme with its position
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Col    int
}

// Lexer splits a listing into tokens. '#' starts a comment.
type Lexer struct {
	source []rune
	pos    int
	line   int
	col    int
}

func NewLexer(source string) *Lexer {
	return &Lexer{source: []rune(source), line: 1, col: 1}
}

func (l *Lexer) NextToken() Token {
	l.skipSpaces()

	if l.pos >= len(l.source) {
		return Token{Type: EOF, Line: l.line, Col: l.col}
	}

	line, col := l.line, l.col
	start := l.pos
	c := l.advance()

	switch {
	case c == '\n':
		l.line++
		l.col = 1
		return Token{Type: NEWLINE, Lexeme: "\n", Line: line, Col: col}
	case c == '(':
		return Token{Type: LPAREN, Lexeme: "(", Line: line, Col: col}
	case c == ')':
		return Token{Type: RPAREN, Lexeme: ")", Line: line, Col: col}
	case c == ',':
		return Token{Type: COMMA, Lexeme: ",", Line: line, Col: col}
	case c == ':':
		return Token{Type: COLON, Lexeme: ":", Line: line, Col: col}
	case c == '%':
		l.readWord()
		if l.pos == start+1 {
			return Token{Type: ILLEGAL, Lexeme: "%", Line: line, Col: col}
		}
		return Token{Type: REG, Lexeme: string(l.source[start+1 : l.pos]), Line: line, Col: col}
	case c == '$':
		if !l.readNumber() {
			return Token{Type: ILLEGAL, Lexeme: "$", Line: line, Col: col}
		}
		return Token{Type: IMM, Lexeme: string(l.source[start+1 : l.pos]), Line: line, Col: col}
	case c == '-' || unicode.IsDigit(c):
		l.pos, l.col = start, col
		if !l.readNumber() {
			return Token{Type: ILLEGAL, Lexeme: "-", Line: line, Col: col}
		}
		return Token{Type: NUMBER, Lexeme: string(l.source[start:l.pos]), Line: line, Col: col}
	case isWordStart(c):
		l.readWord()
		return Token{Type: IDENT, Lexeme: string(l.source[start:l.pos]), Line: line, Col: col}
	}

	return Token{Type: ILLEGAL, Lexeme: string(c), Line: line, Col: col}
}

func (l *Lexer) advance() rune {
	c := l.source[l.pos]
	l.pos++
	l.col++
	return c
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) skipSpaces() {
	for l.pos < len(l.source) {
		c := l.peek()
		switch {
		case c == '#':
			for l.pos < len(l.source) && l.peek() != '\n' {
				l.advance()
			}
		case c != '\n' && unicode.IsSpace(c):
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) readWord() {
	for l.pos < len(l.source) && isWordChar(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) readNumber() bool {
	if l.peek() == '-' {
		l.advance()
	}
	digits := 0
	for l.pos < len(l.source) && unicode.IsDigit(l.peek()) {
		l.advance()
		digits++
	}
	return digits > 0
}

func isWordStart(c rune) bool {
	return c == '_' || c == '.' || unicode.IsLetter(c)
}

func isWordChar(c rune) bool {
	return isWordStart(c) || unicode.IsDigit(c)
}

// ParseError reports a malformed listing
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}
