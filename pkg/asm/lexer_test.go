package asm

import "testing"

func TestLexer(t *testing.T) {
	input := `func f  # comment
.L1:
	movq $-3, -8(%rbp,%v2,4)
`

	tests := []struct {
		expectedType   TokenType
		expectedLexeme string
	}{
		{IDENT, "func"},
		{IDENT, "f"},
		{NEWLINE, "\n"},
		{IDENT, ".L1"},
		{COLON, ":"},
		{NEWLINE, "\n"},
		{IDENT, "movq"},
		{IMM, "-3"},
		{COMMA, ","},
		{NUMBER, "-8"},
		{LPAREN, "("},
		{REG, "rbp"},
		{COMMA, ","},
		{REG, "v2"},
		{COMMA, ","},
		{NUMBER, "4"},
		{RPAREN, ")"},
		{NEWLINE, "\n"},
		{EOF, ""},
	}

	l := NewLexer(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - wrong type. expected=%s, got=%s (%q)", i, tt.expectedType, tok.Type, tok.Lexeme)
		}
		if tok.Lexeme != tt.expectedLexeme {
			t.Fatalf("tests[%d] - wrong lexeme. expected=%q, got=%q", i, tt.expectedLexeme, tok.Lexeme)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("ret\n  addq %v1, %v2")
	l.NextToken() // ret
	l.NextToken() // newline
	tok := l.NextToken()
	if tok.Line != 2 || tok.Col != 3 {
		t.Errorf("addq at %d:%d, want 2:3", tok.Line, tok.Col)
	}
	tok = l.NextToken()
	if tok.Type != REG || tok.Col != 8 {
		t.Errorf("register at col %d (%s), want 8", tok.Col, tok.Type)
	}
}

func TestLexerIllegal(t *testing.T) {
	tests := []string{"%", "$x", "-", "@"}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if tok := NewLexer(in).NextToken(); tok.Type != ILLEGAL {
				t.Errorf("NextToken(%q) = %s, want illegal", in, tok.Type)
			}
		})
	}
}
