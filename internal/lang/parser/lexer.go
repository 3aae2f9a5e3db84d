package parser

import (
	"strings"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
)

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
	tokSymbol
	tokKeyword
	tokString
	tokInt
	tokFloat
	tokBool
	tokNil
	tokEOF
)

type token struct {
	kind       tokenKind
	text       string
	line, col  int
	endLine    int
	endCol     int
}

// lexer tokenizes Language source. It preserves line/column for spans.
type lexer struct {
	src        []rune
	pos        int
	line, col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() (rune, bool) {
	r, ok := l.peekRune()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, true
}

func isSymbolChar(r rune) bool {
	if strings.ContainsRune("()[]{}\"'; \t\n\r,", r) {
		return false
	}
	return true
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		r, ok := l.peekRune()
		if !ok {
			return
		}
		if r == ';' {
			for {
				r, ok := l.peekRune()
				if !ok || r == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' {
			l.advance()
			continue
		}
		return
	}
}

func (l *lexer) next() (token, error) {
	l.skipWhitespaceAndComments()
	startLine, startCol := l.line, l.col
	r, ok := l.peekRune()
	if !ok {
		return token{kind: tokEOF, line: startLine, col: startCol, endLine: startLine, endCol: startCol}, nil
	}

	switch r {
	case '(':
		l.advance()
		return token{kind: tokLParen, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case ')':
		l.advance()
		return token{kind: tokRParen, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case '[':
		l.advance()
		return token{kind: tokLBracket, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case ']':
		l.advance()
		return token{kind: tokRBracket, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case '{':
		l.advance()
		return token{kind: tokLBrace, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case '}':
		l.advance()
		return token{kind: tokRBrace, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case '"':
		return l.lexString(startLine, startCol)
	case ':':
		l.advance()
		var sb strings.Builder
		for {
			r, ok := l.peekRune()
			if !ok || !isSymbolChar(r) {
				break
			}
			sb.WriteRune(r)
			l.advance()
		}
		if sb.Len() == 0 {
			return token{}, invalidInput(spanOf(startLine, startCol, l.line, l.col), "empty keyword literal")
		}
		return token{kind: tokKeyword, text: sb.String(), line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	default:
		var sb strings.Builder
		for {
			r, ok := l.peekRune()
			if !ok || !isSymbolChar(r) {
				break
			}
			sb.WriteRune(r)
			l.advance()
		}
		text := sb.String()
		if text == "" {
			return token{}, invalidInput(spanOf(startLine, startCol, l.line, l.col), "unexpected character %q", r)
		}
		return l.classifyAtom(text, startLine, startCol)
	}
}

func (l *lexer) classifyAtom(text string, startLine, startCol int) (token, error) {
	switch text {
	case "true", "false":
		return token{kind: tokBool, text: text, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	case "nil":
		return token{kind: tokNil, text: text, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	}
	if isNumeric(text) {
		if strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x") {
			return token{kind: tokFloat, text: text, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
		}
		return token{kind: tokInt, text: text, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
	}
	return token{kind: tokSymbol, text: text, line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	if i >= len(s) {
		return false
	}
	sawDigit := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
		case c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+':
			// allowed within a numeric literal
		default:
			return false
		}
	}
	return sawDigit
}

func (l *lexer) lexString(startLine, startCol int) (token, error) {
	l.advance() // consume opening quote
	var sb strings.Builder
	for {
		r, ok := l.advance()
		if !ok {
			return token{}, missingToken(spanOf(startLine, startCol, l.line, l.col), "\"")
		}
		if r == '"' {
			return token{kind: tokString, text: sb.String(), line: startLine, col: startCol, endLine: l.line, endCol: l.col}, nil
		}
		if r == '\\' {
			esc, ok := l.advance()
			if !ok {
				return token{}, missingToken(spanOf(startLine, startCol, l.line, l.col), "\"")
			}
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}

func spanOf(startLine, startCol, endLine, endCol int) ast.SourceSpan {
	return ast.SourceSpan{StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol}
}
