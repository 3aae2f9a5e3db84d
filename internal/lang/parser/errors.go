package parser

import (
	"fmt"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
)

// ErrorKind is the closed set of parser error variants.
type ErrorKind int

const (
	InvalidInput ErrorKind = iota
	MissingToken
)

// Error is a parser/lexer error carrying an optional source span.
type Error struct {
	Kind    ErrorKind
	Message string
	Token   string
	Span    *ast.SourceSpan
}

func (e *Error) Error() string {
	if e.Kind == MissingToken {
		return fmt.Sprintf("missing token %q: %s", e.Token, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

func invalidInput(span ast.SourceSpan, format string, args ...interface{}) *Error {
	s := span
	return &Error{Kind: InvalidInput, Message: fmt.Sprintf(format, args...), Span: &s}
}

func missingToken(span ast.SourceSpan, token string) *Error {
	s := span
	return &Error{Kind: MissingToken, Token: token, Message: fmt.Sprintf("expected %q", token), Span: &s}
}
