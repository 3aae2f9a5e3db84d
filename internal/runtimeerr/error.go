// Package runtimeerr defines the closed taxonomy of Language runtime errors
// and their lossless conversion to/from first-class Language error Values
// so try/catch can inspect them.
package runtimeerr

import (
	"fmt"

	"github.com/antigravity-dev/ccos/internal/values"
)

// Kind is the closed set of runtime error kinds.
type Kind string

const (
	TypeError             Kind = "type-error"
	UndefinedSymbol       Kind = "undefined-symbol"
	SymbolNotFound        Kind = "symbol-not-found"
	ModuleNotFound        Kind = "module-not-found"
	ArityMismatch         Kind = "arity-mismatch"
	DivisionByZero        Kind = "division-by-zero"
	IndexOutOfBounds      Kind = "index-out-of-bounds"
	KeyNotFound           Kind = "key-not-found"
	ResourceError         Kind = "resource-error"
	IOError               Kind = "io-error"
	NetworkError          Kind = "network-error"
	JSONError             Kind = "json-error"
	MatchError            Kind = "match-error"
	AgentDiscoveryError   Kind = "agent-discovery-error"
	AgentCommunicationErr Kind = "agent-communication-error"
	AgentProfileError     Kind = "agent-profile-error"
	ApplicationError      Kind = "application-error"
	NotCallable           Kind = "not-callable"
	NotImplemented        Kind = "not-implemented"
	InternalError         Kind = "internal-error"
	StackOverflow         Kind = "stack-overflow"
	InvalidProgram        Kind = "invalid-program"
	SecurityError         Kind = "security-error"
)

// Error is a runtime error carrying the same Kind/Message/Data shape as the
// first-class error Value surfaced through try/catch.
type Error struct {
	Kind    Kind
	Message string
	Data    values.Value
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WithData(kind Kind, data values.Value, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Data: data}
}

// ToValue converts the error to the structured Map shape pattern matching
// inspects: {:type <kind> :message <string> :data <value>?}.
func (e *Error) ToValue() *values.ErrorValue {
	return &values.ErrorValue{Kind: string(e.Kind), Message: e.Message, Data: e.Data}
}

// FromValue lifts a first-class error Value back into a runtime Error, used
// when a caught error is re-raised or propagated.
func FromValue(v *values.ErrorValue) *Error {
	return &Error{Kind: Kind(v.Kind), Message: v.Message, Data: v.Data}
}

// ApplicationErrorValue builds the user-raised application-error shape with
// an explicit error_type: `application-error{error_type, message, data?}`.
func ApplicationErrorValue(errorType, message string, data values.Value) *Error {
	m := values.Map{values.KeywordKey("error_type"): values.Keyword(errorType)}
	if data != nil {
		m[values.KeywordKey("data")] = data
	}
	return WithData(ApplicationError, m, "%s", message)
}
