// Package values defines the tagged-variant runtime value model shared by the
// AST evaluator and the IR runtime, plus the structural type validator that
// checks values against declared TypeExprs at capability boundaries.
package values

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Value is the closed set of runtime values the Language can produce and
// operate on. Implementations live only in this package.
type Value interface {
	valueTag()
	String() string
}

// Nil is the Language's null value.
type Nil struct{}

func (Nil) valueTag()      {}
func (Nil) String() string { return "nil" }

// Boolean wraps a bool.
type Boolean bool

func (Boolean) valueTag()        {}
func (b Boolean) String() string { return fmt.Sprintf("%t", bool(b)) }

// Int wraps a 64-bit integer.
type Int int64

func (Int) valueTag()        {}
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

// Float wraps a 64-bit float. Float never compares equal to Int under `=`.
type Float float64

func (Float) valueTag()        {}
func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }

// Str wraps a string.
type Str string

func (Str) valueTag()        {}
func (s Str) String() string { return string(s) }

// Keyword is an interned `:name` identifier.
type Keyword string

func (Keyword) valueTag()        {}
func (k Keyword) String() string { return ":" + string(k) }

// Symbol is an unevaluated identifier reference.
type Symbol string

func (Symbol) valueTag()        {}
func (s Symbol) String() string { return string(s) }

// Timestamp wraps a point in time.
type Timestamp time.Time

func (Timestamp) valueTag()        {}
func (t Timestamp) String() string { return time.Time(t).Format(time.RFC3339Nano) }

// UUID wraps a uuid.UUID value.
type UUID uuid.UUID

func (UUID) valueTag()        {}
func (u UUID) String() string { return uuid.UUID(u).String() }

// ResourceState is the lifecycle state of a ResourceHandle.
type ResourceState int

const (
	ResourceActive ResourceState = iota
	ResourceReleased
)

func (s ResourceState) String() string {
	if s == ResourceReleased {
		return "released"
	}
	return "active"
}

// ResourceHandle is a scoped, externally-cleaned-up resource reference.
// ResourceHandle is never invocable as a function.
type ResourceHandle struct {
	ID    string
	Type  string
	State ResourceState
}

func (*ResourceHandle) valueTag() {}
func (h *ResourceHandle) String() string {
	return fmt.Sprintf("#resource[%s:%s %s]", h.Type, h.ID, h.State)
}

// Vector is an ordered, indexable sequence.
type Vector []Value

func (Vector) valueTag() {}
func (v Vector) String() string {
	return collectionString("[", "]", len(v), func(i int) Value { return v[i] })
}

// List is semantically a sequence, distinct from Vector for pattern matching
// and the AST's list-literal construct.
type List []Value

func (List) valueTag() {}
func (l List) String() string {
	return collectionString("(", ")", len(l), func(i int) Value { return l[i] })
}

func collectionString(open, close string, n int, at func(int) Value) string {
	s := open
	for i := 0; i < n; i++ {
		if i > 0 {
			s += " "
		}
		s += at(i).String()
	}
	return s + close
}

// MapKeyKind discriminates the three key variants a Map may use.
type MapKeyKind int

const (
	MapKeyString MapKeyKind = iota
	MapKeyKeyword
	MapKeyInt
)

// MapKey is a comparable key usable directly as a Go map key.
type MapKey struct {
	Kind MapKeyKind
	S    string
	I    int64
}

func StringKey(s string) MapKey  { return MapKey{Kind: MapKeyString, S: s} }
func KeywordKey(k string) MapKey { return MapKey{Kind: MapKeyKeyword, S: k} }
func IntKey(i int64) MapKey      { return MapKey{Kind: MapKeyInt, I: i} }

func (k MapKey) String() string {
	switch k.Kind {
	case MapKeyKeyword:
		return ":" + k.S
	case MapKeyInt:
		return fmt.Sprintf("%d", k.I)
	default:
		return k.S
	}
}

// ToValue projects a MapKey back to the Value it was derived from.
func (k MapKey) ToValue() Value {
	switch k.Kind {
	case MapKeyKeyword:
		return Keyword(k.S)
	case MapKeyInt:
		return Int(k.I)
	default:
		return Str(k.S)
	}
}

// Map is a structural map keyed by String, Keyword, or Integer.
type Map map[MapKey]Value

func (Map) valueTag() {}
func (m Map) String() string {
	s := "{"
	first := true
	for k, v := range m {
		if !first {
			s += " "
		}
		first = false
		s += k.String() + " " + v.String()
	}
	return s + "}"
}

// Get retrieves a value by keyword name, the common case for `(:k m)`.
func (m Map) Get(keyword string) (Value, bool) {
	v, ok := m[KeywordKey(keyword)]
	return v, ok
}

// ErrorValue is the first-class representation of a runtime error surfaced
// through try/catch; :type names the error kind (see package runtimeerr).
type ErrorValue struct {
	Kind    string
	Message string
	Data    Value
}

func (*ErrorValue) valueTag() {}
func (e *ErrorValue) String() string {
	return fmt.Sprintf("#error{:type :%s :message %q}", e.Kind, e.Message)
}

// ToMap projects an ErrorValue to the Map shape pattern matching inspects.
func (e *ErrorValue) ToMap() Map {
	m := Map{
		KeywordKey("type"):    Keyword(e.Kind),
		KeywordKey("message"): Str(e.Message),
	}
	if e.Data != nil {
		m[KeywordKey("data")] = e.Data
	}
	return m
}

// Equal implements the Language's `=` semantics: structural equality on
// collections, and Float never equal to Int.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Keyword:
		bv, ok := b.(Keyword)
		return ok && av == bv
	case Symbol:
		bv, ok := b.(Symbol)
		return ok && av == bv
	case Vector:
		bv, ok := b.(Vector)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	case *ResourceHandle:
		bv, ok := b.(*ResourceHandle)
		return ok && av == bv
	default:
		return a == b
	}
}

// Truthy implements the Language's `if` semantics: Nil and false are falsy,
// everything else is truthy.
func Truthy(v Value) bool {
	switch vv := v.(type) {
	case Nil:
		return false
	case Boolean:
		return bool(vv)
	default:
		return true
	}
}

// TypeName returns the value's type name for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case Nil:
		return "nil"
	case Boolean:
		return "boolean"
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "string"
	case Keyword:
		return "keyword"
	case Symbol:
		return "symbol"
	case Timestamp:
		return "timestamp"
	case UUID:
		return "uuid"
	case *ResourceHandle:
		return "resource-handle"
	case Vector:
		return "vector"
	case List:
		return "list"
	case Map:
		return "map"
	case *ErrorValue:
		return "error"
	case Function:
		return "function"
	case *FunctionPlaceholder:
		return "function-placeholder"
	default:
		return fmt.Sprintf("%T", v)
	}
}
