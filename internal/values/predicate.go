package values

import (
	"fmt"
	"strings"
)

// PredicateKind is the closed set of TypePredicate variants.
type PredicateKind int

const (
	PredGreaterThan PredicateKind = iota
	PredGreaterEqual
	PredLessThan
	PredLessEqual
	PredEqual
	PredNotEqual
	PredInRange
	PredMinLength
	PredMaxLength
	PredExactLength
	PredMatchesRegex
	PredIsURL
	PredIsEmail
	PredMinCount
	PredMaxCount
	PredExactCount
	PredNonEmpty
	PredHasKey
	PredRequiredKeys
	PredCustom
)

func (k PredicateKind) String() string {
	names := [...]string{
		">", ">=", "<", "<=", "=", "!=", "in-range",
		"min-length", "max-length", "exact-length", "matches-regex",
		"is-url", "is-email", "min-count", "max-count", "exact-count",
		"non-empty", "has-key", "required-keys", "custom",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// TypePredicate is one refinement constraint on a base type.
type TypePredicate struct {
	Kind PredicateKind

	// Numeric operands (>, >=, <, <=, =, !=, in-range).
	NumThreshold   float64
	NumIsFloat     bool
	RangeMin       float64
	RangeMax       float64

	// String/collection length operands.
	Length int
	Regex  string

	// has-key / required-keys.
	Keys []string

	// custom predicate name, dispatched through a registered function.
	CustomName string
}

func GreaterThan(n float64, isFloat bool) TypePredicate {
	return TypePredicate{Kind: PredGreaterThan, NumThreshold: n, NumIsFloat: isFloat}
}
func MinLength(n int) TypePredicate   { return TypePredicate{Kind: PredMinLength, Length: n} }
func MaxLength(n int) TypePredicate   { return TypePredicate{Kind: PredMaxLength, Length: n} }
func ExactLength(n int) TypePredicate { return TypePredicate{Kind: PredExactLength, Length: n} }
func MatchesRegex(pattern string) TypePredicate {
	return TypePredicate{Kind: PredMatchesRegex, Regex: pattern}
}
func NonEmpty() TypePredicate { return TypePredicate{Kind: PredNonEmpty} }
func HasKey(k string) TypePredicate {
	return TypePredicate{Kind: PredHasKey, Keys: []string{k}}
}
func RequiredKeys(ks ...string) TypePredicate {
	return TypePredicate{Kind: PredRequiredKeys, Keys: ks}
}

// Describe renders the predicate with its operand, e.g. "min-length 3" or
// ">= 5", the form a ValidationError's Predicate field carries so a caught
// error Value names exactly which constraint failed.
func (p TypePredicate) Describe() string {
	switch p.Kind {
	case PredGreaterThan, PredGreaterEqual, PredLessThan, PredLessEqual, PredEqual, PredNotEqual:
		return fmt.Sprintf("%s %s", p.Kind, formatNum(p.NumThreshold, p.NumIsFloat))
	case PredInRange:
		return fmt.Sprintf("in-range %s %s", formatNum(p.RangeMin, p.NumIsFloat), formatNum(p.RangeMax, p.NumIsFloat))
	case PredMinLength, PredMaxLength, PredExactLength, PredMinCount, PredMaxCount, PredExactCount:
		return fmt.Sprintf("%s %d", p.Kind, p.Length)
	case PredMatchesRegex:
		return fmt.Sprintf("matches-regex %q", p.Regex)
	case PredHasKey:
		return fmt.Sprintf("has-key %s", strings.Join(p.Keys, " "))
	case PredRequiredKeys:
		return fmt.Sprintf("required-keys %s", strings.Join(p.Keys, " "))
	case PredCustom:
		return fmt.Sprintf("custom %s", p.CustomName)
	default:
		return p.Kind.String()
	}
}

func formatNum(n float64, isFloat bool) string {
	if isFloat {
		return fmt.Sprintf("%g", n)
	}
	return fmt.Sprintf("%d", int64(n))
}
