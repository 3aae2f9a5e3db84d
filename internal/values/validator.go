package values

import (
	"fmt"
	"net/url"
	"regexp"
)

// ValidationLevel trades validation thoroughness for speed.
type ValidationLevel int

const (
	ValidationBasic ValidationLevel = iota
	ValidationStandard
	ValidationStrict
)

// TypeCheckingConfig controls when runtime validation may be skipped.
type TypeCheckingConfig struct {
	SkipCompileTimeVerified    bool
	EnforceCapabilityBoundaries bool
	ValidateExternalData       bool
	ValidationLevel            ValidationLevel
}

// DefaultTypeCheckingConfig matches the conservative defaults used across
// capability boundaries: never skip there, always validate external data,
// Standard-level predicate checking otherwise.
func DefaultTypeCheckingConfig() TypeCheckingConfig {
	return TypeCheckingConfig{
		SkipCompileTimeVerified:     false,
		EnforceCapabilityBoundaries: true,
		ValidateExternalData:       true,
		ValidationLevel:            ValidationStandard,
	}
}

// TrustLevel records how much a value's origin should be trusted.
type TrustLevel int

const (
	TrustTrusted TrustLevel = iota
	TrustVerified
	TrustUntrusted
)

// VerificationContext records why a particular validation is happening.
type VerificationContext struct {
	CompileTimeVerified bool
	IsCapabilityBoundary bool
	IsExternalData      bool
	SourceLocation      string
	TrustLevel          TrustLevel
}

func CapabilityBoundaryContext(capabilityID string) VerificationContext {
	return VerificationContext{
		IsCapabilityBoundary: true,
		SourceLocation:       "capability:" + capabilityID,
		TrustLevel:           TrustUntrusted,
	}
}

func ExternalDataContext(source string) VerificationContext {
	return VerificationContext{
		IsExternalData: true,
		SourceLocation: source,
		TrustLevel:     TrustUntrusted,
	}
}

func CompileTimeVerifiedContext() VerificationContext {
	return VerificationContext{CompileTimeVerified: true, TrustLevel: TrustTrusted}
}

// ShouldSkipValidation implements the validation skip policy: never skip at
// a capability boundary or for external data when the config enforces it;
// otherwise skip only if compile-time verified and the optimization is
// enabled.
func (vc VerificationContext) ShouldSkipValidation(cfg TypeCheckingConfig) bool {
	if vc.IsCapabilityBoundary && cfg.EnforceCapabilityBoundaries {
		return false
	}
	if vc.IsExternalData && cfg.ValidateExternalData {
		return false
	}
	return cfg.SkipCompileTimeVerified && vc.CompileTimeVerified
}

// ValidationErrorKind is the closed set of validator error kinds.
type ValidationErrorKind int

const (
	ErrTypeMismatch ValidationErrorKind = iota
	ErrPredicateViolation
	ErrShapeViolation
	ErrInvalidRegexPattern
	ErrMissingRequiredKey
	ErrUnknownPredicate
)

// ValidationError is the error type returned by Validate.
type ValidationError struct {
	Kind     ValidationErrorKind
	Expected string
	Actual   string
	Path     string
	Predicate string
	Value    string
	ExpectedShape []Dim
	ActualShape   []int
	Pattern  string
	Key      string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrTypeMismatch:
		return fmt.Sprintf("type mismatch at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
	case ErrPredicateViolation:
		return fmt.Sprintf("predicate violation at %s: %s failed for value %s", e.Path, e.Predicate, e.Value)
	case ErrShapeViolation:
		return fmt.Sprintf("shape violation at %s: expected %v, got %v", e.Path, e.ExpectedShape, e.ActualShape)
	case ErrInvalidRegexPattern:
		return fmt.Sprintf("invalid regex pattern: %s", e.Pattern)
	case ErrMissingRequiredKey:
		return fmt.Sprintf("missing required key :%s at %s", e.Key, e.Path)
	case ErrUnknownPredicate:
		return fmt.Sprintf("unknown predicate: %s", e.Predicate)
	default:
		return "validation error"
	}
}

// CustomPredicate is a named, side-effect-free predicate function
// registered for TypePredicate{Kind: PredCustom}.
type CustomPredicate func(Value) bool

// Validator validates Values against TypeExprs according to a
// TypeCheckingConfig and VerificationContext.
type Validator struct {
	custom map[string]CustomPredicate
	regexCache map[string]*regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		custom:     make(map[string]CustomPredicate),
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// RegisterCustomPredicate adds a named predicate usable by TypePredicate{Kind: PredCustom}.
func (v *Validator) RegisterCustomPredicate(name string, fn CustomPredicate) {
	v.custom[name] = fn
}

// Validate checks value against t under cfg/vc, implementing the skip
// policy and the validation levels: Basic skips refinement predicates;
// Standard and Strict both check them and otherwise behave the same.
func (v *Validator) Validate(value Value, t TypeExpr, cfg TypeCheckingConfig, vc VerificationContext) error {
	if vc.ShouldSkipValidation(cfg) && IsSimple(t) {
		return nil
	}
	return v.validateAt(value, t, cfg, vc, "$")
}

func (v *Validator) validateAt(value Value, t TypeExpr, cfg TypeCheckingConfig, vc VerificationContext, path string) error {
	switch tt := t.(type) {
	case AnyType:
		return nil
	case NeverType:
		return &ValidationError{Kind: ErrTypeMismatch, Expected: "Never", Actual: TypeName(value), Path: path}
	case PrimitiveType:
		return v.validatePrimitive(value, tt, path)
	case VectorType:
		vec, ok := value.(Vector)
		if !ok {
			return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: TypeName(value), Path: path}
		}
		for i, e := range vec {
			if err := v.validateAt(e, tt.Elem, cfg, vc, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case TupleType:
		vec, ok := value.(Vector)
		if !ok || len(vec) != len(tt.Elems) {
			return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: TypeName(value), Path: path}
		}
		for i, e := range tt.Elems {
			if err := v.validateAt(vec[i], e, cfg, vc, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case MapType:
		return v.validateMap(value, tt, cfg, vc, path)
	case ArrayType:
		return v.validateArray(value, tt, cfg, vc, path)
	case OptionalType:
		if _, isNil := value.(Nil); isNil {
			return nil
		}
		return v.validateAt(value, tt.Inner, cfg, vc, path)
	case UnionType:
		var lastErr error
		for _, opt := range tt.Options {
			if err := v.validateAt(value, opt, cfg, vc, path); err == nil {
				return nil
			} else {
				lastErr = err
			}
		}
		if lastErr == nil {
			lastErr = &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: TypeName(value), Path: path}
		}
		return lastErr
	case IntersectionType:
		for _, p := range tt.Parts {
			if err := v.validateAt(value, p, cfg, vc, path); err != nil {
				return err
			}
		}
		return nil
	case EnumType:
		for _, lit := range tt.Literals {
			if Equal(value, lit) {
				return nil
			}
		}
		return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: value.String(), Path: path}
	case LiteralType:
		if !Equal(value, tt.Literal) {
			return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: value.String(), Path: path}
		}
		return nil
	case RefinedType:
		if err := v.validateAt(value, tt.Base, cfg, vc, path); err != nil {
			return err
		}
		if cfg.ValidationLevel == ValidationBasic {
			return nil
		}
		for _, p := range tt.Predicates {
			if err := v.checkPredicate(value, p, path); err != nil {
				return err
			}
		}
		return nil
	case ResourceType:
		h, ok := value.(*ResourceHandle)
		if !ok || h.Type != tt.Name {
			return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: TypeName(value), Path: path}
		}
		return nil
	case FunctionType:
		if _, ok := value.(Function); !ok {
			return &ValidationError{Kind: ErrTypeMismatch, Expected: tt.String(), Actual: TypeName(value), Path: path}
		}
		return nil
	default:
		return &ValidationError{Kind: ErrTypeMismatch, Expected: fmt.Sprintf("%T", t), Actual: TypeName(value), Path: path}
	}
}

func (v *Validator) validatePrimitive(value Value, t PrimitiveType, path string) error {
	ok := false
	switch t.Kind {
	case PrimInt:
		_, ok = value.(Int)
	case PrimFloat:
		_, ok = value.(Float)
	case PrimString:
		_, ok = value.(Str)
	case PrimBool:
		_, ok = value.(Boolean)
	case PrimNil:
		_, ok = value.(Nil)
	case PrimKeyword:
		_, ok = value.(Keyword)
	case PrimSymbol:
		_, ok = value.(Symbol)
	}
	if !ok {
		return &ValidationError{Kind: ErrTypeMismatch, Expected: t.String(), Actual: TypeName(value), Path: path}
	}
	return nil
}

func (v *Validator) validateMap(value Value, t MapType, cfg TypeCheckingConfig, vc VerificationContext, path string) error {
	m, ok := value.(Map)
	if !ok {
		return &ValidationError{Kind: ErrTypeMismatch, Expected: t.String(), Actual: TypeName(value), Path: path}
	}
	declared := make(map[MapKey]bool, len(t.Entries))
	for _, entry := range t.Entries {
		declared[entry.Key] = true
		fv, present := m[entry.Key]
		if !present {
			if entry.Optional {
				continue
			}
			return &ValidationError{Kind: ErrMissingRequiredKey, Key: entry.Key.String(), Path: path}
		}
		// Present required and optional keys are validated at every
		// level.
		if err := v.validateAt(fv, entry.Type, cfg, vc, path+"."+entry.Key.String()); err != nil {
			return err
		}
	}
	if t.Wildcard == nil {
		return nil
	}
	for k, fv := range m {
		if declared[k] {
			continue
		}
		if err := v.validateAt(fv, t.Wildcard, cfg, vc, path+"."+k.String()); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateArray(value Value, t ArrayType, cfg TypeCheckingConfig, vc VerificationContext, path string) error {
	vec, ok := value.(Vector)
	if !ok {
		return &ValidationError{Kind: ErrTypeMismatch, Expected: t.String(), Actual: TypeName(value), Path: path}
	}
	if len(t.Shape) >= 1 {
		d := t.Shape[0]
		if d.Fixed && len(vec) != d.N {
			return &ValidationError{
				Kind: ErrShapeViolation, ExpectedShape: t.Shape,
				ActualShape: []int{len(vec)}, Path: path,
			}
		}
	}
	if len(t.Shape) <= 1 {
		for i, e := range vec {
			if err := v.validateAt(e, t.Elem, cfg, vc, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	// Multi-dimensional: recurse treating each element as the next-lower
	// dimension's array, accepted structurally.
	sub := ArrayType{Elem: t.Elem, Shape: t.Shape[1:]}
	for i, e := range vec {
		if err := v.validateAt(e, sub, cfg, vc, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkPredicate(value Value, p TypePredicate, path string) error {
	ok, err := v.evalPredicate(value, p)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Kind: ErrPredicateViolation, Predicate: p.Describe(), Value: value.String(), Path: path}
	}
	return nil
}

func (v *Validator) evalPredicate(value Value, p TypePredicate) (bool, error) {
	switch p.Kind {
	case PredGreaterThan, PredGreaterEqual, PredLessThan, PredLessEqual, PredEqual, PredNotEqual:
		return v.evalNumeric(value, p)
	case PredInRange:
		n, isFloat, ok := numericOf(value)
		if !ok {
			return false, nil
		}
		if isFloat != p.NumIsFloat {
			return false, nil
		}
		return n >= p.RangeMin && n <= p.RangeMax, nil
	case PredMinLength:
		s, ok := value.(Str)
		return ok && len(string(s)) >= p.Length, nil
	case PredMaxLength:
		s, ok := value.(Str)
		return ok && len(string(s)) <= p.Length, nil
	case PredExactLength:
		s, ok := value.(Str)
		return ok && len(string(s)) == p.Length, nil
	case PredMatchesRegex:
		re, err := v.compileRegex(p.Regex)
		if err != nil {
			return false, err
		}
		s, ok := value.(Str)
		return ok && re.MatchString(string(s)), nil
	case PredIsURL:
		s, ok := value.(Str)
		if !ok {
			return false, nil
		}
		u, err := url.Parse(string(s))
		return err == nil && u.Scheme != "" && u.Host != "", nil
	case PredIsEmail:
		s, ok := value.(Str)
		if !ok {
			return false, nil
		}
		return emailRegex.MatchString(string(s)), nil
	case PredMinCount:
		n, ok := collectionLen(value)
		return ok && n >= p.Length, nil
	case PredMaxCount:
		n, ok := collectionLen(value)
		return ok && n <= p.Length, nil
	case PredExactCount:
		n, ok := collectionLen(value)
		return ok && n == p.Length, nil
	case PredNonEmpty:
		n, ok := collectionLen(value)
		return ok && n > 0, nil
	case PredHasKey:
		m, ok := value.(Map)
		if !ok || len(p.Keys) == 0 {
			return false, nil
		}
		_, present := m.Get(p.Keys[0])
		return present, nil
	case PredRequiredKeys:
		m, ok := value.(Map)
		if !ok {
			return false, nil
		}
		for _, k := range p.Keys {
			if _, present := m.Get(k); !present {
				return false, nil
			}
		}
		return true, nil
	case PredCustom:
		fn, ok := v.custom[p.CustomName]
		if !ok {
			return false, &ValidationError{Kind: ErrUnknownPredicate, Predicate: p.CustomName}
		}
		return fn(value), nil
	default:
		return false, &ValidationError{Kind: ErrUnknownPredicate, Predicate: p.Kind.String()}
	}
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func (v *Validator) compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ValidationError{Kind: ErrInvalidRegexPattern, Pattern: pattern}
	}
	v.regexCache[pattern] = re
	return re, nil
}

// evalNumeric implements type-homogeneous predicate arithmetic: `>` on
// integers compares against an integer threshold, on floats against a float
// threshold.
func (v *Validator) evalNumeric(value Value, p TypePredicate) (bool, error) {
	n, isFloat, ok := numericOf(value)
	if !ok || isFloat != p.NumIsFloat {
		return false, nil
	}
	switch p.Kind {
	case PredGreaterThan:
		return n > p.NumThreshold, nil
	case PredGreaterEqual:
		return n >= p.NumThreshold, nil
	case PredLessThan:
		return n < p.NumThreshold, nil
	case PredLessEqual:
		return n <= p.NumThreshold, nil
	case PredEqual:
		return n == p.NumThreshold, nil
	case PredNotEqual:
		return n != p.NumThreshold, nil
	default:
		return false, nil
	}
}

func numericOf(v Value) (n float64, isFloat bool, ok bool) {
	switch vv := v.(type) {
	case Int:
		return float64(vv), false, true
	case Float:
		return float64(vv), true, true
	default:
		return 0, false, false
	}
}

func collectionLen(v Value) (int, bool) {
	switch vv := v.(type) {
	case Vector:
		return len(vv), true
	case List:
		return len(vv), true
	case Map:
		return len(vv), true
	case Str:
		return len(string(vv)), true
	default:
		return 0, false
	}
}
