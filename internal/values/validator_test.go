package values

import "testing"

func TestValidateRefinedMinLength(t *testing.T) {
	v := NewValidator()
	typ := RefinedType{Base: PrimitiveType{Kind: PrimString}, Predicates: []TypePredicate{MinLength(3)}}
	cfg := DefaultTypeCheckingConfig()
	vc := CapabilityBoundaryContext("echo")

	if err := v.Validate(Str("hi"), typ, cfg, vc); err == nil {
		t.Fatalf("expected min-length violation for short string")
	} else {
		ve, ok := err.(*ValidationError)
		if !ok || ve.Kind != ErrPredicateViolation {
			t.Fatalf("expected PredicateViolation, got %v", err)
		}
	}

	if err := v.Validate(Str("hello"), typ, cfg, vc); err != nil {
		t.Fatalf("expected valid string to pass, got %v", err)
	}
}

func TestValidateSkipsCompileTimeVerifiedSimpleType(t *testing.T) {
	v := NewValidator()
	cfg := DefaultTypeCheckingConfig()
	cfg.SkipCompileTimeVerified = true
	vc := CompileTimeVerifiedContext()

	// Wrong type would normally fail, but a simple primitive type skips
	// validation entirely when compile-time verified.
	if err := v.Validate(Int(1), PrimitiveType{Kind: PrimString}, cfg, vc); err != nil {
		t.Fatalf("expected skip to suppress validation, got %v", err)
	}
}

func TestValidateNeverSkipsAtCapabilityBoundary(t *testing.T) {
	v := NewValidator()
	cfg := DefaultTypeCheckingConfig()
	cfg.SkipCompileTimeVerified = true
	vc := CapabilityBoundaryContext("math.add")
	vc.CompileTimeVerified = true

	err := v.Validate(Int(1), PrimitiveType{Kind: PrimString}, cfg, vc)
	if err == nil {
		t.Fatalf("expected capability boundary to force validation")
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := NewValidator()
	typ := RefinedType{Base: PrimitiveType{Kind: PrimInt}, Predicates: []TypePredicate{GreaterThan(0, false)}}
	cfg := DefaultTypeCheckingConfig()
	vc := ExternalDataContext("http.request")

	err1 := v.Validate(Int(5), typ, cfg, vc)
	err2 := v.Validate(Int(5), typ, cfg, vc)
	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("expected idempotent validation results, got %v then %v", err1, err2)
	}
}

func TestEqualFloatNeverEqualsInt(t *testing.T) {
	if Equal(Int(1), Float(1.0)) {
		t.Fatalf("Int(1) must not equal Float(1.0)")
	}
}

func TestIsSimple(t *testing.T) {
	if !IsSimple(PrimitiveType{Kind: PrimInt}) {
		t.Fatalf("primitive types should be simple")
	}
	refined := RefinedType{Base: PrimitiveType{Kind: PrimInt}, Predicates: []TypePredicate{GreaterThan(0, false)}}
	if IsSimple(refined) {
		t.Fatalf("refined types must never be simple")
	}
}
