// Package stdlib is the standard library shared by every interpreter
// implementation over the Language: the AST evaluator (internal/lang/eval)
// and the IR runtime (internal/lang/irruntime) both load the same builtin
// set from a single shared registry, regardless of which evaluator consumes
// it.
package stdlib

import (
	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Builtins returns a fresh set of the standard library's native functions:
// arithmetic, comparison, and the small set of collection operations the
// seed scenarios exercise.
func Builtins() map[string]values.Function {
	lib := map[string]values.Function{}
	def := func(name string, arity values.Arity, h values.BuiltinHandler) {
		lib[name] = &values.BuiltinFunction{Name: name, Handler: h, ArityV: arity}
	}

	def("+", values.VariadicArity(0), builtinArith("+", 0, func(a, b float64) float64 { return a + b }))
	def("-", values.VariadicArity(1), builtinSub)
	def("*", values.VariadicArity(0), builtinArith("*", 1, func(a, b float64) float64 { return a * b }))
	def("/", values.VariadicArity(1), builtinDiv)

	def("=", values.VariadicArity(1), builtinEq)
	def("not=", values.VariadicArity(1), builtinNeq)
	def("<", values.VariadicArity(1), builtinCompare("<", func(a, b float64) bool { return a < b }))
	def("<=", values.VariadicArity(1), builtinCompare("<=", func(a, b float64) bool { return a <= b }))
	def(">", values.VariadicArity(1), builtinCompare(">", func(a, b float64) bool { return a > b }))
	def(">=", values.VariadicArity(1), builtinCompare(">=", func(a, b float64) bool { return a >= b }))

	def("not", values.FixedArity(1), func(args []values.Value) (values.Value, error) {
		return values.Boolean(!values.Truthy(args[0])), nil
	})
	def("str", values.VariadicArity(0), func(args []values.Value) (values.Value, error) {
		out := ""
		for _, a := range args {
			out += a.String()
		}
		return values.Str(out), nil
	})
	def("count", values.FixedArity(1), builtinCount)
	def("get", values.VariadicArity(2), builtinGet)
	def("conj", values.FixedArity(2), builtinConj)
	def("first", values.FixedArity(1), builtinFirst)
	def("rest", values.FixedArity(1), builtinRest)

	return lib
}

func numeric(v values.Value) (float64, bool, error) {
	switch n := v.(type) {
	case values.Int:
		return float64(n), false, nil
	case values.Float:
		return float64(n), true, nil
	default:
		return 0, false, runtimeerr.New(runtimeerr.TypeError, "expected number, got %s", values.TypeName(v))
	}
}

func wrapNumeric(f float64, isFloat bool) values.Value {
	if isFloat {
		return values.Float(f)
	}
	return values.Int(int64(f))
}

func builtinArith(name string, identity float64, op func(a, b float64) float64) values.BuiltinHandler {
	return func(args []values.Value) (values.Value, error) {
		acc := identity
		anyFloat := false
		for _, a := range args {
			n, isFloat, err := numeric(a)
			if err != nil {
				return nil, err
			}
			anyFloat = anyFloat || isFloat
			acc = op(acc, n)
		}
		return wrapNumeric(acc, anyFloat), nil
	}
}

func builtinSub(args []values.Value) (values.Value, error) {
	first, anyFloat, err := numeric(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return wrapNumeric(-first, anyFloat), nil
	}
	acc := first
	for _, a := range args[1:] {
		n, isFloat, err := numeric(a)
		if err != nil {
			return nil, err
		}
		anyFloat = anyFloat || isFloat
		acc -= n
	}
	return wrapNumeric(acc, anyFloat), nil
}

func builtinDiv(args []values.Value) (values.Value, error) {
	first, anyFloat, err := numeric(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		if first == 0 {
			return nil, runtimeerr.New(runtimeerr.DivisionByZero, "division by zero")
		}
		return wrapNumeric(1/first, true), nil
	}
	acc := first
	for _, a := range args[1:] {
		n, isFloat, err := numeric(a)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, runtimeerr.New(runtimeerr.DivisionByZero, "division by zero")
		}
		anyFloat = anyFloat || isFloat
		acc /= n
	}
	return wrapNumeric(acc, anyFloat), nil
}

func builtinEq(args []values.Value) (values.Value, error) {
	for i := 1; i < len(args); i++ {
		if !values.Equal(args[0], args[i]) {
			return values.Boolean(false), nil
		}
	}
	return values.Boolean(true), nil
}

func builtinNeq(args []values.Value) (values.Value, error) {
	v, err := builtinEq(args)
	if err != nil {
		return nil, err
	}
	return values.Boolean(!bool(v.(values.Boolean))), nil
}

func builtinCompare(name string, cmp func(a, b float64) bool) values.BuiltinHandler {
	return func(args []values.Value) (values.Value, error) {
		for i := 0; i < len(args)-1; i++ {
			a, _, err := numeric(args[i])
			if err != nil {
				return nil, err
			}
			b, _, err := numeric(args[i+1])
			if err != nil {
				return nil, err
			}
			if !cmp(a, b) {
				return values.Boolean(false), nil
			}
		}
		return values.Boolean(true), nil
	}
}

func builtinCount(args []values.Value) (values.Value, error) {
	switch v := args[0].(type) {
	case values.Vector:
		return values.Int(len(v)), nil
	case values.List:
		return values.Int(len(v)), nil
	case values.Map:
		return values.Int(len(v)), nil
	case values.Str:
		return values.Int(len([]rune(string(v)))), nil
	case values.Nil:
		return values.Int(0), nil
	default:
		return nil, runtimeerr.New(runtimeerr.TypeError, "count: unsupported type %s", values.TypeName(args[0]))
	}
}

func mapKey(v values.Value) (values.MapKey, error) {
	switch vv := v.(type) {
	case values.Str:
		return values.StringKey(string(vv)), nil
	case values.Keyword:
		return values.KeywordKey(string(vv)), nil
	case values.Int:
		return values.IntKey(int64(vv)), nil
	default:
		return values.MapKey{}, runtimeerr.New(runtimeerr.TypeError, "invalid map key type %s", values.TypeName(v))
	}
}

func builtinGet(args []values.Value) (values.Value, error) {
	var def values.Value = values.Nil{}
	if len(args) == 3 {
		def = args[2]
	}
	switch coll := args[0].(type) {
	case values.Map:
		key, err := mapKey(args[1])
		if err != nil {
			return def, nil
		}
		if v, ok := coll[key]; ok {
			return v, nil
		}
		return def, nil
	case values.Vector:
		idx, ok := args[1].(values.Int)
		if !ok || int(idx) < 0 || int(idx) >= len(coll) {
			return def, nil
		}
		return coll[idx], nil
	default:
		return nil, runtimeerr.New(runtimeerr.TypeError, "get: unsupported collection type %s", values.TypeName(args[0]))
	}
}

func builtinConj(args []values.Value) (values.Value, error) {
	switch coll := args[0].(type) {
	case values.Vector:
		return append(append(values.Vector{}, coll...), args[1]), nil
	case values.List:
		return append(values.List{args[1]}, coll...), nil
	default:
		return nil, runtimeerr.New(runtimeerr.TypeError, "conj: unsupported collection type %s", values.TypeName(args[0]))
	}
}

func builtinFirst(args []values.Value) (values.Value, error) {
	switch coll := args[0].(type) {
	case values.Vector:
		if len(coll) == 0 {
			return values.Nil{}, nil
		}
		return coll[0], nil
	case values.List:
		if len(coll) == 0 {
			return values.Nil{}, nil
		}
		return coll[0], nil
	default:
		return nil, runtimeerr.New(runtimeerr.TypeError, "first: unsupported collection type %s", values.TypeName(args[0]))
	}
}

func builtinRest(args []values.Value) (values.Value, error) {
	switch coll := args[0].(type) {
	case values.Vector:
		if len(coll) == 0 {
			return values.Vector{}, nil
		}
		return append(values.Vector{}, coll[1:]...), nil
	case values.List:
		if len(coll) == 0 {
			return values.List{}, nil
		}
		return append(values.List{}, coll[1:]...), nil
	default:
		return nil, runtimeerr.New(runtimeerr.TypeError, "rest: unsupported collection type %s", values.TypeName(args[0]))
	}
}
