package orchestrator

import "github.com/antigravity-dev/ccos/internal/lang/ast"

// staticCapabilityIDs walks prog and collects every capability id used in a
// `(call :id ...)` site whose keyword is a literal (not computed), the same
// shape eval.evalHostCall and ir.buildCall special-case out of a plain Call.
func staticCapabilityIDs(prog ast.Program) []string {
	var ids []string
	for _, f := range prog.Forms {
		walkCapabilityIDs(f, &ids)
	}
	return ids
}

func walkCapabilityIDs(n ast.Node, out *[]string) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case ast.Literal, ast.SymbolRef, ast.KeywordRef:
		// leaves
	case ast.VectorExpr:
		for _, e := range v.Elements {
			walkCapabilityIDs(e, out)
		}
	case ast.ListExpr:
		for _, e := range v.Elements {
			walkCapabilityIDs(e, out)
		}
	case ast.MapExpr:
		for _, entry := range v.Entries {
			walkCapabilityIDs(entry.Key, out)
			walkCapabilityIDs(entry.Value, out)
		}
	case ast.Call:
		if sym, ok := v.Fn.(ast.SymbolRef); ok && sym.Name == "call" && len(v.Args) > 0 {
			if kw, ok := v.Args[0].(ast.KeywordRef); ok {
				*out = append(*out, kw.Name)
			}
		}
		walkCapabilityIDs(v.Fn, out)
		for _, a := range v.Args {
			walkCapabilityIDs(a, out)
		}
	case ast.If:
		walkCapabilityIDs(v.Cond, out)
		walkCapabilityIDs(v.Then, out)
		walkCapabilityIDs(v.Else, out)
	case ast.Let:
		for _, b := range v.Bindings {
			walkCapabilityIDs(b.Init, out)
		}
		for _, b := range v.Body {
			walkCapabilityIDs(b, out)
		}
	case ast.Do:
		for _, b := range v.Body {
			walkCapabilityIDs(b, out)
		}
	case ast.Fn:
		for _, b := range v.Body {
			walkCapabilityIDs(b, out)
		}
	case ast.Def:
		walkCapabilityIDs(v.Init, out)
	case ast.Defn:
		for _, b := range v.Body {
			walkCapabilityIDs(b, out)
		}
	case ast.Match:
		walkCapabilityIDs(v.Expr, out)
		for _, c := range v.Clauses {
			walkCapabilityIDs(c.Guard, out)
			walkCapabilityIDs(c.Body, out)
		}
	case ast.TryCatch:
		walkCapabilityIDs(v.Try, out)
		for _, c := range v.Catches {
			walkCapabilityIDs(c.Body, out)
		}
		walkCapabilityIDs(v.Finally, out)
	case ast.WithResource:
		walkCapabilityIDs(v.Init, out)
		for _, b := range v.Body {
			walkCapabilityIDs(b, out)
		}
	case ast.Parallel:
		for _, b := range v.Bindings {
			walkCapabilityIDs(b.Expr, out)
		}
	case ast.LogStep:
		for _, val := range v.Values {
			walkCapabilityIDs(val, out)
		}
	case ast.DiscoverAgents:
		walkCapabilityIDs(v.Criteria, out)
	case ast.Program:
		for _, f := range v.Forms {
			walkCapabilityIDs(f, out)
		}
	}
}
