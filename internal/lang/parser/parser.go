// Package parser turns Language source text into an ast.Program, preserving
// source spans on every node.
package parser

import (
	"strconv"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Parser is a one-shot recursive-descent reader over a token stream.
type Parser struct {
	lex  *lexer
	cur  token
}

// Parse parses a full source file into a Program.
func Parse(src string) (*ast.Program, error) {
	p := &Parser{lex: newLexer(src)}
	if err := p.bump(); err != nil {
		return nil, err
	}
	var forms []ast.Node
	for p.cur.kind != tokEOF {
		node, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, node)
	}
	prog := ast.Program{Forms: forms}
	return &prog, nil
}

func (p *Parser) bump() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) span(startLine, startCol int) ast.SourceSpan {
	return spanOf(startLine, startCol, p.cur.line, p.cur.col)
}

// parseForm parses one top-level or nested form.
func (p *Parser) parseForm() (ast.Node, error) {
	switch p.cur.kind {
	case tokLParen:
		return p.parseList()
	case tokLBracket:
		return p.parseVector()
	case tokLBrace:
		return p.parseMap()
	case tokString:
		v := values.Str(p.cur.text)
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewLiteral(span, v), nil
	case tokInt:
		n, err := strconv.ParseInt(p.cur.text, 10, 64)
		if err != nil {
			return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "invalid integer literal %q", p.cur.text)
		}
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewLiteral(span, values.Int(n)), nil
	case tokFloat:
		f, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "invalid float literal %q", p.cur.text)
		}
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewLiteral(span, values.Float(f)), nil
	case tokBool:
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		v := values.Boolean(p.cur.text == "true")
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewLiteral(span, v), nil
	case tokNil:
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewLiteral(span, values.Nil{}), nil
	case tokKeyword:
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		name := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewKeywordRef(span, name), nil
	case tokSymbol:
		span := spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol)
		name := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.NewSymbolRef(span, name), nil
	case tokRParen, tokRBracket, tokRBrace:
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "unexpected closing delimiter")
	default:
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "unexpected end of input")
	}
}

func (p *Parser) expect(k tokenKind, name string) error {
	if p.cur.kind != k {
		return missingToken(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), name)
	}
	return p.bump()
}

func (p *Parser) parseVector() (ast.Node, error) {
	startLine, startCol := p.cur.line, p.cur.col
	if err := p.expect(tokLBracket, "["); err != nil {
		return nil, err
	}
	var elems []ast.Node
	for p.cur.kind != tokRBracket {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "]")
		}
		el, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.VectorExpr{Elements: elems}.WithSpan(span), nil
}

func (p *Parser) parseMap() (ast.Node, error) {
	startLine, startCol := p.cur.line, p.cur.col
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var entries []ast.MapEntry
	for p.cur.kind != tokRBrace {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "}")
		}
		key, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		if p.cur.kind == tokRBrace {
			return nil, missingToken(p.span(startLine, startCol), "map value")
		}
		val, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.MapExpr{Entries: entries}.WithSpan(span), nil
}

// parseList parses `(...)`: either a special form (dispatched by the first
// symbol) or a plain function call / list literal.
func (p *Parser) parseList() (ast.Node, error) {
	startLine, startCol := p.cur.line, p.cur.col
	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	if p.cur.kind == tokRParen {
		span := p.span(startLine, startCol)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return ast.ListExpr{}.WithSpan(span), nil
	}
	if p.cur.kind == tokSymbol {
		switch p.cur.text {
		case "if":
			return p.parseIf(startLine, startCol)
		case "let":
			return p.parseLet(startLine, startCol, false)
		case "letrec":
			return p.parseLet(startLine, startCol, true)
		case "do":
			return p.parseDo(startLine, startCol)
		case "fn":
			return p.parseFn(startLine, startCol)
		case "def":
			return p.parseDef(startLine, startCol)
		case "defn":
			return p.parseDefn(startLine, startCol)
		case "match":
			return p.parseMatch(startLine, startCol)
		case "try":
			return p.parseTryCatch(startLine, startCol)
		case "with-resource":
			return p.parseWithResource(startLine, startCol)
		case "parallel":
			return p.parseParallel(startLine, startCol)
		case "log-step":
			return p.parseLogStep(startLine, startCol)
		case "discover-agents":
			return p.parseDiscoverAgents(startLine, startCol)
		case "quote":
			return p.parseQuote(startLine, startCol)
		}
	}
	return p.parseCall(startLine, startCol)
}

func (p *Parser) parseQuote(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil { // consume 'quote'
		return nil, err
	}
	var elems []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		el, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.ListExpr{Elements: elems}.WithSpan(span), nil
}

func (p *Parser) parseCall(startLine, startCol int) (ast.Node, error) {
	fn, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	var args []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		arg, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Call{Fn: fn, Args: args}.WithSpan(span), nil
}

func (p *Parser) parseIf(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	cond, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	then, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node
	if p.cur.kind != tokRParen {
		elseNode, err = p.parseForm()
		if err != nil {
			return nil, err
		}
	}
	span := p.span(startLine, startCol)
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return ast.If{Cond: cond, Then: then, Else: elseNode}.WithSpan(span), nil
}

func (p *Parser) parseDo(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	var body []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Do{Body: body}.WithSpan(span), nil
}

// parsePattern parses a value pattern: wildcard `_`, symbol, literal,
// keyword, vector (with optional `& rest`), or map (with optional `& rest`).
func (p *Parser) parsePattern() (values.Pattern, error) {
	switch p.cur.kind {
	case tokSymbol:
		name := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		if name == "_" {
			return values.WildcardPattern{}, nil
		}
		return values.SymbolPattern{Name: name}, nil
	case tokKeyword:
		name := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		return values.KeywordPattern{Name: name}, nil
	case tokString:
		v := values.Str(p.cur.text)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return values.LiteralPattern{Value: v}, nil
	case tokInt:
		n, _ := strconv.ParseInt(p.cur.text, 10, 64)
		if err := p.bump(); err != nil {
			return nil, err
		}
		return values.LiteralPattern{Value: values.Int(n)}, nil
	case tokBool:
		v := values.Boolean(p.cur.text == "true")
		if err := p.bump(); err != nil {
			return nil, err
		}
		return values.LiteralPattern{Value: v}, nil
	case tokNil:
		if err := p.bump(); err != nil {
			return nil, err
		}
		return values.LiteralPattern{Value: values.Nil{}}, nil
	case tokLBracket:
		return p.parseVectorPattern()
	case tokLBrace:
		return p.parseMapPattern()
	default:
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected a pattern")
	}
}

func (p *Parser) parseVectorPattern() (values.Pattern, error) {
	startLine, startCol := p.cur.line, p.cur.col
	if err := p.expect(tokLBracket, "["); err != nil {
		return nil, err
	}
	var elems []values.Pattern
	var rest *string
	for p.cur.kind != tokRBracket {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "]")
		}
		if p.cur.kind == tokSymbol && p.cur.text == "&" {
			if err := p.bump(); err != nil {
				return nil, err
			}
			if p.cur.kind != tokSymbol {
				return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected rest binding symbol after &")
			}
			name := p.cur.text
			rest = &name
			if err := p.bump(); err != nil {
				return nil, err
			}
			continue
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, pat)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	return values.VectorPattern{Elements: elems, Rest: rest}, nil
}

func (p *Parser) parseMapPattern() (values.Pattern, error) {
	startLine, startCol := p.cur.line, p.cur.col
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	entries := make(map[string]values.Pattern)
	var rest *string
	for p.cur.kind != tokRBrace {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "}")
		}
		if p.cur.kind == tokSymbol && p.cur.text == "&" {
			if err := p.bump(); err != nil {
				return nil, err
			}
			if p.cur.kind != tokSymbol {
				return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected rest binding symbol after &")
			}
			name := p.cur.text
			rest = &name
			if err := p.bump(); err != nil {
				return nil, err
			}
			continue
		}
		if p.cur.kind != tokKeyword {
			return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected keyword key in map pattern")
		}
		key := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		entries[key] = pat
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	return values.MapPattern{Entries: entries, Rest: rest}, nil
}

// parseBindingPattern parses a pattern for let bindings and fn parameters.
// The reader grammar has no `:TypeExpr` annotation syntax, so the returned
// type annotation is always nil, which the IR builder treats as Any.
func (p *Parser) parseBindingPattern() (values.Pattern, values.TypeExpr, error) {
	pat, err := p.parsePattern()
	if err != nil {
		return nil, nil, err
	}
	return pat, nil, nil
}

func (p *Parser) parseLet(startLine, startCol int, rec bool) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var bindings []ast.LetBinding
	for p.cur.kind != tokRBrace {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "}")
		}
		pat, typ, err := p.parseBindingPattern()
		if err != nil {
			return nil, err
		}
		init, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.LetBinding{Pattern: pat, TypeAnn: typ, Init: init})
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	var body []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	if len(body) == 0 {
		return nil, invalidInput(p.span(startLine, startCol), "let expression requires at least one body expression")
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Let{Bindings: bindings, Body: body, Rec: rec}.WithSpan(span), nil
}

func (p *Parser) parseParamList() ([]ast.Param, *ast.Param, error) {
	if err := p.expect(tokLBracket, "["); err != nil {
		return nil, nil, err
	}
	var params []ast.Param
	var variadic *ast.Param
	for p.cur.kind != tokRBracket {
		if p.cur.kind == tokEOF {
			return nil, nil, missingToken(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "]")
		}
		if p.cur.kind == tokSymbol && p.cur.text == "&" {
			if err := p.bump(); err != nil {
				return nil, nil, err
			}
			pat, typ, err := p.parseBindingPattern()
			if err != nil {
				return nil, nil, err
			}
			variadic = &ast.Param{Pattern: pat, TypeAnn: typ}
			continue
		}
		pat, typ, err := p.parseBindingPattern()
		if err != nil {
			return nil, nil, err
		}
		params = append(params, ast.Param{Pattern: pat, TypeAnn: typ})
	}
	return params, variadic, p.bump()
}

func (p *Parser) parseFn(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	params, variadic, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	var body []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Fn{Params: params, Variadic: variadic, Body: body}.WithSpan(span), nil
}

func (p *Parser) parseDef(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	if p.cur.kind != tokSymbol {
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected symbol after def")
	}
	name := p.cur.text
	if err := p.bump(); err != nil {
		return nil, err
	}
	init, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	span := p.span(startLine, startCol)
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return ast.Def{Name: name, Init: init}.WithSpan(span), nil
}

func (p *Parser) parseDefn(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	if p.cur.kind != tokSymbol {
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected symbol after defn")
	}
	name := p.cur.text
	if err := p.bump(); err != nil {
		return nil, err
	}
	params, variadic, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	var body []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Defn{Name: name, Params: params, Variadic: variadic, Body: body}.WithSpan(span), nil
}

func (p *Parser) parseMatch(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	expr, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	var clauses []ast.MatchClause
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		var guard ast.Node
		if p.cur.kind == tokSymbol && p.cur.text == "when" {
			if err := p.bump(); err != nil {
				return nil, err
			}
			guard, err = p.parseForm()
			if err != nil {
				return nil, err
			}
		}
		body, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.MatchClause{Pattern: pat, Guard: guard, Body: body})
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.Match{Expr: expr, Clauses: clauses}.WithSpan(span), nil
}

func (p *Parser) parseTryCatch(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	tryBody, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	var catches []ast.CatchClause
	var finallyNode ast.Node
	for p.cur.kind == tokSymbol && (p.cur.text == "catch" || p.cur.text == "finally") {
		if p.cur.text == "finally" {
			if err := p.bump(); err != nil {
				return nil, err
			}
			finallyNode, err = p.parseForm()
			if err != nil {
				return nil, err
			}
			continue
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		errPat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		binding := ""
		if p.cur.kind == tokSymbol {
			binding = p.cur.text
			if err := p.bump(); err != nil {
				return nil, err
			}
		}
		body, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		catches = append(catches, ast.CatchClause{ErrPattern: errPat, Binding: binding, Body: body})
	}
	span := p.span(startLine, startCol)
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return ast.TryCatch{Try: tryBody, Catches: catches, Finally: finallyNode}.WithSpan(span), nil
}

func (p *Parser) parseWithResource(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	if p.cur.kind != tokSymbol {
		return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected binding symbol in with-resource")
	}
	sym := p.cur.text
	if err := p.bump(); err != nil {
		return nil, err
	}
	init, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	var body []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.WithResource{Binding: sym, Init: init, Body: body}.WithSpan(span), nil
}

func (p *Parser) parseParallel(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var bindings []ast.ParallelBinding
	for p.cur.kind != tokRBrace {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), "}")
		}
		if p.cur.kind != tokSymbol {
			return nil, invalidInput(spanOf(p.cur.line, p.cur.col, p.cur.endLine, p.cur.endCol), "expected binding symbol in parallel")
		}
		sym := p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
		expr, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.ParallelBinding{Symbol: sym, Expr: expr})
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	span := p.span(startLine, startCol)
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return ast.Parallel{Bindings: bindings}.WithSpan(span), nil
}

func (p *Parser) parseLogStep(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	level := ""
	if p.cur.kind == tokKeyword {
		level = p.cur.text
		if err := p.bump(); err != nil {
			return nil, err
		}
	}
	var vals []ast.Node
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokEOF {
			return nil, missingToken(p.span(startLine, startCol), ")")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		vals = append(vals, n)
	}
	span := p.span(startLine, startCol)
	if err := p.bump(); err != nil {
		return nil, err
	}
	return ast.LogStep{Level: level, Values: vals}.WithSpan(span), nil
}

func (p *Parser) parseDiscoverAgents(startLine, startCol int) (ast.Node, error) {
	if err := p.bump(); err != nil {
		return nil, err
	}
	criteria, err := p.parseForm()
	if err != nil {
		return nil, err
	}
	span := p.span(startLine, startCol)
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return ast.DiscoverAgents{Criteria: criteria}.WithSpan(span), nil
}
