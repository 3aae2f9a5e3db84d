// Package ast defines the Language's abstract syntax tree: literals, symbol
// and keyword references, collection constructors, calls, and the closed
// set of special forms, each node carrying a SourceSpan for diagnostics.
package ast

import "github.com/antigravity-dev/ccos/internal/values"

// SourceSpan locates a node in the original source text.
type SourceSpan struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

// Node is the closed set of AST node variants.
type Node interface {
	Span() SourceSpan
	nodeTag()
}

type base struct{ S SourceSpan }

func (b base) Span() SourceSpan { return b.S }

// Literal is a self-evaluating value (int, float, string, bool, nil).
type Literal struct {
	base
	Value values.Value
}

func (Literal) nodeTag() {}

// SymbolRef references a symbol by name, resolved in the lexical environment.
type SymbolRef struct {
	base
	Name string
}

func (SymbolRef) nodeTag() {}

// KeywordRef is a self-evaluating keyword literal, also invocable as a
// one/two-arg map accessor.
type KeywordRef struct {
	base
	Name string
}

func (KeywordRef) nodeTag() {}

// VectorExpr constructs a Vector from evaluated elements.
type VectorExpr struct {
	base
	Elements []Node
}

func (VectorExpr) nodeTag() {}

// MapEntry is one key/value pair in a literal map constructor.
type MapEntry struct {
	Key   Node
	Value Node
}

// MapExpr constructs a Map from evaluated entries.
type MapExpr struct {
	base
	Entries []MapEntry
}

func (MapExpr) nodeTag() {}

// ListExpr constructs a List (quoted sequence) from evaluated elements.
type ListExpr struct {
	base
	Elements []Node
}

func (ListExpr) nodeTag() {}

// Call applies Fn to Args.
type Call struct {
	base
	Fn   Node
	Args []Node
}

func (Call) nodeTag() {}

// --- Special forms ---

type If struct {
	base
	Cond, Then Node
	Else       Node // nil if absent; evaluates to Nil
}

func (If) nodeTag() {}

// LetBinding is one `pattern[:TypeExpr] expr` pair in a let/letrec form.
type LetBinding struct {
	Pattern  values.Pattern
	TypeAnn  values.TypeExpr // nil if absent
	Init     Node
}

type Let struct {
	base
	Bindings []LetBinding
	Body     []Node
	Rec      bool // true for letrec (placeholder semantics for fn-valued bindings)
}

func (Let) nodeTag() {}

type Do struct {
	base
	Body []Node
}

func (Do) nodeTag() {}

type Param struct {
	Pattern values.Pattern
	TypeAnn values.TypeExpr
}

type Fn struct {
	base
	Params   []Param
	Variadic *Param
	Body     []Node
}

func (Fn) nodeTag() {}

type Def struct {
	base
	Name    string
	TypeAnn values.TypeExpr
	Init    Node
}

func (Def) nodeTag() {}

type Defn struct {
	base
	Name     string
	Params   []Param
	Variadic *Param
	Body     []Node
}

func (Defn) nodeTag() {}

type MatchClause struct {
	Pattern values.Pattern
	Guard   Node // nil if absent
	Body    Node
}

type Match struct {
	base
	Expr    Node
	Clauses []MatchClause
}

func (Match) nodeTag() {}

type CatchClause struct {
	ErrPattern values.Pattern
	Binding    string // "" if unbound
	Body       Node
}

type TryCatch struct {
	base
	Try      Node
	Catches  []CatchClause
	Finally  Node // nil if absent
}

func (TryCatch) nodeTag() {}

type WithResource struct {
	base
	Binding string
	Init    Node
	Body    []Node
}

func (WithResource) nodeTag() {}

type ParallelBinding struct {
	Symbol string
	Expr   Node
}

type Parallel struct {
	base
	Bindings []ParallelBinding
}

func (Parallel) nodeTag() {}

type LogStep struct {
	base
	Level  string // "" if unspecified
	Values []Node
}

func (LogStep) nodeTag() {}

// DiscoverAgents queries the Arbiter's discovery surface for capability
// providers matching a free-form criteria map.
type DiscoverAgents struct {
	base
	Criteria Node
}

func (DiscoverAgents) nodeTag() {}

// Program is the top-level sequence of forms in one source file.
type Program struct {
	base
	Forms []Node
}

func (Program) nodeTag() {}

func NewLiteral(span SourceSpan, v values.Value) Literal { return Literal{base{span}, v} }
func NewSymbolRef(span SourceSpan, name string) SymbolRef { return SymbolRef{base{span}, name} }
func NewKeywordRef(span SourceSpan, name string) KeywordRef { return KeywordRef{base{span}, name} }

// WithSpan helpers let the parser attach a computed span after constructing
// a node's fields, since Go composite literals can't interleave embedded
// field assignment with named fields from another package.

func (n VectorExpr) WithSpan(s SourceSpan) VectorExpr       { n.S = s; return n }
func (n MapExpr) WithSpan(s SourceSpan) MapExpr              { n.S = s; return n }
func (n ListExpr) WithSpan(s SourceSpan) ListExpr            { n.S = s; return n }
func (n Call) WithSpan(s SourceSpan) Call                    { n.S = s; return n }
func (n If) WithSpan(s SourceSpan) If                         { n.S = s; return n }
func (n Let) WithSpan(s SourceSpan) Let                       { n.S = s; return n }
func (n Do) WithSpan(s SourceSpan) Do                         { n.S = s; return n }
func (n Fn) WithSpan(s SourceSpan) Fn                         { n.S = s; return n }
func (n Def) WithSpan(s SourceSpan) Def                       { n.S = s; return n }
func (n Defn) WithSpan(s SourceSpan) Defn                     { n.S = s; return n }
func (n Match) WithSpan(s SourceSpan) Match                   { n.S = s; return n }
func (n TryCatch) WithSpan(s SourceSpan) TryCatch             { n.S = s; return n }
func (n WithResource) WithSpan(s SourceSpan) WithResource     { n.S = s; return n }
func (n Parallel) WithSpan(s SourceSpan) Parallel             { n.S = s; return n }
func (n LogStep) WithSpan(s SourceSpan) LogStep               { n.S = s; return n }
func (n DiscoverAgents) WithSpan(s SourceSpan) DiscoverAgents { n.S = s; return n }
func (n Program) WithSpan(s SourceSpan) Program               { n.S = s; return n }
