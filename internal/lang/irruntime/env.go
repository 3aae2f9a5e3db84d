package irruntime

import (
	"github.com/antigravity-dev/ccos/internal/lang/ir"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Env maps resolved BindingIDs to values, chained to a parent the way
// eval.Environment chains by name — but keyed by integer slot instead of
// string, since the builder has already done name resolution.
type Env struct {
	parent *Env
	vars   map[ir.BindingID]values.Value
}

func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: make(map[ir.BindingID]values.Value)}
}

func (e *Env) Define(id ir.BindingID, v values.Value) {
	e.vars[id] = v
}

func (e *Env) Lookup(id ir.BindingID) (values.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[id]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) Child() *Env {
	return NewEnv(e)
}

// Snapshot builds a new, parentless Env holding only the given binding IDs'
// current values, looked up through e's full chain. Used to build a
// lambda's closure from its precomputed Captures list: the closure carries
// exactly its free variables, not a reference to (or copy of) the entire
// defining scope chain.
func (e *Env) Snapshot(ids []ir.BindingID) *Env {
	snap := NewEnv(nil)
	for _, id := range ids {
		if v, ok := e.Lookup(id); ok {
			snap.vars[id] = v
		}
	}
	return snap
}
