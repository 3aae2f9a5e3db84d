package eval

import "github.com/antigravity-dev/ccos/internal/values"

// Environment maps symbols to values with a parent pointer for lexical
// scoping.
type Environment struct {
	parent *Environment
	vars   map[string]values.Value
}

func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]values.Value)}
}

// Define binds name in this scope, shadowing any outer binding.
func (e *Environment) Define(name string, v values.Value) {
	e.vars[name] = v
}

// Lookup resolves name through the parent chain.
func (e *Environment) Lookup(name string) (values.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set mutates an existing binding in the nearest scope that defines it,
// reporting false if the symbol is unbound anywhere in the chain.
func (e *Environment) Set(name string, v values.Value) bool {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			env.vars[name] = v
			return true
		}
	}
	return false
}

// Child creates a new child scope.
func (e *Environment) Child() *Environment {
	return NewEnvironment(e)
}
