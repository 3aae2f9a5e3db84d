package eval

import (
	"github.com/antigravity-dev/ccos/internal/lang/stdlib"
	"github.com/antigravity-dev/ccos/internal/values"
)

// standardLibrary returns the builtins available in every fresh global
// environment. Both this evaluator and the IR runtime load the same
// internal/lang/stdlib set from its shared module registry.
func standardLibrary(e *Evaluator) map[string]values.Function {
	return stdlib.Builtins()
}
