// Package arbiter specifies the Arbiter Contract: the natural-language →
// Intent → Plan boundary the Orchestrator depends on. A concrete LLM-backed
// Arbiter is out of scope here; StaticArbiter is an in-tree stand-in for
// integration tests and canned scenarios, not a production implementation.
package arbiter

import (
	"github.com/antigravity-dev/ccos/internal/orchestrator"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Arbiter is the full contract an Arbiter implementation satisfies.
// orchestrator.Orchestrator only calls NaturalLanguageToIntent/IntentToPlan
// (declared again there, as orchestrator.Arbiter, to avoid an import
// cycle); SelectTool is exercised directly by callers doing ad hoc tool
// selection outside a full plan (e.g. a REPL or an Arbiter-facing API
// layer).
type Arbiter interface {
	NaturalLanguageToIntent(text string, context values.Map) (orchestrator.Intent, error)
	IntentToPlan(intent orchestrator.Intent) (orchestrator.Plan, error)
	SelectTool(hint string, toolNames []string, toolSchemas values.Map) (toolName string, constraints values.Map, err error)
}

var _ orchestrator.Arbiter = Arbiter(nil)
