package arbiter

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antigravity-dev/ccos/internal/orchestrator"
	"github.com/antigravity-dev/ccos/internal/values"
)

// StaticArbiter pattern-matches a handful of canned request shapes into
// Intent/Plan pairs. It exists so the orchestrator's integration tests and
// canned scenarios have something satisfying the Arbiter contract without
// depending on a real LLM backend — it is explicitly a stand-in, never
// advertised as "the" Arbiter.
type StaticArbiter struct {
	// Now returns the current time; overridable in tests that need
	// deterministic Intent.CreatedAt values (Date.Now-style calls are
	// avoided in workflow scripts but this is plain test code).
	Now func() time.Time
}

func NewStaticArbiter() *StaticArbiter {
	return &StaticArbiter{Now: time.Now}
}

var _ Arbiter = (*StaticArbiter)(nil)

// NaturalLanguageToIntent recognizes two canned shapes:
//   - "echo <text>"      → a plan that calls :echo with <text>
//   - "ask <prompt> then echo" → a plan that pauses on :user.ask with
//     <prompt> and echoes the answer
//
// Anything else produces an Intent whose IntentToPlan will fail, so the
// orchestrator reports arbiter-unavailable rather than silently running
// nothing.
func (a *StaticArbiter) NaturalLanguageToIntent(text string, context values.Map) (orchestrator.Intent, error) {
	now := a.now()
	intent := orchestrator.Intent{
		ID:        uuid.NewString(),
		Goal:      text,
		Status:    orchestrator.IntentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if context != nil {
		intent.Metadata = context
	}
	return intent, nil
}

func (a *StaticArbiter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// IntentToPlan recognizes the same canned shapes NaturalLanguageToIntent
// does (by re-reading Intent.Goal) and renders Language source for them.
// It refuses to reference any capability beyond what the request names,
// satisfying the contract's "must not reference capabilities outside the
// active RuntimeContext" by construction: it only ever emits :echo and
// :user.ask calls.
func (a *StaticArbiter) IntentToPlan(intent orchestrator.Intent) (orchestrator.Plan, error) {
	goal := strings.TrimSpace(intent.Goal)

	if rest, ok := cutPrefix(goal, "echo "); ok {
		return orchestrator.Plan{
			ID:        uuid.NewString(),
			Body:      orchestrator.PlanBody{Source: fmt.Sprintf("(call :echo %s)", quote(rest))},
			IntentIDs: []string{intent.ID},
		}, nil
	}

	if prompt, ok := askThenEcho(goal); ok {
		src := fmt.Sprintf(`(do (let {a (call :user.ask %s)} (call :echo a)))`, quote(prompt))
		return orchestrator.Plan{
			ID:        uuid.NewString(),
			Body:      orchestrator.PlanBody{Source: src},
			IntentIDs: []string{intent.ID},
		}, nil
	}

	return orchestrator.Plan{}, fmt.Errorf("arbiter: static arbiter has no canned plan for goal %q", intent.Goal)
}

// SelectTool does substring matching over toolNames against the hint,
// returning the first match with no extracted constraints (a real Arbiter
// would parse structured arguments out of the hint; this test double
// leaves that to the caller).
func (a *StaticArbiter) SelectTool(hint string, toolNames []string, toolSchemas values.Map) (string, values.Map, error) {
	lower := strings.ToLower(hint)
	for _, name := range toolNames {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name, values.Map{}, nil
		}
	}
	return "", nil, fmt.Errorf("arbiter: no tool name in %v matched hint %q", toolNames, hint)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

func askThenEcho(goal string) (prompt string, ok bool) {
	const askPrefix = "ask "
	const suffix = " then echo"
	rest, ok := cutPrefix(goal, askPrefix)
	if !ok || !strings.HasSuffix(rest, suffix) {
		return "", false
	}
	return strings.TrimSuffix(rest, suffix), true
}

// quote renders s as Language source string literal, escaping embedded
// quotes and backslashes (the parser has no raw-string form).
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
