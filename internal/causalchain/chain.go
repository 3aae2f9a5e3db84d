package causalchain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Persister mirrors appended actions to durable storage (internal/ledgerstore
// implements this with NDJSON + sqlite); nil means in-memory only.
type Persister interface {
	Append(a *Action) error
}

// CausalChain is the append-only, signed action ledger. One mutex guards
// the log, the ID index, the log buffer, and the sink list; the metrics and
// provenance tables carry their own locks. Sinks are
// notified with the mutex held: a sink that calls back into Append will
// deadlock. This is by design, not a bug to be guarded against at runtime —
// sinks must treat the action as read-only and must not re-enter the chain.
type CausalChain struct {
	mu         sync.Mutex
	actions    []*Action
	byID       map[string]*Action
	signer     *Signer
	metrics    *PerformanceMetrics
	provenance *ProvenanceTracker
	sinks      []EventSink
	logs       *logBuffer
	persist    Persister
}

type Option func(*CausalChain)

func WithPersister(p Persister) Option { return func(c *CausalChain) { c.persist = p } }
func WithSigningKey(key []byte) Option { return func(c *CausalChain) { c.signer = NewSigner(key) } }
func WithLogCapacity(n int) Option     { return func(c *CausalChain) { c.logs = newLogBuffer(n) } }

func New(opts ...Option) *CausalChain {
	c := &CausalChain{
		byID:       make(map[string]*Action),
		signer:     NewSigner([]byte("ccos-dev-signing-key")),
		metrics:    NewPerformanceMetrics(),
		provenance: NewProvenanceTracker(),
		logs:       newLogBuffer(1024),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *CausalChain) RegisterSink(s EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Append records a new action, assigning it an ID, timestamp, and signature
// if not already set. Returns the finalized action.
func (c *CausalChain) Append(a *Action) (*Action, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	a.Signature = c.signer.Sign(a)
	c.actions = append(c.actions, a)
	c.byID[a.ID] = a
	c.logs.push(c.logLine(a))

	if c.persist != nil {
		if err := c.persist.Append(a); err != nil {
			return a, fmt.Errorf("causalchain: persist action %s: %w", a.ID, err)
		}
	}
	for _, s := range c.sinks {
		s.OnAction(a)
	}
	return a, nil
}

// RecordResult appends the matching CapabilityResult action for a prior
// CapabilityCall and updates aggregate metrics.
func (c *CausalChain) RecordResult(call *Action, result ExecutionResult) (*Action, error) {
	c.metrics.RecordCapability(call.CapabilityID, result.Success, result.DurationMS, result.CostUSD)
	if call.FunctionName != "" {
		c.metrics.RecordFunction(call.FunctionName, result.Success)
	}
	return c.Append(&Action{
		ParentActionID: call.ID,
		IntentID:       call.IntentID,
		PlanID:         call.PlanID,
		Type:           ActionCapabilityResult,
		CapabilityID:   call.CapabilityID,
		FunctionName:   call.FunctionName,
		Result:         &result,
	})
}

func (c *CausalChain) logLine(a *Action) string {
	status := "ok"
	if a.Result != nil && !a.Result.Success {
		status = "error"
	}
	return fmt.Sprintf(`{"action_id":%q,"type":%q,"capability_id":%q,"status":%q,"timestamp":%q}`,
		a.ID, a.Type, a.CapabilityID, status, a.Timestamp.Format(time.RFC3339Nano))
}

// QueryActions filters the in-memory log by plan, intent, action type, and
// time range.
func (c *CausalChain) QueryActions(q Query) []*Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Action
	for _, a := range c.actions {
		if q.matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// SnapshotActions returns a copy of every action appended so far, in order.
func (c *CausalChain) SnapshotActions() []*Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Action, len(c.actions))
	copy(out, c.actions)
	return out
}

func (c *CausalChain) CapabilityMetrics(id string) (CapabilityMetrics, bool) {
	return c.metrics.Capability(id)
}

func (c *CausalChain) FunctionMetrics(name string) (FunctionMetrics, bool) {
	return c.metrics.Function(name)
}

// CapabilityMetricsSnapshot exposes the full per-capability table for
// periodic exporters (internal/telemetry).
func (c *CausalChain) CapabilityMetricsSnapshot() map[string]CapabilityMetrics {
	return c.metrics.CapabilitySnapshot()
}

func (c *CausalChain) RecentLogs(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logs.recent(n)
}

func (c *CausalChain) RecordProvenance(actionID string, prov ActionProvenance) {
	c.provenance.Record(actionID, prov)
}

func (c *CausalChain) Provenance(actionID string) (ActionProvenance, bool) {
	return c.provenance.Lookup(actionID)
}

// VerifyIntegrity re-signs every action and reports the first mismatch, if
// any.
func (c *CausalChain) VerifyIntegrity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.actions {
		if !c.signer.Verify(a) {
			return fmt.Errorf("causalchain: signature mismatch for action %s", a.ID)
		}
	}
	return nil
}

// Action retrieves a single action by ID.
func (c *CausalChain) Action(id string) (*Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byID[id]
	return a, ok
}
