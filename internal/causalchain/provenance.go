package causalchain

import "sync"

// ActionProvenance records which source (capability, plan step, or delegate)
// produced a given action, keyed by action ID for fast lookup.
type ActionProvenance struct {
	Source       string
	DelegatedTo  string
	IntentChain  []string
}

type ProvenanceTracker struct {
	mu    sync.RWMutex
	byID  map[string]ActionProvenance
}

func NewProvenanceTracker() *ProvenanceTracker {
	return &ProvenanceTracker{byID: make(map[string]ActionProvenance)}
}

func (p *ProvenanceTracker) Record(actionID string, prov ActionProvenance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[actionID] = prov
}

func (p *ProvenanceTracker) Lookup(actionID string) (ActionProvenance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prov, ok := p.byID[actionID]
	return prov, ok
}
