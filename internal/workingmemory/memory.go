// Package workingmemory implements the Working Memory Ingestor: an event
// sink that maps each appended causal-chain action into a summarized entry
// in a pluggable backend, plus the observability.ingestor capability
// surface for single/batch/replay ingestion.
package workingmemory

import (
	"fmt"
	"sync"
)

// DefaultMaxEntries and DefaultMaxTokens are the default eviction budgets,
// overridable by callers via NewMemoryBackend's arguments.
const (
	DefaultMaxEntries = 2000
	DefaultMaxTokens  = 200000
)

// Entry is one summarized ledger record: the closed set of fields
// observability.ingestor:v1.ingest accepts/produces, plus the derived Tags
// and Tokens every backend needs for eviction bookkeeping.
type Entry struct {
	ActionID        string
	Kind            string
	Provider        string
	TimestampS      int64
	Summary         string
	Content         string
	PlanID          string
	IntentID        string
	StepID          string
	AttestationHash string
	ContentHash     string
	Tags            []string
	Tokens          int
}

// Backend is the pluggable Working Memory store. The default is
// MemoryBackend (in-process, bounded); internal/workingmemory/redisbackend.go
// is one optional swap-in behind the same contract.
type Backend interface {
	Put(e Entry) error
	Get(id string) (Entry, bool)
	Delete(id string) error
	Len() (int, error)
	List() ([]Entry, error)
}

// MemoryBackend is an in-memory bounded map with FIFO eviction by
// insertion order, evicting on whichever budget (entry count or token
// count) is exceeded first.
type MemoryBackend struct {
	mu          sync.Mutex
	maxEntries  int
	maxTokens   int
	entries     map[string]Entry
	order       []string
	totalTokens int
}

// NewMemoryBackend builds a bounded backend; a zero or negative budget
// disables that particular limit.
func NewMemoryBackend(maxEntries, maxTokens int) *MemoryBackend {
	return &MemoryBackend{
		maxEntries: maxEntries,
		maxTokens:  maxTokens,
		entries:    make(map[string]Entry),
	}
}

func (b *MemoryBackend) Put(e Entry) error {
	if e.ActionID == "" {
		return fmt.Errorf("workingmemory: entry missing action_id")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, exists := b.entries[e.ActionID]; exists {
		b.totalTokens -= old.Tokens
	} else {
		b.order = append(b.order, e.ActionID)
	}
	b.entries[e.ActionID] = e
	b.totalTokens += e.Tokens
	b.evictLocked()
	return nil
}

func (b *MemoryBackend) evictLocked() {
	for (b.maxEntries > 0 && len(b.order) > b.maxEntries) || (b.maxTokens > 0 && b.totalTokens > b.maxTokens) {
		if len(b.order) == 0 {
			return
		}
		oldest := b.order[0]
		b.order = b.order[1:]
		if e, ok := b.entries[oldest]; ok {
			b.totalTokens -= e.Tokens
			delete(b.entries, oldest)
		}
	}
}

func (b *MemoryBackend) Get(id string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	return e, ok
}

func (b *MemoryBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return nil
	}
	delete(b.entries, id)
	b.totalTokens -= e.Tokens
	for i, candidate := range b.order {
		if candidate == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

func (b *MemoryBackend) Len() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries), nil
}

func (b *MemoryBackend) List() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.entries[id])
	}
	return out, nil
}
