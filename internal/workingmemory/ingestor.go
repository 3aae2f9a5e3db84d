package workingmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/values"
)

// IngestorCapabilityID is the well-known capability id ingestion is
// exposed through on the marketplace.
const IngestorCapabilityID = "observability.ingestor:v1.ingest"

// Ingestor is the event sink mapping each appended causal-chain action into
// a summarized Working Memory entry, in two modes: OnAction is the live
// sink (one entry per action at append time); Ingest("replay", ...)
// idempotently rebuilds the whole store from a ledger snapshot.
type Ingestor struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	latencies []time.Duration
}

func NewIngestor(backend Backend, logger *slog.Logger) *Ingestor {
	return &Ingestor{backend: backend, logger: logger}
}

var _ causalchain.EventSink = (*Ingestor)(nil)

// OnAction implements causalchain.EventSink.
func (ig *Ingestor) OnAction(a *causalchain.Action) {
	start := time.Now()
	if err := ig.backend.Put(entryFromAction(a)); err != nil {
		if ig.logger != nil {
			ig.logger.Warn("workingmemory: live ingest failed", "action_id", a.ID, "error", err)
		}
	}
	ig.recordLatency(time.Since(start))
}

// Ingest implements the observability.ingestor:v1.ingest capability body:
// mode is "single", "batch", or "replay"; payload is a record map, a list
// of record maps, or omitted for replay. Returns
// {mode, ingested, scanned_actions?}.
func (ig *Ingestor) Ingest(mode string, payload values.Value, chain *causalchain.CausalChain) (values.Value, error) {
	start := time.Now()
	defer func() { ig.recordLatency(time.Since(start)) }()

	switch mode {
	case "single":
		rec, err := recordFromValue(payload)
		if err != nil {
			return nil, fmt.Errorf("workingmemory: %w", err)
		}
		if err := ig.backend.Put(rec); err != nil {
			return nil, err
		}
		return resultMap(mode, 1, nil), nil

	case "batch":
		items, ok := payload.(values.Vector)
		if !ok {
			if l, ok := payload.(values.List); ok {
				items = values.Vector(l)
			} else {
				return nil, fmt.Errorf("workingmemory: batch payload must be a list of records")
			}
		}
		ingested := 0
		for _, item := range items {
			rec, err := recordFromValue(item)
			if err != nil {
				if ig.logger != nil {
					ig.logger.Warn("workingmemory: skipping malformed batch record", "error", err)
				}
				continue
			}
			if err := ig.backend.Put(rec); err == nil {
				ingested++
			}
		}
		return resultMap(mode, ingested, nil), nil

	case "replay":
		if chain == nil {
			return nil, fmt.Errorf("workingmemory: replay requires a causal chain")
		}
		actions := chain.SnapshotActions()
		ingested := 0
		for _, a := range actions {
			if err := ig.backend.Put(entryFromAction(a)); err == nil {
				ingested++
			}
		}
		scanned := len(actions)
		return resultMap(mode, ingested, &scanned), nil

	default:
		return nil, fmt.Errorf("workingmemory: unknown ingest mode %q", mode)
	}
}

// AsCapability adapts Ingest to the marketplace.Capability.Local shape:
// args[0] is the mode (string or keyword), args[1] is the optional
// payload.
func (ig *Ingestor) AsCapability(chain *causalchain.CausalChain) func(ctx context.Context, args []values.Value) (values.Value, error) {
	return func(ctx context.Context, args []values.Value) (values.Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("workingmemory: ingest requires a mode argument")
		}
		mode, err := modeArg(args[0])
		if err != nil {
			return nil, err
		}
		var payload values.Value
		if len(args) > 1 {
			payload = args[1]
		}
		return ig.Ingest(mode, payload, chain)
	}
}

// LatencyPercentiles reports the p50/p95 ingest latency over the most
// recent samples, so the causal chain's metrics can aggregate it.
func (ig *Ingestor) LatencyPercentiles() (p50, p95 time.Duration) {
	ig.mu.Lock()
	samples := append([]time.Duration(nil), ig.latencies...)
	ig.mu.Unlock()
	if len(samples) == 0 {
		return 0, 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	p50 = samples[len(samples)*50/100]
	idx95 := len(samples) * 95 / 100
	if idx95 >= len(samples) {
		idx95 = len(samples) - 1
	}
	return p50, samples[idx95]
}

func (ig *Ingestor) recordLatency(d time.Duration) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.latencies = append(ig.latencies, d)
	if len(ig.latencies) > 256 {
		ig.latencies = ig.latencies[len(ig.latencies)-256:]
	}
}

func modeArg(v values.Value) (string, error) {
	switch vv := v.(type) {
	case values.Keyword:
		return string(vv), nil
	case values.Str:
		return string(vv), nil
	default:
		return "", fmt.Errorf("workingmemory: mode must be a string or keyword, got %s", values.TypeName(v))
	}
}

func entryFromAction(a *causalchain.Action) Entry {
	summary := string(a.Type)
	if a.CapabilityID != "" {
		summary = fmt.Sprintf("%s %s", a.Type, a.CapabilityID)
	}
	content := ""
	if a.Result != nil {
		if a.Result.Success {
			content = fmt.Sprintf("ok: %v", a.Result.Value)
		} else {
			content = fmt.Sprintf("error: %s", a.Result.Error)
		}
	}
	e := Entry{
		ActionID:   a.ID,
		Kind:       string(a.Type),
		Provider:   a.CapabilityID,
		TimestampS: a.Timestamp.Unix(),
		Summary:    summary,
		Content:    content,
		PlanID:     a.PlanID,
		IntentID:   a.IntentID,
		StepID:     a.ParentActionID,
		Tags:       []string{string(a.Type)},
	}
	e.Tokens = estimateTokens(e.Summary, e.Content)
	return e
}

func recordFromValue(v values.Value) (Entry, error) {
	m, ok := v.(values.Map)
	if !ok {
		return Entry{}, fmt.Errorf("record must be a map")
	}
	str := func(k string) string {
		if val, ok := m.Get(k); ok {
			if s, ok := val.(values.Str); ok {
				return string(s)
			}
		}
		return ""
	}
	actionID := str("action_id")
	if actionID == "" {
		return Entry{}, fmt.Errorf("record missing action_id")
	}
	var ts int64
	if val, ok := m.Get("timestamp_s"); ok {
		if n, ok := val.(values.Int); ok {
			ts = int64(n)
		}
	}
	e := Entry{
		ActionID:        actionID,
		Kind:            str("kind"),
		Provider:        str("provider"),
		TimestampS:      ts,
		Summary:         str("summary"),
		Content:         str("content"),
		PlanID:          str("plan_id"),
		IntentID:        str("intent_id"),
		StepID:          str("step_id"),
		AttestationHash: str("attestation_hash"),
		ContentHash:     str("content_hash"),
	}
	if e.Kind != "" {
		e.Tags = []string{e.Kind}
	}
	e.Tokens = estimateTokens(e.Summary, e.Content)
	return e, nil
}

// estimateTokens is a rough, provider-agnostic token count (roughly four
// characters per token) good enough for budget bookkeeping without a real
// tokenizer dependency.
func estimateTokens(parts ...string) int {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return total/4 + 1
}

func resultMap(mode string, ingested int, scannedActions *int) values.Map {
	m := values.Map{
		values.KeywordKey("mode"):     values.Keyword(mode),
		values.KeywordKey("ingested"): values.Int(ingested),
	}
	if scannedActions != nil {
		m[values.KeywordKey("scanned_actions")] = values.Int(*scannedActions)
	}
	return m
}
