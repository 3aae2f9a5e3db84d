package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Marketplace is the capability registry: register/get/execute plus
// discovery, with per-capability rate limiting.
type Marketplace struct {
	mu      sync.RWMutex
	entries map[string]*Capability
	limiters map[string]*rate.Limiter
	httpClient *http.Client
	validator  *values.Validator
}

func New() *Marketplace {
	return &Marketplace{
		entries:    make(map[string]*Capability),
		limiters:   make(map[string]*rate.Limiter),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		validator:  values.NewValidator(),
	}
}

// validateArgs checks args against cap.InputSchema at the capability
// boundary; boundary validation always applies here, regardless of
// TypeCheckingConfig's skip settings. A single-argument
// capability validates that argument directly against the schema; a
// multi-argument one validates the full argument Vector, so an InputSchema
// declared as an ArrayType/VectorType describes the whole call signature.
func (m *Marketplace) validateArgs(cap *Capability, args []values.Value) error {
	cfg := values.DefaultTypeCheckingConfig()
	vc := values.CapabilityBoundaryContext(cap.ID)
	var subject values.Value = values.Vector(args)
	if len(args) == 1 {
		subject = args[0]
	}
	if err := m.validator.Validate(subject, cap.InputSchema, cfg, vc); err != nil {
		ve, ok := err.(*values.ValidationError)
		if !ok {
			return err
		}
		data := values.Map{values.KeywordKey("predicate"): values.Str(ve.Predicate)}
		return runtimeerr.WithData(runtimeerr.TypeError, data, "%s", ve.Error())
	}
	return nil
}

// Register adds or replaces a capability entry.
func (m *Marketplace) Register(cap *Capability) error {
	if cap.ID == "" {
		return fmt.Errorf("marketplace: capability must have an ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cap.ID] = cap
	if cap.RateLimitPerSecond > 0 {
		m.limiters[cap.ID] = rate.NewLimiter(rate.Limit(cap.RateLimitPerSecond), int(cap.RateLimitPerSecond)+1)
	}
	return nil
}

// Get retrieves a capability by ID.
func (m *Marketplace) Get(id string) (*Capability, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.entries[id]
	return c, ok
}

// Discover lists capabilities whose ID or name contains the query
// substring (ASCII case-insensitive; the agent-discovery special form does its own
// fuzzy ranking on top of this).
func (m *Marketplace) Discover(query string) []*Capability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Capability
	for _, c := range m.entries {
		if query == "" || containsFold(c.ID, query) || containsFold(c.Name, query) {
			out = append(out, c)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return len(substr) == 0 || indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	n, m := len(s), len(substr)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Execute dispatches a capability call to its provider, enforcing the
// registered rate limit first.
func (m *Marketplace) Execute(ctx context.Context, id string, args []values.Value) (values.Value, error) {
	cap, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("marketplace: capability %q not registered", id)
	}

	m.mu.RLock()
	limiter := m.limiters[id]
	m.mu.RUnlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("marketplace: rate limit wait for %q: %w", id, err)
		}
	}

	if cap.InputSchema != nil {
		if err := m.validateArgs(cap, args); err != nil {
			return nil, err
		}
	}

	switch cap.Provider {
	case ProviderLocal:
		if cap.Local == nil {
			return nil, fmt.Errorf("marketplace: capability %q has no local handler", id)
		}
		return cap.Local(ctx, args)
	case ProviderHTTP:
		return m.executeHTTP(ctx, cap, args)
	case ProviderMCP:
		return nil, fmt.Errorf("marketplace: MCP capability %q has no server transport configured in this deployment", id)
	case ProviderA2A:
		return nil, fmt.Errorf("marketplace: A2A capability %q has no peer transport configured in this deployment", id)
	case ProviderPlugin:
		return nil, fmt.Errorf("marketplace: plugin capability %q has no loader configured in this deployment", id)
	case ProviderRemoteInstance:
		return m.executeRemoteInstance(ctx, cap, args)
	case ProviderStream:
		return nil, fmt.Errorf("marketplace: capability %q is streaming-only, call ExecuteStream", id)
	default:
		return nil, fmt.Errorf("marketplace: unknown provider kind for %q", id)
	}
}
