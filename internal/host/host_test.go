package host

import (
	"context"
	"errors"
	"testing"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/lang/eval"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/values"
)

var _ eval.Host = (*Host)(nil)

func newTestHost(t *testing.T, rctx *RuntimeContext) (*Host, *causalchain.CausalChain) {
	t.Helper()
	chain := causalchain.New()
	market := marketplace.New()
	if err := market.Register(&marketplace.Capability{
		ID:       "echo",
		Provider: marketplace.ProviderLocal,
		Local: func(ctx context.Context, args []values.Value) (values.Value, error) {
			return args[0], nil
		},
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return New(chain, market, rctx), chain
}

func TestExecuteCapabilityDeniedUnderPureContext(t *testing.T) {
	h, _ := newTestHost(t, NewPureContext())
	_, err := h.ExecuteCapability("echo", []values.Value{values.Str("hi")})
	if err == nil {
		t.Fatalf("expected denial under pure context")
	}
}

func TestExecuteCapabilitySucceedsUnderFullContext(t *testing.T) {
	h, chain := newTestHost(t, NewFullContext())
	v, err := h.ExecuteCapability("echo", []values.Value{values.Str("hi")})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if v.(values.Str) != "hi" {
		t.Fatalf("expected hi, got %v", v)
	}
	actions := chain.SnapshotActions()
	if len(actions) != 2 {
		t.Fatalf("expected call+result action pair, got %d", len(actions))
	}
	if actions[0].Type != causalchain.ActionCapabilityCall || actions[1].Type != causalchain.ActionCapabilityResult {
		t.Fatalf("unexpected action types: %v %v", actions[0].Type, actions[1].Type)
	}
}

func TestExecuteCapabilityControlledContextRespectsAllowList(t *testing.T) {
	h, _ := newTestHost(t, NewControlledContext("other"))
	_, err := h.ExecuteCapability("echo", nil)
	if err == nil {
		t.Fatalf("expected denial: echo not in allow list")
	}
}

func TestUserAskPausesPlan(t *testing.T) {
	h, chain := newTestHost(t, NewFullContext())
	_, err := h.ExecuteCapability(UserAskCapabilityID, []values.Value{values.Str("continue?")})
	if !errors.Is(err, ErrPlanPaused) {
		t.Fatalf("expected ErrPlanPaused, got %v", err)
	}
	pause := h.LastPause()
	if pause == nil || pause.Question.(values.Str) != "continue?" {
		t.Fatalf("expected pause state with question, got %+v", pause)
	}
	actions := chain.SnapshotActions()
	if actions[len(actions)-1].Type != causalchain.ActionPlanPaused {
		t.Fatalf("expected last action to be PlanPaused, got %v", actions[len(actions)-1].Type)
	}
}
