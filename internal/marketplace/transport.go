package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/antigravity-dev/ccos/internal/values"
)

func (m *Marketplace) executeHTTP(ctx context.Context, cap *Capability, args []values.Value) (values.Value, error) {
	body, err := MarshalArgs(args)
	if err != nil {
		return nil, fmt.Errorf("marketplace: marshal args for %q: %w", cap.ID, err)
	}

	method := cap.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cap.HTTP.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("marketplace: build request for %q: %w", cap.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cap.HTTP.Headers {
		req.Header.Set(k, v)
	}

	client := m.httpClient
	if cap.HTTP.TimeoutMS > 0 {
		client = &http.Client{Timeout: time.Duration(cap.HTTP.TimeoutMS) * time.Millisecond}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace: call %q: %w", cap.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("marketplace: read response for %q: %w", cap.ID, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("marketplace: %q returned HTTP %d: %s", cap.ID, resp.StatusCode, string(respBody))
	}
	return UnmarshalResult(respBody)
}

func (m *Marketplace) executeRemoteInstance(ctx context.Context, cap *Capability, args []values.Value) (values.Value, error) {
	body, err := MarshalArgs(args)
	if err != nil {
		return nil, fmt.Errorf("marketplace: marshal args for %q: %w", cap.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cap.Remote.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("marketplace: build remote-instance request for %q: %w", cap.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cap.Remote.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cap.Remote.AuthToken)
	}
	client := m.httpClient
	if cap.Remote.TimeoutMS > 0 {
		client = &http.Client{Timeout: time.Duration(cap.Remote.TimeoutMS) * time.Millisecond}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace: remote-instance call %q: %w", cap.ID, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return UnmarshalResult(respBody)
}

// StreamHandler receives the result value of a stream capability's call.
type StreamHandler func(ctx context.Context, item values.Value) error

// ExecuteStream calls a ProviderStream capability's LocalHandler once and
// passes its single result value to fn. It does not deliver successive
// items, and there is no HTTP/MCP stream transport.
func (m *Marketplace) ExecuteStream(ctx context.Context, id string, args []values.Value, fn StreamHandler) error {
	cap, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("marketplace: capability %q not registered", id)
	}
	if cap.Provider != ProviderStream || cap.Local == nil {
		return fmt.Errorf("marketplace: capability %q is not a locally-driven stream", id)
	}
	v, err := cap.Local(ctx, args)
	if err != nil {
		return err
	}
	return fn(ctx, v)
}
