// Package marketplace implements the Capability Registry/Marketplace:
// registration, discovery, and execution of capabilities behind a uniform
// Value-in/Value-out interface, regardless of whether the implementation
// is local, remote, or agent-mediated.
package marketplace

import (
	"context"

	"github.com/antigravity-dev/ccos/internal/values"
)

// ProviderKind is the closed set of capability implementation backends.
type ProviderKind int

const (
	ProviderLocal ProviderKind = iota
	ProviderHTTP
	ProviderMCP
	ProviderA2A
	ProviderPlugin
	ProviderRemoteInstance
	ProviderStream
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderLocal:
		return "local"
	case ProviderHTTP:
		return "http"
	case ProviderMCP:
		return "mcp"
	case ProviderA2A:
		return "a2a"
	case ProviderPlugin:
		return "plugin"
	case ProviderRemoteInstance:
		return "remote-instance"
	case ProviderStream:
		return "stream"
	default:
		return "unknown"
	}
}

// LocalHandler is a native, in-process capability implementation.
type LocalHandler func(ctx context.Context, args []values.Value) (values.Value, error)

// Capability is a registered marketplace entry.
type Capability struct {
	ID          string
	Name        string
	Description string
	Provider    ProviderKind
	InputSchema values.TypeExpr
	OutputSchema values.TypeExpr
	RateLimitPerSecond float64 // 0 means unlimited

	// One of these is set, matching Provider; a ProviderStream capability is
// driven through Local (Stream only records its StreamType).
	Local  LocalHandler
	HTTP   *HTTPCapability
	MCP    *MCPCapability
	A2A    *A2ACapability
	Plugin *PluginCapability
	Remote *RemoteInstanceCapability
	Stream *StreamCapability
}

// HTTPCapability dispatches to a remote HTTP endpoint, JSON-encoding the
// Value arguments and decoding the JSON response back to a Value.
type HTTPCapability struct {
	Endpoint string
	Method   string
	Headers  map[string]string
	TimeoutMS int64
}

// MCPCapability dispatches through a Model Context Protocol server.
type MCPCapability struct {
	ServerName string
	ToolName   string
}

// A2ACapability dispatches to a peer agent over the agent-to-agent protocol.
type A2ACapability struct {
	AgentID string
	Skill   string
}

// PluginCapability dispatches to a capability loaded from an external
// plugin binary/process.
type PluginCapability struct {
	PluginPath string
	Symbol     string
}

// RemoteInstanceCapability dispatches to another CCOS instance's capability
// marketplace over HTTP.
type RemoteInstanceCapability struct {
	Endpoint  string
	AuthToken string
	TimeoutMS int64
}

// StreamCapability marks a capability as streaming; StreamType governs
// directionality.
type StreamCapability struct {
	Type StreamType
}

type StreamType int

const (
	StreamSource StreamType = iota
	StreamSink
	StreamTransform
	StreamBidirectional
	StreamDuplex
)
