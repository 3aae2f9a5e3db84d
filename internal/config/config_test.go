package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ccosd.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
[general]
log_level = "debug"
log_json = true
listen_addr = "0.0.0.0:9443"

[security]
default_level = "controlled"
max_capability_calls_per_plan = 64

[marketplace]
catalog_path = "/tmp/ccos-test/catalog.yaml"
default_rate_limit_per_second = 5
allowed_capabilities = ["echo", "weather.current"]

[causal_chain]
signing_key_env = "CCOS_SIGNING_KEY"
log_capacity = 2048
sqlite_path = "/tmp/ccos-test/ledger.db"
ndjson_path = "/tmp/ccos-test/ledger.ndjson"

[orchestrator]
max_plan_depth = 32
checkpoint_ttl = "12h"
use_temporal = false
task_queue = "ccos-test-plans"

[sandbox]
runner = "bubblewrap"
call_timeout = "15s"

[working_memory]
backend = "memory"
capacity = 5000

[telemetry]
enabled = true
otlp_endpoint = "localhost:4317"
service_name = "ccosd-test"
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.General.LogLevel)
	}
	if !cfg.General.LogJSON {
		t.Error("expected LogJSON to be true")
	}
	if cfg.Security.DefaultLevel != "controlled" {
		t.Errorf("Security.DefaultLevel = %q, want controlled", cfg.Security.DefaultLevel)
	}
	if cfg.Security.MaxCapabilityCallsPerPlan != 64 {
		t.Errorf("MaxCapabilityCallsPerPlan = %d, want 64", cfg.Security.MaxCapabilityCallsPerPlan)
	}
	if len(cfg.Marketplace.AllowedCapabilities) != 2 {
		t.Errorf("AllowedCapabilities = %v, want 2 entries", cfg.Marketplace.AllowedCapabilities)
	}
	if cfg.CausalChain.LogCapacity != 2048 {
		t.Errorf("LogCapacity = %d, want 2048", cfg.CausalChain.LogCapacity)
	}
	if cfg.Orchestrator.CheckpointTTL.Duration != 12*time.Hour {
		t.Errorf("CheckpointTTL = %v, want 12h", cfg.Orchestrator.CheckpointTTL)
	}
	if cfg.Sandbox.Runner != "bubblewrap" {
		t.Errorf("Sandbox.Runner = %q, want bubblewrap", cfg.Sandbox.Runner)
	}
	if cfg.Sandbox.CallTimeout.Duration != 15*time.Second {
		t.Errorf("CallTimeout = %v, want 15s", cfg.Sandbox.CallTimeout)
	}
	if cfg.WorkingMemory.Capacity != 5000 {
		t.Errorf("WorkingMemory.Capacity = %d, want 5000", cfg.WorkingMemory.Capacity)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("expected telemetry enabled")
	}
}

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Security.DefaultLevel != "controlled" {
		t.Errorf("expected default security level controlled, got %q", cfg.Security.DefaultLevel)
	}
	if cfg.Sandbox.Runner != "docker" {
		t.Errorf("expected default sandbox runner docker, got %q", cfg.Sandbox.Runner)
	}
	if cfg.Orchestrator.MaxPlanDepth != 64 {
		t.Errorf("expected default max plan depth 64, got %d", cfg.Orchestrator.MaxPlanDepth)
	}
}

func TestLoadRejectsUnknownSecurityLevel(t *testing.T) {
	cfg := validConfig + "\n" // base is valid; mutate the level below
	cfg = strings.Replace(cfg, `default_level = "controlled"`, `default_level = "omniscient"`, 1)
	path := writeTestConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown security level")
	}
}

func TestLoadRejectsUnknownSandboxRunner(t *testing.T) {
	cfg := strings.Replace(validConfig, `runner = "bubblewrap"`, `runner = "qemu"`, 1)
	path := writeTestConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown sandbox runner")
	}
}

func TestLoadRequiresRedisAddrForRedisBackend(t *testing.T) {
	cfg := strings.Replace(validConfig, `backend = "memory"`, `backend = "redis"`, 1)
	path := writeTestConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when redis backend has no redis_addr")
	}
}

func TestLoadRequiresTemporalTargetWhenEnabled(t *testing.T) {
	cfg := strings.Replace(validConfig, "use_temporal = false", "use_temporal = true", 1)
	path := writeTestConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when use_temporal is set without a target")
	}
}

func TestLoadRejectsNonPositiveMaxPlanDepth(t *testing.T) {
	cfg := strings.Replace(validConfig, "max_plan_depth = 32", "max_plan_depth = 0", 1)
	path := writeTestConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-positive max_plan_depth")
	}
}

func TestLoadExpandsHomeInPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	cfg := strings.Replace(validConfig, `sqlite_path = "/tmp/ccos-test/ledger.db"`, `sqlite_path = "~/ccos/ledger.db"`, 1)
	path := writeTestConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := filepath.Join(home, "ccos/ledger.db")
	if loaded.CausalChain.SQLitePath != want {
		t.Errorf("SQLitePath = %q, want %q", loaded.CausalChain.SQLitePath, want)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"60s", 60 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
		{"500ms", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		var d Duration
		if err := d.UnmarshalText([]byte(tt.input)); err != nil {
			t.Errorf("UnmarshalText(%q) error: %v", tt.input, err)
			continue
		}
		if d.Duration != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.input, d.Duration, tt.want)
		}
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestDurationMarshalText(t *testing.T) {
	d := Duration{90 * time.Second}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("MarshalText = %q, want 1m30s", string(text))
	}
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := Default()
	cfg.Marketplace.AllowedCapabilities = []string{"echo"}
	cloned := cfg.Clone()
	cloned.Marketplace.AllowedCapabilities[0] = "mutated"
	if cfg.Marketplace.AllowedCapabilities[0] != "echo" {
		t.Fatalf("Clone shared underlying slice: original = %v", cfg.Marketplace.AllowedCapabilities)
	}
}
