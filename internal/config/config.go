// Package config loads and validates the CCOS daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the daemon's top-level configuration tree, loaded from a
// ccosd.toml file and overridden by the CCOS_* environment variables
// (see ApplyEnv in env.go).
type Config struct {
	General       General                `toml:"general"`
	Security      Security               `toml:"security"`
	Marketplace   Marketplace            `toml:"marketplace"`
	CausalChain   CausalChain            `toml:"causal_chain"`
	Orchestrator  Orchestrator           `toml:"orchestrator"`
	Sandbox       Sandbox                `toml:"sandbox"`
	WorkingMemory WorkingMemory          `toml:"working_memory"`
	Telemetry     Telemetry              `toml:"telemetry"`
}

type General struct {
	LogLevel   string `toml:"log_level"` // debug, info, warn, error
	LogJSON    bool   `toml:"log_json"`
	ListenAddr string `toml:"listen_addr"`
}

type Security struct {
	DefaultLevel              string `toml:"default_level"` // pure, controlled, full
	MaxCapabilityCallsPerPlan int    `toml:"max_capability_calls_per_plan"`
}

type Marketplace struct {
	CatalogPath        string   `toml:"catalog_path"`
	ManifestSchemaPath string   `toml:"manifest_schema_path"`
	DefaultRateLimit   float64  `toml:"default_rate_limit_per_second"`
	AllowedCapabilities []string `toml:"allowed_capabilities"`
}

type CausalChain struct {
	SigningKeyEnv string `toml:"signing_key_env"` // name of the env var holding the HMAC key
	LogCapacity   int    `toml:"log_capacity"`
	SQLitePath    string `toml:"sqlite_path"`
	NDJSONPath    string `toml:"ndjson_path"`
}

type Orchestrator struct {
	MaxPlanDepth   int      `toml:"max_plan_depth"`
	CheckpointTTL  Duration `toml:"checkpoint_ttl"`
	UseTemporal    bool     `toml:"use_temporal"`
	TemporalTarget string   `toml:"temporal_target"`
	TaskQueue      string   `toml:"task_queue"`
}

type Sandbox struct {
	Runner      string   `toml:"runner"` // docker, bubblewrap, none
	Image       string   `toml:"image"`
	CallTimeout Duration `toml:"call_timeout"`
}

type WorkingMemory struct {
	Backend   string `toml:"backend"` // memory, redis
	RedisAddr string `toml:"redis_addr"`
	Capacity  int    `toml:"capacity"`
}

type Telemetry struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Clone returns a deep copy of cfg so callers can safely mutate the result.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.Marketplace.AllowedCapabilities = cloneStringSlice(cfg.Marketplace.AllowedCapabilities)
	return &cloned
}

func cloneStringSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Default returns a Config with conservative, safe-by-default values.
func Default() Config {
	return Config{
		General:      General{LogLevel: "info", ListenAddr: "127.0.0.1:8443"},
		Security:     Security{DefaultLevel: "controlled", MaxCapabilityCallsPerPlan: 256},
		Marketplace:  Marketplace{DefaultRateLimit: 10},
		CausalChain:  CausalChain{LogCapacity: 4096, SQLitePath: "ccos-ledger.db", NDJSONPath: "ccos-ledger.ndjson"},
		Orchestrator: Orchestrator{MaxPlanDepth: 64, CheckpointTTL: Duration{24 * time.Hour}, TaskQueue: "ccos-plans"},
		Sandbox:      Sandbox{Runner: "docker", CallTimeout: Duration{30 * time.Second}},
		WorkingMemory: WorkingMemory{Backend: "memory", Capacity: 2000},
		Telemetry:    Telemetry{ServiceName: "ccosd"},
	}
}

// Load reads a TOML file onto Default(), applies the CCOS_* environment
// overlay, normalizes filesystem paths, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	ApplyEnv(&cfg)
	normalizePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validating: %w", err)
	}
	return &cfg, nil
}

// Reload re-reads path, mirroring Load but named for runtime-refresh call
// sites (config manager, SIGHUP handler).
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager reads config from path and returns an RWMutex-backed
// thread-safe manager for runtime reloads.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

func normalizePaths(cfg *Config) {
	cfg.CausalChain.SQLitePath = ExpandHome(strings.TrimSpace(cfg.CausalChain.SQLitePath))
	cfg.CausalChain.NDJSONPath = ExpandHome(strings.TrimSpace(cfg.CausalChain.NDJSONPath))
	cfg.Marketplace.CatalogPath = ExpandHome(strings.TrimSpace(cfg.Marketplace.CatalogPath))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func validate(cfg *Config) error {
	switch cfg.Security.DefaultLevel {
	case "pure", "controlled", "full":
	default:
		return fmt.Errorf("security.default_level must be one of pure, controlled, full, got %q", cfg.Security.DefaultLevel)
	}
	if cfg.Security.MaxCapabilityCallsPerPlan < 0 {
		return fmt.Errorf("security.max_capability_calls_per_plan cannot be negative")
	}
	switch cfg.Sandbox.Runner {
	case "docker", "bubblewrap", "none":
	default:
		return fmt.Errorf("sandbox.runner must be one of docker, bubblewrap, none, got %q", cfg.Sandbox.Runner)
	}
	switch cfg.WorkingMemory.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("working_memory.backend must be one of memory, redis, got %q", cfg.WorkingMemory.Backend)
	}
	if cfg.WorkingMemory.Backend == "redis" && cfg.WorkingMemory.RedisAddr == "" {
		return fmt.Errorf("working_memory.redis_addr is required when backend is redis")
	}
	if cfg.Orchestrator.MaxPlanDepth <= 0 {
		return fmt.Errorf("orchestrator.max_plan_depth must be > 0")
	}
	if cfg.Orchestrator.UseTemporal && cfg.Orchestrator.TemporalTarget == "" {
		return fmt.Errorf("orchestrator.temporal_target is required when use_temporal is enabled")
	}
	return nil
}
