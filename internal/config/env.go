package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays CCOS_* environment variables onto cfg, taking
// precedence over whatever the TOML file set, using direct os.LookupEnv calls
// rather than a reflection-based env-binding library. Unset and blank
// variables leave the TOML value in place.
func ApplyEnv(cfg *Config) {
	if v, ok := lookupEnv("CCOS_LOG_LEVEL"); ok {
		cfg.General.LogLevel = v
	}
	if v, ok := lookupEnvBool("CCOS_LOG_JSON"); ok {
		cfg.General.LogJSON = v
	}
	if v, ok := lookupEnv("CCOS_LISTEN_ADDR"); ok {
		cfg.General.ListenAddr = v
	}
	if v, ok := lookupEnv("CCOS_SECURITY_LEVEL"); ok {
		cfg.Security.DefaultLevel = v
	}
	if v, ok := lookupEnv("CCOS_MARKETPLACE_CATALOG_PATH"); ok {
		cfg.Marketplace.CatalogPath = v
	}
	if v, ok := lookupEnv("CCOS_CAUSAL_CHAIN_SQLITE_PATH"); ok {
		cfg.CausalChain.SQLitePath = v
	}
	if v, ok := lookupEnv("CCOS_CAUSAL_CHAIN_NDJSON_PATH"); ok {
		cfg.CausalChain.NDJSONPath = v
	}
	if v, ok := lookupEnv("CCOS_SANDBOX_RUNNER"); ok {
		cfg.Sandbox.Runner = v
	}
	if v, ok := lookupEnv("CCOS_WORKING_MEMORY_BACKEND"); ok {
		cfg.WorkingMemory.Backend = v
	}
	if v, ok := lookupEnv("CCOS_WORKING_MEMORY_REDIS_ADDR"); ok {
		cfg.WorkingMemory.RedisAddr = v
	}
	if v, ok := lookupEnv("CCOS_TELEMETRY_OTLP_ENDPOINT"); ok {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func lookupEnvBool(name string) (bool, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}

// SigningKey resolves the causal chain's HMAC signing key from the
// environment variable named in cfg.CausalChain.SigningKeyEnv.
func (cfg *Config) SigningKey() []byte {
	if cfg.CausalChain.SigningKeyEnv == "" {
		return nil
	}
	if v, ok := lookupEnv(cfg.CausalChain.SigningKeyEnv); ok {
		return []byte(v)
	}
	return nil
}
