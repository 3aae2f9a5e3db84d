package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antigravity-dev/ccos/internal/arbiter"
	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/config"
	"github.com/antigravity-dev/ccos/internal/health"
	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/ledgerstore"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/orchestrator"
	"github.com/antigravity-dev/ccos/internal/sandbox"
	"github.com/antigravity-dev/ccos/internal/telemetry"
	"github.com/antigravity-dev/ccos/internal/values"
	"github.com/antigravity-dev/ccos/internal/workingmemory"
)

func configureLogger(logLevel string, useJSON bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runtimeContextFor(cfg *config.Config) *host.RuntimeContext {
	switch cfg.Security.DefaultLevel {
	case "full":
		rc := host.NewFullContext()
		rc.MaxCapabilityCallsPerPlan = cfg.Security.MaxCapabilityCallsPerPlan
		return rc
	case "controlled":
		rc := host.NewControlledContext(cfg.Marketplace.AllowedCapabilities...)
		rc.MaxCapabilityCallsPerPlan = cfg.Security.MaxCapabilityCallsPerPlan
		return rc
	default:
		return host.NewPureContext()
	}
}

func sandboxRunner(cfg *config.Config) (sandbox.Runner, error) {
	switch cfg.Sandbox.Runner {
	case "docker":
		return sandbox.NewDockerRunner(cfg.Sandbox.Image)
	case "bubblewrap":
		return &sandbox.BubblewrapRunner{}, nil
	default:
		return nil, nil
	}
}

func workingMemoryBackend(cfg *config.Config, logger *slog.Logger) (workingmemory.Backend, error) {
	switch cfg.WorkingMemory.Backend {
	case "redis":
		return workingmemory.NewRedisBackend(cfg.WorkingMemory.RedisAddr, "", cfg.WorkingMemory.Capacity, workingmemory.DefaultMaxTokens, logger)
	default:
		return workingmemory.NewMemoryBackend(cfg.WorkingMemory.Capacity, workingmemory.DefaultMaxTokens), nil
	}
}

func main() {
	configPath := flag.String("config", "ccosd.toml", "path to config file")
	once := flag.Bool("once", false, "run a single canned plan then exit")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	bootLogger.Info("ccosd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := configureLogger(cfg.General.LogLevel, cfg.General.LogJSON || !*dev)
	if *dev {
		logger = configureLogger(cfg.General.LogLevel, false)
	}
	slog.SetDefault(logger)

	lockPath := "/tmp/ccosd.lock"
	lockFile, err := health.AcquireFlock(lockPath)
	if err != nil {
		logger.Error("failed to acquire lock", "path", lockPath, "error", err)
		os.Exit(1)
	}
	defer health.ReleaseFlock(lockFile)

	var persister causalchain.Persister
	if cfg.CausalChain.SQLitePath != "" && cfg.CausalChain.NDJSONPath != "" {
		store, err := ledgerstore.Open(cfg.CausalChain.SQLitePath, cfg.CausalChain.NDJSONPath)
		if err != nil {
			logger.Error("failed to open ledger store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		persister = store
	}

	chainOpts := []causalchain.Option{causalchain.WithLogCapacity(cfg.CausalChain.LogCapacity)}
	if key := cfg.SigningKey(); key != nil {
		chainOpts = append(chainOpts, causalchain.WithSigningKey(key))
	}
	if persister != nil {
		chainOpts = append(chainOpts, causalchain.WithPersister(persister))
	}
	chain := causalchain.New(chainOpts...)

	market := marketplace.New()
	if cfg.Marketplace.CatalogPath != "" {
		if err := market.LoadCatalog(cfg.Marketplace.CatalogPath); err != nil {
			logger.Error("failed to load capability catalog", "path", cfg.Marketplace.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	wmBackend, err := workingMemoryBackend(cfg, logger.With("component", "workingmemory"))
	if err != nil {
		logger.Error("failed to build working memory backend", "error", err)
		os.Exit(1)
	}
	ingestor := workingmemory.NewIngestor(wmBackend, logger.With("component", "workingmemory"))
	chain.RegisterSink(ingestor)
	if err := market.Register(&marketplace.Capability{
		ID:       workingmemory.IngestorCapabilityID,
		Provider: marketplace.ProviderLocal,
		Local: func(ctx context.Context, args []values.Value) (values.Value, error) {
			return ingestor.AsCapability(chain)(ctx, args)
		},
	}); err != nil {
		logger.Error("failed to register working memory ingestor capability", "error", err)
		os.Exit(1)
	}

	runner, err := sandboxRunner(cfg)
	if err != nil {
		logger.Error("failed to build sandbox runner", "error", err)
		os.Exit(1)
	}

	rctx := runtimeContextFor(cfg)
	h := host.New(chain, market, rctx)

	if runner != nil {
		sandboxHost := sandbox.NewLineProtocolHost(runner, h, logger.With("component", "sandbox"))
		_ = sandboxHost // built but not registered as any capability's Local handler in this build
	}

	var telemetryProvider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		telemetryProvider, err = telemetry.NewProvider(cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, logger.With("component", "telemetry"))
		if err != nil {
			logger.Error("failed to start telemetry provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetryProvider.Shutdown(shutdownCtx)
		}()
		if _, err := telemetry.RegisterMetricsBridge(telemetryProvider.Meter(), chain); err != nil {
			logger.Error("failed to register metrics bridge", "error", err)
			os.Exit(1)
		}
	}

	orch := orchestrator.New(chain, h)
	staticArbiter := arbiter.NewStaticArbiter()

	if *once {
		logger.Info("running a single canned plan (--once mode)")
		intent, err := staticArbiter.NaturalLanguageToIntent("echo hello from ccosd", nil)
		if err != nil {
			logger.Error("arbiter failed to build intent", "error", err)
			os.Exit(1)
		}
		plan, err := staticArbiter.IntentToPlan(intent)
		if err != nil {
			logger.Error("arbiter failed to build plan", "error", err)
			os.Exit(1)
		}
		result := orch.ValidateAndExecutePlan(plan, rctx)
		if !result.Success {
			logger.Error("plan execution failed", "error", result.Err)
			os.Exit(1)
		}
		logger.Info("plan execution complete", "value", result.Value)
		return
	}

	logger.Info("ccosd running", "listen_addr", cfg.General.ListenAddr, "sandbox_runner", cfg.Sandbox.Runner, "working_memory_backend", cfg.WorkingMemory.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	shutdownStart := time.Now()
	logger.Info("received signal, shutting down", "signal", fmt.Sprint(sig))
	logger.Info("ccosd stopped", "shutdown_duration", time.Since(shutdownStart).String())
}
