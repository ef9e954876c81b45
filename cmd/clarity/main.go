// Clarity - Coverage determination that answers in milliseconds.
// Copyright (c) 2026 veriscript.health
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veriscript-health/clarity/internal/api"
	"github.com/veriscript-health/clarity/internal/bus"
	"github.com/veriscript-health/clarity/internal/cache"
	"github.com/veriscript-health/clarity/internal/domain"
	"github.com/veriscript-health/clarity/internal/engine"
	"github.com/veriscript-health/clarity/internal/export"
	"github.com/veriscript-health/clarity/internal/policy"
	"github.com/veriscript-health/clarity/internal/repository"
	"github.com/veriscript-health/clarity/internal/worker"
	"github.com/veriscript-health/clarity/internal/zipstate"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("CLARITY_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting clarity",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CLARITY_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if path := os.Getenv("CLARITY_POLICY"); path != "" {
		cfg.PolicyPath = path
	}
	if dir := os.Getenv("CLARITY_EXPORT_DIR"); dir != "" {
		cfg.ExportDir = dir
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the coverage engine
	eng, err := engine.NewEngine()
	if err != nil {
		slog.Error("failed to initialize coverage engine", "error", err)
		os.Exit(1)
	}
	slog.Info("coverage engine initialized")

	// Load the policy document
	policies := policy.NewStore()
	if err := loadPolicy(ctx, cfg, repo, policies, eng); err != nil {
		slog.Error("failed to load policy", "error", err)
		os.Exit(1)
	}

	// Initialize ZIP resolution
	zipSvc := zipstate.NewService(cacheImpl)
	slog.Info("zip resolution service initialized")

	// Initialize the lead export worker
	writer, err := export.NewFileWriter(cfg.ExportDir)
	if err != nil {
		slog.Error("failed to initialize export writer", "error", err)
		os.Exit(1)
	}
	exportWorker := worker.NewWorker(busImpl, repo, writer)
	if err := exportWorker.Start(); err != nil {
		slog.Error("failed to start export worker", "error", err)
		os.Exit(1)
	}
	slog.Info("export worker started", "dir", cfg.ExportDir)

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, policies, zipSvc, cfg.PolicyPath, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("clarity is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the export worker first
	if err := exportWorker.Stop(); err != nil {
		slog.Error("failed to stop export worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("clarity shutdown complete")
}

// loadPolicy publishes the startup policy snapshot: an explicit file path
// wins, then the latest repository document, then the embedded default.
func loadPolicy(ctx context.Context, cfg *domain.Config, repo domain.Repository, policies *policy.Store, eng *engine.Engine) error {
	year := policy.CurrentYear()

	if cfg.PolicyPath != "" {
		warnings, err := policies.LoadFile(cfg.PolicyPath, year, eng)
		if err != nil {
			return err
		}
		logPolicyLoaded("file", warnings)
		return nil
	}

	if warnings, err := policies.LoadFromRepository(ctx, repo, year, eng); err == nil {
		logPolicyLoaded("repository", warnings)
		return nil
	}

	warnings, err := policies.LoadEmbedded(year, eng)
	if err != nil {
		return err
	}
	logPolicyLoaded("embedded", warnings)
	return nil
}

func logPolicyLoaded(source string, warnings []string) {
	slog.Info("policy loaded", "source", source, "warnings", len(warnings))
	for _, w := range warnings {
		slog.Warn("policy validation warning", "detail", w)
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               💊 CLARITY                  ║")
	fmt.Println("  ║     Coverage Determination Engine         ║")
	fmt.Println("  ║      Know before the pharmacy does.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /classify           - Classify a coverage profile")
	fmt.Println("    POST /safety-check       - Evaluate the safety stop guard")
	fmt.Println("    POST /member-id/validate - Validate a member ID")
	fmt.Println("    POST /carrier/resolve    - Resolve a free-text carrier name")
	fmt.Println("    GET  /zip/{zip}          - Resolve a ZIP code to a state")
	fmt.Println("    GET  /submissions        - List recent submissions")
	fmt.Println("    GET  /submissions/{id}   - Get submission by ID")
	fmt.Println("    GET  /policy             - Get the active policy document")
	fmt.Println("    POST /policy/reload      - Hot-reload the policy document")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}
