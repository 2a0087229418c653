// Command econsim runs the token economy day simulator behind an HTTP
// control surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/mini-economy/internal/api"
	"github.com/talgya/mini-economy/internal/config"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/entropy"
	"github.com/talgya/mini-economy/internal/history"
	"github.com/talgya/mini-economy/internal/llm"
	"github.com/talgya/mini-economy/internal/persistence"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("mini-economy day simulator starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Randomness ────────────────────────────────────────────────────
	var rng entropy.Source
	switch {
	case cfg.Seed != 0:
		rng = entropy.NewSeeded(cfg.Seed)
		slog.Info("seeded run", "seed", cfg.Seed)
	case cfg.Entropy.RandomOrgKey != "":
		rng = entropy.NewClient(cfg.Entropy.RandomOrgKey).Source()
		slog.Info("random.org entropy enabled")
	default:
		rng = entropy.NewCrypto()
	}

	// ── History sinks ─────────────────────────────────────────────────
	hub := api.NewHub()
	go hub.Run(ctx)
	sinks := history.Multi{hub}

	var db *persistence.DB
	if cfg.History.SQLitePath != "" {
		db, err = openHistoryDB(cfg.History.SQLitePath)
		if err != nil {
			slog.Error("failed to open database", "path", cfg.History.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if last, err := db.GetMeta("last_run"); err == nil {
			slog.Info("database opened", "path", cfg.History.SQLitePath, "previous_run", last)
		} else {
			slog.Info("database opened", "path", cfg.History.SQLitePath)
		}
		sinks = append(sinks, db)
	}

	if cfg.History.ArchiveDir != "" {
		archive := history.NewArchive(cfg.History.ArchiveDir)
		defer archive.Close()
		sinks = append(sinks, archive)
		slog.Info("day archive enabled", "dir", cfg.History.ArchiveDir)
	}

	// ── Oracle ────────────────────────────────────────────────────────
	var oracle engine.Oracle
	client := llm.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.MaxPerMinute)
	if o := llm.NewOracle(client); o != nil {
		oracle = o
		slog.Info("LLM oracle enabled", "model", client.Model(), "min_interval", cfg.Oracle.MinInterval)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, agents will use the fallback policy")
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.New(engine.Options{
		OracleInterval: cfg.Oracle.MinInterval,
		OracleTimeout:  cfg.Oracle.Timeout,
	}, oracle, sinks, rng)
	if db != nil {
		if err := db.SaveMeta("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Error("save meta failed", "error", err)
		}
		if err := db.SaveMeta("seed", strconv.FormatInt(cfg.Seed, 10)); err != nil {
			slog.Error("save meta failed", "error", err)
		}
	}

	driver := engine.NewDriver(ctx, sim, cfg.Driver.Every)
	if cfg.Driver.AutoStart {
		if err := driver.Start(); err != nil {
			slog.Error("auto-advance failed to start", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.HTTP.AdminKey == "" {
		slog.Warn("ECONSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:       sim,
		Driver:    driver,
		Hub:       hub,
		Port:      cfg.HTTP.Port,
		AdminKey:  cfg.HTTP.AdminKey,
		AdminRate: cfg.HTTP.AdminRate,
	}
	if db != nil {
		apiServer.Store = db
	}
	apiServer.Start()

	fmt.Printf("\nRun %s: %d agents on day %d.\n", sim.RunID(), len(sim.Snapshot().Agents), sim.Snapshot().Day)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.HTTP.Port)
	fmt.Println("Waiting for commands... (Ctrl+C to stop)")

	<-ctx.Done()
	slog.Info("shutting down")

	driver.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	fmt.Println("Simulation stopped.")
}

// openHistoryDB creates the database's parent directory and opens it.
func openHistoryDB(path string) (*persistence.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return persistence.Open(path)
}
