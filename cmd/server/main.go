package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/api"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/cache"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/config"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/db"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/helius"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/httputil"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/repository"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/scheduler"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/solana"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/trader"
)

const banner = `
╔══════════════════════════════════════╗
║    WAVE WARZ On-Chain Analytics      ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	dbTime, err := db.TestConnection(pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[DB] Connection verified, server time %s\n", dbTime.Format(time.RFC3339))

	battleRepo := repository.NewBattleRepo(pool)

	// Chain clients share one retry policy; every retry lands in the
	// metrics so RPC flakiness is visible.
	metrics := observability.NewMetrics()
	retry := httputil.DefaultRetry
	retry.OnRetry = func(attempt int, err error) {
		metrics.RetryObserved()
	}

	rpc := solana.NewClient(cfg.SolanaRPCURL, retry)
	history := helius.NewClient(cfg.HeliusBaseURL, cfg.HeliusAPIKey, retry)
	programID := solana.MustPublicKey(cfg.BattleProgramID)

	assembler := battle.NewAssembler(rpc, history, battleRepo, metrics, battle.AssemblerConfig{
		ProgramID: programID,
		CacheTTL:  time.Duration(cfg.SnapshotTTLMinutes) * time.Minute,
	})
	portfolios := trader.NewAggregator(history, programID)

	// Optional Redis profile cache
	var profiles *cache.ProfileCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[REDIS] Invalid REDIS_URL: %v\n", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			fmt.Fprintf(os.Stderr, "[REDIS] Ping failed, profile cache disabled: %v\n", err)
		} else {
			profiles = cache.NewProfileCache(rdb, time.Duration(cfg.ProfileTTLMinutes)*time.Minute)
			fmt.Println("[REDIS] Profile cache connected")
		}
	}

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(pool, assembler, portfolios, profiles, metrics, api.ServerConfig{
		Port:            cfg.APIPort,
		APIKey:          cfg.APIKey,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		ScanConcurrency: cfg.ScanConcurrency,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Snapshot refresher (shares the assembler and its caches)
	var refresher *scheduler.Refresher
	if cfg.RefresherEnabled {
		refresher = scheduler.NewRefresher(battleRepo, assembler, scheduler.RefresherConfig{
			Interval: time.Duration(cfg.SnapshotRefreshMinutes) * time.Minute,
		})
		refresher.Start()
	} else {
		fmt.Println("[REFRESHER] Skipped - disabled by configuration")
	}

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	if refresher != nil {
		refresher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
