// Package main runs the retirement simulation service: HTTP + WebSocket
// transport in front of the simulation orchestrator, with optional run
// history in PostgreSQL and run analytics in ClickHouse.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"retirement-sim-lab/internal/api"
	"retirement-sim-lab/internal/kernel"
	"retirement-sim-lab/internal/kernel/stub"
	"retirement-sim-lab/internal/orchestrator"
	"retirement-sim-lab/internal/storage"
	chstore "retirement-sim-lab/internal/storage/clickhouse"
	"retirement-sim-lab/internal/storage/memory"
	"retirement-sim-lab/internal/storage/migrations"
	pgstore "retirement-sim-lab/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	kernelURL := flag.String("kernel-url", os.Getenv("KERNEL_URL"), "Kernel sidecar base URL")
	kernelTimeout := flag.Duration("kernel-timeout", 60*time.Second, "Kernel call timeout")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for run history")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for run analytics")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	useStubKernel := flag.Bool("use-stub-kernel", false, "Use the in-process stub kernel instead of a sidecar")
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "Graceful shutdown timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useStubKernel && *kernelURL == "" {
		logger.Fatal("--kernel-url is required (or pass --use-stub-kernel)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kernel engine
	var engine kernel.Engine
	if *useStubKernel {
		logger.Println("Using in-process stub kernel")
		engine = stub.NewEngine()
	} else {
		engine = kernel.NewHTTPClient(*kernelURL, kernel.WithTimeout(*kernelTimeout))
		if err := engine.Ready(ctx); err != nil {
			logger.Printf("WARNING: kernel not ready at startup: %v", err)
		}
	}

	// Storage
	runStore, runStatsStore, closeStores := createStores(ctx, logger, *useMemory, *postgresDSN, *clickhouseDSN)
	defer closeStores()

	// Orchestrator
	orch, err := orchestrator.New(orchestrator.Options{
		Engine: engine,
		Logger: log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create orchestrator: %v", err)
	}

	// HTTP server
	srv, err := api.NewServer(api.Options{
		Orchestrator:  orch,
		Engine:        engine,
		RunStore:      runStore,
		RunStatsStore: runStatsStore,
		Logger:        log.New(os.Stdout, "[api] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Starting HTTP server on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown: %v", err)
	}
	cancel()
	logger.Println("Shutdown complete")
}

// createStores builds the run history and analytics stores. Both fall back
// to in-memory implementations when their DSN is absent; persistence is an
// optional feature of the service, never a prerequisite.
func createStores(ctx context.Context, logger *log.Logger, useMemory bool,
	postgresDSN, clickhouseDSN string) (storage.RunStore, storage.RunStatisticsStore, func()) {

	if useMemory || (postgresDSN == "" && clickhouseDSN == "") {
		logger.Println("Using in-memory run storage")
		return memory.NewRunStore(), memory.NewRunStatisticsStore(), func() {}
	}

	var closers []func()

	var runStore storage.RunStore = memory.NewRunStore()
	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run PostgreSQL migrations: %v", err)
		}
		logger.Println("Connected to PostgreSQL run history")
		runStore = pgstore.NewRunStore(pool)
		closers = append(closers, pool.Close)
	}

	var runStatsStore storage.RunStatisticsStore = memory.NewRunStatisticsStore()
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		logger.Println("Connected to ClickHouse run analytics")
		runStatsStore = chstore.NewRunStatisticsStore(conn)
		closers = append(closers, func() { conn.Close() })
	}

	return runStore, runStatsStore, func() {
		for _, c := range closers {
			c()
		}
	}
}

// envOr returns the env var value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
