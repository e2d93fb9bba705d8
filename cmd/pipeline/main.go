// Package main provides the end-to-end media-mix pipeline entry point.
// Executes: dataset → fit → attribution → optimization → persistence → report
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/observability"
	"mediamix-lab/internal/orchestrator"
	"mediamix-lab/internal/storage"
	"mediamix-lab/internal/storage/clickhouse"
	"mediamix-lab/internal/storage/memory"
	"mediamix-lab/internal/storage/migrations"
	"mediamix-lab/internal/storage/postgres"
	"mediamix-lab/internal/storage/rediscache"
	"mediamix-lab/internal/synthetic"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	periods := flag.Int("periods", 156, "Number of weekly periods to generate")
	seed := flag.Uint64("seed", 42, "Dataset generation seed")
	budget := flag.Float64("budget", 0, "Per-period budget to optimize (0 = historical mean spend)")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")

	chains := flag.Int("chains", 0, "Sampler chains (0 = default)")
	warmup := flag.Int("warmup", 0, "Warm-up draws per chain (0 = default)")
	draws := flag.Int("draws", 0, "Retained draws per chain (0 = default)")
	fitSeed := flag.Int64("fit-seed", 1, "Sampler seed")
	progress := flag.Bool("progress", false, "Show sampling progress bars")
	verbose := flag.Bool("verbose", false, "Enable engine debug logging")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	redisURL := flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL for the model cache (optional)")
	cacheTTL := flag.Duration("cache-ttl", rediscache.DefaultTTL, "Model cache TTL")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (empty = disabled)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling pipeline...", sig)
		cancel()
	}()

	// Optional metrics endpoint; long fits are scraped mid-run.
	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *redisURL, *cacheTTL, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Generate the demo dataset
	truth := synthetic.DefaultGroundTruth()
	data, err := synthetic.Generate(synthetic.Config{Periods: *periods, Seed: *seed}, truth)
	if err != nil {
		logger.Fatalf("Failed to generate dataset: %v", err)
	}
	logger.Printf("Dataset: %d periods, %d channels, %d controls",
		data.Len(), len(truth.Channels), len(truth.Controls))

	// Assemble the fit configuration
	fitCfg := domain.DefaultFitConfig()
	if *chains > 0 {
		fitCfg.Chains = *chains
	}
	if *warmup > 0 {
		fitCfg.Warmup = *warmup
	}
	if *draws > 0 {
		fitCfg.Draws = *draws
	}
	fitCfg.Seed = *fitSeed
	fitCfg.Progress = *progress
	fitCfg.PreEstimate = true

	// Engine logger: silent unless --verbose
	engineLogger := slog.New(slog.DiscardHandler)
	if *verbose {
		engineLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	orch := orchestrator.New(orchestrator.Options{
		ModelStore:        stores.modelStore,
		SampleStore:       stores.sampleStore,
		OptimizationStore: stores.optimizationStore,
		Channels:          truth.Specs(),
		Controls:          truth.ControlNames(),
		Fit:               fitCfg,
		TotalBudget:       *budget,
		OutputDir:         *outputDir,
		Logger:            engineLogger,
	})

	logger.Printf("Fitting %d chains x (%d warmup + %d draws)...", fitCfg.Chains, fitCfg.Warmup, fitCfg.Draws)
	start := time.Now()
	result, err := orch.Run(ctx, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline error: %v\n", err)
		os.Exit(1)
	}

	printSummary(result, time.Since(start))
}

// printSummary writes the run outcome for the operator.
func printSummary(result *orchestrator.RunResult, elapsed time.Duration) {
	diag := result.Model.Diagnostics
	fmt.Printf("\nPipeline completed in %v:\n", elapsed.Round(time.Second))
	fmt.Printf("  Model: %s (run %s)\n", result.ModelID, result.RunID)
	fmt.Printf("  Converged: %v (max R-hat %.3f, min ESS %.0f, divergences %d)\n",
		diag.Converged, diag.MaxRHat, diag.MinESS, diag.Divergences)
	fmt.Printf("  Draws persisted: %d\n", result.DrawsPersisted)

	fmt.Printf("\nAttribution:\n")
	for _, ch := range result.ROI.Channels {
		fmt.Printf("  %-10s contribution %.0f [%.0f, %.0f], ROI %.3f\n",
			ch.Channel, ch.Contribution.Mean, ch.Contribution.Lower, ch.Contribution.Upper, ch.ROI.Mean)
	}

	opt := result.Optimization
	fmt.Printf("\nAllocation (budget %.2f, expected response %.0f [%.0f, %.0f]):\n",
		result.Budget, opt.Expected.Mean, opt.Expected.Lower, opt.Expected.Upper)
	channels := make([]string, 0, len(opt.Allocation))
	for name := range opt.Allocation {
		channels = append(channels, name)
	}
	sort.Strings(channels)
	for _, name := range channels {
		fmt.Printf("  %-10s %.2f\n", name, opt.Allocation[name])
	}

	if len(result.ReportPaths) > 0 {
		fmt.Printf("\nReports:\n")
		for _, path := range result.ReportPaths {
			fmt.Printf("  - %s\n", path)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

// allStores holds the three persistence backends.
type allStores struct {
	modelStore        storage.ModelStore
	sampleStore       storage.SampleStore
	optimizationStore storage.OptimizationStore
}

// createStores creates all required stores, running migrations for the
// database-backed ones. The returned cleanup closes every connection.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, redisURL string, cacheTTL time.Duration, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			modelStore:        memory.NewModelStore(),
			sampleStore:       memory.NewSampleStore(),
			optimizationStore: memory.NewOptimizationStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL (models + optimizations)
	pool, err := postgres.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse (posterior draws)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		modelStore:        postgres.NewModelStore(pool),
		sampleStore:       clickhouse.NewSampleStore(chConn),
		optimizationStore: postgres.NewOptimizationStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	// Optional Redis read-through cache in front of the model store
	if redisURL != "" {
		client, err := rediscache.Connect(ctx, redisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		stores.modelStore = rediscache.NewModelCache(stores.modelStore, client, cacheTTL)
		inner := cleanup
		cleanup = func() {
			client.Close()
			inner()
		}
	}

	return stores, cleanup, nil
}

// serveMetrics exposes /metrics and /health for the duration of the run.
func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
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
