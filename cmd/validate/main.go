// Package main runs the synthetic validation suite: fit a model on data with
// known ground truth and check recovery, sampler health, predictive accuracy,
// attribution and optimizer uplift. Exits non-zero on a FAIL verdict so CI
// can gate on it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/observability"
	"mediamix-lab/internal/report"
	"mediamix-lab/internal/validation"
)

func main() {
	// Parse flags
	periods := flag.Int("periods", 156, "Number of weekly periods to generate")
	seed := flag.Uint64("seed", 7, "Dataset generation seed")
	samples := flag.Int("samples", 0, "Random allocations for the uplift benchmark (0 = default)")
	budget := flag.Float64("budget", 0, "Optimizer budget (0 = derived from ground truth)")

	chains := flag.Int("chains", 0, "Sampler chains (0 = default)")
	warmup := flag.Int("warmup", 0, "Warm-up draws per chain (0 = default)")
	draws := flag.Int("draws", 0, "Retained draws per chain (0 = default)")
	fitSeed := flag.Int64("fit-seed", 7, "Sampler seed")
	progress := flag.Bool("progress", false, "Show sampling progress bars")
	verbose := flag.Bool("verbose", false, "Enable engine debug logging")

	outputJSON := flag.Bool("json", false, "Output the suite result as JSON")
	outputPath := flag.String("output", "", "Write a markdown validation report to this path")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[validate] ", log.LstdFlags)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

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

	logger.Printf("Running validation suite: %d periods, %d chains x (%d warmup + %d draws)",
		*periods, fitCfg.Chains, fitCfg.Warmup, fitCfg.Draws)
	start := time.Now()

	res, err := validation.RunSuite(ctx, validation.SuiteConfig{
		Periods: *periods,
		Seed:    *seed,
		Fit:     fitCfg,
		Budget:  *budget,
		Samples: *samples,
		Logger:  engineLogger,
	})
	if err != nil {
		logger.Fatalf("validation suite failed to run: %v", err)
	}
	observability.RecordValidationRun(string(res.Verdict))

	if *outputJSON {
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
	} else {
		printSuiteResult(res, time.Since(start))
	}

	if *outputPath != "" {
		rep := report.Build(res.Model, nil, nil, res, time.Now().UTC())
		if err := os.WriteFile(*outputPath, []byte(report.RenderMarkdown(rep)), 0644); err != nil {
			logger.Fatalf("write report: %v", err)
		}
		logger.Printf("Report written to %s", *outputPath)
	}

	if res.Verdict != validation.VerdictPass {
		os.Exit(1)
	}
}

// printSuiteResult outputs the human-readable criteria table.
func printSuiteResult(res *validation.SuiteResult, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("=== Validation Suite ===")
	fmt.Printf("Model: %s (%v)\n", res.Model.ModelID, elapsed.Round(time.Second))

	printGroup("Recovery", res.Recovery)
	printGroup("Sampler health", res.Diagnostics)
	printGroup("Predictive accuracy", res.Accuracy)
	printGroup("Attribution", res.Attribution)
	if res.Uplift != nil {
		printGroup("Optimizer uplift", res.Uplift.Criteria)
		fmt.Printf("\n  optimal %.2f vs historical %.2f, random best %.2f (mean %.2f)\n",
			res.Uplift.Optimal, res.Uplift.Historical, res.Uplift.RandomBest, res.Uplift.RandomMean)
	}

	fmt.Printf("\nAccuracy: MAPE %.2f%%, R2 %.3f, coverage %.2f\n",
		res.Metrics.MAPE, res.Metrics.R2, res.Metrics.Coverage)
	fmt.Printf("\nVerdict: %s\n", res.Verdict)
}

// printGroup prints one criterion group as an aligned table.
func printGroup(title string, rows []validation.CriterionResult) {
	if len(rows) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, row := range rows {
		status := "PASS"
		if !row.Pass {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %-24s %-18s %s\n", status, row.Name, row.Threshold, row.Actual)
	}
}
