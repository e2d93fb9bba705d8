// Package orchestrator provides E2E pipeline orchestration tests.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/optimizer"
	"mediamix-lab/internal/storage/memory"
	"mediamix-lab/internal/synthetic"
)

// testStores holds all memory stores for testing.
type testStores struct {
	modelStore        *memory.ModelStore
	sampleStore       *memory.SampleStore
	optimizationStore *memory.OptimizationStore
}

func createTestStores() *testStores {
	return &testStores{
		modelStore:        memory.NewModelStore(),
		sampleStore:       memory.NewSampleStore(),
		optimizationStore: memory.NewOptimizationStore(),
	}
}

func pipelineFitConfig() domain.FitConfig {
	cfg := domain.DefaultFitConfig()
	cfg.Chains = 2
	cfg.Warmup = 150
	cfg.Draws = 100
	cfg.Trend = false
	cfg.Harmonics = 0
	cfg.Seed = 7
	cfg.PreEstimate = true
	return cfg
}

func pipelineDataset(t *testing.T) (*domain.TimeSeries, synthetic.GroundTruth) {
	t.Helper()
	truth := synthetic.SingleChannelTruth()
	truth.Sigma = 0.05
	data, err := synthetic.Generate(synthetic.Config{Periods: 120, Seed: 11}, truth)
	if err != nil {
		t.Fatalf("generate dataset: %v", err)
	}
	return data, truth
}

func TestOrchestrator_Run_SchemaErrors(t *testing.T) {
	ctx := context.Background()
	data, truth := pipelineDataset(t)

	// No channels configured.
	orch := New(Options{Fit: pipelineFitConfig()})
	_, err := orch.Run(ctx, data)
	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError for empty channel list", err)
	}
	if !strings.Contains(err.Error(), "phase schema failed") {
		t.Errorf("error does not name the failed phase: %v", err)
	}

	// Channel column missing from the dataset.
	specs := truth.Specs()
	specs[0].Name = "print"
	orch = New(Options{Channels: specs, Fit: pipelineFitConfig()})
	_, err = orch.Run(ctx, data)
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError for missing column", err)
	}
	if schemaErr.Column != "print" {
		t.Errorf("SchemaError.Column = %q, want print", schemaErr.Column)
	}

	// Control column missing from the dataset.
	orch = New(Options{Channels: truth.Specs(), Controls: []string{"weather"}, Fit: pipelineFitConfig()})
	_, err = orch.Run(ctx, data)
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError for missing control", err)
	}
	if schemaErr.Column != "weather" {
		t.Errorf("SchemaError.Column = %q, want weather", schemaErr.Column)
	}
}

func TestOrchestrator_Run_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sampler pipeline in short mode")
	}

	ctx := context.Background()
	stores := createTestStores()
	data, truth := pipelineDataset(t)
	outDir := t.TempDir()

	orch := New(Options{
		ModelStore:        stores.modelStore,
		SampleStore:       stores.sampleStore,
		OptimizationStore: stores.optimizationStore,
		Channels:          truth.Specs(),
		Fit:               pipelineFitConfig(),
		OutputDir:         outDir,
		Now:               func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})

	result, err := orch.Run(ctx, data)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.HasPrefix(result.ModelID, "mmx1") {
		t.Errorf("ModelID = %q, want mmx1 prefix", result.ModelID)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}
	if result.Model == nil || result.ROI == nil || result.Optimization == nil {
		t.Fatal("run result is missing artifacts")
	}
	for _, phase := range []string{"schema", "fit", "roi", "optimize", "persist", "report"} {
		if _, ok := result.PhaseDurations[phase]; !ok {
			t.Errorf("phase %q was not timed", phase)
		}
	}

	// Zero budget derives the historical per-period spend level.
	wantBudget := result.Model.ChannelStats["tv"].MeanSpend
	if result.Budget != wantBudget {
		t.Errorf("Budget = %v, want mean historical spend %v", result.Budget, wantBudget)
	}
	if got := result.Optimization.Allocation["tv"]; !withinRel(got, result.Budget, 1e-6) {
		t.Errorf("single channel allocation = %v, want full budget %v", got, result.Budget)
	}

	// Persistence round trip.
	stored, err := stores.modelStore.GetByID(ctx, result.ModelID)
	if err != nil {
		t.Fatalf("model not persisted: %v", err)
	}
	if stored.NumDraws() != result.Model.NumDraws() {
		t.Errorf("stored draws = %d, want %d", stored.NumDraws(), result.Model.NumDraws())
	}
	wantDraws := len(result.Model.ParameterNames()) * result.Model.NumDraws()
	if result.DrawsPersisted != wantDraws {
		t.Errorf("DrawsPersisted = %d, want %d", result.DrawsPersisted, wantDraws)
	}
	count, err := stores.sampleStore.CountByModelID(ctx, result.ModelID)
	if err != nil {
		t.Fatalf("count draws: %v", err)
	}
	if count != int64(wantDraws) {
		t.Errorf("stored draw rows = %d, want %d", count, wantDraws)
	}
	opts, err := stores.optimizationStore.ListByModelID(ctx, result.ModelID)
	if err != nil {
		t.Fatalf("list optimizations: %v", err)
	}
	if len(opts) != 1 || opts[0].OptimizationID != result.OptimizationID {
		t.Errorf("persisted optimizations = %+v, want one with ID %s", opts, result.OptimizationID)
	}

	// Report files.
	if len(result.ReportPaths) != 3 {
		t.Fatalf("ReportPaths = %v, want 3 files", result.ReportPaths)
	}
	md, err := os.ReadFile(filepath.Join(outDir, "REPORT.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, section := range []string{"# Media Mix Report", "## Fit Summary", "## Channel ROI", "## Budget Allocation"} {
		if !strings.Contains(string(md), section) {
			t.Errorf("report missing section %q", section)
		}
	}
	roiCSV, err := os.ReadFile(filepath.Join(outDir, "channel_roi.csv"))
	if err != nil {
		t.Fatalf("read roi csv: %v", err)
	}
	if !strings.HasPrefix(string(roiCSV), "channel,total_spend,") {
		t.Errorf("roi csv header = %q", firstLine(string(roiCSV)))
	}
	allocCSV, err := os.ReadFile(filepath.Join(outDir, "allocation.csv"))
	if err != nil {
		t.Fatalf("read allocation csv: %v", err)
	}
	if !strings.HasPrefix(string(allocCSV), "channel,current,optimized,") {
		t.Errorf("allocation csv header = %q", firstLine(string(allocCSV)))
	}

	// A rerun on the same dataset produces the same deterministic model ID;
	// the duplicate is a warning, not a failure, and draws are not re-inserted.
	rerun, err := orch.Run(ctx, data)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rerun.ModelID != result.ModelID {
		t.Errorf("rerun ModelID = %s, want deterministic %s", rerun.ModelID, result.ModelID)
	}
	if rerun.DrawsPersisted != 0 {
		t.Errorf("rerun persisted %d draws, want 0", rerun.DrawsPersisted)
	}
	foundDup := false
	for _, w := range rerun.Warnings {
		if strings.Contains(w, "already stored") {
			foundDup = true
		}
	}
	if !foundDup {
		t.Errorf("rerun warnings = %v, want duplicate-model warning", rerun.Warnings)
	}
	opts, err = stores.optimizationStore.ListByModelID(ctx, result.ModelID)
	if err != nil {
		t.Fatalf("list optimizations after rerun: %v", err)
	}
	if len(opts) != 2 {
		t.Errorf("optimizations after rerun = %d, want 2", len(opts))
	}
}

func TestOrchestrator_Run_InfeasibleBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sampler pipeline in short mode")
	}

	ctx := context.Background()
	data, truth := pipelineDataset(t)

	orch := New(Options{
		Channels:    truth.Specs(),
		Fit:         pipelineFitConfig(),
		TotalBudget: 1000,
		Bounds:      map[string]optimizer.Bounds{"tv": {Min: 5000, Max: 10000}},
	})
	_, err := orch.Run(ctx, data)
	var infeasible *domain.InfeasibleBudgetError
	if !errors.As(err, &infeasible) {
		t.Fatalf("err = %v, want InfeasibleBudgetError", err)
	}
	if !strings.Contains(err.Error(), "phase optimize failed") {
		t.Errorf("error does not name the failed phase: %v", err)
	}
	if infeasible.MinTotal != 5000 || infeasible.Budget != 1000 {
		t.Errorf("infeasible error carries %v/%v, want 5000/1000", infeasible.MinTotal, infeasible.Budget)
	}
}

func withinRel(got, want, tol float64) bool {
	if want == 0 {
		return got == 0
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff/want <= tol
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
