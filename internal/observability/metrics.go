// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Model fitting metrics
	FitsTotal          *prometheus.CounterVec
	FitDuration        prometheus.Histogram
	SamplerDivergences prometheus.Counter
	LastFitMaxRHat     prometheus.Gauge
	LastFitMinESS      prometheus.Gauge

	// Analysis metrics
	ROIComputations prometheus.Counter
	OptimizerRuns   *prometheus.CounterVec
	ValidationRuns  *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFit prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mediamix"
	}

	return &Metrics{
		// Model fitting metrics
		FitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "fits_total",
			Help:      "Total number of model fits by status",
		}, []string{"status"}),
		FitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "fit_duration_seconds",
			Help:      "Model fit duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		SamplerDivergences: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "sampler_divergences_total",
			Help:      "Total number of divergent transitions across fits",
		}),
		LastFitMaxRHat: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "last_fit_max_r_hat",
			Help:      "Worst split R-hat of the most recent fit",
		}),
		LastFitMinESS: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "last_fit_min_ess",
			Help:      "Smallest effective sample size of the most recent fit",
		}),

		// Analysis metrics
		ROIComputations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "roi_computations_total",
			Help:      "Total number of ROI computations",
		}),
		OptimizerRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "optimizer_runs_total",
			Help:      "Total number of optimizer runs by status",
		}, []string{"status"}),
		ValidationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "validation_runs_total",
			Help:      "Total number of validation suite runs by verdict",
		}, []string{"verdict"}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulFit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_fit_timestamp",
			Help:      "Unix timestamp of last successful fit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFit records a completed fit attempt.
func RecordFit(status string, durationSeconds float64) {
	DefaultMetrics.FitsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.FitDuration.Observe(durationSeconds)
}

// RecordFitDiagnostics publishes the convergence diagnostics of the latest fit.
func RecordFitDiagnostics(maxRHat, minESS float64, divergences int, unixTime float64) {
	DefaultMetrics.LastFitMaxRHat.Set(maxRHat)
	DefaultMetrics.LastFitMinESS.Set(minESS)
	DefaultMetrics.SamplerDivergences.Add(float64(divergences))
	DefaultMetrics.LastSuccessfulFit.Set(unixTime)
}

// RecordROIComputation increments the ROI computation counter.
func RecordROIComputation() {
	DefaultMetrics.ROIComputations.Inc()
}

// RecordOptimizerRun records an optimizer run.
func RecordOptimizerRun(status string) {
	DefaultMetrics.OptimizerRuns.WithLabelValues(status).Inc()
}

// RecordValidationRun records a validation suite run.
func RecordValidationRun(verdict string) {
	DefaultMetrics.ValidationRuns.WithLabelValues(verdict).Inc()
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelinePhase records one pipeline phase execution.
func RecordPipelinePhase(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}
