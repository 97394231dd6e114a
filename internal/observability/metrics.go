package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fog-cover pipeline.
type Metrics struct {
	ScenesFetched   prometheus.Counter
	ScenesProcessed prometheus.Counter
	ScenesExcluded  *prometheus.CounterVec // label: reason={missing_calibration,geometry_mismatch,empty_intersection}
	PipelineRunning prometheus.Gauge

	// Run-level metrics.
	RunDuration   prometheus.Histogram
	SceneDuration prometheus.Histogram

	// Catalog adapter metrics.
	CatalogRequestDuration prometheus.Histogram
}

// Exclusion reason label values for ScenesExcluded.
const (
	ReasonMissingCalibration = "missing_calibration"
	ReasonGeometryMismatch   = "geometry_mismatch"
	ReasonEmptyIntersection  = "empty_intersection"
)

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScenesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fog_etl",
			Name:      "scenes_fetched_total",
			Help:      "Total scenes returned by the imagery catalog.",
		}),
		ScenesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fog_etl",
			Name:      "scenes_processed_total",
			Help:      "Total scenes calibrated, normalized, classified, and folded.",
		}),
		ScenesExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fog_etl",
			Name:      "scenes_excluded_total",
			Help:      "Scenes excluded from the run by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fog_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fog_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete catalog-to-raster run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		SceneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fog_etl",
			Name:      "scene_duration_seconds",
			Help:      "Duration of one scene's calibrate-normalize-classify-fold cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		CatalogRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fog_etl",
			Name:      "catalog_request_duration_seconds",
			Help:      "Imagery catalog query duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.ScenesFetched,
		m.ScenesProcessed,
		m.ScenesExcluded,
		m.PipelineRunning,
		m.RunDuration,
		m.SceneDuration,
		m.CatalogRequestDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScenesFetched:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "fog_etl", Name: "scenes_fetched_total"}),
		ScenesProcessed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "fog_etl", Name: "scenes_processed_total"}),
		ScenesExcluded:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "fog_etl", Name: "scenes_excluded_total"}, []string{"reason"}),
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "fog_etl", Name: "pipeline_running"}),
		RunDuration:            prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "fog_etl", Name: "run_duration_seconds"}),
		SceneDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "fog_etl", Name: "scene_duration_seconds"}),
		CatalogRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "fog_etl", Name: "catalog_request_duration_seconds"}),
	}
}
