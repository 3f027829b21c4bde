package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/leadscore/internal/contracts"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusLeakage = "leakage"
)

// Metrics captures pipeline and API health signals.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	entities      prometheus.Gauge
	rows          prometheus.Gauge
	positives     prometheus.Gauge
	sparse        *prometheus.GaugeVec
	droppedRows   prometheus.Counter
	apiRequests   *prometheus.CounterVec
}

// New registers all collectors on registerer (DefaultRegisterer when nil)
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadscore_pipeline_run_duration_seconds",
			Help:    "Wall time of a full pipeline run.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadscore_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscore_entities",
			Help: "Registered entities in the last successful run.",
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscore_feature_rows",
			Help: "Feature rows in the last successful run.",
		}),
		positives: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscore_positive_rows",
			Help: "Rows with label 1 in the last successful run.",
		}),
		sparse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadscore_sparse_entities",
			Help: "Entities absorbed as sparse in the last successful run, by reason.",
		}, []string{"reason"}),
		droppedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadscore_dropped_usage_rows_total",
			Help: "Raw usage rows dated on/after conversion and dropped.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscore_api_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.stageDuration,
		m.entities,
		m.rows,
		m.positives,
		m.sparse,
		m.droppedRows,
		m.apiRequests,
	)

	return m
}

// ObserveStage records one stage duration
func (m *Metrics) ObserveStage(stage contracts.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage.ShortName()).Observe(d.Seconds())
}

// ObserveRun records the outcome of a run. report may be partial on failure.
func (m *Metrics) ObserveRun(report *contracts.RunReport, err error) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(RunStatus(err)).Inc()
	if report == nil {
		return
	}

	if !report.FinishedAt.IsZero() {
		m.runDuration.Observe(report.Duration().Seconds())
	}
	m.droppedRows.Add(float64(report.DroppedAfterConversion))

	if err != nil {
		return
	}
	m.entities.Set(float64(report.Entities))
	m.rows.Set(float64(report.Rows))
	m.positives.Set(float64(report.Positives))
	m.sparse.WithLabelValues("empty_activity").Set(float64(report.EmptyActivity))
	m.sparse.WithLabelValues("no_snapshots").Set(float64(report.NoSnapshots))
}

// ObserveRequest counts one API request
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RunStatus classifies a run error into a low-cardinality label
func RunStatus(err error) string {
	if err == nil {
		return RunStatusSuccess
	}
	var leak *contracts.LeakageViolation
	if errors.As(err, &leak) {
		return RunStatusLeakage
	}
	return RunStatusFailed
}
