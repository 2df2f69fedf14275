package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the case engine. Each instance
// owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Fine metrics
	CalculationsTotal *prometheus.CounterVec
	FineAmount        *prometheus.HistogramVec

	// Access metrics
	CaseSyncsTotal *prometheus.CounterVec
	SyncRunsTotal  *prometheus.CounterVec
	SyncRunCases   *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "case_engine_http_requests_total",
				Help: "Total HTTP requests by route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "case_engine_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CalculationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "case_engine_fine_calculations_total",
				Help: "Fine calculations by violation type and outcome",
			},
			[]string{"violation_type", "result"}, // result: ok, invalid, saved
		),

		FineAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "case_engine_fine_amount",
				Help:    "Final fine amounts by currency",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 25000, 50000, 100000, 250000},
			},
			[]string{"currency"},
		),

		CaseSyncsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "case_engine_case_syncs_total",
				Help: "Case synchronizations by operation and outcome",
			},
			[]string{"operation", "result"}, // operation: synchronize, reassign
		),

		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "case_engine_sync_runs_total",
				Help: "Sync scheduler runs by final status",
			},
			[]string{"status"},
		),

		SyncRunCases: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "case_engine_sync_run_cases",
				Help: "Case counts of the last sync scheduler run",
			},
			[]string{"outcome"}, // scanned, synchronized, reassigned, failed
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
