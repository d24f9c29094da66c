package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
)

const metricsNamespace = "extcare"

// Metrics holds the Prometheus collectors for the API. Each instance owns
// its registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
	SavesTotal          *prometheus.CounterVec
	FinalFees           prometheus.Histogram
	RecalculatedRecords *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CalculationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "billing",
				Name:      "calculations_total",
				Help:      "Fee calculations by outcome",
			},
			[]string{"outcome"},
		),
		CalculationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "billing",
				Name:      "calculation_duration_seconds",
				Help:      "Fee calculation latency including reference lookups",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		SavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "billing",
				Name:      "saves_total",
				Help:      "Fee record saves by outcome",
			},
			[]string{"outcome"},
		),
		FinalFees: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "billing",
				Name:      "final_fee",
				Help:      "Distribution of calculated final fees",
				Buckets:   []float64{0, 25, 50, 100, 200, 400, 800},
			},
		),
		RecalculatedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "billing",
				Name:      "recalculated_records_total",
				Help:      "Records processed by month recalculation, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CalculationsTotal,
		m.CalculationDuration,
		m.SavesTotal,
		m.FinalFees,
		m.RecalculatedRecords,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// outcome labels a billing error for the counters.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, generic.ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, generic.ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}

// ObserveCalculation records one calculate call.
func (m *Metrics) ObserveCalculation(started time.Time, finalFee float64, err error) {
	m.CalculationsTotal.WithLabelValues(outcome(err)).Inc()
	m.CalculationDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		m.FinalFees.Observe(finalFee)
	}
}

// ObserveSave records one save call.
func (m *Metrics) ObserveSave(err error) {
	m.SavesTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveRecalc records one month recalculation.
func (m *Metrics) ObserveRecalc(result billing.RecalcResult) {
	m.RecalculatedRecords.WithLabelValues("ok").Add(float64(result.Recalculated))
	m.RecalculatedRecords.WithLabelValues("failed").Add(float64(result.Failed))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. Routes are labelled with the chi route
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
