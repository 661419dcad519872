package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors. Each Registry owns its
// own prometheus.Registry so tests can create as many as they like.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RecordsUpserted *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	RateLimited     prometheus.Counter
}

func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenselog_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expenselog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route", "method"},
		),

		RecordsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenselog_records_upserted_total",
				Help: "Total number of record upserts by result (created or updated)",
			},
			[]string{"result"},
		),

		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenselog_store_errors_total",
				Help: "Total number of store failures by operation",
			},
			[]string{"op"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expenselog_events_published_total",
				Help: "Total number of record events published by status",
			},
			[]string{"status"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expenselog_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.RecordsUpserted,
		r.StoreErrors,
		r.EventsPublished,
		r.RateLimited,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// The recording methods are no-ops on a nil *Registry, so callers can pass
// an unset registry through interfaces without guarding every call.

func (r *Registry) ObserveRequest(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (r *Registry) RecordUpsert(created bool) {
	if r == nil {
		return
	}
	result := "updated"
	if created {
		result = "created"
	}
	r.RecordsUpserted.WithLabelValues(result).Inc()
}

func (r *Registry) RecordStoreError(op string) {
	if r == nil {
		return
	}
	r.StoreErrors.WithLabelValues(op).Inc()
}

func (r *Registry) RecordPublish(err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.EventsPublished.WithLabelValues(status).Inc()
}

func (r *Registry) RecordRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}
