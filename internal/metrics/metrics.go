package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bedlog-backend/internal/bed"
)

// Registry holds the service's collectors on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	writes      *prometheus.CounterVec
	provisions  *prometheus.CounterVec
	streams     prometheus.Gauge
	pushes      *prometheus.CounterVec
	bedsByState *prometheus.GaugeVec
}

// NewRegistry registers every collector.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bedlog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bedlog",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bedlog",
			Name:      "bed_writes_total",
			Help:      "Bed create and update attempts by outcome.",
		}, []string{"op", "outcome"}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bedlog",
			Name:      "provisioning_calls_total",
			Help:      "createUser and setRole calls by result code.",
		}, []string{"op", "code"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bedlog",
			Name:      "bed_streams_active",
			Help:      "Open bed feed streams.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bedlog",
			Name:      "push_notifications_total",
			Help:      "Web push deliveries by outcome.",
		}, []string{"outcome"}),
		bedsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bedlog",
			Name:      "beds",
			Help:      "Beds in the latest snapshot by status.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests, r.latency, r.writes, r.provisions, r.streams, r.pushes, r.bedsByState,
	)
	return r
}

// Handler serves the exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry to tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveRequest(method, route string, status int, d time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Registry) IncBedWrite(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.writes.WithLabelValues(op, outcome).Inc()
}

func (r *Registry) IncProvision(op, code string) {
	if code == "" {
		code = "ok"
	}
	r.provisions.WithLabelValues(op, code).Inc()
}

func (r *Registry) StreamOpened() { r.streams.Inc() }

func (r *Registry) StreamClosed() { r.streams.Dec() }

func (r *Registry) IncPush(ok bool) {
	if ok {
		r.pushes.WithLabelValues("sent").Inc()
		return
	}
	r.pushes.WithLabelValues("failed").Inc()
}

// ObserveSnapshot sets the per-status bed gauges from a snapshot total.
func (r *Registry) ObserveSnapshot(c bed.Counts) {
	r.bedsByState.WithLabelValues(string(bed.StatusAssigned)).Set(float64(c.Assigned))
	r.bedsByState.WithLabelValues(string(bed.StatusAvailable)).Set(float64(c.Available))
	r.bedsByState.WithLabelValues(string(bed.StatusOutOfService)).Set(float64(c.OutOfService))
}
