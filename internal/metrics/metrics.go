// Package metrics holds the Prometheus collectors of the tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fundingtracker"

// Fetch outcomes.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector records fetch activity. A nil *Collector is a no-op.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	staleDiscarded  *prometheus.CounterVec
	lastSuccess     *prometheus.GaugeVec
}

// New registers collectors on a private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend reads by endpoint and result.",
		}, []string{"endpoint", "result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend read latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		batchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Joined fetch batches by kind and result.",
		}, []string{"kind", "result"}),
		staleDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Completions dropped because a newer one was already applied.",
		}, []string{"kind"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful batch by kind.",
		}, []string{"kind"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveRequest records one backend read.
func (c *Collector) ObserveRequest(endpoint string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(endpoint, result(err)).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveBatch records one joined batch.
func (c *Collector) ObserveBatch(kind string, at time.Time, err error) {
	if c == nil {
		return
	}
	c.batchesTotal.WithLabelValues(kind, result(err)).Inc()
	if err == nil {
		c.lastSuccess.WithLabelValues(kind).Set(float64(at.Unix()))
	}
}

// StaleDiscarded counts a dropped completion.
func (c *Collector) StaleDiscarded(kind string) {
	if c == nil {
		return
	}
	c.staleDiscarded.WithLabelValues(kind).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
