// Package metrics exposes pool activity as Prometheus metrics.
//
// # Overview
//
// A PoolCollector owns one set of metric vectors registered on a
// caller-supplied prometheus.Registerer. Every series is labelled by pool
// name, so one collector can serve any number of pools:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPoolCollector(reg, "poolkit")
//
//	p, err := pool.NewCircular(8, hooks,
//	    pool.WithName("bullets"),
//	    pool.WithMetrics(collector),
//	)
//
// # Metric Types
//
// Counter: acquires, releases, forced reclaims and destroyed items.
// Gauge: active and inactive item counts, updated after every operation.
// Histogram: wall time of simulator runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolCollector records lifecycle events for pools. The zero value is not
// usable; a nil *PoolCollector is, and records nothing.
type PoolCollector struct {
	acquires  *prometheus.CounterVec
	releases  *prometheus.CounterVec
	reclaims  *prometheus.CounterVec
	destroyed *prometheus.CounterVec
	active    *prometheus.GaugeVec
	inactive  *prometheus.GaugeVec
	runTime   *prometheus.HistogramVec
}

// NewPoolCollector creates and registers the pool metric vectors on reg.
// Registering two collectors with the same namespace on one registry panics,
// as promauto does.
func NewPoolCollector(reg prometheus.Registerer, namespace string) *PoolCollector {
	factory := promauto.With(reg)
	labels := []string{"pool"}

	return &PoolCollector{
		acquires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquires_total",
			Help:      "Total number of items handed out by the pool",
		}, labels),
		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_releases_total",
			Help:      "Total number of items returned to the pool",
		}, labels),
		reclaims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_reclaims_total",
			Help:      "Total number of active items forcibly recycled on exhaustion",
		}, labels),
		destroyed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_destroyed_total",
			Help:      "Total number of items permanently disposed",
		}, labels),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_active_items",
			Help:      "Number of items currently on loan",
		}, labels),
		inactive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_inactive_items",
			Help:      "Number of items available for the next acquire",
		}, labels),
		runTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sim_run_duration_seconds",
			Help:      "Wall time of pool simulator runs",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, labels),
	}
}

// Acquired counts one acquire; reclaimed marks it as a forced reclamation.
func (c *PoolCollector) Acquired(pool string, reclaimed bool) {
	if c == nil {
		return
	}
	c.acquires.WithLabelValues(pool).Inc()
	if reclaimed {
		c.reclaims.WithLabelValues(pool).Inc()
	}
}

// Released counts one release.
func (c *PoolCollector) Released(pool string) {
	if c == nil {
		return
	}
	c.releases.WithLabelValues(pool).Inc()
}

// Destroyed counts n permanently disposed items.
func (c *PoolCollector) Destroyed(pool string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.destroyed.WithLabelValues(pool).Add(float64(n))
}

// SetOccupancy updates the active and inactive gauges.
func (c *PoolCollector) SetOccupancy(pool string, active, inactive int) {
	if c == nil {
		return
	}
	c.active.WithLabelValues(pool).Set(float64(active))
	c.inactive.WithLabelValues(pool).Set(float64(inactive))
}

// ObserveRun records the duration of one simulator run.
func (c *PoolCollector) ObserveRun(pool string, d time.Duration) {
	if c == nil {
		return
	}
	c.runTime.WithLabelValues(pool).Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
