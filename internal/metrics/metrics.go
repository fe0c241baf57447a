// Package metrics collects and exposes Prometheus metrics for the feed
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers the service's Prometheus metrics. A nil *Collector is a
// valid no-op recorder so tests can pass nil without wiring a registry.
type Collector struct {
	subscribers   prometheus.Gauge
	eventsApplied prometheus.Counter
	notifications prometheus.Counter
	resyncs       prometheus.Counter
	scoreOutcomes *prometheus.CounterVec
	publishFail   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "referify_feed_subscribers",
			Help: "Number of currently connected feed subscribers.",
		}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referify_feed_events_applied_total",
			Help: "Change events applied to per-viewer feed views.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referify_feed_notifications_total",
			Help: "User-facing new-listing notifications emitted.",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referify_feed_resyncs_total",
			Help: "Full feed resynchronizations after a change-channel disconnect.",
		}),
		scoreOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referify_scoring_outcomes_total",
			Help: "Match-scoring results by outcome.",
		}, []string{"outcome"}),
		publishFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referify_listing_publish_failures_total",
			Help: "Listing change events that could not be published.",
		}),
	}

	reg.MustRegister(
		c.subscribers,
		c.eventsApplied,
		c.notifications,
		c.resyncs,
		c.scoreOutcomes,
		c.publishFail,
	)

	return c
}

// Handler returns the HTTP handler serving the default /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SubscriberConnected records a feed connection being established.
func (c *Collector) SubscriberConnected() {
	if c == nil {
		return
	}
	c.subscribers.Inc()
}

// SubscriberDisconnected records a feed connection being released.
func (c *Collector) SubscriberDisconnected() {
	if c == nil {
		return
	}
	c.subscribers.Dec()
}

// RecordEventApplied records one change event applied to a view.
func (c *Collector) RecordEventApplied() {
	if c == nil {
		return
	}
	c.eventsApplied.Inc()
}

// RecordNotification records one user-facing notification.
func (c *Collector) RecordNotification() {
	if c == nil {
		return
	}
	c.notifications.Inc()
}

// RecordResync records one full resynchronization.
func (c *Collector) RecordResync() {
	if c == nil {
		return
	}
	c.resyncs.Inc()
}

// RecordScoreOutcome records a scorer result: ok, insufficient_input,
// unavailable or malformed.
func (c *Collector) RecordScoreOutcome(outcome string) {
	if c == nil {
		return
	}
	c.scoreOutcomes.WithLabelValues(outcome).Inc()
}

// RecordPublishFailure records a change event that failed to publish.
func (c *Collector) RecordPublishFailure() {
	if c == nil {
		return
	}
	c.publishFail.Inc()
}
