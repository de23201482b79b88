// Package metrics derives text features and exports Prometheus collectors for turns
// and the knowledge base.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collectors groups the agent's Prometheus metrics.
type Collectors struct {
	Turns         *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	ReplyFallback prometheus.Counter
	Facts         prometheus.Gauge
}

// New creates the collectors and registers them on reg (skipped when reg is nil).
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabularasa",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tabularasa",
			Name:      "turn_duration_seconds",
			Help:      "Latency of the remote generation call.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		ReplyFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabularasa",
			Name:      "reply_fallbacks_total",
			Help:      "Replies decoded without a response tag or structured field.",
		}),
		Facts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabularasa",
			Name:      "facts",
			Help:      "Facts currently in the knowledge base.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Turns, c.TurnDuration, c.ReplyFallback, c.Facts)
	}
	return c
}

// ObserveTurn records one finished turn. Nil receivers are ignored.
func (c *Collectors) ObserveTurn(outcome string, d time.Duration, fallback bool) {
	if c == nil {
		return
	}
	c.Turns.WithLabelValues(outcome).Inc()
	c.TurnDuration.Observe(d.Seconds())
	if fallback {
		c.ReplyFallback.Inc()
	}
}

// SetFacts updates the knowledge base size gauge.
func (c *Collectors) SetFacts(n int) {
	if c == nil {
		return
	}
	c.Facts.Set(float64(n))
}
