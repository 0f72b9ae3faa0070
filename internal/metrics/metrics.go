// Package metrics holds the prometheus collectors shared by the catalog components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalogarr"

// Metrics groups every collector the service exports
type Metrics struct {
	Upserts            *prometheus.CounterVec // outcome: created, merged, unchanged, rejected
	IntegrityFaults    prometheus.Counter
	EnrichmentAttempts *prometheus.CounterVec // path, outcome
	EnrichmentDuration *prometheus.HistogramVec
	EnrichmentSkipped  *prometheus.CounterVec // reason
	ResumeSaves        *prometheus.CounterVec // outcome: saved, failed
	LiveSubscriptions  prometheus.Gauge
	LiveRereads        prometheus.Counter
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Upserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "upserts_total",
			Help:      "Canonical upserts by outcome.",
		}, []string{"outcome"}),
		IntegrityFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "integrity_faults_total",
			Help:      "Writes rejected because the key already belongs to another kind.",
		}),
		EnrichmentAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "attempts_total",
			Help:      "Enrichment attempts by path and outcome.",
		}, []string{"path", "outcome"}),
		EnrichmentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a single enrichment attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		EnrichmentSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "skipped_total",
			Help:      "Entities skipped by the enrichment cycle.",
		}, []string{"reason"}),
		ResumeSaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resume",
			Name:      "saves_total",
			Help:      "Resume position saves by outcome.",
		}, []string{"outcome"}),
		LiveSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscriptions",
			Help:      "Active reactive query subscriptions.",
		}),
		LiveRereads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "rereads_total",
			Help:      "Query re-reads triggered by change notifications.",
		}),
	}
}

// NewNop returns collectors registered with a throwaway registry
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
