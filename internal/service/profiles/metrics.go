package profiles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the profile cache.
type Metrics struct {
	Lookups         *prometheus.CounterVec // result: hit, miss
	Refreshes       prometheus.Counter
	RefreshDuration prometheus.Histogram
	Profiles        prometheus.Gauge
	SourceFailures  *prometheus.CounterVec // source: bounty
	Backfilled      prometheus.Counter
	LiveReads       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyoka_profile_cache_lookups_total",
				Help: "Profile cache lookups by result",
			},
			[]string{"result"},
		),
		Refreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "hyoka_profile_refreshes_total",
			Help: "Completed fetch-and-aggregate refreshes",
		}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hyoka_profile_refresh_duration_seconds",
			Help:    "Wall time of one refresh, including all source reads",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Profiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "hyoka_profiles",
			Help: "Profiles in the current snapshot",
		}),
		SourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyoka_source_failures_total",
				Help: "Source reads absorbed into empty fallbacks",
			},
			[]string{"source"},
		),
		Backfilled: f.NewCounter(prometheus.CounterOpts{
			Name: "hyoka_backfilled_agents_total",
			Help: "Claimants added to the on-chain map by individual backfill reads",
		}),
		LiveReads: f.NewCounter(prometheus.CounterOpts{
			Name: "hyoka_live_reputation_reads_total",
			Help: "Uncached on-chain reputation reads",
		}),
	}
}
