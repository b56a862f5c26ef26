package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WatchlistMetrics tracks reference set reloads.
type WatchlistMetrics struct {
	Identities     prometheus.Gauge
	Reloads        prometheus.Counter
	Skipped        prometheus.Counter
	ReloadDuration prometheus.Histogram
	LastReload     prometheus.Gauge
}

// NewWatchlistMetrics creates and registers the watchlist metrics.
func NewWatchlistMetrics(registry prometheus.Registerer) (*WatchlistMetrics, error) {
	m := &WatchlistMetrics{
		Identities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facewatch_watchlist_identities",
			Help: "Number of reference embeddings in the current watchlist snapshot",
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_watchlist_reloads_total",
			Help: "Total number of successful watchlist reloads",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_watchlist_skipped_references_total",
			Help: "Total number of reference images skipped during reloads",
		}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facewatch_watchlist_reload_duration_seconds",
			Help:    "Duration of watchlist reloads",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		LastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facewatch_watchlist_last_reload_timestamp_seconds",
			Help: "Unix time of the last successful watchlist reload",
		}),
	}

	for _, c := range []prometheus.Collector{m.Identities, m.Reloads, m.Skipped, m.ReloadDuration, m.LastReload} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveReload records a completed reload.
func (m *WatchlistMetrics) ObserveReload(identities, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.Identities.Set(float64(identities))
	m.Reloads.Inc()
	m.Skipped.Add(float64(skipped))
	m.ReloadDuration.Observe(d.Seconds())
	m.LastReload.SetToCurrentTime()
}
