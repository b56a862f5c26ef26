package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics tracks alert delivery per backend (mqtt, kafka).
type AlertMetrics struct {
	Published      *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// NewAlertMetrics creates and registers the alert metrics.
func NewAlertMetrics(registry prometheus.Registerer) (*AlertMetrics, error) {
	m := &AlertMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_alerts_published_total",
			Help: "Total number of match alerts delivered by backend",
		}, []string{"backend"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_alert_errors_total",
			Help: "Total number of failed alert deliveries by backend",
		}, []string{"backend"}),
		PublishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facewatch_alert_publish_latency_seconds",
			Help:    "Latency of alert publish operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"backend"}),
	}

	for _, c := range []prometheus.Collector{m.Published, m.Errors, m.PublishLatency} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObservePublish records the outcome of one publish call.
func (m *AlertMetrics) ObservePublish(backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.PublishLatency.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		m.Errors.WithLabelValues(backend).Inc()
		return
	}
	m.Published.WithLabelValues(backend).Inc()
}
