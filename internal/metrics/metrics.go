// Package metrics provides the Prometheus metrics of the facewatch components.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors of the application.
type Metrics struct {
	registry  *prometheus.Registry
	Pipeline  *PipelineMetrics
	Watchlist *WatchlistMetrics
	Alerts    *AlertMetrics
}

// New creates a registry with the Go runtime collectors and all component
// metrics registered on it.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline, err := NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	watchlist, err := NewWatchlistMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create watchlist metrics: %w", err)
	}
	alerts, err := NewAlertMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Pipeline:  pipeline,
		Watchlist: watchlist,
		Alerts:    alerts,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
