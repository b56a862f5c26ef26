package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks frame processing and match events. All methods are
// safe to call on a nil receiver.
type PipelineMetrics struct {
	FramesProcessed prometheus.Counter
	FrameErrors     *prometheus.CounterVec
	FacesDetected   prometheus.Counter
	Matches         *prometheus.CounterVec
	Suppressed      prometheus.Counter
	Events          *prometheus.CounterVec
	PersistErrors   prometheus.Counter
	FrameDuration   prometheus.Histogram
	SessionRunning  prometheus.Gauge
	StreamViewers   prometheus.Gauge
}

// NewPipelineMetrics creates and registers the pipeline metrics.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_frames_processed_total",
			Help: "Total number of camera frames processed by the streaming session",
		}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_frame_errors_total",
			Help: "Total number of frame read or decode failures by kind",
		}, []string{"kind"}),
		FacesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_faces_detected_total",
			Help: "Total number of faces detected",
		}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_matches_total",
			Help: "Total number of faces matched to a watchlist identity by channel",
		}, []string{"channel"}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_matches_suppressed_total",
			Help: "Total number of streaming matches suppressed by the cooldown window",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_events_recorded_total",
			Help: "Total number of match events persisted by channel and outcome",
		}, []string{"channel", "outcome"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_persist_errors_total",
			Help: "Total number of failures storing evidence or match events",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facewatch_frame_duration_seconds",
			Help:    "Time spent processing one streaming frame",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		SessionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facewatch_session_running",
			Help: "Whether the streaming session is running (1) or stopped (0)",
		}),
		StreamViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facewatch_stream_viewers",
			Help: "Number of clients subscribed to the live preview stream",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.FramesProcessed, m.FrameErrors, m.FacesDetected, m.Matches, m.Suppressed,
		m.Events, m.PersistErrors, m.FrameDuration, m.SessionRunning, m.StreamViewers,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFrame records one processed frame and the number of faces in it.
func (m *PipelineMetrics) ObserveFrame(faces int, d time.Duration) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.FacesDetected.Add(float64(faces))
	m.FrameDuration.Observe(d.Seconds())
}

// IncFrameError counts a failed frame by kind (transient, decode, detect).
func (m *PipelineMetrics) IncFrameError(kind string) {
	if m == nil {
		return
	}
	m.FrameErrors.WithLabelValues(kind).Inc()
}

// IncMatch counts a face matched on channel.
func (m *PipelineMetrics) IncMatch(channel string) {
	if m == nil {
		return
	}
	m.Matches.WithLabelValues(channel).Inc()
}

// IncSuppressed counts a match suppressed by the cooldown window.
func (m *PipelineMetrics) IncSuppressed() {
	if m == nil {
		return
	}
	m.Suppressed.Inc()
}

// IncEvent counts a persisted event. outcome is "match", "unknown" or "no_face".
func (m *PipelineMetrics) IncEvent(channel, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(channel, outcome).Inc()
}

// IncPersistError counts a failure storing evidence or an event.
func (m *PipelineMetrics) IncPersistError() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}

// SetRunning updates the session state gauge.
func (m *PipelineMetrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SessionRunning.Set(1)
	} else {
		m.SessionRunning.Set(0)
	}
}

// SetViewers updates the live preview subscriber gauge.
func (m *PipelineMetrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.StreamViewers.Set(float64(n))
}
