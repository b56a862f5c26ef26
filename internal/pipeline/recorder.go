package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/notify"
	"github.com/kozaktomas/facewatch/internal/storage"
)

// Sinks are the outputs shared by both pipelines. Alerts, Feed and Metrics
// are optional.
type Sinks struct {
	Events    database.EventWriter
	Artifacts storage.FileStore
	Alerts    notify.Publisher
	Feed      *EventFeed
	Metrics   *metrics.PipelineMetrics
}

type recorder struct {
	Sinks
	logger *slog.Logger
}

func (r *recorder) storeArtifact(ctx context.Context, key string, data []byte) error {
	if err := storage.WriteFile(ctx, r.Artifacts, key, data); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

// persist stores the event and fans it out to the feed and alert publishers.
func (r *recorder) persist(ctx context.Context, ev *database.MatchEvent) error {
	if err := r.Events.CreateMatchEvent(ctx, ev); err != nil {
		return fmt.Errorf("record match event: %w", err)
	}
	r.Metrics.IncEvent(string(ev.Channel), outcomeOf(ev.Label))
	r.Feed.Publish(*ev)

	if ev.Watchlisted && r.Alerts != nil {
		if err := r.Alerts.Publish(ctx, notify.AlertFromEvent(*ev)); err != nil {
			r.logger.Warn("alert publish failed", "event_id", ev.ID, "identity", ev.Label, "error", err)
		}
	}
	return nil
}
