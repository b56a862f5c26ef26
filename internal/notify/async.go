package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/logging"
)

const publishTimeout = 10 * time.Second

// Async queues alerts and delivers them from a background goroutine so that
// slow brokers never stall frame processing. Alerts are dropped when the
// queue is full.
type Async struct {
	next   Publisher
	logger *slog.Logger
	queue  chan Alert
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the delivery goroutine. Close stops it after draining.
func NewAsync(next Publisher, logger *slog.Logger) *Async {
	a := &Async{
		next:   next,
		logger: logging.Component(logger, "notify"),
		queue:  make(chan Alert, constants.EventChannelBuffer),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for alert := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.next.Publish(ctx, alert); err != nil {
			a.logger.Warn("alert delivery failed", "event_id", alert.EventID, "identity", alert.Identity, "error", err)
		}
		cancel()
	}
}

// Publish enqueues the alert. It never blocks.
func (a *Async) Publish(_ context.Context, alert Alert) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- alert:
	default:
		a.logger.Warn("alert queue full, dropping alert", "event_id", alert.EventID, "identity", alert.Identity)
	}
	return nil
}

// Close delivers the queued alerts and closes the wrapped publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
	return a.next.Close()
}
