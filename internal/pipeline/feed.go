package pipeline

import (
	"sync"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
)

// EventFeed broadcasts persisted match events to live listeners.
// Publishing never blocks: a listener with a full buffer misses the event.
type EventFeed struct {
	mu        sync.RWMutex
	listeners []chan database.MatchEvent
	closed    bool
}

// NewEventFeed creates an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{}
}

// Subscribe adds a listener. The channel is closed by Unsubscribe or Close.
func (f *EventFeed) Subscribe() chan database.MatchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan database.MatchEvent, constants.EventChannelBuffer)
	if f.closed {
		close(ch)
		return ch
	}
	f.listeners = append(f.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a listener.
func (f *EventFeed) Unsubscribe(ch chan database.MatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, listener := range f.listeners {
		if listener == ch {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all listeners. A nil feed discards it.
func (f *EventFeed) Publish(ev database.MatchEvent) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, listener := range f.listeners {
		select {
		case listener <- ev:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Len returns the number of listeners.
func (f *EventFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

// Close closes every listener. Later subscriptions receive a closed channel.
func (f *EventFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, listener := range f.listeners {
		close(listener)
	}
	f.listeners = nil
	f.closed = true
}
