// Package memory keeps match events and identities in process memory. It
// backs the "memory" database driver used for development and demos, and
// is the storage behind the test doubles in database/mock.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

// EventRepository stores events in a slice guarded by a mutex.
type EventRepository struct {
	mu     sync.RWMutex
	events []database.MatchEvent
	nextID int64
}

// NewEventRepository creates an empty repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{nextID: 1}
}

// CreateMatchEvent stores a copy of the event and assigns its ID.
func (r *EventRepository) CreateMatchEvent(ctx context.Context, event *database.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.nextID
	r.nextID++
	stored := *event
	stored.Embedding = slices.Clone(event.Embedding)
	r.events = append(r.events, stored)
	return nil
}

func matches(ev database.MatchEvent, filter database.EventFilter) bool {
	switch {
	case filter.Channel != "" && ev.Channel != filter.Channel:
		return false
	case filter.Label != "" && ev.Label != filter.Label:
		return false
	case filter.WatchlistedOnly && !ev.Watchlisted:
		return false
	case !filter.Since.IsZero() && ev.CreatedAt.Before(filter.Since):
		return false
	}
	return true
}

// ListEvents returns matching events newest first, ties broken by ID.
func (r *EventRepository) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.MatchEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []database.MatchEvent
	for _, ev := range r.events {
		if matches(ev, filter) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b database.MatchEvent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountEvents returns the number of events matching the filter.
func (r *EventRepository) CountEvents(ctx context.Context, filter database.EventFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, ev := range r.events {
		if matches(ev, filter) {
			count++
		}
	}
	return count, nil
}

// FindSimilarEvents does a brute-force Euclidean search over stored face
// embeddings of the same dimension.
func (r *EventRepository) FindSimilarEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.SimilarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []database.SimilarEvent
	for _, ev := range r.events {
		if len(embedding) == 0 || len(ev.Embedding) != len(embedding) {
			continue
		}
		if d := facematch.EuclideanDistance(embedding, ev.Embedding); d <= maxDistance {
			out = append(out, database.SimilarEvent{Event: ev, Distance: d})
		}
	}
	slices.SortStableFunc(out, func(a, b database.SimilarEvent) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetEventEmbedding returns the stored face embedding, nil if absent.
func (r *EventRepository) GetEventEmbedding(ctx context.Context, id int64) ([]float32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ev := range r.events {
		if ev.ID == id {
			return ev.Embedding, nil
		}
	}
	return nil, nil
}

// Events returns a copy of all stored events in insertion order.
func (r *EventRepository) Events() []database.MatchEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

// Len returns the number of stored events.
func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// IdentityStore holds watchlist identities for the database reference source.
type IdentityStore struct {
	mu         sync.RWMutex
	identities []database.Identity
}

// NewIdentityStore creates a store seeded with identities.
func NewIdentityStore(identities ...database.Identity) *IdentityStore {
	return &IdentityStore{identities: identities}
}

// AddIdentity appends an identity.
func (s *IdentityStore) AddIdentity(identity database.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = append(s.identities, identity)
}

// ListIdentities returns all identities in insertion order.
func (s *IdentityStore) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.identities), nil
}

var (
	_ database.EventRepository    = (*EventRepository)(nil)
	_ database.SimilarEventFinder = (*EventRepository)(nil)
	_ database.IdentityReader     = (*IdentityStore)(nil)
)
