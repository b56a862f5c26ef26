package database

import (
	"context"
)

// EventWriter persists match events
type EventWriter interface {
	// CreateMatchEvent stores the event and sets its ID
	CreateMatchEvent(ctx context.Context, event *MatchEvent) error
}

// EventReader provides read-only access to match events
type EventReader interface {
	// ListEvents returns events newest first (created_at DESC, id DESC)
	ListEvents(ctx context.Context, filter EventFilter) ([]MatchEvent, error)
	// CountEvents returns the number of events matching the filter (Limit is ignored)
	CountEvents(ctx context.Context, filter EventFilter) (int, error)
}

// EventRepository combines event reads and writes
type EventRepository interface {
	EventReader
	EventWriter
}

// SimilarEventFinder is implemented by backends that store face embeddings
type SimilarEventFinder interface {
	// FindSimilarEvents returns events whose face embedding lies within
	// maxDistance (Euclidean) of embedding, nearest first
	FindSimilarEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]SimilarEvent, error)
	// GetEventEmbedding returns the stored face embedding of an event, nil if none
	GetEventEmbedding(ctx context.Context, id int64) ([]float32, error)
}

// IdentityReader provides read-only access to watchlist identities
type IdentityReader interface {
	// ListIdentities returns all identities ordered by ID
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// NormalizeLimit clamps a requested list limit into [1, maxLimit], using
// defaultLimit for non-positive values.
func NormalizeLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
