// Package mock provides test doubles for the database interfaces. They wrap
// the in-memory repositories and add error injection.
package mock

import (
	"context"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/memory"
)

// MockEventRepository is a database.EventRepository and
// database.SimilarEventFinder with injectable failures.
type MockEventRepository struct {
	*memory.EventRepository

	// Error injection
	CreateError  error
	ListError    error
	CountError   error
	SimilarError error

	// OnCreate is called after an event is stored
	OnCreate func(database.MatchEvent)
}

// NewMockEventRepository creates a new mock event repository
func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{EventRepository: memory.NewEventRepository()}
}

// CreateMatchEvent stores a copy of the event and assigns an ID
func (m *MockEventRepository) CreateMatchEvent(ctx context.Context, event *database.MatchEvent) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if err := m.EventRepository.CreateMatchEvent(ctx, event); err != nil {
		return err
	}
	if m.OnCreate != nil {
		m.OnCreate(*event)
	}
	return nil
}

// ListEvents returns stored events newest first
func (m *MockEventRepository) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.MatchEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.EventRepository.ListEvents(ctx, filter)
}

// CountEvents returns the number of stored events matching the filter
func (m *MockEventRepository) CountEvents(ctx context.Context, filter database.EventFilter) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	return m.EventRepository.CountEvents(ctx, filter)
}

// FindSimilarEvents performs a brute-force Euclidean search over stored embeddings
func (m *MockEventRepository) FindSimilarEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.SimilarEvent, error) {
	if m.SimilarError != nil {
		return nil, m.SimilarError
	}
	return m.EventRepository.FindSimilarEvents(ctx, embedding, limit, maxDistance)
}

// MockIdentityReader is a database.IdentityReader with an injectable failure.
type MockIdentityReader struct {
	*memory.IdentityStore

	// Error injection
	ListError error
}

// NewMockIdentityReader creates a mock identity reader with the given identities
func NewMockIdentityReader(identities ...database.Identity) *MockIdentityReader {
	return &MockIdentityReader{IdentityStore: memory.NewIdentityStore(identities...)}
}

// ListIdentities returns all identities
func (m *MockIdentityReader) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.IdentityStore.ListIdentities(ctx)
}

var (
	_ database.EventRepository    = (*MockEventRepository)(nil)
	_ database.SimilarEventFinder = (*MockEventRepository)(nil)
	_ database.IdentityReader     = (*MockIdentityReader)(nil)
)
