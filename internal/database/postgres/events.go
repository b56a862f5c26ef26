package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/pgvector/pgvector-go"
)

const eventColumns = `id, label, image_ref, confidence, channel, watchlisted, created_at`

// EventRepository provides PostgreSQL-backed match event storage.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateMatchEvent inserts the event and sets its ID. The face embedding is
// stored when present so the event can be found by similarity later.
func (r *EventRepository) CreateMatchEvent(ctx context.Context, event *database.MatchEvent) error {
	var embedding any
	if len(event.Embedding) > 0 {
		embedding = pgvector.NewVector(event.Embedding)
	}

	query := `
		INSERT INTO match_events (label, image_ref, confidence, channel, watchlisted, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		event.Label, event.ImageRef, event.Confidence, string(event.Channel),
		event.Watchlisted, embedding, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

// buildEventWhere renders the WHERE clause for a filter, numbering
// placeholders from 1.
func buildEventWhere(filter database.EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Channel != "" {
		add("channel = $%d", string(filter.Channel))
	}
	if filter.Label != "" {
		add("label = $%d", filter.Label)
	}
	if filter.WatchlistedOnly {
		conds = append(conds, "watchlisted")
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents returns events newest first.
func (r *EventRepository) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.MatchEvent, error) {
	where, args := buildEventWhere(filter)
	query := `SELECT ` + eventColumns + ` FROM match_events` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query match events: %w", err)
	}
	defer rows.Close()

	var events []database.MatchEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match events: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of events matching the filter.
func (r *EventRepository) CountEvents(ctx context.Context, filter database.EventFilter) (int, error) {
	where, args := buildEventWhere(filter)

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM match_events`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count match events: %w", err)
	}
	return count, nil
}

// FindSimilarEvents finds events whose face embedding is within maxDistance
// (L2) of the query, nearest first. Events with a different embedding
// dimension are ignored.
func (r *EventRepository) FindSimilarEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.SimilarEvent, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + eventColumns + `, embedding <-> $1::vector AS distance
		FROM match_events
		WHERE embedding IS NOT NULL
		  AND vector_dims(embedding) = $2
		  AND embedding <-> $1::vector <= $3
		ORDER BY distance, id DESC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), len(embedding), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar events: %w", err)
	}
	defer rows.Close()

	var results []database.SimilarEvent
	for rows.Next() {
		var ev database.MatchEvent
		var channel string
		var distance float64
		if err := rows.Scan(&ev.ID, &ev.Label, &ev.ImageRef, &ev.Confidence, &channel,
			&ev.Watchlisted, &ev.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scan similar event: %w", err)
		}
		ev.Channel = database.Channel(channel)
		results = append(results, database.SimilarEvent{Event: ev, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar events: %w", err)
	}
	return results, nil
}

// GetEventEmbedding returns the stored face embedding of an event, or nil.
func (r *EventRepository) GetEventEmbedding(ctx context.Context, id int64) ([]float32, error) {
	var vec pgvector.Vector
	var valid bool
	err := r.pool.QueryRow(ctx,
		`SELECT embedding IS NOT NULL, COALESCE(embedding, '[0]'::vector) FROM match_events WHERE id = $1`, id,
	).Scan(&valid, &vec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event embedding: %w", err)
	}
	if !valid {
		return nil, nil
	}
	return vec.Slice(), nil
}

func scanEvent(rows *sql.Rows) (database.MatchEvent, error) {
	var ev database.MatchEvent
	var channel string
	if err := rows.Scan(&ev.ID, &ev.Label, &ev.ImageRef, &ev.Confidence, &channel, &ev.Watchlisted, &ev.CreatedAt); err != nil {
		return ev, fmt.Errorf("scan match event: %w", err)
	}
	ev.Channel = database.Channel(channel)
	return ev, nil
}

var (
	_ database.EventRepository    = (*EventRepository)(nil)
	_ database.SimilarEventFinder = (*EventRepository)(nil)
)
