package mariadb

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/facewatch/internal/database"
)

// EventRepository provides MariaDB-backed match event storage.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new MariaDB event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CreateMatchEvent inserts the event and sets its ID.
func (r *EventRepository) CreateMatchEvent(ctx context.Context, event *database.MatchEvent) error {
	res, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO match_events (label, image_ref, confidence, channel, watchlisted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Label, event.ImageRef, event.Confidence, string(event.Channel), event.Watchlisted, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read match event id: %w", err)
	}
	event.ID = id
	return nil
}

func buildEventWhere(filter database.EventFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Channel != "" {
		conds = append(conds, "channel = ?")
		args = append(args, string(filter.Channel))
	}
	if filter.Label != "" {
		conds = append(conds, "label = ?")
		args = append(args, filter.Label)
	}
	if filter.WatchlistedOnly {
		conds = append(conds, "watchlisted = TRUE")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents returns events newest first.
func (r *EventRepository) ListEvents(ctx context.Context, filter database.EventFilter) ([]database.MatchEvent, error) {
	where, args := buildEventWhere(filter)
	query := `SELECT id, label, image_ref, confidence, channel, watchlisted, created_at FROM match_events` +
		where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query match events: %w", err)
	}
	defer rows.Close()

	var events []database.MatchEvent
	for rows.Next() {
		var ev database.MatchEvent
		var channel string
		if err := rows.Scan(&ev.ID, &ev.Label, &ev.ImageRef, &ev.Confidence, &channel, &ev.Watchlisted, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		ev.Channel = database.Channel(channel)
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
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_events`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count match events: %w", err)
	}
	return count, nil
}

// ListIdentities returns all identities ordered by ID.
func (r *EventRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, name, description, image_key, added_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		var id database.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Description, &id.ImageKey, &id.AddedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

var (
	_ database.EventRepository = (*EventRepository)(nil)
	_ database.IdentityReader  = (*EventRepository)(nil)
)
