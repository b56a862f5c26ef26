package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facewatch/internal/database"
)

// IdentityRepository reads watchlist identities from PostgreSQL.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// ListIdentities returns all identities ordered by ID.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `
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

// CreateIdentity inserts an identity record. Used by tests and seeding
// tools; the watchlist is otherwise managed outside this service.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO identities (name, description, image_key)
		VALUES ($1, $2, $3)
		RETURNING id, added_at
	`, identity.Name, identity.Description, identity.ImageKey).Scan(&identity.ID, &identity.AddedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

var _ database.IdentityReader = (*IdentityRepository)(nil)
