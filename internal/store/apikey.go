// ABOUTME: Store methods for API keys (machine-to-machine auth).
// ABOUTME: Only the sha256 hash of a key is ever stored.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKey is a row in the api_keys table.
type APIKey struct {
	ID              uuid.UUID
	OrgID           uuid.UUID
	CreatedByUserID uuid.UUID
	KeyHash         string
	Name            string
	Role            string
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

const apiKeyCols = "id, org_id, created_by_user_id, key_hash, name, role, last_used_at, created_at"

func scanAPIKey(row pgx.Row) (*APIKey, error) {
	k := &APIKey{}
	err := row.Scan(&k.ID, &k.OrgID, &k.CreatedByUserID, &k.KeyHash, &k.Name,
		&k.Role, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// CreateAPIKey inserts an API key row and returns it.
func (s *Store) CreateAPIKey(ctx context.Context, orgID, createdBy uuid.UUID, keyHash, name, role string) (*APIKey, error) {
	k, err := scanAPIKey(s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (org_id, created_by_user_id, key_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apiKeyCols,
		orgID, createdBy, keyHash, name, role,
	))
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return k, nil
}

// LookupAPIKey returns the key with the given hash, or (nil, nil) if absent.
func (s *Store) LookupAPIKey(ctx context.Context, keyHash string) (*APIKey, error) {
	k, err := scanAPIKey(s.pool.QueryRow(ctx, `
		SELECT `+apiKeyCols+` FROM api_keys WHERE key_hash = $1`,
		keyHash,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	return k, nil
}

// UpdateAPIKeyLastUsed stamps last_used_at = now(). Called off the request path.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = now() WHERE id = $1`,
		id,
	); err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// ListAPIKeys returns all keys for an org, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+apiKeyCols+` FROM api_keys WHERE org_id = $1 ORDER BY created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.OrgID, &k.CreatedByUserID, &k.KeyHash, &k.Name,
			&k.Role, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RevokeAPIKey deletes a key within an org. Returns false if no row matched.
func (s *Store) RevokeAPIKey(ctx context.Context, orgID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM api_keys WHERE org_id = $1 AND id = $2`,
		orgID, id,
	)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
