// ABOUTME: Store methods for organizations and membership.
// ABOUTME: Membership resolution by slug backs the request-context builder.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Organization is a row in the organizations table.
type Organization struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
}

// Membership is a user's role within one organization.
type Membership struct {
	OrgID     uuid.UUID
	UserID    uuid.UUID
	Role      string
	CreatedAt time.Time
}

// OrgMember is a membership row joined with the user's profile, for listings.
type OrgMember struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Role        string
	JoinedAt    time.Time
}

// CreateOrgWithOwner atomically creates a new org and adds ownerID as owner.
func (s *Store) CreateOrgWithOwner(ctx context.Context, slug, name string, ownerID uuid.UUID) (*Organization, error) {
	org := &Organization{}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO organizations (slug, name)
			VALUES ($1, $2)
			RETURNING id, slug, name, created_at`,
			slug, name,
		).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt); err != nil {
			return fmt.Errorf("create org: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO org_members (org_id, user_id, role)
			VALUES ($1, $2, 'owner')`,
			org.ID, ownerID,
		); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrgBySlug returns the org with the given slug, or (nil, nil) if not found.
func (s *Store) GetOrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, slug, name, created_at FROM organizations WHERE slug = $1`,
		slug,
	).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get org by slug: %w", err)
	}
	return org, nil
}

// GetOrgByID returns the org with the given ID, or (nil, nil) if not found.
func (s *Store) GetOrgByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, slug, name, created_at FROM organizations WHERE id = $1`,
		id,
	).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get org by id: %w", err)
	}
	return org, nil
}

// UpdateOrg updates the org name. Returns (nil, nil) if the org is not found.
func (s *Store) UpdateOrg(ctx context.Context, id uuid.UUID, name string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx, `
		UPDATE organizations SET name = $2 WHERE id = $1
		RETURNING id, slug, name, created_at`,
		id, name,
	).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update org: %w", err)
	}
	return org, nil
}

// GetMembershipBySlug resolves the membership of userID in the org identified
// by slug in one query. Returns (nil, nil) when the org does not exist or the
// user is not a member — the context builder treats both as "no org context".
func (s *Store) GetMembershipBySlug(ctx context.Context, slug string, userID uuid.UUID) (*Membership, error) {
	m := &Membership{}
	err := s.pool.QueryRow(ctx, `
		SELECT m.org_id, m.user_id, m.role, m.created_at
		FROM org_members m
		JOIN organizations o ON o.id = m.org_id
		WHERE o.slug = $1 AND m.user_id = $2`,
		slug, userID,
	).Scan(&m.OrgID, &m.UserID, &m.Role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership by slug: %w", err)
	}
	return m, nil
}

// GetOrgMemberRole returns the role of userID in orgID, or (nil, nil) if not a member.
func (s *Store) GetOrgMemberRole(ctx context.Context, orgID, userID uuid.UUID) (*string, error) {
	var role string
	err := s.pool.QueryRow(ctx, `
		SELECT role FROM org_members WHERE org_id = $1 AND user_id = $2`,
		orgID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get org member role: %w", err)
	}
	return &role, nil
}

// CreateOrgMember adds a user to an org with the given role.
func (s *Store) CreateOrgMember(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO org_members (org_id, user_id, role) VALUES ($1, $2, $3)`,
		orgID, userID, role,
	); err != nil {
		return fmt.Errorf("create org member: %w", err)
	}
	return nil
}

// ListOrgMembers returns all members of an org ordered by join time.
func (s *Store) ListOrgMembers(ctx context.Context, orgID uuid.UUID) ([]OrgMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.user_id, u.email, u.display_name, m.role, m.created_at
		FROM org_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY m.created_at`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list org members: %w", err)
	}
	defer rows.Close()

	var out []OrgMember
	for rows.Next() {
		var m OrgMember
		if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan org member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateOrgMemberRole changes the role of userID in orgID.
func (s *Store) UpdateOrgMemberRole(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE org_members SET role = $3 WHERE org_id = $1 AND user_id = $2`,
		orgID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("update org member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update org member role: user %s is not a member", userID)
	}
	return nil
}

// RemoveOrgMember removes userID from orgID.
func (s *Store) RemoveOrgMember(ctx context.Context, orgID, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM org_members WHERE org_id = $1 AND user_id = $2`,
		orgID, userID,
	); err != nil {
		return fmt.Errorf("remove org member: %w", err)
	}
	return nil
}

// GetOrgOwnerCount returns the number of owners in the given org.
// Used to prevent removing or demoting the last owner.
func (s *Store) GetOrgOwnerCount(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM org_members WHERE org_id = $1 AND role = 'owner'`,
		orgID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("get org owner count: %w", err)
	}
	return n, nil
}

// UserOrg is one org a user belongs to, with the user's role in it.
type UserOrg struct {
	Org  Organization
	Role string
}

// ListUserOrgs returns all orgs a user belongs to with their role, ordered by org name.
func (s *Store) ListUserOrgs(ctx context.Context, userID uuid.UUID) ([]UserOrg, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.slug, o.name, o.created_at, m.role
		FROM org_members m
		JOIN organizations o ON o.id = m.org_id
		WHERE m.user_id = $1
		ORDER BY o.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user orgs: %w", err)
	}
	defer rows.Close()

	var out []UserOrg
	for rows.Next() {
		var r UserOrg
		if err := rows.Scan(&r.Org.ID, &r.Org.Slug, &r.Org.Name, &r.Org.CreatedAt, &r.Role); err != nil {
			return nil, fmt.Errorf("scan user org: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
