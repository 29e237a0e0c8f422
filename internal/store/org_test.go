// ABOUTME: Integration tests for store/org.go — org creation, membership
// ABOUTME: resolution by slug, and owner counting. Uses testutil.NewTestDB.
package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/testutil"
)

func TestCreateOrgWithOwner(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "owner@example.com", "Owner", "", 1)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	org, err := s.CreateOrgWithOwner(ctx, "alpine-tours", "Alpine Tours", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}
	if org.Slug != "alpine-tours" {
		t.Errorf("org.Slug = %q, want %q", org.Slug, "alpine-tours")
	}

	// Owner membership is created in the same transaction.
	m, err := s.GetMembershipBySlug(ctx, "alpine-tours", owner.ID)
	if err != nil {
		t.Fatalf("GetMembershipBySlug: %v", err)
	}
	if m == nil {
		t.Fatal("GetMembershipBySlug returned nil for the creating owner")
	}
	if m.Role != "owner" {
		t.Errorf("role = %q, want owner", m.Role)
	}

	n, err := s.GetOrgOwnerCount(ctx, org.ID)
	if err != nil {
		t.Fatalf("GetOrgOwnerCount: %v", err)
	}
	if n != 1 {
		t.Errorf("owner count = %d, want 1", n)
	}
}

func TestCreateOrgWithOwner_DuplicateSlug(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "dup@example.com", "Dup", "", 1)
	if _, err := s.CreateOrgWithOwner(ctx, "taken", "First", owner.ID); err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}
	if _, err := s.CreateOrgWithOwner(ctx, "taken", "Second", owner.ID); err == nil {
		t.Error("expected unique-violation error for duplicate slug")
	}
}

func TestGetMembershipBySlug_NotFoundCases(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "m1@example.com", "M1", "", 1)
	stranger, _ := s.CreateUser(ctx, "m2@example.com", "M2", "", 1)
	_, err := s.CreateOrgWithOwner(ctx, "island-kayak", "Island Kayak", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}

	// Existing org, non-member user.
	m, err := s.GetMembershipBySlug(ctx, "island-kayak", stranger.ID)
	if err != nil {
		t.Fatalf("GetMembershipBySlug(non-member): %v", err)
	}
	if m != nil {
		t.Errorf("expected nil membership for non-member, got role %q", m.Role)
	}

	// Unknown slug.
	m, err = s.GetMembershipBySlug(ctx, "no-such-org", owner.ID)
	if err != nil {
		t.Fatalf("GetMembershipBySlug(missing org): %v", err)
	}
	if m != nil {
		t.Error("expected nil membership for unknown slug")
	}
}

func TestGetOrgByID_Missing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	org, err := s.GetOrgByID(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetOrgByID: %v", err)
	}
	if org != nil {
		t.Error("GetOrgByID(missing) should return nil")
	}
}

func TestUpdateAndRemoveOrgMember(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "own@example.com", "Own", "", 1)
	member, _ := s.CreateUser(ctx, "mem@example.com", "Mem", "", 1)
	org, err := s.CreateOrgWithOwner(ctx, "river-rafting", "River Rafting", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}
	if err := s.CreateOrgMember(ctx, org.ID, member.ID, "member"); err != nil {
		t.Fatalf("CreateOrgMember: %v", err)
	}

	if err := s.UpdateOrgMemberRole(ctx, org.ID, member.ID, "admin"); err != nil {
		t.Fatalf("UpdateOrgMemberRole: %v", err)
	}
	role, _ := s.GetOrgMemberRole(ctx, org.ID, member.ID)
	if role == nil || *role != "admin" {
		t.Errorf("role after update = %v, want admin", role)
	}

	if err := s.RemoveOrgMember(ctx, org.ID, member.ID); err != nil {
		t.Fatalf("RemoveOrgMember: %v", err)
	}
	gone, _ := s.GetOrgMemberRole(ctx, org.ID, member.ID)
	if gone != nil {
		t.Error("member should be gone after RemoveOrgMember")
	}

	// Updating a non-member is an error, not a silent no-op.
	if err := s.UpdateOrgMemberRole(ctx, org.ID, member.ID, "member"); err == nil {
		t.Error("UpdateOrgMemberRole on removed member should fail")
	}
}

func TestListUserOrgs_OrderedByName(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "multi@example.com", "Multi", "", 1)
	if _, err := s.CreateOrgWithOwner(ctx, "zeta", "Zeta Expeditions", user.ID); err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}
	if _, err := s.CreateOrgWithOwner(ctx, "alpha", "Alpha Expeditions", user.ID); err != nil {
		t.Fatalf("CreateOrgWithOwner: %v", err)
	}

	orgs, err := s.ListUserOrgs(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserOrgs: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("ListUserOrgs returned %d orgs, want 2", len(orgs))
	}
	if orgs[0].Org.Name != "Alpha Expeditions" || orgs[1].Org.Name != "Zeta Expeditions" {
		t.Errorf("unexpected order: %q, %q", orgs[0].Org.Name, orgs[1].Org.Name)
	}
	if orgs[0].Role != "owner" {
		t.Errorf("role = %q, want owner", orgs[0].Role)
	}
}
