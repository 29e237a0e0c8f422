// ABOUTME: Tests for the shared request helpers: pagination cursors and the
// ABOUTME: unique-violation classifier the create handlers depend on.
package api

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "orgs_slug_key"}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", unique, true},
		{"wrapped unique violation", fmt.Errorf("create org: %w", unique), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"connection failure", errors.New("dial tcp 127.0.0.1:5432: connection refused"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("%s: isUniqueViolation = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()
	createdAt := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	id := uuid.New()

	gotAt, gotID, err := parseCursor(formatCursor(createdAt, id))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !gotAt.Equal(createdAt) || gotID != id {
		t.Errorf("round trip = (%v, %s), want (%v, %s)", gotAt, gotID, createdAt, id)
	}

	for _, bad := range []string{"", "nounderscore", "abc_" + id.String(), "123_not-a-uuid"} {
		if _, _, err := parseCursor(bad); err == nil {
			t.Errorf("parseCursor(%q): want error", bad)
		}
	}
}
