// ABOUTME: Integration tests for the job queue — claiming, retry backoff,
// ABOUTME: dead-lettering, and stale-lock recovery.
package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/saimali7/Tour-CRM-sub012/internal/testutil"
)

func TestClaimJob_PriorityAndQueueIsolation(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"event":"booking.confirmed"}`)
	low, err := s.EnqueueJob(ctx, "booking_email", 0, payload, 5, nil)
	if err != nil {
		t.Fatalf("EnqueueJob(low): %v", err)
	}
	high, err := s.EnqueueJob(ctx, "booking_email", 10, payload, 5, nil)
	if err != nil {
		t.Fatalf("EnqueueJob(high): %v", err)
	}
	if _, err := s.EnqueueJob(ctx, "webhook_delivery", 0, payload, 5, nil); err != nil {
		t.Fatalf("EnqueueJob(other queue): %v", err)
	}

	// Higher priority claims first even though it was enqueued later.
	job, err := s.ClaimJob(ctx, "booking_email", "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if job == nil || job.ID != high {
		t.Fatalf("claimed %v, want high-priority job %v", job, high)
	}
	if job.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", job.Attempts)
	}

	job, err = s.ClaimJob(ctx, "booking_email", "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob(second): %v", err)
	}
	if job == nil || job.ID != low {
		t.Fatalf("claimed %v, want %v", job, low)
	}

	// Queue drained; the other queue's job must not leak over.
	job, err = s.ClaimJob(ctx, "booking_email", "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob(empty): %v", err)
	}
	if job != nil {
		t.Errorf("expected nil from drained queue, got %v", job.ID)
	}
}

func TestFailJob_BackoffThenDead(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	id, err := s.EnqueueJob(ctx, "webhook_delivery", 0, json.RawMessage(`{}`), 2, nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimJob(ctx, "webhook_delivery", "worker-1")
	if err != nil || job == nil {
		t.Fatalf("ClaimJob: job=%v err=%v", job, err)
	}
	if err := s.FailJob(ctx, id, "endpoint returned 502"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	// First failure: pending again, but run_after pushed into the future.
	job, err = s.ClaimJob(ctx, "webhook_delivery", "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob(backoff): %v", err)
	}
	if job != nil {
		t.Fatal("job claimable before backoff elapsed")
	}

	// Pull run_after back so the retry is claimable now.
	if _, err := s.Pool().Exec(ctx,
		`UPDATE job_queue SET run_after = now() WHERE id = $1`, id); err != nil {
		t.Fatalf("reset run_after: %v", err)
	}
	job, err = s.ClaimJob(ctx, "webhook_delivery", "worker-1")
	if err != nil || job == nil {
		t.Fatalf("ClaimJob(retry): job=%v err=%v", job, err)
	}
	if job.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", job.Attempts)
	}

	// Second failure exhausts max_attempts: dead, never claimable.
	if err := s.FailJob(ctx, id, "endpoint returned 502"); err != nil {
		t.Fatalf("FailJob(final): %v", err)
	}
	if _, err := s.Pool().Exec(ctx,
		`UPDATE job_queue SET run_after = now() WHERE id = $1`, id); err != nil {
		t.Fatalf("reset run_after: %v", err)
	}
	job, err = s.ClaimJob(ctx, "webhook_delivery", "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob(dead): %v", err)
	}
	if job != nil {
		t.Error("dead job should not be claimable")
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	id, err := s.EnqueueJob(ctx, "booking_email", 0, json.RawMessage(`{}`), 5, nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimJob(ctx, "booking_email", "crashed-worker"); err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}

	// Backdate the lock to simulate a worker that died mid-job.
	if _, err := s.Pool().Exec(ctx,
		`UPDATE job_queue SET locked_at = now() - interval '10 minutes' WHERE id = $1`, id); err != nil {
		t.Fatalf("backdate lock: %v", err)
	}

	n, err := s.RecoverStaleJobs(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RecoverStaleJobs: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}

	job, err := s.ClaimJob(ctx, "booking_email", "worker-2")
	if err != nil || job == nil {
		t.Fatalf("ClaimJob after recovery: job=%v err=%v", job, err)
	}
	if job.ID != id {
		t.Errorf("claimed %v, want recovered job %v", job.ID, id)
	}

	// Freshly locked jobs are left alone.
	n, err = s.RecoverStaleJobs(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RecoverStaleJobs(fresh): %v", err)
	}
	if n != 0 {
		t.Errorf("recovered fresh lock: n = %d, want 0", n)
	}
}
