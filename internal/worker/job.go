// Package worker runs a goroutine pool that claims and executes jobs from
// the job_queue table using FOR UPDATE SKIP LOCKED.
//
// Register a Handler per queue name before calling Pool.Start. Each queue
// gets its own polling goroutine; a shared recovery goroutine resets jobs
// left in 'running' state by a crashed worker.
package worker

import (
	"context"
	"encoding/json"
)

// Handler executes one claimed job. A non-nil error triggers retry with
// exponential backoff up to max_attempts, then the job goes dead. A nil
// return marks the job done.
type Handler func(ctx context.Context, payload json.RawMessage) error
