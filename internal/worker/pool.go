// ABOUTME: Worker pool: one polling goroutine per queue claiming jobs via
// ABOUTME: SKIP LOCKED, plus a recovery goroutine for stale running jobs.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/store"
)

const (
	pollInterval       = 2 * time.Second
	staleCheckInterval = time.Minute
	// A 'running' job older than this is assumed orphaned by a dead worker.
	staleThreshold = 5 * time.Minute
)

// Pool claims and executes jobs for its registered queues.
type Pool struct {
	store    *store.Store
	workerID string

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a Pool. The random workerID identifies this process in the
// locked_by column so stale locks can be traced to a worker.
func New(s *store.Store) *Pool {
	return &Pool{
		store:    s,
		workerID: uuid.New().String(),
		handlers: make(map[string]Handler),
	}
}

// Register binds h to the named queue. Call before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[queue] = h
}

// Start launches the queue pollers and the stale-lock recovery loop, then
// blocks until ctx is cancelled and every goroutine has drained.
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			p.runQueue(ctx, queue)
		}(q)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runStaleRecovery(ctx)
	}()

	wg.Wait()
	slog.Info("worker pool stopped", "worker_id", p.workerID)
}

func (p *Pool) runQueue(ctx context.Context, queue string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.Info("worker queue started", "queue", queue, "worker_id", p.workerID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker queue stopping", "queue", queue)
			return
		case <-ticker.C:
			p.processOne(ctx, queue)
		}
	}
}

// processOne claims and runs at most one job. Failures are logged and left
// to the retry machinery; the polling loop always continues.
func (p *Pool) processOne(ctx context.Context, queue string) {
	job, err := p.store.ClaimJob(ctx, queue, p.workerID)
	if err != nil {
		slog.Error("claim job", "queue", queue, "error", err)
		return
	}
	if job == nil {
		return // nothing pending
	}

	p.mu.RLock()
	h := p.handlers[queue]
	p.mu.RUnlock()
	if h == nil {
		slog.Error("no handler for queue", "queue", queue, "job_id", job.ID)
		return
	}

	slog.Info("executing job", "queue", queue, "job_id", job.ID, "attempts", job.Attempts)
	if err := h(ctx, job.Payload); err != nil {
		slog.Error("job failed", "queue", queue, "job_id", job.ID, "error", err)
		if failErr := p.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			slog.Error("mark job failed", "job_id", job.ID, "error", failErr)
		}
		return
	}
	if err := p.store.CompleteJob(ctx, job.ID); err != nil {
		slog.Error("mark job done", "job_id", job.ID, "error", err)
		return
	}
	slog.Info("job completed", "queue", queue, "job_id", job.ID)
}

func (p *Pool) runStaleRecovery(ctx context.Context) {
	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.store.RecoverStaleJobs(ctx, staleThreshold)
			if err != nil {
				slog.Error("stale job recovery", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reclaimed stale jobs", "count", n)
			}
		}
	}
}
