package future

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// WorkerPool is the default implementation of spec §6's worker-pool
// collaborator: runLocalSafe(runnable, systemPriority) — fire-and-forget
// dispatch, bounded for ordinary work so a burst of listener notifications
// across many handles cannot explode goroutine counts, but with a
// systemPriority lane that always runs immediately (used for listeners
// registered with Handle.AddPriorityListener, which must never queue behind
// a backlog of ordinary listeners).
//
// Bounded via golang.org/x/sync/semaphore rather than a channel-fed worker
// goroutine pool, since semaphore.Weighted is the concurrency primitive this
// module's dependency set provides for exactly this shape of problem.
type WorkerPool struct {
	sem    *semaphore.Weighted
	logger Logger
}

// NewWorkerPool creates a pool that allows at most maxConcurrency ordinary
// (non-systemPriority) tasks to run at once. A maxConcurrency of zero or
// negative means unbounded.
func NewWorkerPool(maxConcurrency int64, logger Logger) *WorkerPool {
	if logger == nil {
		logger = DefaultLogger
	}
	var sem *semaphore.Weighted
	if maxConcurrency > 0 {
		sem = semaphore.NewWeighted(maxConcurrency)
	}
	return &WorkerPool{sem: sem, logger: logger}
}

// RunLocalSafe runs fn in its own goroutine, recovering and logging any
// panic rather than letting it escape. When systemPriority is false and the
// pool is bounded, the goroutine waits for a free slot before running fn.
func (p *WorkerPool) RunLocalSafe(fn func(), systemPriority bool) {
	if systemPriority || p.sem == nil {
		go p.run(fn)
		return
	}
	go func() {
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		p.run(fn)
	}()
}

func (p *WorkerPool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(fmt.Errorf("%v", r), "panic recovered in worker pool task")
		}
	}()
	fn()
}
