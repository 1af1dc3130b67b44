package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Worker pool
// ─────────────────────────────────────────────────────────────────────────────

// Task is one unit of per-device work. Run executes under the pool's
// per-task deadline; Done is called exactly once in every path — after Run
// returns, after a panic, or when the task is drained without running.
type Task struct {
	Run  func(ctx context.Context)
	Done func()
}

// WorkerPool is a fixed-size worker set fed by a buffered jobs channel. Each
// protocol loop owns one pool: a poll cycle submits one task per device and
// waits on its own WaitGroup, so the pool bounds per-protocol concurrency
// while cycles stay strictly sequential.
type WorkerPool struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger

	jobs chan Task
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a pool with the given worker count and per-task
// deadline.
func NewWorkerPool(workers int, timeout time.Duration, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WorkerPool{
		workers: workers,
		timeout: timeout,
		logger:  logger,
		jobs:    make(chan Task, workers*2),
	}
}

// Start launches the workers. After ctx is cancelled the workers keep
// draining the queue (tasks see an expired context and return fast) until
// Stop closes it, so no submitter is ever left waiting on an abandoned task.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit queues t for execution. When ctx is cancelled before the queue
// accepts the task, Submit calls t.Done itself and reports false. Submit must
// not be called after Stop.
func (p *WorkerPool) Submit(ctx context.Context, t Task) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		t.Done()
		return false
	}
	p.mu.Unlock()

	select {
	case p.jobs <- t:
		return true
	case <-ctx.Done():
		t.Done()
		return false
	}
}

// Stop closes the queue and waits for the workers to finish what remains.
// Safe to call more than once.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case t, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(ctx, t)
		case <-ctx.Done():
			for t := range p.jobs {
				p.execute(ctx, t)
			}
			return
		}
	}
}

// execute runs one task under the per-task deadline, converting panics into
// log lines so a misbehaving device cannot kill its worker.
func (p *WorkerPool) execute(ctx context.Context, t Task) {
	defer t.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller: task panicked", "panic", r)
		}
	}()
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	t.Run(tctx)
}
