// Package cleanup runs best-effort background jobs on a bounded worker pool.
//
// The Directory uses it to delete replica content and prune share sets after
// the caller-visible part of a delete has returned. Jobs are never retried:
// a failure is logged and counted, and the job is dropped. When the queue is
// full, new jobs are dropped the same way.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
)

// Job is one unit of background work.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Run performs the work. The context is cancelled once JobTimeout
	// elapses.
	Run func(ctx context.Context) error
}

// Config controls the pool size.
type Config struct {
	// Workers is the number of concurrent job runners. Default: 4
	Workers int

	// QueueSize bounds the number of pending jobs. Default: 1024
	QueueSize int

	// JobTimeout bounds a single job. Default: 30s
	JobTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
}

// Pool is a fixed set of workers consuming a bounded job queue.
type Pool struct {
	config Config
	jobs   chan Job
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	doneCh    chan struct{}

	inflight  atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a pool. Call Start before submitting work.
func New(config Config) *Pool {
	config.applyDefaults()

	return &Pool{
		config: config,
		jobs:   make(chan Job, config.QueueSize),
		doneCh: make(chan struct{}),
	}
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		p.started = true
		p.mu.Unlock()

		logger.Info("Starting cleanup pool: workers=%d queue_size=%d",
			p.config.Workers, p.config.QueueSize)

		for i := 0; i < p.config.Workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}

		go func() {
			p.wg.Wait()
			close(p.doneCh)
		}()
	})
}

// Submit enqueues job without blocking. It returns false if the pool is
// stopped or the queue is full; the job is then dropped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		logger.Warn("Cleanup: pool stopped, dropping job %s", job.Name)
		return false
	}

	p.inflight.Add(1)
	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return true
	default:
		p.inflight.Add(-1)
		p.dropped.Add(1)
		logger.Warn("Cleanup: queue full, dropping job %s", job.Name)
		return false
	}
}

// Wait blocks until no job is queued or running, or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for p.inflight.Load() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		close(p.jobs)
		p.mu.Unlock()

		if !started {
			// Nothing will drain the queue; discard what is left.
			for job := range p.jobs {
				p.dropped.Add(1)
				p.inflight.Add(-1)
				logger.Warn("Cleanup: pool never started, dropping job %s", job.Name)
			}
			close(p.doneCh)
		}
	})

	logger.Info("Stopping cleanup pool...")

	select {
	case <-p.doneCh:
		logger.Info("Cleanup pool stopped: %s", p.Stats().Summary())
		return nil
	case <-ctx.Done():
		logger.Warn("Cleanup pool shutdown timeout")
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer p.inflight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job.Run(ctx)
	}()

	if err != nil {
		p.failed.Add(1)
		logger.Warn("Cleanup: job %s failed on worker %d: %v", job.Name, id, err)
		return
	}

	p.completed.Add(1)
	logger.Debug("Cleanup: job %s done on worker %d in %s", job.Name, id, time.Since(start))
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Dropped   uint64
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Summary renders the counters on one line.
func (s Stats) Summary() string {
	return fmt.Sprintf("submitted=%d completed=%d failed=%d dropped=%d",
		s.Submitted, s.Completed, s.Failed, s.Dropped)
}
