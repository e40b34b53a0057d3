package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner executes one document run. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// OrchestratorConfig sizes the worker pool and job registry.
type OrchestratorConfig struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// Orchestrator runs queued extraction jobs on a pool of workers.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner Runner
	locks  *collectionLocks
	log    *slog.Logger
	cfg    OrchestratorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to run workers.
func NewOrchestrator(cfg OrchestratorConfig, runner Runner, log *slog.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.QueueSize),
		runner: runner,
		locks:  newCollectionLocks(),
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.runner, o.locks, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.QueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// collectionLocks serialises runs that write the same collection.
type collectionLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newCollectionLocks() *collectionLocks {
	return &collectionLocks{locks: make(map[string]*refMutex)}
}

// Lock blocks until collection is free and returns its unlock function.
func (c *collectionLocks) Lock(collection string) func() {
	c.mu.Lock()
	m, ok := c.locks[collection]
	if !ok {
		m = &refMutex{}
		c.locks[collection] = m
	}
	m.refs++
	c.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		c.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(c.locks, collection)
		}
		c.mu.Unlock()
	}
}
