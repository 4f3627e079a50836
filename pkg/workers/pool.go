// Package workers runs independent documents through a resolver concurrently.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
	"github.com/otherjamesbrown/penf-coref/pkg/observability"
)

// DefaultConcurrency is the default number of workers.
const DefaultConcurrency = 4

// stageQueued names the stage reported for documents that never started.
const stageQueued = "queued"

// WorkerStatus represents a worker's current status.
type WorkerStatus string

const (
	WorkerStatusStarting WorkerStatus = "starting"
	WorkerStatusHealthy  WorkerStatus = "healthy"
	WorkerStatusDraining WorkerStatus = "draining"
	WorkerStatusStopped  WorkerStatus = "stopped"
)

// Resolver is the part of coref.Resolver a pool needs.
type Resolver interface {
	Resolve(ctx context.Context, doc *mentions.Document, store *coref.Store) (*coref.Result, error)
}

// PoolConfig configures a pool.
type PoolConfig struct {
	Count           int           `yaml:"count"`
	DocumentTimeout time.Duration `yaml:"document_timeout"` // zero means no per-document deadline
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Count: DefaultConcurrency}
}

// Job is one document to resolve. A nil Store starts from singletons.
type Job struct {
	Document *mentions.Document
	Store    *coref.Store
}

// Outcome is the result of one job. Exactly one of Result and Err is set.
type Outcome struct {
	Index      int
	DocumentID string
	WorkerID   string
	Result     *coref.Result
	Store      *coref.Store
	Err        error
}

// Worker is a single goroutine resolving documents.
type Worker struct {
	ID           string
	Status       WorkerStatus
	StartedAt    time.Time
	LastActivity time.Time

	ProcessedCount atomic.Int64
	FailedCount    atomic.Int64

	mu sync.Mutex
}

func newWorker() *Worker {
	return &Worker{ID: uuid.New().String(), Status: WorkerStatusStarting}
}

func (w *Worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Status = s
	if s == WorkerStatusHealthy && w.StartedAt.IsZero() {
		w.StartedAt = time.Now()
	}
}

func (w *Worker) touch() {
	w.mu.Lock()
	w.LastActivity = time.Now()
	w.mu.Unlock()
}

// Pool resolves batches of documents with a fixed number of workers. Each
// document gets its own store, so workers share nothing but the resolver.
type Pool struct {
	config   PoolConfig
	resolver Resolver
	metrics  *observability.CorefMetrics
	logger   logging.Logger

	mu      sync.RWMutex
	workers []*Worker
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l logging.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// WithMetrics tracks active workers on m.
func WithMetrics(m *observability.CorefMetrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// NewPool creates a pool. A non-positive count uses DefaultConcurrency.
func NewPool(config PoolConfig, resolver Resolver, opts ...PoolOption) *Pool {
	if config.Count <= 0 {
		config.Count = DefaultConcurrency
	}
	p := &Pool{
		config:   config,
		resolver: resolver,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.F("component", "batch_pool"))
	return p
}

// Run resolves every job and returns one outcome per job in input order. A
// failed document does not stop the batch. When ctx ends, documents not yet
// started fail as interrupted and running ones see the cancellation.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	for i, job := range jobs {
		outcomes[i].Index = i
		if job.Document != nil {
			outcomes[i].DocumentID = job.Document.ID
		}
	}
	if len(jobs) == 0 {
		return outcomes
	}

	count := min(p.config.Count, len(jobs))
	workers := make([]*Worker, count)
	for i := range workers {
		workers[i] = newWorker()
	}
	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()

	p.logger.Info("starting batch", logging.F("documents", len(jobs)), logging.F("workers", count))

	queue := make(chan int)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.setStatus(WorkerStatusHealthy)
			for i := range queue {
				outcomes[i] = p.process(ctx, w, i, jobs[i])
			}
			w.setStatus(WorkerStatusStopped)
		}(w)
	}

	next := 0
dispatch:
	for ; next < len(jobs) && ctx.Err() == nil; next++ {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- next:
		}
	}
	close(queue)
	if next < len(jobs) {
		for _, w := range workers {
			w.setStatus(WorkerStatusDraining)
		}
	}
	wg.Wait()

	for i := next; i < len(jobs); i++ {
		runErr := corerrors.ClassifyError(ctx.Err(), stageQueued)
		runErr.DocumentID = outcomes[i].DocumentID
		outcomes[i].Err = runErr
	}

	stats := p.Stats()
	p.logger.Info("batch finished",
		logging.F("processed", stats.Processed),
		logging.F("failed", stats.Failed),
		logging.F("skipped", len(jobs)-next),
	)
	return outcomes
}

func (p *Pool) process(ctx context.Context, w *Worker, i int, job Job) Outcome {
	out := Outcome{Index: i, WorkerID: w.ID}
	w.touch()
	if p.metrics != nil {
		p.metrics.WorkersActive.Inc()
		defer p.metrics.WorkersActive.Dec()
	}

	if job.Document == nil {
		out.Err = corerrors.ClassifyError(fmt.Errorf("job %d has no document: %w", i, corerrors.ErrValidation), stageQueued)
		w.FailedCount.Add(1)
		return out
	}
	out.DocumentID = job.Document.ID

	store := job.Store
	if store == nil {
		var err error
		if store, err = coref.SingletonStore(job.Document); err != nil {
			runErr := corerrors.ClassifyError(err, stageQueued)
			runErr.DocumentID = job.Document.ID
			out.Err = runErr
			w.FailedCount.Add(1)
			return out
		}
	}

	if p.config.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.DocumentTimeout)
		defer cancel()
	}

	result, err := p.resolver.Resolve(ctx, job.Document, store)
	if err != nil {
		p.logger.Warn("document failed",
			logging.F("document_id", job.Document.ID),
			logging.F("worker_id", w.ID),
			logging.Err(err),
		)
		out.Err = err
		w.FailedCount.Add(1)
		return out
	}
	out.Result = result
	out.Store = store
	w.ProcessedCount.Add(1)
	return out
}

// Stats returns statistics for the workers of the latest batch.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{WorkerCount: len(p.workers)}
	for _, w := range p.workers {
		w.mu.Lock()
		if w.Status == WorkerStatusHealthy {
			stats.ActiveCount++
		}
		w.mu.Unlock()
		stats.Processed += w.ProcessedCount.Load()
		stats.Failed += w.FailedCount.Load()
	}
	return stats
}

// PoolStats contains pool statistics.
type PoolStats struct {
	WorkerCount int   `json:"worker_count" yaml:"worker_count"`
	ActiveCount int   `json:"active_count" yaml:"active_count"`
	Processed   int64 `json:"processed" yaml:"processed"`
	Failed      int64 `json:"failed" yaml:"failed"`
}
