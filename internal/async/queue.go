package async

import (
	"context"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/core"
)

// Job is one PDF waiting to be processed.
type Job struct {
	Path        string
	Filename    string
	SubmittedAt time.Time
	TraceID     uuid.UUID
}

// DocumentQueue runs document processing off the caller's request path.
// Workers read PDFs from disk and drive the Processor; actual model
// concurrency is still bounded by the shared gateway, so queue workers
// mostly overlap rasterization and I/O.
type DocumentQueue struct {
	proc    *core.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*DocumentQueue)

func WithWorkers(n int) Option {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *DocumentQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewDocumentQueue(proc *core.Processor, logger *slog.Logger, opts ...Option) *DocumentQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &DocumentQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *DocumentQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *DocumentQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	pdf, err := os.ReadFile(job.Path)
	if err != nil {
		q.logger.Error("failed to read document",
			"worker_id", workerID, "trace_id", job.TraceID, "path", job.Path, "error", err)
		return
	}

	res, err := q.proc.ProcessDocument(ctx, pdf, job.Filename)
	if err != nil {
		q.logger.Error("processing failed",
			"worker_id", workerID, "trace_id", job.TraceID, "filename", job.Filename, "error", err)
		return
	}
	q.logger.Info("processed document",
		"worker_id", workerID,
		"trace_id", job.TraceID,
		"document_id", res.DocumentID,
		"pages", res.TotalPages,
		"succeeded", res.SuccessCount,
		"queued_for", time.Since(job.SubmittedAt).String(),
	)
}

func (q *DocumentQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "filename", job.Filename)
		return nil
	}
	if job.TraceID == uuid.Nil {
		job.TraceID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "trace_id", job.TraceID, "filename", job.Filename)
	default:
		q.logger.Warn("queue full, applying backpressure", "trace_id", job.TraceID, "filename", job.Filename)
		q.ch <- job
	}
	return nil
}

func (q *DocumentQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
