package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Processor is the single-file pipeline run by the queue worker.
type Processor interface {
	Process(ctx context.Context, path string, source constants.Source) (*entity.Job, error)
}

// Task is one file waiting for the worker.
type Task struct {
	Path        string
	Source      constants.Source
	SubmittedAt time.Time

	done chan result
}

type result struct {
	job *entity.Job
	err error
}

// Stats is a snapshot of queue activity.
type Stats struct {
	Pending   int   `json:"pending"`
	Processed int64 `json:"processed"`
	Errors    int64 `json:"errors"`
}

// Queue serializes every Process call through one worker goroutine, so
// watcher and upload callers never route files concurrently.
type Queue struct {
	proc    Processor
	logger  *slog.Logger
	timeout time.Duration

	ch   chan *Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	processed atomic.Int64
	errs      atomic.Int64
}

type Option func(*Queue)

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan *Task, n)
		}
	}
}

// WithProcessTimeout bounds each Process call. Zero means no limit.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(proc Processor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:   proc,
		logger: logger,
		ch:     make(chan *Task, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Info("worker started")
			for task := range q.ch {
				job, err := q.run(task)
				task.done <- result{job: job, err: err}
			}
			q.logger.Info("worker stopped")
		}()
	})
}

func (q *Queue) run(task *Task) (job *entity.Job, err error) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("processing panicked", "path", task.Path, "panic", r)
			job, err = nil, errors.New("processing panicked")
		}
		q.processed.Add(1)
		if err != nil {
			q.errs.Add(1)
		}
	}()

	job, err = q.proc.Process(ctx, task.Path, task.Source)
	if err != nil {
		q.logger.Error("processing failed", "path", task.Path, "source", task.Source, "error", err)
		return job, err
	}
	q.logger.Debug("processed file", "path", task.Path, "job_id", job.ID, "status", job.Status,
		"wait_ms", time.Since(task.SubmittedAt).Milliseconds())
	return job, nil
}

// Submit queues path and waits for its job. When ctx ends first the file
// is still processed but the result is dropped.
func (q *Queue) Submit(ctx context.Context, path string, source constants.Source) (*entity.Job, error) {
	task := &Task{Path: path, Source: source, SubmittedAt: time.Now(), done: make(chan result, 1)}
	if err := q.enqueue(ctx, task); err != nil {
		return nil, err
	}
	select {
	case r := <-task.done:
		return r.job, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) enqueue(ctx context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", task.Path)
		return ErrQueueClosed
	}
	select {
	case q.ch <- task:
		q.logger.Debug("queued file for processing", "path", task.Path, "source", task.Source)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", task.Path)
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   len(q.ch),
		Processed: q.processed.Load(),
		Errors:    q.errs.Load(),
	}
}

// Shutdown stops accepting work and waits for queued tasks to drain.
func (q *Queue) Shutdown(ctx context.Context) {
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
