package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
)

// ErrQueueFull is returned when the queue buffer has no room for another
// message.
var ErrQueueFull = errors.New("queue is full")

// Processor is what a worker invocation runs for one delivery.
type Processor interface {
	Process(ctx context.Context, job *entity.ProcessingJob) (pipeline.ProcessingResult, error)
}

// Retrier decides what to do with a failed delivery.
type Retrier interface {
	// AlreadySpent reports a delivery past the retry ceiling. A job at the
	// ceiling still gets its final run.
	AlreadySpent(job *entity.ProcessingJob) bool
	OnFailure(ctx context.Context, job *entity.ProcessingJob) pipeline.RetryDecision
}

// WorkerQueue is an in-process queue transport: buffered channel, worker
// goroutines, redelivery by re-enqueue. One job message is processed
// end-to-end by a single worker invocation.
type WorkerQueue struct {
	proc    Processor
	retrier Retrier
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan JobMessage
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan JobMessage, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerQueue(proc Processor, retrier Retrier, logger *slog.Logger, opts ...Option) *WorkerQueue {
	q := &WorkerQueue{
		proc:    proc,
		retrier: retrier,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan JobMessage, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for msg := range q.ch {
					q.handle(workerID, msg)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// handle runs one delivery end-to-end and applies the ack/redeliver outcome.
func (q *WorkerQueue) handle(workerID int, msg JobMessage) {
	job := msg.ToJob()

	// A spent job is acknowledged without another pipeline run; its FAILED
	// row is the record.
	if q.retrier.AlreadySpent(job) {
		q.logger.Warn("dropping spent job", "worker_id", workerID, "job_id", job.ID, "retry_count", job.RetryCount)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	result, err := q.proc.Process(ctx, job)
	cancel()

	if err == nil {
		q.logger.Info("job processed",
			"worker_id", workerID,
			"job_id", job.ID,
			"success", result.Success,
			"needs_review", result.RequiresManualReview,
		)
		return
	}

	q.logger.Error("job processing failed", "worker_id", workerID, "job_id", job.ID, "error", err)

	decisionCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	decision := q.retrier.OnFailure(decisionCtx, job)
	cancel()
	if !decision.Redeliver {
		// Acknowledge-and-drop: past the retry ceiling the transport must
		// not loop.
		return
	}

	msg.RetryCount = job.RetryCount
	q.redeliver(msg, decision.Delay)
}

// redeliver re-enqueues the message after the backoff delay.
func (q *WorkerQueue) redeliver(msg JobMessage, delay time.Duration) {
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			q.logger.Warn("redelivery dropped: queue is shut down", "job_id", msg.JobID)
			return
		}
		select {
		case q.ch <- msg:
			q.logger.Info("job redelivered", "job_id", msg.JobID, "retry_count", msg.RetryCount)
		default:
			q.logger.Warn("queue full, dropping redelivery", "job_id", msg.JobID)
		}
	})
}

// Enqueue validates and accepts a raw job message payload.
func (q *WorkerQueue) Enqueue(_ context.Context, payload []byte) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		q.logger.Error("rejecting malformed job message", "error", err)
		return err
	}
	return q.EnqueueMessage(msg)
}

// EnqueueMessage accepts an already-decoded message.
func (q *WorkerQueue) EnqueueMessage(msg JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", msg.JobID)
		return nil
	}
	select {
	case q.ch <- msg:
		q.logger.Info("job queued", "job_id", msg.JobID, "tenant_id", msg.TenantID)
		return nil
	default:
		// Blocking here would hold the lock against Shutdown and every
		// pending redelivery; the caller gets the backpressure instead.
		q.logger.Warn("queue full, rejecting message", "job_id", msg.JobID)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for in-flight work to drain.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
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
