package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/ledger-consolidator/internal/jobs"
	"github.com/google/uuid"
)

// Options tunes a Queue. Zero values fall back to 5 workers, no retries and
// a one second initial retry delay.
type Options struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// Queue is an in-memory job publisher and consumer backed by a channel.
// It is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.LoadBatchJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers    int
	maxRetries int
	retryDelay time.Duration

	backoffMu sync.Mutex
	backoffs  map[string]*backoff.ExponentialBackOff
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishLoadBatch blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Queue{
		jobChan:    make(chan *jobs.LoadBatchJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		backoffs:   make(map[string]*backoff.ExponentialBackOff),
	}
}

// PublishLoadBatch implements the Publisher interface.
func (q *Queue) PublishLoadBatch(ctx context.Context, job *jobs.LoadBatchJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
		if job.MaxRetries == 0 {
			job.MaxRetries = q.maxRetries
		}
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs the handler once and schedules a retry on failure. Errors
// wrapped with backoff.Permanent are never retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.LoadBatchJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		var permanent *backoff.PermanentError
		if job.RetryCount < job.MaxRetries && !errors.As(err, &permanent) {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			delay := q.nextDelay(job.JobID)
			retry := *job
			time.AfterFunc(delay, func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				_ = q.PublishLoadBatch(ctx, &retry)
			})
		} else {
			job.Status = jobs.JobStatusFailed
			q.forgetDelay(job.JobID)
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.forgetDelay(job.JobID)
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// nextDelay returns the exponential backoff interval for the job's next retry.
func (q *Queue) nextDelay(jobID string) time.Duration {
	q.backoffMu.Lock()
	defer q.backoffMu.Unlock()

	b, ok := q.backoffs[jobID]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = q.retryDelay
		b.MaxElapsedTime = 0
		b.Reset()
		q.backoffs[jobID] = b
	}
	return b.NextBackOff()
}

func (q *Queue) forgetDelay(jobID string) {
	q.backoffMu.Lock()
	delete(q.backoffs, jobID)
	q.backoffMu.Unlock()
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
