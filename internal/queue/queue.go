package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mediaagent/internal/logging"
	"mediaagent/internal/services"
)

// Ledger durably records job status.
type Ledger interface {
	RecordPending(ctx context.Context, input, output string, videoID int64) (int64, error)
	RecordOutcome(ctx context.Context, id int64, status Status, message string) error
}

// Converter transforms input into output.
type Converter interface {
	Convert(ctx context.Context, input, output string) error
}

// Publisher runs after a job converted: the catalog path rewrite on the
// primary host, the ship-back on a remote agent.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, job *Job) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, job *Job) error { return f(ctx, job) }

// Stats summarizes the jobs a queue has seen.
type Stats struct {
	Pending       int
	Converted     int
	Failed        int
	PublishFailed int
}

// Total returns the number of jobs enqueued.
func (s Stats) Total() int {
	return s.Pending + s.Converted + s.Failed
}

// Queue is a FIFO of conversion jobs with lookup by input path.
type Queue struct {
	ledger    Ledger
	converter Converter
	publisher Publisher
	logger    *slog.Logger

	mu          sync.Mutex
	fifo        []*Job
	jobs        map[string]*Job
	reserved    map[string]struct{}
	outstanding int
	closed      bool
	draining    bool
	changed     chan struct{}
	stats       Stats
}

// New constructs an empty queue. publisher may be nil.
func New(ledger Ledger, converter Converter, publisher Publisher, logger *slog.Logger) *Queue {
	return &Queue{
		ledger:    ledger,
		converter: converter,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "queue"),
		jobs:      make(map[string]*Job),
		reserved:  make(map[string]struct{}),
		changed:   make(chan struct{}),
	}
}

// Enqueue records job as pending in the ledger and appends it to the FIFO.
// A key the queue has already seen, in any status, returns false without error.
// A ledger failure is returned and leaves the job out of the queue.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (bool, error) {
	if job == nil || job.Key() == "" {
		return false, services.Wrap(services.ErrValidation, "queue", "enqueue", "job has no input path", nil)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	_, seen := q.jobs[job.Key()]
	_, reserving := q.reserved[job.Key()]
	if seen || reserving {
		q.mu.Unlock()
		q.logger.Debug("job already queued", logging.String("input", job.Key()))
		return false, nil
	}
	// Reserve the key so a concurrent Enqueue short-circuits while the ledger write runs.
	q.reserved[job.Key()] = struct{}{}
	q.outstanding++
	q.mu.Unlock()

	id, err := q.ledger.RecordPending(ctx, job.Input(), job.Output(), job.VideoID())
	if err != nil {
		q.mu.Lock()
		delete(q.reserved, job.Key())
		q.outstanding--
		q.broadcastLocked()
		q.mu.Unlock()
		return false, fmt.Errorf("record pending %q: %w", job.Key(), err)
	}
	job.setLedgerID(id)

	q.mu.Lock()
	delete(q.reserved, job.Key())
	q.jobs[job.Key()] = job
	q.fifo = append(q.fifo, job)
	q.stats.Pending++
	q.broadcastLocked()
	q.mu.Unlock()

	q.logger.Info("job queued",
		logging.String("input", job.Input()),
		logging.String("output", job.Output()),
		logging.Int64(logging.FieldVideoID, job.VideoID()),
		logging.Int64("ledger_id", id),
	)
	return true, nil
}

// Find returns the job for key without removing it, or nil.
func (q *Queue) Find(key string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[strings.TrimSpace(key)]
}

// Len returns the number of jobs waiting in the FIFO.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// Stats returns a snapshot of job counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close stops further enqueues. Jobs already queued still drain.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// Drain converts jobs one at a time in FIFO order. It returns once the queue
// is closed and empty, or when ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return ErrDraining
	}
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for {
		job, wait, done := q.next()
		if done {
			return nil
		}
		if job == nil {
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			q.requeueFront(job)
			return err
		}
		q.process(ctx, job)
	}
}

// Wait blocks until every enqueued job has been acknowledged.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.outstanding == 0 {
			q.mu.Unlock()
			return nil
		}
		wait := q.changed
		q.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// next pops the head of the FIFO. When empty it returns the channel that
// signals the next change, or done when the queue is closed and nothing is
// still being enqueued.
func (q *Queue) next() (*Job, <-chan struct{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fifo) > 0 {
		job := q.fifo[0]
		q.fifo[0] = nil
		q.fifo = q.fifo[1:]
		return job, nil, false
	}
	if q.closed && q.outstanding == 0 {
		return nil, nil, true
	}
	return nil, q.changed, false
}

func (q *Queue) requeueFront(job *Job) {
	q.mu.Lock()
	q.fifo = append([]*Job{job}, q.fifo...)
	q.mu.Unlock()
}

func (q *Queue) process(ctx context.Context, job *Job) {
	logger := logging.WithContext(ctx, q.logger).With(
		logging.String("input", job.Input()),
		logging.Int64(logging.FieldVideoID, job.VideoID()),
	)
	logger.Info("conversion started", logging.String("output", job.Output()))

	convErr := q.converter.Convert(ctx, job.Input(), job.Output())
	if convErr != nil {
		message := convErr.Error()
		job.finish(StatusFailed, message)
		if err := q.ledger.RecordOutcome(ctx, job.LedgerID(), StatusFailed, message); err != nil {
			logging.WarnWithContext(logger, "ledger outcome not recorded", "ledger_update_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "row stays pending until the next startup reconciliation"),
				logging.String(logging.FieldImpact, "ledger shows the job as pending"),
			)
		}
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
			logging.Error(convErr),
			logging.String(logging.FieldErrorHint, "the file is retried on the next scan"),
		)
		q.ack(StatusFailed, false)
		return
	}

	job.finish(StatusConverted, "")
	if err := q.ledger.RecordOutcome(ctx, job.LedgerID(), StatusConverted, ""); err != nil {
		logging.WarnWithContext(logger, "ledger outcome not recorded", "ledger_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "row stays pending until the next startup reconciliation"),
			logging.String(logging.FieldImpact, "ledger shows the job as pending"),
		)
	}
	publishFailed := false
	if q.publisher != nil {
		if err := q.publisher.Publish(ctx, job); err != nil {
			publishFailed = true
			logging.WarnWithContext(logger, "converted output not published", "publish_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check catalog and transfer connectivity"),
				logging.String(logging.FieldImpact, "converted file is on disk but not yet reflected downstream"),
			)
		}
	}
	logger.Info("conversion completed", logging.String("output", job.Output()))
	q.ack(StatusConverted, publishFailed)
}

func (q *Queue) ack(status Status, publishFailed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Pending--
	switch status {
	case StatusConverted:
		q.stats.Converted++
	case StatusFailed:
		q.stats.Failed++
	}
	if publishFailed {
		q.stats.PublishFailed++
	}
	q.outstanding--
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// IsClosed reports whether err is ErrClosed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
