// Package queue provides the at-least-once event source that feeds the
// reactions engine: an in-process dispatcher with a bounded buffer, a small
// worker pool and per-job retries. The queue technology is a deliberately
// thin collaborator; swapping in an external broker only requires another
// implementation of the same Enqueue/Handler shape.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovationhq/ovation/pkg/logger"
	"github.com/ovationhq/ovation/pkg/metrics"
)

// ErrClosed is returned by Enqueue after the dispatcher has been stopped.
var ErrClosed = errors.New("queue: dispatcher closed")

// Handler processes a single job payload. A nil return acknowledges the
// job; an error triggers a retry until attempts are exhausted.
type Handler func(ctx context.Context, payload map[string]any) error

// Config controls dispatcher sizing and retry policy.
type Config struct {
	Workers      int           `validate:"gte=0"`
	Buffer       int           `validate:"gte=0"`
	MaxRetries   int           `validate:"gte=0"`
	RetryBackoff time.Duration `validate:"gte=0"`
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
}

// Job wraps one payload travelling through the dispatcher.
type Job struct {
	ID      string
	Payload map[string]any
}

// Dispatcher fans jobs out to a fixed pool of workers. Delivery is
// at-least-once: a handler error is retried with linear backoff, and a job
// is only dropped once retries are exhausted.
type Dispatcher struct {
	cfg     Config
	handler Handler
	jobs    chan Job
	log     *zap.Logger

	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
	startMu sync.Mutex
	started bool
}

// NewDispatcher constructs a Dispatcher around the supplied handler.
func NewDispatcher(cfg Config, handler Handler) (*Dispatcher, error) {
	if handler == nil {
		return nil, errors.New("queue: handler is required")
	}
	cfg.applyDefaults()

	return &Dispatcher{
		cfg:     cfg,
		handler: handler,
		jobs:    make(chan Job, cfg.Buffer),
		log:     logger.Named("queue"),
	}, nil
}

// Start launches the worker pool. Workers run until Stop is called and the
// buffered jobs drain, or until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.cfg.Workers), zap.Int("buffer", d.cfg.Buffer))
}

// Enqueue submits a payload for asynchronous processing. It blocks while
// the buffer is full until ctx expires. The read lock is held across the
// send so Stop cannot close the channel mid-send.
func (d *Dispatcher) Enqueue(ctx context.Context, payload map[string]any) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	job := Job{ID: uuid.NewString(), Payload: payload}
	select {
	case d.jobs <- job:
		metrics.QueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the intake and waits for buffered jobs to drain, up to the
// deadline carried by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			metrics.QueueDepth.Dec()
			d.process(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	attempts := d.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := d.handler(ctx, job.Payload)
		if err == nil {
			return
		}

		if attempt == attempts {
			d.log.Error("dropping job after exhausting retries",
				zap.String("job_id", job.ID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}

		d.log.Warn("job failed, retrying",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
}
