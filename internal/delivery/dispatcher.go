package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mikey/phishing-report-relay/internal/core"
)

// Dispatcher owns the asynchronous delivery path: a buffered queue feeding a
// bounded set of sender goroutines. Failures and panics during delivery are
// contained here and logged; nothing propagates back to the request path.
type Dispatcher struct {
	mailer  core.Mailer
	logger  *zap.Logger
	timeout time.Duration

	queue chan core.Notification
	sem   *semaphore.Weighted

	stopCh   chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// NewDispatcher creates a new delivery dispatcher
func NewDispatcher(mailer core.Mailer, logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Dispatcher{
		mailer:   mailer,
		logger:   logger,
		timeout:  timeout,
		queue:    make(chan core.Notification, queueSize),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// DispatcherConfig contains the runtime settings for the dispatcher
type DispatcherConfig struct {
	QueueSize      int
	MaxConcurrent  int
	AttemptTimeout time.Duration
}

// Start launches the dispatch loop
func (d *Dispatcher) Start() {
	go d.run()
}

// Enqueue hands a notification to the background delivery path without
// blocking. When the queue is full the notification is dropped and logged;
// the submission pipeline never waits on SMTP.
func (d *Dispatcher) Enqueue(n core.Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("Delivery queue full, dropping notification",
			zap.String("message_id", n.MessageID))
		return false
	}
}

// run consumes the queue until Stop, then drains whatever is already queued
func (d *Dispatcher) run() {
	defer close(d.loopDone)
	for {
		select {
		case n := <-d.queue:
			d.dispatch(n)
		case <-d.stopCh:
			for {
				select {
				case n := <-d.queue:
					d.dispatch(n)
				default:
					return
				}
			}
		}
	}
}

// dispatch runs one delivery attempt on its own goroutine, bounded by the
// concurrency semaphore
func (d *Dispatcher) dispatch(n core.Notification) {
	if err := d.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer d.sem.Release(1)
		d.deliver(n)
	}()
}

// deliver performs a single bounded delivery attempt. Errors are terminal:
// the caller already has its response, so there is nothing to surface and no
// retry. Panics from the mailer are contained here.
func (d *Dispatcher) deliver(n core.Notification) {
	attemptID := uuid.NewString()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic during delivery",
				zap.String("attempt_id", attemptID),
				zap.String("message_id", n.MessageID),
				zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.mailer.Send(ctx, n); err != nil {
		d.logger.Error("Failed to deliver notification",
			zap.String("attempt_id", attemptID),
			zap.String("message_id", n.MessageID),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return
	}

	d.logger.Info("Delivered notification",
		zap.String("attempt_id", attemptID),
		zap.String("message_id", n.MessageID),
		zap.String("to", n.To),
		zap.Duration("elapsed", time.Since(started)))
}

// Stop stops accepting queued work, drains the queue, and waits for in-flight
// attempts to finish
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	<-d.loopDone
	d.inflight.Wait()
}
