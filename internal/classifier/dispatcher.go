package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

// Job asks for one thread to be classified from one message's content
type Job struct {
	TeamID    uint
	ThreadID  uint
	MessageID uint
	Content   string
}

// ThreadUpdater stores a classification on a thread
type ThreadUpdater interface {
	UpdateClassification(ctx context.Context, id uint, c models.Classification, at time.Time) error
}

// Notifier publishes classification results to live clients
type Notifier interface {
	BroadcastThreadClassified(teamID uint, payload *websocket.ThreadClassifiedPayload)
}

// DispatcherConfig sizes the worker pool
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Policy    RetryPolicy
}

// Dispatcher runs classification jobs on a bounded queue. A job never
// blocks the caller and a failing or panicking job only affects itself.
type Dispatcher struct {
	classifier Classifier
	threads    ThreadUpdater
	notifier   Notifier
	policy     RetryPolicy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	jobs    chan Job
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

// DispatcherOption customizes a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithDispatcherMetrics sets the metrics recorder
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatcherNotifier publishes results to live clients
func WithDispatcherNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithDispatcherClock overrides the timestamp source
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. Call Start before dispatching.
func NewDispatcher(c Classifier, threads ThreadUpdater, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		classifier: c,
		threads:    threads,
		policy:     cfg.Policy.withDefaults(),
		now:        func() time.Time { return time.Now().UTC() },
		jobs:       make(chan Job, cfg.QueueSize),
		workers:    cfg.Workers,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	if d.logger != nil {
		d.logger.Info("classification dispatcher started", slog.Int("workers", d.workers), slog.Int("queue_size", cap(d.jobs)))
	}
}

// Dispatch queues a job. It returns false when the job was dropped because
// the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Dispatch(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		d.metrics.SetQueueDepth(len(d.jobs))
		return true
	default:
		d.metrics.ClassificationDropped()
		if d.logger != nil {
			d.logger.Warn("classification queue full, job dropped",
				slog.Uint64("thread_id", uint64(job.ThreadID)))
		}
		return false
	}
}

// Stop stops accepting jobs and waits for queued ones. When ctx expires
// first, in-flight calls are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("classification dispatcher stopped before draining: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.metrics.SetQueueDepth(len(d.jobs))
		d.safeHandle(job)
	}
}

// safeHandle is the error boundary around a single job
func (d *Dispatcher) safeHandle(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ClassificationResult("panic")
			if d.logger != nil {
				d.logger.Error("classification job panicked",
					slog.Uint64("thread_id", uint64(job.ThreadID)),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}
	}()
	_ = d.Handle(d.ctx, job)
}

// Handle classifies one job synchronously with retries and stores the
// result. Errors are logged and returned; the thread keeps its priority.
func (d *Dispatcher) Handle(ctx context.Context, job Job) error {
	if job.Content == "" {
		return nil
	}

	var verdict *models.Classification
	err := d.policy.Do(ctx, func(attemptCtx context.Context) error {
		d.metrics.ClassificationAttempt()
		v, err := d.classifier.Classify(attemptCtx, job.Content)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		if d.logger != nil {
			d.logger.Debug("classification attempt failed, retrying",
				slog.Uint64("thread_id", uint64(job.ThreadID)),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err))
		}
	})
	if err != nil {
		d.metrics.ClassificationResult("failed")
		if d.logger != nil {
			d.logger.Warn("classification failed",
				slog.Uint64("thread_id", uint64(job.ThreadID)),
				slog.Any("error", err))
		}
		return err
	}

	if err := d.threads.UpdateClassification(ctx, job.ThreadID, *verdict, d.now()); err != nil {
		d.metrics.ClassificationResult("failed")
		if d.logger != nil {
			d.logger.Error("failed to store classification",
				slog.Uint64("thread_id", uint64(job.ThreadID)),
				slog.Any("error", err))
		}
		return err
	}

	d.metrics.ClassificationResult("success")
	if d.notifier != nil {
		d.notifier.BroadcastThreadClassified(job.TeamID, &websocket.ThreadClassifiedPayload{
			ThreadID:   job.ThreadID,
			Category:   verdict.Category,
			Priority:   string(verdict.Priority),
			Confidence: verdict.Confidence,
		})
	}
	if d.logger != nil {
		d.logger.Info("thread classified",
			slog.Uint64("thread_id", uint64(job.ThreadID)),
			slog.String("category", verdict.Category),
			slog.String("priority", string(verdict.Priority)))
	}
	return nil
}
