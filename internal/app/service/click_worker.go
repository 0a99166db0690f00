package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/linkgate/internal/app/model"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrClickQueueFull is returned by Dispatch when the buffer is saturated.
	ErrClickQueueFull = errors.New("click queue is full")
	// ErrClickWorkerStopped is returned by Dispatch outside Start/Stop.
	ErrClickWorkerStopped = errors.New("click worker is not running")
)

// ClickSink persists one click event.
type ClickSink interface {
	Record(ctx context.Context, event model.ClickEvent) error
}

// ClickWorkerConfig tunes the in-process click queue.
type ClickWorkerConfig struct {
	Workers         int
	BufferSize      int
	RetryAttempts   int
	RetryDelay      time.Duration
	AttemptTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultClickWorkerConfig returns the defaults used when config leaves fields empty.
func DefaultClickWorkerConfig() ClickWorkerConfig {
	return ClickWorkerConfig{
		Workers:         3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		AttemptTimeout:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ClickWorker is a ClickDispatcher backed by a bounded queue and a fixed pool
// of goroutines. Failed records are retried with exponential backoff and then
// dropped with a log line; nothing flows back to the redirect path.
type ClickWorker struct {
	cfg    ClickWorkerConfig
	sink   ClickSink
	logger *zap.Logger

	mu      sync.RWMutex
	started bool
	queue   chan model.ClickEvent
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewClickWorker creates a stopped worker; call Start before dispatching.
func NewClickWorker(sink ClickSink, logger *zap.Logger, cfg ClickWorkerConfig) *ClickWorker {
	def := DefaultClickWorkerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickWorker{cfg: cfg, sink: sink, logger: logger}
}

// Start launches the worker goroutines.
func (w *ClickWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return errors.New("click worker already started")
	}

	w.queue = make(chan model.ClickEvent, w.cfg.BufferSize)
	w.ctx, w.cancel = context.WithCancel(context.Background())
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
	w.started = true

	w.logger.Info("click worker started",
		zap.Int("workers", w.cfg.Workers),
		zap.Int("buffer_size", w.cfg.BufferSize),
		zap.Int("retry_attempts", w.cfg.RetryAttempts),
	)
	return nil
}

// Stop closes the queue and waits for queued clicks to drain. Work still
// pending after ShutdownTimeout is abandoned.
func (w *ClickWorker) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return errors.New("click worker not started")
	}
	w.started = false
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		w.logger.Info("click worker stopped")
		return nil
	case <-time.After(w.cfg.ShutdownTimeout):
		w.cancel()
		w.logger.Warn("click worker shutdown timeout reached", zap.Int("pending", len(w.queue)))
		return errors.New("click worker shutdown timeout reached")
	}
}

// Dispatch enqueues event without blocking.
func (w *ClickWorker) Dispatch(event model.ClickEvent) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.started {
		return ErrClickWorkerStopped
	}

	select {
	case w.queue <- event:
		return nil
	default:
		return ErrClickQueueFull
	}
}

func (w *ClickWorker) run(id int) {
	defer w.wg.Done()

	log := w.logger.With(zap.Int("worker_id", id))
	for event := range w.queue {
		w.recordWithRetry(log, event)
	}
}

func (w *ClickWorker) recordWithRetry(log *zap.Logger, event model.ClickEvent) {
	var lastErr error

	for attempt := 1; attempt <= w.cfg.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(w.ctx, w.cfg.AttemptTimeout)
		err := w.sink.Record(ctx, event)
		cancel()

		if err == nil {
			infraPrometheus.ClicksRecorded.Inc()
			if attempt > 1 {
				log.Info("click recorded after retry",
					zap.String("slug", event.Slug),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		log.Warn("click record attempt failed",
			zap.String("slug", event.Slug),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.cfg.RetryAttempts),
			zap.Error(err),
		)

		if attempt == w.cfg.RetryAttempts {
			break
		}

		delay := w.cfg.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
			log.Warn("click worker cancelled during retry delay", zap.String("slug", event.Slug))
			infraPrometheus.ClicksLost.WithLabelValues("record").Inc()
			return
		}
	}

	infraPrometheus.ClicksLost.WithLabelValues("record").Inc()
	log.Error("click dropped after all retries",
		zap.String("slug", event.Slug),
		zap.String("link_id", event.LinkID),
		zap.Int("attempts", w.cfg.RetryAttempts),
		zap.Error(lastErr),
	)
}
