package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until stopped.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	log          *zap.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		log:          log,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop and blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.log.Info("worker started", zap.Duration("poll_interval", w.pollInterval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", zap.String("reason", "context cancelled"))
			return
		case <-w.stopChan:
			w.log.Info("worker stopped", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				w.log.Error("job processing failed", zap.Error(err))
			}
		}
	}
}

// Stop signals the loop and waits for it to return. Start must be running.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}

// Wait blocks until Start has returned.
func (w *Worker) Wait() {
	<-w.doneChan
}
