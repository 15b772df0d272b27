// Package jobs runs the daemon's background loops: embedding backfill and
// decision-log archiving.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/faqline/faqline/internal/metrics"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a processor at a fixed interval until stopped.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	metrics      *metrics.Metrics
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance. metrics may be nil.
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration, m *metrics.Metrics) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		metrics:      m,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker %s started with poll interval: %v", w.name, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("worker %s stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			start := time.Now()
			err := w.processor.ProcessJobs(ctx)
			if err != nil {
				log.Printf("worker %s: error processing jobs: %v", w.name, err)
			}
			if w.metrics != nil {
				w.metrics.FinishJob(w.name, time.Since(start), err)
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("worker %s shutdown complete", w.name)
}
