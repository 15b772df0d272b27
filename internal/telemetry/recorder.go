package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/metrics"
)

const (
	// defaultBufferSize bounds the in-flight decision queue. Overflow drops
	// the decision rather than stalling the answer path.
	defaultBufferSize = 1024
	// writeTimeout caps how long one log insert may hold the drain loop.
	writeTimeout = 5 * time.Second
)

// DecisionSink persists one decision. Satisfied by the decision log
// repository.
type DecisionSink interface {
	Insert(ctx context.Context, decision domain.RetrievalDecision) (string, error)
}

// Recorder accepts decisions from the answer path and persists them off the
// request goroutine. Record never blocks and never fails the caller.
type Recorder struct {
	sink    DecisionSink
	metrics *metrics.Metrics
	buf     chan domain.RetrievalDecision

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the drain goroutine. Either sink or metrics may be nil.
func NewRecorder(sink DecisionSink, m *metrics.Metrics) *Recorder {
	r := &Recorder{
		sink:    sink,
		metrics: m,
		buf:     make(chan domain.RetrievalDecision, defaultBufferSize),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record enqueues a decision. A full buffer drops the decision and counts
// the drop; the answer path is never throttled by telemetry.
func (r *Recorder) Record(decision domain.RetrievalDecision) {
	if r.metrics != nil {
		r.metrics.ObserveDecision(decision)
	}
	// Decisions made before tenant resolution (clarify, early errors) carry
	// the tenant id as the client sent it. The log store's tenant_id column
	// is a UUID, so those stay metric-only.
	if _, err := uuid.Parse(decision.TenantID); err != nil {
		return
	}
	select {
	case r.buf <- decision:
	default:
		if r.metrics != nil {
			r.metrics.DecisionDropped()
		}
		log.Printf("telemetry: decision buffer full, dropping %s decision for tenant %s", decision.Branch, decision.TenantID)
	}
}

// Close stops accepting decisions and flushes the buffer.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.buf)
		<-r.done
	})
}

func (r *Recorder) drain() {
	defer close(r.done)
	for decision := range r.buf {
		if r.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if _, err := r.sink.Insert(ctx, decision); err != nil {
			log.Printf("telemetry: failed to persist decision for tenant %s: %v", decision.TenantID, err)
		}
		cancel()
	}
}
