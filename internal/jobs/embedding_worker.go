package jobs

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/faqline/faqline/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
	// claimBatchSize bounds how many jobs one poll cycle claims.
	claimBatchSize = 20
)

// EmbeddingJobStore defines the interface for embedding job persistence
type EmbeddingJobStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// ItemEmbeddingStore is the item-side slice the worker writes through.
type ItemEmbeddingStore interface {
	GetByID(ctx context.Context, id string) (*domain.FAQItem, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// TextEmbedder computes one embedding vector for a text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TenantCacheInvalidator drops a tenant's cached answers once its vectors
// change.
type TenantCacheInvalidator interface {
	InvalidateTenant(tenantID string)
}

// EmbeddingWorker backfills item vectors for items published without one.
type EmbeddingWorker struct {
	jobs     EmbeddingJobStore
	items    ItemEmbeddingStore
	embedder TextEmbedder
	cache    TenantCacheInvalidator
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(jobs EmbeddingJobStore, items ItemEmbeddingStore, embedder TextEmbedder, cache TenantCacheInvalidator) *EmbeddingWorker {
	return &EmbeddingWorker{
		jobs:     jobs,
		items:    items,
		embedder: embedder,
		cache:    cache,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.jobs.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d pending embedding jobs", len(jobs))

	touched := make(map[string]struct{})
	for _, job := range jobs {
		embedded, err := w.processJob(ctx, job)
		if err != nil {
			log.Printf("error processing job %s: %v", job.ID, err)
			continue
		}
		if embedded {
			touched[job.TenantID] = struct{}{}
		}
	}

	// Fresh vectors change scoring; stale cached decisions for the tenant
	// must not outlive them.
	if w.cache != nil {
		for tenantID := range touched {
			w.cache.InvalidateTenant(tenantID)
		}
	}

	return nil
}

// processJob runs one job. embedded reports whether the item received a new
// vector, which is what makes the tenant's cache stale.
func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) (embedded bool, err error) {
	item, err := w.items.GetByID(ctx, job.ItemID)
	if err != nil {
		// A republish may have retired the item before its job ran; that is
		// a terminal outcome, not a retry.
		if err == domain.ErrItemNotFound {
			return false, w.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, "item no longer exists")
		}
		return false, w.handleJobFailure(ctx, job, err)
	}

	embedding, err := w.embedder.Embed(ctx, embeddingText(item))
	if err != nil {
		return false, w.handleJobFailure(ctx, job, err)
	}

	if err := w.items.UpdateEmbedding(ctx, item.ID, embedding); err != nil {
		return false, w.handleJobFailure(ctx, job, err)
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return false, fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("job %s completed: item %s embedded", job.ID, item.ID)
	return true, nil
}

// embeddingText folds the canonical question and its variants into one text
// so the item vector covers every phrasing it should answer.
func embeddingText(item *domain.FAQItem) string {
	return strings.Join(item.AllVariants(), "\n")
}

// handleJobFailure handles a failed job with retry logic
func (w *EmbeddingWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	log.Printf("job %s failed: %v", job.ID, jobErr)

	if err := w.jobs.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
