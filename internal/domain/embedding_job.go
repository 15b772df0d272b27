package domain

import "time"

// EmbeddingJobStatus tracks a backfill job through its lifecycle.
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob asks the backfill worker to compute the vector for one item.
// Jobs are enqueued by publish for items arriving without embeddings.
type EmbeddingJob struct {
	ID          string
	ItemID      string
	TenantID    string
	Status      EmbeddingJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
