package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/faqline/faqline/internal/repository"
)

// archiveBatchSize bounds one export batch.
const archiveBatchSize = 500

// DecisionLogStore is the decision-log slice the archiver reads and stamps.
type DecisionLogStore interface {
	ListUnarchived(ctx context.Context, limit int) ([]repository.DecisionRecord, error)
	MarkArchived(ctx context.Context, ids []string) error
}

// ObjectStore uploads one archive object.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// ArchiveWorker exports unarchived decision rows to object storage as JSONL
// batches for offline quality analysis.
type ArchiveWorker struct {
	logs  DecisionLogStore
	store ObjectStore
	now   func() time.Time
}

func NewArchiveWorker(logs DecisionLogStore, store ObjectStore) *ArchiveWorker {
	return &ArchiveWorker{logs: logs, store: store, now: time.Now}
}

type archiveLine struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	QueryHash     string  `json:"query_hash"`
	Branch        string  `json:"branch"`
	ChosenItemID  string  `json:"chosen_item_id,omitempty"`
	TopScore      float64 `json:"top_score"`
	RunnerUpScore float64 `json:"runner_up_score"`
	Disambiguated bool    `json:"disambiguated"`
	WrongService  bool    `json:"wrong_service"`
	LatencyMS     int64   `json:"latency_ms"`
	CreatedAt     string  `json:"created_at"`
}

// ProcessJobs implements the JobProcessor interface. Rows are stamped only
// after the upload succeeds; a failed upload leaves them for the next cycle.
func (w *ArchiveWorker) ProcessJobs(ctx context.Context) error {
	records, err := w.logs.ListUnarchived(ctx, archiveBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unarchived decisions: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		line := archiveLine{
			ID:            rec.ID,
			TenantID:      rec.TenantID,
			QueryHash:     rec.QueryHash,
			Branch:        rec.Branch,
			ChosenItemID:  rec.ChosenItemID,
			TopScore:      rec.TopScore,
			RunnerUpScore: rec.RunnerUpScore,
			Disambiguated: rec.Disambiguated,
			WrongService:  rec.WrongService,
			LatencyMS:     rec.LatencyMS,
			CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode decision %s: %w", rec.ID, err)
		}
		ids = append(ids, rec.ID)
	}

	key := w.batchKey()
	if err := w.store.PutObject(ctx, key, "application/x-ndjson", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to upload archive batch: %w", err)
	}

	if err := w.logs.MarkArchived(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark batch archived: %w", err)
	}

	log.Printf("archived %d decisions to %s", len(ids), key)
	return nil
}

// batchKey partitions archives by day for cheap offline scans.
func (w *ArchiveWorker) batchKey() string {
	now := w.now().UTC()
	return fmt.Sprintf("decisions/%s/batch-%d.jsonl", now.Format("2006-01-02"), now.UnixNano())
}
