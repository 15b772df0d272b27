package repository

import (
	"context"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DecisionLogRepository stores one row per retrieval decision for offline
// quality analysis. Writes come from the async telemetry recorder only.
type DecisionLogRepository struct {
	pool *pgxpool.Pool
}

func NewDecisionLogRepository(pool *pgxpool.Pool) *DecisionLogRepository {
	return &DecisionLogRepository{pool: pool}
}

// DecisionRecord is one persisted decision, as read back by the archiver.
type DecisionRecord struct {
	ID            string
	TenantID      string
	QueryHash     string
	Branch        string
	ChosenItemID  string
	TopScore      float64
	RunnerUpScore float64
	Disambiguated bool
	WrongService  bool
	LatencyMS     int64
	CreatedAt     time.Time
}

func (r *DecisionLogRepository) Insert(ctx context.Context, d domain.RetrievalDecision) (string, error) {
	decidedAt := d.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO decision_logs
			(tenant_id, query_hash, branch, chosen_item_id, top_score, runner_up_score, disambiguated, wrong_service, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		d.TenantID,
		d.QueryHash,
		string(d.Branch),
		nullableString(d.ChosenItemID),
		d.TopScore,
		d.RunnerUpScore,
		d.Disambiguated,
		d.WrongService,
		d.LatencyMS,
		decidedAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListUnarchived returns decision rows not yet exported, oldest first.
func (r *DecisionLogRepository) ListUnarchived(ctx context.Context, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, query_hash, branch, chosen_item_id, top_score, runner_up_score, disambiguated, wrong_service, latency_ms, created_at
		 FROM decision_logs
		 WHERE archived_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var chosen *string
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.QueryHash, &rec.Branch, &chosen,
			&rec.TopScore, &rec.RunnerUpScore, &rec.Disambiguated, &rec.WrongService,
			&rec.LatencyMS, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if chosen != nil {
			rec.ChosenItemID = *chosen
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkArchived stamps rows after a successful export batch.
func (r *DecisionLogRepository) MarkArchived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE decision_logs SET archived_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids,
	)
	return err
}
