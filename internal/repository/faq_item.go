package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// FAQItemRepository persists tenant-scoped question/answer units. The query
// engine only reads; writes happen through the publish surface.
type FAQItemRepository struct {
	db dbtx
}

func NewFAQItemRepository(pool *pgxpool.Pool) *FAQItemRepository {
	return &FAQItemRepository{db: pool}
}

func NewFAQItemRepositoryWithTx(tx pgx.Tx) *FAQItemRepository {
	return &FAQItemRepository{db: tx}
}

const faqItemColumns = `id, tenant_id, canonical_question, answer, variants, embedding, enabled, created_at, updated_at`

// ListEnabled returns every enabled item for a tenant.
func (r *FAQItemRepository) ListEnabled(ctx context.Context, tenantID string) ([]*domain.FAQItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+faqItemColumns+` FROM faq_items
		 WHERE tenant_id = $1 AND enabled
		 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQItemRows(rows)
}

// GetByID returns one item regardless of enabled state.
func (r *FAQItemRepository) GetByID(ctx context.Context, id string) (*domain.FAQItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+faqItemColumns+` FROM faq_items WHERE id = $1`, id)
	item, err := scanFAQItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// SearchLexical runs full-text matching of the query tokens against each
// item's variant set. strictAND requires every token to match; the default is
// permissive OR so a single unmatched token cannot starve the pipeline of
// candidates.
func (r *FAQItemRepository) SearchLexical(ctx context.Context, tenantID, query string, strictAND bool, limit int) ([]domain.RetrievalCandidate, error) {
	tsquery := buildTSQuery(query, strictAND)
	if tsquery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, canonical_question, answer,
		        ts_rank(to_tsvector('english', canonical_question || ' ' || array_to_string(variants, ' ')), query) AS rank
		 FROM faq_items, to_tsquery('english', $2) query
		 WHERE tenant_id = $1 AND enabled
		   AND to_tsvector('english', canonical_question || ' ' || array_to_string(variants, ' ')) @@ query
		 ORDER BY rank DESC
		 LIMIT $3`,
		tenantID, tsquery, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RetrievalCandidate
	for rows.Next() {
		var c domain.RetrievalCandidate
		var rank float32
		if err := rows.Scan(&c.ItemID, &c.TenantID, &c.Question, &c.Answer, &rank); err != nil {
			return nil, err
		}
		// ts_rank is unbounded above; r/(r+1) maps it into [0,1).
		c.Score = float64(rank) / (float64(rank) + 1)
		c.Channel = domain.ChannelLexical
		c.Rank = len(out)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchSemantic returns the top items by cosine similarity between the query
// embedding and each enabled item's precomputed vector.
func (r *FAQItemRepository) SearchSemantic(ctx context.Context, tenantID string, embedding []float32, limit int) ([]domain.RetrievalCandidate, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, canonical_question, answer,
		        1 - (embedding <=> $2) AS score
		 FROM faq_items
		 WHERE tenant_id = $1 AND enabled AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		tenantID, vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RetrievalCandidate
	for rows.Next() {
		var c domain.RetrievalCandidate
		if err := rows.Scan(&c.ItemID, &c.TenantID, &c.Question, &c.Answer, &c.Score); err != nil {
			return nil, err
		}
		if c.Score < 0 {
			c.Score = 0
		}
		if c.Score > 1 {
			c.Score = 1
		}
		c.Channel = domain.ChannelSemantic
		c.Rank = len(out)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceForTenant swaps a tenant's full item set. Runs in the caller's
// transaction when constructed with NewFAQItemRepositoryWithTx.
func (r *FAQItemRepository) ReplaceForTenant(ctx context.Context, tenantID string, items []*domain.FAQItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM faq_items WHERE tenant_id = $1`, tenantID); err != nil {
		return err
	}

	for _, item := range items {
		var emb interface{}
		if len(item.Embedding) > 0 {
			emb = pgvector.NewVector(item.Embedding)
		}
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		updatedAt := item.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO faq_items (`+faqItemColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, tenantID, item.CanonicalQuestion, item.Answer,
			item.Variants, emb, item.Enabled, createdAt, updatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	}
	return nil
}

// ListMissingEmbeddings returns enabled items without a vector, oldest first.
// Used by the backfill repair path to re-enqueue items whose jobs were lost.
func (r *FAQItemRepository) ListMissingEmbeddings(ctx context.Context, tenantID string, limit int) ([]*domain.FAQItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+faqItemColumns+` FROM faq_items
		 WHERE tenant_id = $1 AND enabled AND embedding IS NULL
		 ORDER BY created_at, id
		 LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQItemRows(rows)
}

// UpdateEmbedding stores the vector computed by the backfill worker.
func (r *FAQItemRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE faq_items SET embedding = $1, updated_at = $2 WHERE id = $3`,
		pgvector.NewVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func scanFAQItemRows(rows pgx.Rows) ([]*domain.FAQItem, error) {
	var out []*domain.FAQItem
	for rows.Next() {
		item, err := scanFAQItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanFAQItem(row pgx.Row) (*domain.FAQItem, error) {
	var item domain.FAQItem
	var emb *pgvector.Vector
	if err := row.Scan(
		&item.ID, &item.TenantID, &item.CanonicalQuestion, &item.Answer,
		&item.Variants, &emb, &item.Enabled, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if emb != nil {
		item.Embedding = emb.Slice()
	}
	return &item, nil
}

// buildTSQuery turns free text into a to_tsquery expression, dropping
// anything that is not a plain lexeme.
func buildTSQuery(query string, strictAND bool) string {
	var lexemes []string
	for _, token := range strings.Fields(strings.ToLower(query)) {
		var b strings.Builder
		for _, r := range token {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if lexeme := b.String(); lexeme != "" {
			lexemes = append(lexemes, lexeme+":*")
		}
	}
	if len(lexemes) == 0 {
		return ""
	}
	op := " | "
	if strictAND {
		op = " & "
	}
	return strings.Join(lexemes, op)
}
