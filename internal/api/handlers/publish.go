package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/faqline/faqline/internal/api"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/repository"
)

// TenantGetter resolves tenants for publish validation.
type TenantGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// PublishRunner executes the item swap and job enqueue in one transaction.
type PublishRunner interface {
	WithTx(ctx context.Context, fn func(repos repository.TxRepositories) error) error
}

// CacheInvalidator drops a tenant's cached answers after publish.
type CacheInvalidator interface {
	InvalidateTenant(tenantID string)
}

type PublishHandler struct {
	tenants TenantGetter
	runner  PublishRunner
	cache   CacheInvalidator
}

func NewPublishHandler(tenants TenantGetter, runner PublishRunner, cache CacheInvalidator) *PublishHandler {
	return &PublishHandler{tenants: tenants, runner: runner, cache: cache}
}

type PublishItemRequest struct {
	ID                string   `json:"id,omitempty"`
	CanonicalQuestion string   `json:"canonical_question"`
	Answer            string   `json:"answer"`
	Variants          []string `json:"variants,omitempty"`
	Enabled           *bool    `json:"enabled,omitempty"`
}

type PublishRequest struct {
	Items []PublishItemRequest `json:"items"`
}

type PublishResponse struct {
	Items        int `json:"items"`
	JobsEnqueued int `json:"jobs_enqueued"`
}

// Publish handles POST /tenants/{tenantID}/publish. The tenant's item set is
// replaced atomically; items arriving without vectors get backfill jobs and
// the tenant's cache entries are dropped so retired answers stop serving
// immediately.
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	items := make([]*domain.FAQItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := &domain.FAQItem{
			ID:                strings.TrimSpace(in.ID),
			TenantID:          tenant.ID,
			CanonicalQuestion: strings.TrimSpace(in.CanonicalQuestion),
			Answer:            strings.TrimSpace(in.Answer),
			Variants:          in.Variants,
			Enabled:           true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if in.Enabled != nil {
			item.Enabled = *in.Enabled
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if err := item.Validate(); err != nil {
			api.HandleError(w, err)
			return
		}
		items = append(items, item)
	}

	jobsEnqueued := 0
	err = h.runner.WithTx(r.Context(), func(repos repository.TxRepositories) error {
		if err := repos.Items.ReplaceForTenant(r.Context(), tenant.ID, items); err != nil {
			return err
		}
		for _, item := range items {
			if len(item.Embedding) > 0 || !item.Enabled {
				continue
			}
			job := &domain.EmbeddingJob{
				ID:       uuid.NewString(),
				ItemID:   item.ID,
				TenantID: tenant.ID,
				Status:   domain.EmbeddingJobStatusPending,
			}
			if err := repos.Jobs.Create(r.Context(), job); err != nil {
				return err
			}
			jobsEnqueued++
		}
		return nil
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.cache.InvalidateTenant(tenant.ID)

	api.Success(w, http.StatusOK, PublishResponse{
		Items:        len(items),
		JobsEnqueued: jobsEnqueued,
	})
}
