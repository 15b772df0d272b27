package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/faqline/faqline/internal/api"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/metrics"
	"github.com/faqline/faqline/internal/retrieval"
	"github.com/faqline/faqline/internal/telemetry"
)

// AnswerService resolves one customer message end to end.
type AnswerService interface {
	Answer(ctx context.Context, tenantID, message string) (*retrieval.Result, error)
}

type AskHandler struct {
	svc     AnswerService
	metrics *metrics.Metrics
}

func NewAskHandler(svc AnswerService, m *metrics.Metrics) *AskHandler {
	return &AskHandler{svc: svc, metrics: m}
}

type AskRequest struct {
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
}

type AskResponse struct {
	Answer    string   `json:"answer"`
	NextSteps []string `json:"next_steps"`
}

// Ask handles POST /ask. Malformed requests and unknown tenants are client
// errors; everything past tenant resolution returns 200 with a degraded
// answer rather than a server error.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.TenantID == "" {
		api.HandleError(w, domain.NewDomainError(domain.ErrCodeValidation, "tenant_id is required"))
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "engine.answer", telemetry.SpanAttributes{
		TenantID:  req.TenantID,
		Operation: "ask",
	})
	defer span.End()

	result, err := h.svc.Answer(ctx, req.TenantID, req.Message)
	if err != nil {
		span.SetError(err)
		api.HandleError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CacheLookup(result.CacheHit)
	}

	writeDebugHeaders(w, result)
	api.Success(w, http.StatusOK, AskResponse{
		Answer:    result.Answer,
		NextSteps: nonNilSteps(result.NextSteps),
	})
}

// writeDebugHeaders exposes the decision to the widget's debug console.
// Header names are part of the wire contract.
func writeDebugHeaders(w http.ResponseWriter, result *retrieval.Result) {
	d := result.Decision
	w.Header().Set("x-debug-branch", string(d.Branch))
	w.Header().Set("x-faq-hit", strconv.FormatBool(d.Branch.IsFactAnswer()))
	w.Header().Set("x-retrieval-score", formatScore(d.TopScore))
	w.Header().Set("x-retrieval-delta", formatScore(d.TopScore-d.RunnerUpScore))
	w.Header().Set("x-top-faq-id", d.ChosenItemID)
	w.Header().Set("x-disambiguated", strconv.FormatBool(d.Disambiguated))
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// nonNilSteps keeps next_steps a JSON array, never null.
func nonNilSteps(steps []string) []string {
	if steps == nil {
		return []string{}
	}
	return steps
}
