package retrieval

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/llm"
	"golang.org/x/time/rate"
)

const (
	// maxJudgeCandidates bounds the option list sent to the judge.
	maxJudgeCandidates = 5
	// answerPreviewChars truncates answer text in the judge prompt.
	answerPreviewChars = 160
	// minReasonChars is the safety-gate floor for the judge's justification.
	// A pick without a real reason is treated as no pick.
	minReasonChars = 12
)

// DisambiguatorConfig tunes the judge invocation.
type DisambiguatorConfig struct {
	Timeout   time.Duration
	RatePerS  float64
	RateBurst int
}

func DefaultDisambiguatorConfig() DisambiguatorConfig {
	return DisambiguatorConfig{Timeout: 3 * time.Second, RatePerS: 10, RateBurst: 20}
}

// Disambiguator invokes the external judge on the narrow uncertain band and
// validates the response through the safety gates. Every failure mode maps
// to "no pick", never to a guessed accept.
type Disambiguator struct {
	judge     llm.Judge
	providers ProviderErrors
	cfg       DisambiguatorConfig
	limiter   *rate.Limiter
}

// NewDisambiguator creates a Disambiguator. providers may be nil.
func NewDisambiguator(judge llm.Judge, providers ProviderErrors, cfg DisambiguatorConfig) *Disambiguator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RatePerS <= 0 {
		cfg.RatePerS = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	return &Disambiguator{
		judge:     judge,
		providers: providers,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerS), cfg.RateBurst),
	}
}

// Pick returns the index into candidates the judge selected, or ok=false
// when the judge declined, failed, timed out, or tripped a safety gate.
func (d *Disambiguator) Pick(ctx context.Context, tenantID, query string, candidates []domain.RetrievalCandidate) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	if len(candidates) > maxJudgeCandidates {
		candidates = candidates[:maxJudgeCandidates]
	}

	// Over-budget escalations resolve to reject rather than queueing; the
	// Accept/Reject paths must stay low-latency regardless of judge health.
	if !d.limiter.Allow() {
		log.Printf("disambiguate: judge budget exhausted, rejecting")
		return 0, false
	}

	req := llm.PickRequest{Query: query}
	for _, c := range candidates {
		req.Candidates = append(req.Candidates, llm.PickCandidate{
			Question:      c.Question,
			AnswerPreview: preview(c.Answer),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	verdict, err := d.judge.Pick(ctx, req)
	if err != nil {
		log.Printf("disambiguate: judge call failed: %v", err)
		if d.providers != nil {
			d.providers.ProviderError("judge")
		}
		return 0, false
	}

	return d.applyGates(tenantID, verdict, candidates)
}

// applyGates validates a verdict. All gates must pass or the verdict is
// discarded.
func (d *Disambiguator) applyGates(tenantID string, verdict *llm.Verdict, candidates []domain.RetrievalCandidate) (int, bool) {
	// Gate 2: when the judge says none, respect it. Never override with a
	// guess.
	if verdict.None {
		return 0, false
	}
	// Gate 1: a pick needs a non-trivial justification.
	if len(strings.TrimSpace(verdict.Reason)) < minReasonChars {
		log.Printf("disambiguate: verdict rejected, justification too short")
		return 0, false
	}
	// Gate 3: the picked index must be in range (1-based from the judge).
	idx := verdict.Choice - 1
	if idx < 0 || idx >= len(candidates) {
		log.Printf("disambiguate: verdict rejected, index %d out of range", verdict.Choice)
		return 0, false
	}
	// Gate 4: the candidate must belong to the requesting tenant. Defends
	// against cross-tenant leakage through a shared judge service.
	if candidates[idx].TenantID != tenantID {
		log.Printf("disambiguate: verdict rejected, tenant mismatch")
		return 0, false
	}
	return idx, true
}

func preview(answer string) string {
	clean := strings.Join(strings.Fields(answer), " ")
	if len(clean) <= answerPreviewChars {
		return clean
	}
	return clean[:answerPreviewChars-3] + "..."
}
