package retrieval

import (
	"context"
	"log"
	"time"

	"github.com/faqline/faqline/internal/cache"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/llm"
	"github.com/faqline/faqline/internal/normalize"
	"github.com/faqline/faqline/internal/triage"
)

// FallbackAnswer is the frozen no-match sentence. Downstream tests and the
// chat widget pattern-match on it; do not edit.
const FallbackAnswer = "I'm not sure about that one — let me connect you with the team and they'll get back to you shortly."

// ClarifyAnswer is returned when triage rejects the input.
const ClarifyAnswer = "Could you tell me a bit more about what you're looking for?"

var fallbackNextSteps = []string{"Leave your name and contact details and the team will follow up."}

const generalSystemPrompt = `You are a polite assistant for a small business.
Answer the customer's question briefly and helpfully. If the question needs
business-specific knowledge you do not have, say you will pass it to the team.`

// TenantStore is the read-only tenant lookup the engine needs.
type TenantStore interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// Recorder receives every decision, fire-and-forget. Implementations must
// never block the response path.
type Recorder interface {
	Record(decision domain.RetrievalDecision)
}

// ProviderErrors counts failed calls to external model providers. Satisfied
// by *metrics.Metrics; a nil sink disables counting.
type ProviderErrors interface {
	ProviderError(provider string)
}

// EngineConfig assembles the pipeline's tuning in one immutable value.
type EngineConfig struct {
	Thresholds     Thresholds
	GeneralTimeout time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Thresholds: DefaultThresholds(), GeneralTimeout: 5 * time.Second}
}

// Engine runs the full pipeline: normalize, triage, cache lookup, candidate
// generation, confidence routing, optional disambiguation, answer selection,
// telemetry, cache write.
type Engine struct {
	tenants       TenantStore
	generator     *Generator
	disambiguator *Disambiguator
	general       llm.Judge // nil when no general model is configured
	results       *cache.ResultCache
	recorder      Recorder
	providers     ProviderErrors
	cfg           EngineConfig
}

// NewEngine assembles the pipeline. recorder and providers may be nil.
func NewEngine(
	tenants TenantStore,
	generator *Generator,
	disambiguator *Disambiguator,
	general llm.Judge,
	results *cache.ResultCache,
	recorder Recorder,
	providers ProviderErrors,
	cfg EngineConfig,
) *Engine {
	if cfg.GeneralTimeout <= 0 {
		cfg.GeneralTimeout = 5 * time.Second
	}
	return &Engine{
		tenants:       tenants,
		generator:     generator,
		disambiguator: disambiguator,
		general:       general,
		results:       results,
		recorder:      recorder,
		providers:     providers,
		cfg:           cfg,
	}
}

// Result is the engine's answer to one request.
type Result struct {
	Answer    string
	NextSteps []string
	Decision  domain.RetrievalDecision
	CacheHit  bool
}

// Answer resolves one customer message. It returns an error only when the
// tenant cannot be resolved; every failure past that point degrades to a
// well-formed fallback result.
func (e *Engine) Answer(ctx context.Context, tenantID, raw string) (result *Result, err error) {
	start := time.Now()
	normalized := normalize.Normalize(raw)

	// Invariant violations below the boundary must never crash the serving
	// process; they terminate this request with the generic fallback.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: recovered panic answering for tenant %s: %v", tenantID, r)
			result = e.errorResult(tenantID, normalized, start)
			err = nil
		}
	}()

	if triage.Classify(normalized) == triage.Clarify {
		decision := e.newDecision(tenantID, normalized, domain.BranchClarify, start)
		e.record(decision)
		return &Result{Answer: ClarifyAnswer, Decision: decision}, nil
	}

	tenant, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entry, cacheHit, err := e.results.GetOrCompute(ctx, tenant.ID, normalized, func(ctx context.Context) (domain.RetrievalDecision, string, []string, error) {
		return e.resolve(ctx, tenant, normalized, start)
	})
	if err != nil {
		// Store or pipeline error: degrade, never propagate to the caller.
		log.Printf("engine: pipeline failed for tenant %s: %v", tenantID, err)
		return e.errorResult(tenantID, normalized, start), nil
	}

	return &Result{
		Answer:    entry.Answer,
		NextSteps: entry.NextSteps,
		Decision:  entry.Decision,
		CacheHit:  cacheHit,
	}, nil
}

// resolve runs the uncached part of the pipeline and records the decision.
func (e *Engine) resolve(ctx context.Context, tenant *domain.Tenant, normalized string, start time.Time) (domain.RetrievalDecision, string, []string, error) {
	set, err := e.generator.Retrieve(ctx, tenant.ID, normalized)
	if err != nil {
		return domain.RetrievalDecision{}, "", nil, err
	}

	wrongService := WrongService(tenant, normalized)
	top, runnerUp := topTwo(set.Semantic)

	decision := e.newDecision(tenant.ID, normalized, "", start)
	decision.TopScore = top
	decision.RunnerUpScore = runnerUp
	decision.WrongService = wrongService

	route := e.cfg.Thresholds.Decide(RouteInput{
		TopScore:      top,
		RunnerUpScore: runnerUp,
		WrongService:  wrongService,
	})

	// Embedding outage: the semantic channel is absent rather than empty.
	// A lexical match is still worth a judge look, but never a blind accept.
	if route == RouteReject && !wrongService && set.EmbedFailed && len(set.Lexical) > 0 {
		route = RouteEscalate
	}

	var answer string
	var nextSteps []string

	switch route {
	case RouteAccept:
		chosen := set.Semantic[0]
		decision.Branch = domain.BranchFactHit
		decision.ChosenItemID = chosen.ItemID
		answer = chosen.Answer

	case RouteEscalate:
		pool := judgePool(set)
		idx, ok := e.disambiguator.Pick(ctx, tenant.ID, normalized, pool)
		decision.Disambiguated = true
		if ok {
			chosen := pool[idx]
			decision.Branch = domain.BranchFactRewriteHit
			decision.ChosenItemID = chosen.ItemID
			answer = chosen.Answer
		} else {
			decision.Branch = domain.BranchFactMiss
			answer = FallbackAnswer
			nextSteps = fallbackNextSteps
		}

	case RouteReject:
		if wrongService {
			// Never hand an off-capability question to the general model;
			// a confident answer here is the failure mode the guard exists
			// to prevent.
			decision.Branch = domain.BranchFactMiss
			answer = FallbackAnswer
			nextSteps = fallbackNextSteps
		} else {
			decision.Branch, answer, nextSteps = e.generalAnswer(ctx, normalized)
		}
	}

	decision.LatencyMS = time.Since(start).Milliseconds()
	e.record(decision)
	return decision, answer, nextSteps, nil
}

// generalAnswer tries the general-purpose model for queries the curated set
// cannot confidently answer. Unavailable or failing models resolve to the
// frozen fallback sentence.
func (e *Engine) generalAnswer(ctx context.Context, normalized string) (domain.Branch, string, []string) {
	if e.general == nil {
		return domain.BranchGeneralFallback, FallbackAnswer, fallbackNextSteps
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.GeneralTimeout)
	defer cancel()

	answer, err := e.general.Complete(ctx, generalSystemPrompt, normalized)
	if err != nil || answer == "" {
		if err != nil {
			log.Printf("engine: general model failed: %v", err)
			if e.providers != nil {
				e.providers.ProviderError("general")
			}
		}
		return domain.BranchGeneralFallback, FallbackAnswer, fallbackNextSteps
	}
	return domain.BranchGeneralOK, answer, nil
}

// judgePool merges the semantic list with lexical candidates it does not
// already contain, preserving semantic ranking, capped for the judge.
func judgePool(set *CandidateSet) []domain.RetrievalCandidate {
	pool := make([]domain.RetrievalCandidate, 0, maxJudgeCandidates)
	seen := make(map[string]struct{})
	for _, lists := range [][]domain.RetrievalCandidate{set.Semantic, set.Lexical} {
		for _, c := range lists {
			if len(pool) >= maxJudgeCandidates {
				return pool
			}
			if _, ok := seen[c.ItemID]; ok {
				continue
			}
			seen[c.ItemID] = struct{}{}
			pool = append(pool, c)
		}
	}
	return pool
}

func (e *Engine) errorResult(tenantID, normalized string, start time.Time) *Result {
	decision := e.newDecision(tenantID, normalized, domain.BranchError, start)
	decision.LatencyMS = time.Since(start).Milliseconds()
	e.record(decision)
	return &Result{
		Answer:    FallbackAnswer,
		NextSteps: fallbackNextSteps,
		Decision:  decision,
	}
}

func (e *Engine) newDecision(tenantID, normalized string, branch domain.Branch, start time.Time) domain.RetrievalDecision {
	return domain.RetrievalDecision{
		TenantID:  tenantID,
		QueryHash: cache.QueryHash(normalized),
		Branch:    branch,
		LatencyMS: time.Since(start).Milliseconds(),
		DecidedAt: start.UTC(),
	}
}

func (e *Engine) record(decision domain.RetrievalDecision) {
	if e.recorder != nil {
		e.recorder.Record(decision)
	}
}
