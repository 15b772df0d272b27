// Package retrieval implements the query-time decision engine: candidate
// generation over the lexical and semantic channels, the capability guard,
// the confidence router, LLM disambiguation with safety gates, and the
// pipeline that ties them together.
package retrieval

import "github.com/faqline/faqline/internal/domain"

// Route is the confidence router's three-way outcome.
type Route string

const (
	// RouteAccept serves the top candidate directly; no judge call.
	RouteAccept Route = "accept"
	// RouteEscalate hands the uncertain band to the disambiguator.
	RouteEscalate Route = "escalate"
	// RouteReject declines to serve a curated answer.
	RouteReject Route = "reject"
)

// Thresholds holds the router's tuning. Immutable after construction so
// per-test and per-tenant variation never leaks through package state.
type Thresholds struct {
	// ThetaHigh: minimum top semantic score for a direct accept.
	ThetaHigh float64
	// ThetaLow: below this, disambiguation is not worth its cost.
	ThetaLow float64
	// DeltaMin: minimum gap over the runner-up for a direct accept.
	DeltaMin float64
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{ThetaHigh: 0.82, ThetaLow: 0.55, DeltaMin: 0.08}
}

// RouteInput is everything the router looks at. Scores come from the
// semantic channel; the wrong-service flag comes from the capability guard.
type RouteInput struct {
	TopScore      float64
	RunnerUpScore float64
	WrongService  bool
}

// Decide runs the state machine: Start -> {Accept, Escalate, Reject}. Pure.
//
// The three-way split is the engine's cost/risk trade-off: only the narrow
// band between ThetaLow and ThetaHigh pays for the judge.
func (t Thresholds) Decide(in RouteInput) Route {
	if in.WrongService {
		return RouteReject
	}
	delta := in.TopScore - in.RunnerUpScore
	if in.TopScore >= t.ThetaHigh && delta >= t.DeltaMin {
		return RouteAccept
	}
	if in.TopScore < t.ThetaLow {
		return RouteReject
	}
	return RouteEscalate
}

// topTwo extracts the top and runner-up semantic scores from a ranked list.
func topTwo(candidates []domain.RetrievalCandidate) (top, runnerUp float64) {
	if len(candidates) > 0 {
		top = candidates[0].Score
	}
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}
	return top, runnerUp
}
