package domain

import "time"

// Branch is the terminal decision label attached to a request. The string
// values are part of the observability contract (x-debug-branch) and must not
// change.
type Branch string

const (
	BranchClarify         Branch = "clarify"
	BranchFactHit         Branch = "fact_hit"
	BranchFactRewriteHit  Branch = "fact_rewrite_hit"
	BranchFactMiss        Branch = "fact_miss"
	BranchGeneralOK       Branch = "general_ok"
	BranchGeneralFallback Branch = "general_fallback"
	BranchError           Branch = "error"
)

// IsFactAnswer reports whether the branch served a curated FAQ answer.
func (b Branch) IsFactAnswer() bool {
	return b == BranchFactHit || b == BranchFactRewriteHit
}

// Channel identifies which retrieval channel produced a candidate.
type Channel string

const (
	ChannelLexical  Channel = "lexical"
	ChannelSemantic Channel = "semantic"
)

// RetrievalCandidate is an ephemeral, per-request ranked match proposal.
// Scores are channel-local similarities normalized to [0,1].
type RetrievalCandidate struct {
	ItemID   string
	TenantID string
	Question string
	Answer   string
	Score    float64
	Channel  Channel
	Rank     int
}

// RetrievalDecision is the outcome of one query through the pipeline. It is
// the only structure that outlives a request, via the result cache and the
// decision log.
type RetrievalDecision struct {
	TenantID      string
	QueryHash     string
	Branch        Branch
	ChosenItemID  string
	TopScore      float64
	RunnerUpScore float64
	Disambiguated bool
	WrongService  bool
	LatencyMS     int64
	DecidedAt     time.Time
}
