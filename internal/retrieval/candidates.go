package retrieval

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/llm"
)

// DefaultTopK caps each channel's candidate list.
const DefaultTopK = 5

// synonyms widens the lexical channel so curated phrasings still match
// common customer vocabulary. Applied to the query only; variants stay as
// authored.
var synonyms = map[string][]string{
	"cost":      {"price", "charge", "fee"},
	"price":     {"cost", "charge", "fee"},
	"charge":    {"cost", "price", "fee"},
	"cheap":     {"affordable"},
	"open":      {"hours", "opening"},
	"hours":     {"open", "schedule"},
	"book":      {"schedule", "appointment", "reserve"},
	"cancel":    {"cancellation", "refund"},
	"refund":    {"cancel", "money back"},
	"broken":    {"repair", "fix"},
	"fix":       {"repair"},
	"repair":    {"fix"},
	"warranty":  {"guarantee"},
	"guarantee": {"warranty"},
}

// ItemSearcher is the read-only slice of the item store the generator needs.
type ItemSearcher interface {
	SearchLexical(ctx context.Context, tenantID, query string, strictAND bool, limit int) ([]domain.RetrievalCandidate, error)
	SearchSemantic(ctx context.Context, tenantID string, embedding []float32, limit int) ([]domain.RetrievalCandidate, error)
}

// GeneratorConfig tunes the candidate generator.
type GeneratorConfig struct {
	TopK         int
	StrictAND    bool
	EmbedTimeout time.Duration
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{TopK: DefaultTopK, EmbedTimeout: 2 * time.Second}
}

// Generator produces ranked candidates from the two independent retrieval
// channels.
type Generator struct {
	searcher  ItemSearcher
	embedder  llm.Embedder
	providers ProviderErrors
	cfg       GeneratorConfig
}

// NewGenerator creates a Generator. providers may be nil.
func NewGenerator(searcher ItemSearcher, embedder llm.Embedder, providers ProviderErrors, cfg GeneratorConfig) *Generator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 2 * time.Second
	}
	return &Generator{searcher: searcher, embedder: embedder, providers: providers, cfg: cfg}
}

// CandidateSet is one request's retrieval output. A channel with no matches
// is an empty list, not an error; EmbedFailed records that the semantic
// channel was unavailable rather than empty.
type CandidateSet struct {
	Lexical     []domain.RetrievalCandidate
	Semantic    []domain.RetrievalCandidate
	EmbedFailed bool
}

// Retrieve runs both channels. Provider failures degrade the affected
// channel; only store errors propagate.
func (g *Generator) Retrieve(ctx context.Context, tenantID, normalized string) (*CandidateSet, error) {
	set := &CandidateSet{}

	lexical, err := g.searcher.SearchLexical(ctx, tenantID, expandSynonyms(normalized), g.cfg.StrictAND, g.cfg.TopK)
	if err != nil {
		return nil, err
	}
	set.Lexical = lexical

	embedding, err := g.embedQuery(ctx, normalized)
	if err != nil {
		// The semantic channel degrades to empty; the router will see a
		// zero top score and resolve without it.
		log.Printf("retrieval: embedding failed, semantic channel skipped: %v", err)
		if g.providers != nil {
			g.providers.ProviderError("embedding")
		}
		set.EmbedFailed = true
		return set, nil
	}

	semantic, err := g.searcher.SearchSemantic(ctx, tenantID, embedding, g.cfg.TopK)
	if err != nil {
		return nil, err
	}
	set.Semantic = semantic

	return set, nil
}

func (g *Generator) embedQuery(ctx context.Context, normalized string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.EmbedTimeout)
	defer cancel()
	return g.embedder.Embed(ctx, normalized)
}

// expandSynonyms appends synonym tokens to the query. Under OR semantics
// this widens recall without disturbing ranking of exact matches.
func expandSynonyms(query string) string {
	tokens := strings.Fields(query)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}

	expanded := tokens
	for _, tok := range tokens {
		for _, syn := range synonyms[tok] {
			for _, synTok := range strings.Fields(syn) {
				if _, ok := seen[synTok]; ok {
					continue
				}
				seen[synTok] = struct{}{}
				expanded = append(expanded, synTok)
			}
		}
	}
	return strings.Join(expanded, " ")
}
