package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/faqline/faqline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Retrieve_BothChannels(t *testing.T) {
	searcher := new(MockItemSearcher)
	embedder := new(MockEmbedder)

	lexical := []domain.RetrievalCandidate{candidate("item-1", "t", "q", "a", 0.8, domain.ChannelLexical)}
	semantic := []domain.RetrievalCandidate{candidate("item-2", "t", "q", "a", 0.9, domain.ChannelSemantic)}
	vector := []float32{0.1, 0.2}

	searcher.On("SearchLexical", mock.Anything, "tenant-1", mock.Anything, false, DefaultTopK).Return(lexical, nil)
	embedder.On("Embed", mock.Anything, "how much does a visit cost").Return(vector, nil)
	searcher.On("SearchSemantic", mock.Anything, "tenant-1", vector, DefaultTopK).Return(semantic, nil)

	g := NewGenerator(searcher, embedder, nil, DefaultGeneratorConfig())
	set, err := g.Retrieve(context.Background(), "tenant-1", "how much does a visit cost")
	require.NoError(t, err)

	assert.Equal(t, lexical, set.Lexical)
	assert.Equal(t, semantic, set.Semantic)
	assert.False(t, set.EmbedFailed)
}

func TestGenerator_Retrieve_EmbedFailureDegrades(t *testing.T) {
	searcher := new(MockItemSearcher)
	embedder := new(MockEmbedder)

	searcher.On("SearchLexical", mock.Anything, "tenant-1", mock.Anything, false, DefaultTopK).
		Return([]domain.RetrievalCandidate{}, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	g := NewGenerator(searcher, embedder, nil, DefaultGeneratorConfig())
	set, err := g.Retrieve(context.Background(), "tenant-1", "how much does a visit cost")
	require.NoError(t, err)

	assert.True(t, set.EmbedFailed)
	assert.Empty(t, set.Semantic)
	searcher.AssertNotCalled(t, "SearchSemantic", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_Retrieve_EmbedFailureCounted(t *testing.T) {
	searcher := new(MockItemSearcher)
	embedder := new(MockEmbedder)
	counter := newProviderErrorCounter()

	searcher.On("SearchLexical", mock.Anything, "tenant-1", mock.Anything, false, DefaultTopK).
		Return([]domain.RetrievalCandidate{}, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	g := NewGenerator(searcher, embedder, counter, DefaultGeneratorConfig())
	_, err := g.Retrieve(context.Background(), "tenant-1", "how much does a visit cost")
	require.NoError(t, err)

	assert.Equal(t, 1, counter.count("embedding"))
}

func TestGenerator_Retrieve_LexicalStoreErrorPropagates(t *testing.T) {
	searcher := new(MockItemSearcher)
	embedder := new(MockEmbedder)

	searcher.On("SearchLexical", mock.Anything, "tenant-1", mock.Anything, false, DefaultTopK).
		Return(nil, errors.New("connection refused"))

	g := NewGenerator(searcher, embedder, nil, DefaultGeneratorConfig())
	_, err := g.Retrieve(context.Background(), "tenant-1", "how much does a visit cost")

	assert.Error(t, err)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestGenerator_Retrieve_QueryExpandedForLexicalOnly(t *testing.T) {
	searcher := new(MockItemSearcher)
	embedder := new(MockEmbedder)
	vector := []float32{0.1}

	searcher.On("SearchLexical", mock.Anything, "tenant-1", mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "price")
	}), false, DefaultTopK).Return([]domain.RetrievalCandidate{}, nil)
	// The semantic channel embeds the query as-is.
	embedder.On("Embed", mock.Anything, "what does it cost").Return(vector, nil)
	searcher.On("SearchSemantic", mock.Anything, "tenant-1", vector, DefaultTopK).
		Return([]domain.RetrievalCandidate{}, nil)

	g := NewGenerator(searcher, embedder, nil, DefaultGeneratorConfig())
	_, err := g.Retrieve(context.Background(), "tenant-1", "what does it cost")
	require.NoError(t, err)

	searcher.AssertExpectations(t)
	embedder.AssertExpectations(t)
}

func TestExpandSynonyms(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"no synonyms", "where are you located", "where are you located"},
		{"single expansion", "what does it cost", "what does it cost price charge fee"},
		{"no duplicate tokens", "cost price", "cost price charge fee"},
		{"multi word synonym split", "can i get a refund", "can i get a refund cancel money back"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandSynonyms(tt.in))
		})
	}
}
