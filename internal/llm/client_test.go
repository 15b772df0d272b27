package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock implementation of EmbeddingAPI
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

func embeddingResponse(width int) openai.EmbeddingResponse {
	return openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: make([]float32, width)}},
	}
}

func TestClient_Embed(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(embeddingResponse(DefaultEmbeddingDimensions), nil)

	c := newClient(embeddings, nil, Config{})
	vector, err := c.Embed(context.Background(), "what are your hours")

	require.NoError(t, err)
	assert.Len(t, vector, DefaultEmbeddingDimensions)
	embeddings.AssertExpectations(t)
}

func TestClient_Embed_EmptyText(t *testing.T) {
	c := newClient(new(MockEmbeddingAPI), nil, Config{})
	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestClient_Embed_WrongDimensions(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(embeddingResponse(8), nil)

	c := newClient(embeddings, nil, Config{})
	_, err := c.Embed(context.Background(), "what are your hours")

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_Embed_CustomDimensions(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(embeddingResponse(8), nil)

	c := newClient(embeddings, nil, Config{EmbeddingDimensions: 8})
	vector, err := c.Embed(context.Background(), "what are your hours")

	require.NoError(t, err)
	assert.Len(t, vector, 8)
}

func TestClient_Embed_NoData(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(openai.EmbeddingResponse{}, nil)

	c := newClient(embeddings, nil, Config{})
	_, err := c.Embed(context.Background(), "what are your hours")

	assert.Error(t, err)
}

// TestClient_Embed_BreakerOpens checks that repeated provider failures open
// the circuit so later calls fail fast without hitting the API.
func TestClient_Embed_BreakerOpens(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(openai.EmbeddingResponse{}, errors.New("provider down"))

	c := newClient(embeddings, nil, Config{BreakerOpenFor: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := c.Embed(context.Background(), "what are your hours")
		require.Error(t, err)
	}

	// The breaker is open; this call must not reach the provider.
	_, err := c.Embed(context.Background(), "what are your hours")
	assert.Error(t, err)
	embeddings.AssertNumberOfCalls(t, "CreateEmbeddings", 5)
}

// TestClient_Breakers_Independent checks that an open embedding breaker does
// not take the chat path down with it.
func TestClient_Breakers_Independent(t *testing.T) {
	embeddings := new(MockEmbeddingAPI)
	embeddings.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(openai.EmbeddingResponse{}, errors.New("provider down"))

	chat := new(MockChatAPI)
	chat.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(chatResponse("still fine"), nil)

	c := newClient(embeddings, chat, Config{BreakerOpenFor: time.Minute})

	for i := 0; i < 6; i++ {
		_, err := c.Embed(context.Background(), "what are your hours")
		require.Error(t, err)
	}

	answer, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "still fine", answer)
}
