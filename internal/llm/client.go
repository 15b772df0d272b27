// Package llm wraps the OpenAI API behind the two narrow capabilities the
// engine consumes: embedding generation and answer judging. Both are guarded
// by circuit breakers so provider outages degrade fast instead of queueing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for query embeddings.
	// Must match the model the offline publishing pipeline embeds items with.
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected embedding width.
	DefaultEmbeddingDimensions = 1536
	// DefaultJudgeModel is the chat model used for disambiguation and the
	// general fallback path.
	DefaultJudgeModel = openai.GPT4oMini
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has the wrong width
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoChoices is returned when a chat completion comes back empty
	ErrNoChoices = errors.New("no completion choices returned")
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Judge is the external language-model collaborator: a structured pick among
// candidates, plus a plain completion used by the general fallback path.
type Judge interface {
	Pick(ctx context.Context, req PickRequest) (*Verdict, error)
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatAPI is the slice of the OpenAI client the judge needs.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// EmbeddingAPI is the slice of the OpenAI client the embedder needs.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config controls model selection and breaker behaviour.
type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	JudgeModel          string
	BreakerOpenFor      time.Duration
}

// Client implements Embedder and Judge on top of the OpenAI API.
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	cfg        Config

	embedBreaker *gobreaker.CircuitBreaker[[]float32]
	chatBreaker  *gobreaker.CircuitBreaker[string]
}

// NewClient creates a client with default models.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	api := openai.NewClient(cfg.APIKey)
	return newClient(api, api, cfg)
}

func newClient(embeddings EmbeddingAPI, chat ChatAPI, cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = DefaultJudgeModel
	}
	openFor := cfg.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
	}

	return &Client{
		embeddings:   embeddings,
		chat:         chat,
		cfg:          cfg,
		embedBreaker: gobreaker.NewCircuitBreaker[[]float32](settings("openai-embeddings")),
		chatBreaker:  gobreaker.NewCircuitBreaker[string](settings("openai-chat")),
	}
}

// Embed generates an embedding for the given text, validating dimensions.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.embedBreaker.Execute(func() ([]float32, error) {
		resp, err := c.embeddings.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: c.cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("no embedding data returned")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.cfg.EmbeddingDimensions {
		return nil, ErrWrongDimensions
	}
	return embedding, nil
}

// Complete runs a plain chat completion. Used by the general fallback path.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if user == "" {
		return "", ErrEmptyText
	}

	return c.chatBreaker.Execute(func() (string, error) {
		resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.JudgeModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.2,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
}
