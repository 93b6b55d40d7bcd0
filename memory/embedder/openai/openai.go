// Package openai embeds text through the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/unimem/unimem/memory"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.EmbeddingModelTextEmbedding3Small

// defaultDimensions matches text-embedding-3-small's native output size.
const defaultDimensions = 1536

// Embedder calls the OpenAI embeddings endpoint. It also works against any
// OpenAI-compatible server via WithBaseURL.
type Embedder struct {
	client         openai.Client
	model          openai.EmbeddingModel
	dimensions     int
	requestOptions []option.RequestOption
}

var _ memory.Embedder = (*Embedder)(nil)

// Option configures the embedder.
type Option func(*Embedder)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = openai.EmbeddingModel(model)
	}
}

// WithDimensions records the dimensionality of the configured model.
func WithDimensions(n int) Option {
	return func(e *Embedder) {
		e.dimensions = n
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(e *Embedder) {
		e.client = openai.NewClient(append(e.requestOptions, option.WithBaseURL(url))...)
	}
}

// New creates an embedder. The API key falls back to the OPENAI_API_KEY
// environment variable when empty.
func New(apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (set OPENAI_API_KEY)")
	}

	e := &Embedder{
		model:          DefaultModel,
		dimensions:     defaultDimensions,
		requestOptions: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	e.client = openai.NewClient(e.requestOptions...)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed requests an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: embed: response contained no embeddings")
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimensions returns the configured embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
