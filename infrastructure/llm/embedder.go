package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder computes text embeddings through the OpenAI embeddings API.
type Embedder struct {
	client          *openai.Client
	model           string
	errorClassifier *ErrorClassifier
}

var _ ports.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder for model. config.Model is ignored.
func NewEmbedder(config ClientConfig, model string) (*Embedder, error) {
	client, err := NewOpenAIAPI(config)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{
		client:          client,
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, ClassifyOpenAIError(e.errorClassifier, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}
