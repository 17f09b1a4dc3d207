package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the default Gemini embedding model.
const DefaultGeminiModel = "text-embedding-004"

// GeminiBackend generates embeddings with the Gemini API.
type GeminiBackend struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	modelName  string
	dimensions int
}

// NewGeminiBackend creates a Gemini embedding backend.
func NewGeminiBackend(ctx context.Context, apiKey, model string, dimensions int) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	em := client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	return &GeminiBackend{
		client:     client,
		model:      em,
		modelName:  model,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for the given text.
func (b *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := b.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	if b.dimensions > 0 && len(res.Embedding.Values) != b.dimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(res.Embedding.Values), b.dimensions)
	}
	return res.Embedding.Values, nil
}

// Model returns the name of the embedding model.
func (b *GeminiBackend) Model() string {
	return b.modelName
}

// Dimensions returns the expected vector dimensions.
func (b *GeminiBackend) Dimensions() int {
	return b.dimensions
}

// Close releases resources held by the client.
func (b *GeminiBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
