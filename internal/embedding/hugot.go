package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// DefaultHugotModel is the sentence-transformer used for local embeddings.
const DefaultHugotModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultHugotDimensions is the output size of all-MiniLM-L6-v2.
const DefaultHugotDimensions = 384

// HugotBackend runs a sentence-transformer locally through hugot's pure Go
// ONNX runtime.
type HugotBackend struct {
	session    *hugot.Session
	pipeline   *pipelines.FeatureExtractionPipeline
	model      string
	dimensions int
	mu         sync.Mutex
}

// PrepareHugotModel downloads the model into modelDir if it is not there yet
// and returns the local model path.
func PrepareHugotModel(modelName, modelDir string) (string, error) {
	if modelName == "" {
		modelName = DefaultHugotModel
	}
	if modelDir == "" {
		modelDir = "./models"
	}
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}

// NewHugotBackend loads the model at modelPath. Call Close to release the session.
func NewHugotBackend(modelPath, modelName string, dimensions int) (*HugotBackend, error) {
	if dimensions <= 0 {
		dimensions = DefaultHugotDimensions
	}
	if modelName == "" {
		modelName = DefaultHugotModel
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "cv-ranker-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	return &HugotBackend{
		session:    session,
		pipeline:   pipeline,
		model:      modelName,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for the given text.
func (b *HugotBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	result, err := b.pipeline.RunPipeline([]string{text})
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}

	vec := result.Embeddings[0]
	if len(vec) != b.dimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(vec), b.dimensions)
	}
	return vec, nil
}

// Model returns the name of the embedding model.
func (b *HugotBackend) Model() string {
	return b.model
}

// Dimensions returns the expected vector dimensions.
func (b *HugotBackend) Dimensions() int {
	return b.dimensions
}

// Close destroys the hugot session.
func (b *HugotBackend) Close() error {
	if b.session != nil {
		return b.session.Destroy()
	}
	return nil
}
