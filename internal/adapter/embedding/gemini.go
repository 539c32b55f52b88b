package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docqa/internal/port"
)

// Gemini batch embedding requests accept at most 100 contents.
const geminiMaxBatch = 100

type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
	timeout     time.Duration
}

var _ port.Embedder = (*GeminiEmbedder)(nil)

type GeminiConfig struct {
	APIKeyEnv   string
	Model       string
	Dimension   int
	BatchSize   int
	Concurrency int
	Timeout     time.Duration // per batch request

	// ClientOptions are appended after the API key, e.g. an endpoint or HTTP client.
	ClientOptions []option.ClientOption
}

func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimension == 0 && cfg.Model == "text-embedding-004" {
		cfg.Dimension = 768
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > geminiMaxBatch {
		cfg.BatchSize = geminiMaxBatch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client:      client,
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := embedBatches(ctx, texts, e.batchSize, e.concurrency, e.embedBatch)
	if err != nil {
		return nil, wrapServiceError(e.model, err)
	}
	return vectors, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	model := e.client.EmbeddingModel(e.model)
	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
