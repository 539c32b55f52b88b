package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}
