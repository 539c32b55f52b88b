package resilience

import (
	"context"
	"errors"
	"log/slog"

	"docqa/internal/domain"
	"docqa/internal/port"
)

type Embedder struct {
	next  port.Embedder
	guard *Guard
}

var _ port.Embedder = (*Embedder)(nil)

func WrapEmbedder(next port.Embedder, s Settings, logger *slog.Logger) *Embedder {
	return &Embedder{next: next, guard: NewGuard("embedding:"+next.ModelName(), s, logger)}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, func() error {
		var err error
		out, err = e.next.Embed(ctx, texts)
		return err
	})
	if err != nil {
		var svcErr *domain.EmbeddingServiceError
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, &domain.EmbeddingServiceError{Model: e.next.ModelName(), Err: err}
	}
	return out, nil
}

func (e *Embedder) Dimension() int    { return e.next.Dimension() }
func (e *Embedder) ModelName() string { return e.next.ModelName() }

type LLM struct {
	next  port.LLM
	guard *Guard
}

var _ port.LLM = (*LLM)(nil)

func WrapLLM(next port.LLM, s Settings, logger *slog.Logger) *LLM {
	return &LLM{next: next, guard: NewGuard("generation:"+next.ModelName(), s, logger)}
}

func (l *LLM) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	var out string
	err := l.guard.Do(ctx, func() error {
		var err error
		out, err = l.next.Generate(ctx, req)
		return err
	})
	if err != nil {
		var genErr *domain.GenerationServiceError
		if errors.As(err, &genErr) {
			return "", err
		}
		return "", &domain.GenerationServiceError{Model: l.next.ModelName(), Err: err}
	}
	return out, nil
}

func (l *LLM) ModelName() string { return l.next.ModelName() }
