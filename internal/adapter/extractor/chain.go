// Package extractor turns PDF bytes into plain text by trying an ordered list
// of extraction strategies.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Strategy is one way of extracting text from a PDF.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Chain tries each strategy in order and returns the first non-empty text.
// No quality scoring is applied to accepted text.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

var _ port.Extractor = (*Chain)(nil)

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// Default returns the go-pdf then pdftotext chain.
func Default(logger *slog.Logger, popplerBinary string) *Chain {
	return NewChain(logger, NewGoPDF(), NewPoppler(popplerBinary))
}

func (c *Chain) Extract(ctx context.Context, data []byte) (string, error) {
	ctx, span := otel.Tracer("docqa/extractor").Start(ctx, "extractor.Extract",
		trace.WithAttributes(attribute.Int("pdf.bytes", len(data))))
	defer span.End()

	var attempts []string
	var errs []error

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		attempts = append(attempts, s.Name())
		text, err := s.Extract(ctx, data)
		if err != nil {
			c.logger.Warn("extraction method failed", "method", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			c.logger.Warn("extraction method returned no text", "method", s.Name())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), domain.ErrEmptyText))
			continue
		}

		c.logger.Debug("extracted text", "method", s.Name(), "chars", len(text))
		span.SetAttributes(attribute.String("extractor.method", s.Name()))
		return text, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no extraction methods configured"))
	}
	err := &domain.ExtractionError{Attempts: attempts, Err: errors.Join(errs...)}
	span.RecordError(err)
	return "", err
}
